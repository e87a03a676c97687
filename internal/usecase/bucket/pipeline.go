package bucket

import (
	"context"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
	"github.com/ChillFish8/lust/internal/infrastructure/dispatcher"
	"github.com/ChillFish8/lust/internal/infrastructure/processor"
)

// storeEntry is one computed variant waiting to be persisted or served.
type storeEntry struct {
	preset string
	format domain.Format
	data   []byte
}

// uploadPipeline turns an uploaded payload into the set of variants the
// bucket's mode persists at upload time. Implementations run their CPU
// work on the shared dispatcher pool.
type uploadPipeline interface {
	process(ctx context.Context, raw []byte, declared domain.Format) ([]storeEntry, error)
}

func newUploadPipeline(cfg config.BucketConfig, proc *processor.Processor, pool *dispatcher.Pool) uploadPipeline {
	base := pipelineBase{cfg: cfg, proc: proc, pool: pool}
	switch cfg.Mode {
	case config.ModeAOT:
		return &aotPipeline{pipelineBase: base}
	case config.ModeRealtime:
		return &realtimePipeline{pipelineBase: base}
	default:
		return &jitPipeline{pipelineBase: base}
	}
}

type pipelineBase struct {
	cfg  config.BucketConfig
	proc *processor.Processor
	pool *dispatcher.Pool
}

func (p *pipelineBase) encoderParams() processor.EncoderParams {
	return processor.EncoderParams{
		JPEGQuality: p.cfg.Formats.JPEGQuality,
		WebP: processor.WebPParams{
			Quality:   p.cfg.Formats.WebPConfig.Quality,
			Method:    p.cfg.Formats.WebPConfig.Method,
			Threading: p.cfg.Formats.WebPConfig.Threading,
		},
	}
}

func (p *pipelineBase) storeFormat() domain.Format {
	format, _ := domain.ParseFormat(p.cfg.Formats.OriginalImageStoreFormat)
	return format
}

func (p *pipelineBase) decode(ctx context.Context, raw []byte, declared domain.Format) (image.Image, error) {
	return dispatcher.Dispatch(ctx, p.pool, func() (image.Image, error) {
		decoded, _, err := p.proc.Decode(raw, declared)
		return decoded, err
	})
}

// presetTargets enumerates every preset including the implicit original.
func (p *pipelineBase) presetTargets() []presetTarget {
	targets := []presetTarget{{name: domain.PresetOriginal}}
	for name, preset := range p.cfg.Presets {
		filter, _ := domain.ParseFilter(preset.Filter)
		targets = append(targets, presetTarget{
			name:   name,
			width:  preset.Width,
			height: preset.Height,
			filter: filter,
		})
	}
	return targets
}

type presetTarget struct {
	name   string
	width  int
	height int
	filter domain.Filter
}

// render resizes (when the target is not the original) and encodes one
// variant on the pool.
func (p *pipelineBase) render(
	ctx context.Context,
	img image.Image,
	target presetTarget,
	format domain.Format,
) (storeEntry, error) {
	params := p.encoderParams()
	data, err := dispatcher.Dispatch(ctx, p.pool, func() ([]byte, error) {
		raster := img
		if target.name != domain.PresetOriginal {
			raster = p.proc.Resize(raster, target.width, target.height, target.filter)
		}
		return p.proc.Encode(raster, format, params)
	})
	if err != nil {
		return storeEntry{}, err
	}
	return storeEntry{preset: target.name, format: format, data: data}, nil
}

// aotPipeline computes every enabled (preset, format) pair up front so
// the serving path never touches the CPU pool.
type aotPipeline struct {
	pipelineBase
}

func (p *aotPipeline) process(ctx context.Context, raw []byte, declared domain.Format) ([]storeEntry, error) {
	img, err := p.decode(ctx, raw, declared)
	if err != nil {
		return nil, err
	}

	targets := p.presetTargets()
	formats := p.cfg.Formats.Enabled()

	var mu sync.Mutex
	entries := make([]storeEntry, 0, len(targets)*len(formats))

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		for _, format := range formats {
			g.Go(func() error {
				entry, err := p.render(gctx, img, target, format)
				if err != nil {
					return err
				}
				mu.Lock()
				entries = append(entries, entry)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// jitPipeline persists only the base format at each preset; other formats
// are transcoded lazily on first fetch.
type jitPipeline struct {
	pipelineBase
}

func (p *jitPipeline) process(ctx context.Context, raw []byte, declared domain.Format) ([]storeEntry, error) {
	img, err := p.decode(ctx, raw, declared)
	if err != nil {
		return nil, err
	}

	targets := p.presetTargets()
	storeFormat := p.storeFormat()

	var mu sync.Mutex
	entries := make([]storeEntry, 0, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			entry, err := p.render(gctx, img, target, storeFormat)
			if err != nil {
				return err
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// realtimePipeline persists only the original; every other variant is
// computed per request and never written back.
type realtimePipeline struct {
	pipelineBase
}

func (p *realtimePipeline) process(ctx context.Context, raw []byte, declared domain.Format) ([]storeEntry, error) {
	img, err := p.decode(ctx, raw, declared)
	if err != nil {
		return nil, err
	}

	entry, err := p.render(ctx, img, presetTarget{name: domain.PresetOriginal}, p.storeFormat())
	if err != nil {
		return nil, err
	}
	return []storeEntry{entry}, nil
}
