package bucket

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/cache"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
	"github.com/ChillFish8/lust/internal/infrastructure/dispatcher"
	"github.com/ChillFish8/lust/internal/infrastructure/processor"
)

// UploadReport describes what an upload persisted.
type UploadReport struct {
	ImageID        uuid.UUID
	Checksum       uint32
	ProcessingTime time.Duration

	// Variants maps preset name to format to persisted byte size.
	Variants map[string]map[domain.Format]int64
}

// Variant is a fetched payload plus the format it is encoded in.
type Variant struct {
	Data   []byte
	Format domain.Format
}

// Controller orchestrates the per-bucket policy: which pipeline runs on
// upload, how fetches resolve through cache and storage, and how the
// bucket's concurrency and upload limits apply.
type Controller struct {
	slug        string
	cfg         config.BucketConfig
	proc        *processor.Processor
	storage     adapter.Backend
	cache       *cache.VariantCache
	pool        *dispatcher.Pool
	limiter     *dispatcher.Limiter
	pipeline    uploadPipeline
	uploadLimit int64
	logger      *zap.Logger

	// flight coalesces on-demand computation when no cache is configured
	// to do it.
	flight dispatcher.Flight
}

// ControllerOptions wires one bucket controller.
type ControllerOptions struct {
	Slug        string
	Config      config.BucketConfig
	Processor   *processor.Processor
	Storage     adapter.Backend
	Cache       *cache.VariantCache
	Pool        *dispatcher.Pool
	Limiter     *dispatcher.Limiter
	UploadLimit int64
	Logger      *zap.Logger
}

func NewController(opts ControllerOptions) *Controller {
	return &Controller{
		slug:        opts.Slug,
		cfg:         opts.Config,
		proc:        opts.Processor,
		storage:     opts.Storage,
		cache:       opts.Cache,
		pool:        opts.Pool,
		limiter:     opts.Limiter,
		pipeline:    newUploadPipeline(opts.Config, opts.Processor, opts.Pool),
		uploadLimit: opts.UploadLimit,
		logger:      opts.Logger.With(zap.String("bucket", opts.Slug)),
	}
}

// Mode exposes the bucket's processing mode.
func (c *Controller) Mode() config.Mode {
	return c.cfg.Mode
}

// Upload runs the mode's pipeline over the payload and persists the
// resulting variants. After it returns, every variant the mode requires
// is visible to Fetch.
func (c *Controller) Upload(ctx context.Context, raw []byte, declared domain.Format) (*UploadReport, error) {
	if c.uploadLimit > 0 && int64(len(raw)) > c.uploadLimit {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrPayloadTooLarge, len(raw))
	}

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	imageID := uuid.New()

	entries, err := c.pipeline.process(ctx, raw, declared)
	if err != nil {
		return nil, err
	}

	report := &UploadReport{
		ImageID:  imageID,
		Checksum: crc32.ChecksumIEEE(raw),
		Variants: make(map[string]map[domain.Format]int64, len(entries)),
	}

	for _, entry := range entries {
		key := domain.VariantKey{
			Bucket:  c.slug,
			ImageID: imageID,
			Preset:  entry.preset,
			Format:  entry.format,
		}

		if err := c.storage.Put(ctx, key.Path(), entry.data); err != nil {
			// Partial writes roll back so a half-uploaded image is never
			// observable.
			c.rollback(imageID)
			return nil, fmt.Errorf("%w: storing %s: %v", domain.ErrStorageFailure, key.Path(), err)
		}

		if c.cache != nil {
			c.cache.Set(key, entry.data)
		}

		if report.Variants[entry.preset] == nil {
			report.Variants[entry.preset] = make(map[domain.Format]int64)
		}
		report.Variants[entry.preset][entry.format] = int64(len(entry.data))
	}

	report.ProcessingTime = time.Since(start)

	c.logger.Debug("image uploaded",
		zap.String("image_id", imageID.String()),
		zap.Int("variants", len(entries)),
		zap.Duration("processing_time", report.ProcessingTime),
	)
	return report, nil
}

// rollback removes whatever an aborted upload managed to persist. It is
// deliberately detached from the request context so cancellation cannot
// strand partial state.
func (c *Controller) rollback(imageID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prefix := domain.ImagePrefix(c.slug, imageID)
	if err := c.storage.DeletePrefix(ctx, prefix); err != nil {
		c.logger.Error("failed to roll back partial upload",
			zap.String("image_id", imageID.String()),
			zap.Error(err),
		)
	}
	if c.cache != nil {
		c.cache.InvalidatePrefix(prefix)
	}
}

// CustomSize is an ad-hoc width/height pair, allowed only in realtime
// buckets.
type CustomSize struct {
	Width  int
	Height int
}

// FetchRequest names the variant a caller wants. Zero-valued fields fall
// back to the bucket's serving defaults.
type FetchRequest struct {
	ImageID uuid.UUID
	Preset  string
	Format  domain.Format
	Custom  *CustomSize
}

// Fetch resolves a variant, computing and caching it where the bucket's
// mode allows. A nil result with a nil error means the image does not
// exist.
func (c *Controller) Fetch(ctx context.Context, req FetchRequest) (*Variant, error) {
	format := req.Format
	if format == "" {
		format, _ = domain.ParseFormat(c.cfg.DefaultServingFormat)
	}
	if !c.cfg.Formats.IsEnabled(format) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFormatNotEnabled, format)
	}

	preset := req.Preset
	if preset == "" {
		preset = c.cfg.DefaultServingPreset
	}

	if req.Custom != nil {
		if c.cfg.Mode != config.ModeRealtime {
			return nil, domain.ErrCustomSizeNotAllowed
		}
		if req.Custom.Width <= 0 || req.Custom.Height <= 0 ||
			req.Custom.Width > c.cfg.MaxCustomDimension || req.Custom.Height > c.cfg.MaxCustomDimension {
			return nil, fmt.Errorf("%w: dimensions out of range", domain.ErrCustomSizeNotAllowed)
		}
		preset = domain.CustomPreset(req.Custom.Width, req.Custom.Height)
	} else if preset != domain.PresetOriginal {
		if _, ok := c.cfg.Presets[preset]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPreset, preset)
		}
	}

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	key := domain.VariantKey{Bucket: c.slug, ImageID: req.ImageID, Preset: preset, Format: format}

	switch c.cfg.Mode {
	case config.ModeAOT:
		return c.fetchAOT(ctx, key)
	case config.ModeRealtime:
		return c.fetchRealtime(ctx, key, req.Custom)
	default:
		return c.fetchJIT(ctx, key)
	}
}

// fetchAOT is a straight cache/storage read: every variant was persisted
// at upload time.
func (c *Controller) fetchAOT(ctx context.Context, key domain.VariantKey) (*Variant, error) {
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			return &Variant{Data: data, Format: key.Format}, nil
		}
	}

	data, err := c.storage.Get(ctx, key.Path())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	if data == nil {
		return nil, nil
	}

	if c.cache != nil {
		c.cache.Set(key, data)
	}
	return &Variant{Data: data, Format: key.Format}, nil
}

// fetchJIT reads the variant if it was already materialized, otherwise
// transcodes the stored base preset into the requested format, persists
// it and caches it. Concurrent cold fetches of the same variant share one
// computation.
func (c *Controller) fetchJIT(ctx context.Context, key domain.VariantKey) (*Variant, error) {
	producer := func() ([]byte, error) {
		data, err := c.storage.Get(ctx, key.Path())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
		}
		if data != nil {
			return data, nil
		}

		baseKey := key
		baseKey.Format = c.storeFormat()
		base, err := c.storage.Get(ctx, baseKey.Path())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
		}
		if base == nil {
			return nil, domain.ErrImageNotFound
		}

		data, err = c.transcode(ctx, base, baseKey.Format, key.Format, nil)
		if err != nil {
			return nil, err
		}

		if err := c.storage.Put(ctx, key.Path(), data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
		}
		return data, nil
	}

	return c.resolveThroughCache(ctx, key, producer)
}

// fetchRealtime synthesizes the variant from the stored original on every
// cold request; results live only in the cache.
func (c *Controller) fetchRealtime(ctx context.Context, key domain.VariantKey, custom *CustomSize) (*Variant, error) {
	producer := func() ([]byte, error) {
		originalKey := domain.VariantKey{
			Bucket:  key.Bucket,
			ImageID: key.ImageID,
			Preset:  domain.PresetOriginal,
			Format:  c.storeFormat(),
		}

		base, err := c.storage.Get(ctx, originalKey.Path())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
		}
		if base == nil {
			return nil, domain.ErrImageNotFound
		}

		var resize *presetTarget
		if custom != nil {
			resize = &presetTarget{
				name:   key.Preset,
				width:  custom.Width,
				height: custom.Height,
				filter: domain.FilterLanczos3,
			}
		} else if key.Preset != domain.PresetOriginal {
			preset := c.cfg.Presets[key.Preset]
			filter, _ := domain.ParseFilter(preset.Filter)
			resize = &presetTarget{
				name:   key.Preset,
				width:  preset.Width,
				height: preset.Height,
				filter: filter,
			}
		}

		return c.transcode(ctx, base, c.storeFormat(), key.Format, resize)
	}

	return c.resolveThroughCache(ctx, key, producer)
}

// resolveThroughCache funnels a producer through the cache's single
// flight, or through the controller's own flight group when caching is
// disabled. A missing image surfaces as (nil, nil).
func (c *Controller) resolveThroughCache(
	ctx context.Context,
	key domain.VariantKey,
	producer func() ([]byte, error),
) (*Variant, error) {
	var data []byte
	var err error
	if c.cache != nil {
		data, err = c.cache.GetOrCompute(ctx, key, producer)
	} else {
		data, err = c.flight.Do(ctx, key.Path(), producer)
	}

	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Variant{Data: data, Format: key.Format}, nil
}

// transcode decodes src, optionally resizes it and encodes it in the
// target format, all on the CPU pool.
func (c *Controller) transcode(
	ctx context.Context,
	src []byte,
	srcFormat domain.Format,
	target domain.Format,
	resize *presetTarget,
) ([]byte, error) {
	// Nothing to do when the stored encoding already matches.
	if resize == nil && srcFormat == target {
		return src, nil
	}

	params := processor.EncoderParams{
		JPEGQuality: c.cfg.Formats.JPEGQuality,
		WebP: processor.WebPParams{
			Quality:   c.cfg.Formats.WebPConfig.Quality,
			Method:    c.cfg.Formats.WebPConfig.Method,
			Threading: c.cfg.Formats.WebPConfig.Threading,
		},
	}

	return dispatcher.Dispatch(ctx, c.pool, func() ([]byte, error) {
		img, _, err := c.proc.Decode(src, srcFormat)
		if err != nil {
			return nil, err
		}
		if resize != nil {
			img = c.proc.Resize(img, resize.width, resize.height, resize.filter)
		}
		return c.proc.Encode(img, target, params)
	})
}

func (c *Controller) storeFormat() domain.Format {
	format, _ := domain.ParseFormat(c.cfg.Formats.OriginalImageStoreFormat)
	return format
}

// Delete removes every variant of the image from storage and drops the
// matching cache entries. Deleting an unknown image is not an error.
func (c *Controller) Delete(ctx context.Context, imageID uuid.UUID) error {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	prefix := domain.ImagePrefix(c.slug, imageID)
	if err := c.storage.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	if c.cache != nil {
		c.cache.InvalidatePrefix(prefix)
	}

	c.logger.Debug("image deleted", zap.String("image_id", imageID.String()))
	return nil
}

// List pages through the bucket's persisted variants.
func (c *Controller) List(ctx context.Context, filter adapter.ListFilter, page int) ([]adapter.Entry, bool, error) {
	entries, more, err := c.storage.List(ctx, c.slug, filter, page)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	return entries, more, nil
}
