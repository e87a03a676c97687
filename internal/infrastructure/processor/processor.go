package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xwebp "golang.org/x/image/webp"

	"github.com/ChillFish8/lust/internal/domain"
)

const (
	// DefaultMaxPixels bounds the raster size accepted by Decode.
	DefaultMaxPixels = 50_000_000

	// DefaultJPEGQuality is used when a bucket does not override it.
	DefaultJPEGQuality = 90
)

// WebPParams tunes the webp encoder. A nil Quality selects lossless
// encoding; otherwise Quality sets the lossy quality. Method (0-6) and
// Threading are carried from the configuration but are not passed to the
// encoder: webpOptions sets only the quality and lossless options.
type WebPParams struct {
	Quality   *float32
	Method    uint8
	Threading bool
}

// EncoderParams carries the per-bucket encoder configuration.
type EncoderParams struct {
	JPEGQuality int
	WebP        WebPParams
}

// Processor is the pure CPU-bound half of the pipeline: bytes to raster,
// raster to raster, raster to bytes. It holds no I/O handles and is safe
// for concurrent use.
type Processor struct {
	maxPixels int
}

func New(maxPixels int) *Processor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Processor{maxPixels: maxPixels}
}

// Decode turns raw bytes into a raster. When hint is non-empty the bytes
// must be in that format; otherwise the format is auto-detected. Inputs
// whose dimensions exceed the pixel bound are rejected before the full
// decode runs.
func (p *Processor) Decode(data []byte, hint domain.Format) (image.Image, domain.Format, error) {
	cfg, detected, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if cfg.Width*cfg.Height > p.maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", domain.ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	format, err := domain.ParseFormat(detected)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidImage, detected)
	}
	if hint != "" && hint != format {
		return nil, "", fmt.Errorf("%w: declared %s but payload is %s", domain.ErrInvalidImage, hint, format)
	}

	img, err := decode(data, format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	return img, format, nil
}

func decode(data []byte, format domain.Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case domain.FormatPNG:
		return png.Decode(r)
	case domain.FormatJPEG:
		return jpeg.Decode(r)
	case domain.FormatGIF:
		// Multi-frame gifs collapse to their first frame.
		return gif.Decode(r)
	case domain.FormatWebP:
		return xwebp.Decode(r)
	default:
		return nil, fmt.Errorf("no decoder for format %q", format)
	}
}

// Resize scales the raster to exactly width x height using the given
// filter. Presets declare both dimensions as target outputs, so aspect
// ratio is not preserved.
func (p *Processor) Resize(img image.Image, width, height int, filter domain.Filter) image.Image {
	return imaging.Resize(img, width, height, resampleFilter(filter))
}

func resampleFilter(filter domain.Filter) imaging.ResampleFilter {
	switch filter {
	case domain.FilterNearest:
		return imaging.NearestNeighbor
	case domain.FilterTriangle:
		return imaging.Linear
	case domain.FilterCatmullRom:
		return imaging.CatmullRom
	case domain.FilterGaussian:
		return imaging.Gaussian
	default:
		return imaging.Lanczos
	}
}

// Encode serializes the raster into the requested format.
func (p *Processor) Encode(img image.Image, format domain.Format, params EncoderParams) ([]byte, error) {
	var buf bytes.Buffer

	var err error
	switch format {
	case domain.FormatPNG:
		err = png.Encode(&buf, img)
	case domain.FormatJPEG:
		quality := params.JPEGQuality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case domain.FormatGIF:
		err = gif.Encode(&buf, img, nil)
	case domain.FormatWebP:
		err = webp.Encode(&buf, img, webpOptions(params.WebP))
	default:
		return nil, fmt.Errorf("%w: no encoder for format %q", domain.ErrEncodingFailure, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncodingFailure, format, err)
	}

	return buf.Bytes(), nil
}

func webpOptions(params WebPParams) *webp.Options {
	if params.Quality == nil {
		return &webp.Options{Lossless: true}
	}
	return &webp.Options{Quality: *params.Quality}
}
