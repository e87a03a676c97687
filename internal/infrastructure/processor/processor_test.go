package processor_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/processor"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessor_Decode(t *testing.T) {
	p := processor.New(0)

	t.Run("auto-detects the format", func(t *testing.T) {
		img, format, err := p.Decode(testPNG(t, 64, 48), "")
		require.NoError(t, err)
		assert.Equal(t, domain.FormatPNG, format)
		assert.Equal(t, 64, img.Bounds().Dx())
		assert.Equal(t, 48, img.Bounds().Dy())
	})

	t.Run("accepts a matching hint", func(t *testing.T) {
		_, format, err := p.Decode(testPNG(t, 8, 8), domain.FormatPNG)
		require.NoError(t, err)
		assert.Equal(t, domain.FormatPNG, format)
	})

	t.Run("rejects a mismatched hint", func(t *testing.T) {
		_, _, err := p.Decode(testPNG(t, 8, 8), domain.FormatJPEG)
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := p.Decode([]byte("definitely not an image"), "")
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	})

	t.Run("rejects oversize rasters before decoding", func(t *testing.T) {
		bounded := processor.New(16 * 16)
		_, _, err := bounded.Decode(testPNG(t, 64, 64), "")
		assert.ErrorIs(t, err, domain.ErrImageTooLarge)
	})
}

func TestProcessor_Resize(t *testing.T) {
	p := processor.New(0)
	img, _, err := p.Decode(testPNG(t, 256, 256), "")
	require.NoError(t, err)

	filters := []domain.Filter{
		domain.FilterNearest,
		domain.FilterTriangle,
		domain.FilterCatmullRom,
		domain.FilterGaussian,
		domain.FilterLanczos3,
	}
	for _, filter := range filters {
		t.Run(string(filter), func(t *testing.T) {
			resized := p.Resize(img, 32, 24, filter)
			assert.Equal(t, 32, resized.Bounds().Dx())
			assert.Equal(t, 24, resized.Bounds().Dy())
		})
	}
}

func TestProcessor_Encode(t *testing.T) {
	p := processor.New(0)
	img, _, err := p.Decode(testPNG(t, 32, 32), "")
	require.NoError(t, err)

	quality := float32(80)
	params := processor.EncoderParams{
		JPEGQuality: 85,
		WebP:        processor.WebPParams{Quality: &quality, Method: 4},
	}

	magics := map[domain.Format][]byte{
		domain.FormatPNG:  {0x89, 'P', 'N', 'G'},
		domain.FormatJPEG: {0xff, 0xd8},
		domain.FormatGIF:  []byte("GIF8"),
		domain.FormatWebP: []byte("RIFF"),
	}
	for format, magic := range magics {
		t.Run(string(format), func(t *testing.T) {
			data, err := p.Encode(img, format, params)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, magic), "wrong magic bytes for %s", format)

			decoded, roundTripped, err := p.Decode(data, format)
			require.NoError(t, err)
			assert.Equal(t, format, roundTripped)
			assert.Equal(t, 32, decoded.Bounds().Dx())
		})
	}
}

func TestProcessor_EncodeWebPLossless(t *testing.T) {
	p := processor.New(0)
	img, _, err := p.Decode(testPNG(t, 16, 16), "")
	require.NoError(t, err)

	data, err := p.Encode(img, domain.FormatWebP, processor.EncoderParams{})
	require.NoError(t, err)

	decoded, _, err := p.Decode(data, domain.FormatWebP)
	require.NoError(t, err)

	// Lossless round trip preserves every pixel.
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			wantR, wantG, wantB, wantA := img.At(x, y).RGBA()
			gotR, gotG, gotB, gotA := decoded.At(x, y).RGBA()
			require.Equal(t, [4]uint32{wantR, wantG, wantB, wantA}, [4]uint32{gotR, gotG, gotB, gotA})
		}
	}
}
