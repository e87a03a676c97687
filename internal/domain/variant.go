package domain

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PresetOriginal is the implicit preset present in every bucket. It means
// "no resize": the variant keeps the dimensions of the uploaded image.
const PresetOriginal = "original"

// Format is one of the output encodings a bucket can serve.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
)

// Formats lists every supported output encoding.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPEG, FormatGIF, FormatWebP}
}

// ParseFormat maps a request or config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Ext returns the storage file extension for the format.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Filter selects the resampling kernel used when resizing.
type Filter string

const (
	FilterNearest    Filter = "nearest"
	FilterTriangle   Filter = "triangle"
	FilterCatmullRom Filter = "catmullrom"
	FilterGaussian   Filter = "gaussian"
	FilterLanczos3   Filter = "lanczos3"
)

// ParseFilter maps a config string to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(s) {
	case "nearest":
		return FilterNearest, nil
	case "triangle", "linear":
		return FilterTriangle, nil
	case "catmullrom":
		return FilterCatmullRom, nil
	case "gaussian":
		return FilterGaussian, nil
	case "lanczos3", "":
		return FilterLanczos3, nil
	default:
		return "", fmt.Errorf("unknown resize filter %q", s)
	}
}

// slugPattern constrains bucket slugs and preset names. Keeping the
// components this narrow is what lets the path codec skip escaping.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidSlug reports whether s is usable as a bucket slug or preset name.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// CustomPreset names the synthetic preset used for realtime ad-hoc sizing.
// These keys live only in the cache and are never persisted.
func CustomPreset(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// VariantKey uniquely identifies one stored or computable image variant.
type VariantKey struct {
	Bucket  string
	ImageID uuid.UUID
	Preset  string
	Format  Format
}

// Path returns the canonical storage path for the key:
//
//	{bucket}/{image_id_hex_no_dashes}/{preset}.{ext}
//
// The serialization is bit-exact at the storage interface and is part of
// the external ABI for filesystem backends.
func (k VariantKey) Path() string {
	return k.Bucket + "/" + hex.EncodeToString(k.ImageID[:]) + "/" + k.Preset + "." + k.Format.Ext()
}

// ImagePrefix returns the path prefix shared by every variant of an image
// within its bucket, used for deletes and cache invalidation.
func (k VariantKey) ImagePrefix() string {
	return ImagePrefix(k.Bucket, k.ImageID)
}

// ImagePrefix builds the `{bucket}/{image_id_hex}/` prefix for an image.
func ImagePrefix(bucket string, imageID uuid.UUID) string {
	return bucket + "/" + hex.EncodeToString(imageID[:]) + "/"
}

// ParseVariantPath inverts Path. It fails on anything that is not a
// canonical variant path.
func ParseVariantPath(path string) (VariantKey, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 {
		return VariantKey{}, fmt.Errorf("malformed variant path %q", path)
	}

	bucket, idHex, file := parts[0], parts[1], parts[2]
	if !ValidSlug(bucket) {
		return VariantKey{}, fmt.Errorf("malformed bucket slug in path %q", path)
	}

	raw, err := hex.DecodeString(idHex)
	if err != nil || len(raw) != 16 {
		return VariantKey{}, fmt.Errorf("malformed image id in path %q", path)
	}
	imageID, err := uuid.FromBytes(raw)
	if err != nil {
		return VariantKey{}, fmt.Errorf("malformed image id in path %q", path)
	}

	dot := strings.LastIndexByte(file, '.')
	if dot <= 0 || dot == len(file)-1 {
		return VariantKey{}, fmt.Errorf("malformed variant file name in path %q", path)
	}

	format, err := ParseFormat(file[dot+1:])
	if err != nil {
		return VariantKey{}, fmt.Errorf("malformed variant extension in path %q", path)
	}

	key := VariantKey{
		Bucket:  bucket,
		ImageID: imageID,
		Preset:  file[:dot],
		Format:  format,
	}
	// Aliases such as `.jpg`, upper-case extensions or upper-case hex
	// parse above but are not what Path produces.
	if key.Path() != path {
		return VariantKey{}, fmt.Errorf("non-canonical variant path %q", path)
	}
	return key, nil
}
