package response

import (
	"encoding/base64"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/usecase/bucket"
)

// Upload reports what an upload persisted.
type Upload struct {
	ImageID        string                      `json:"image_id"`
	Checksum       uint32                      `json:"checksum"`
	ProcessingTime float64                     `json:"processing_time"`
	Variants       map[string]map[string]int64 `json:"variants"`
}

func UploadReportToResponse(report *bucket.UploadReport) Upload {
	variants := make(map[string]map[string]int64, len(report.Variants))
	for preset, formats := range report.Variants {
		variants[preset] = make(map[string]int64, len(formats))
		for format, size := range formats {
			variants[preset][string(format)] = size
		}
	}

	return Upload{
		ImageID:        report.ImageID.String(),
		Checksum:       report.Checksum,
		ProcessingTime: report.ProcessingTime.Seconds(),
		Variants:       variants,
	}
}

// EncodedImage is the base64 JSON shape served when `encode=true`.
type EncodedImage struct {
	ImageID string `json:"image_id"`
	Bucket  string `json:"bucket"`
	Format  string `json:"format"`
	Data    string `json:"data"`
}

func VariantToEncodedResponse(bucketSlug, imageID string, variant *bucket.Variant) EncodedImage {
	return EncodedImage{
		ImageID: imageID,
		Bucket:  bucketSlug,
		Format:  string(variant.Format),
		Data:    base64.StdEncoding.EncodeToString(variant.Data),
	}
}

// Deleted acknowledges an idempotent delete.
type Deleted struct {
	ImageID string `json:"image_id"`
}

// ListPage is one page of a bucket listing.
type ListPage struct {
	Page    int             `json:"page"`
	Entries []adapter.Entry `json:"entries"`
	HasNext bool            `json:"has_next"`
}
