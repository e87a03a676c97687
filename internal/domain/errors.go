package domain

import "errors"

var (
	ErrInvalidImage         = errors.New("image could not be decoded")
	ErrImageTooLarge        = errors.New("image exceeds the pixel limit")
	ErrPayloadTooLarge      = errors.New("payload exceeds the upload size limit")
	ErrUnknownFormat        = errors.New("unknown image format")
	ErrFormatNotEnabled     = errors.New("format is not enabled for this bucket")
	ErrUnknownPreset        = errors.New("preset is not declared for this bucket")
	ErrUnknownBucket        = errors.New("bucket does not exist")
	ErrCustomSizeNotAllowed = errors.New("custom sizing is only allowed in realtime mode")
	ErrImageNotFound        = errors.New("image not found")
	ErrEncodingFailure      = errors.New("image encoding failed")
	ErrStorageFailure       = errors.New("storage backend failure")
	ErrCacheFailure         = errors.New("cache failure")
)
