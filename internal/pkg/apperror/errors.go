package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ChillFish8/lust/internal/domain"
)

// AppError pairs a machine-readable code with the HTTP status the
// boundary should answer with.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromDomain maps the domain error kinds onto boundary responses.
func FromDomain(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidImage):
		return New("INVALID_IMAGE", "the payload could not be decoded as an image", http.StatusBadRequest)
	case errors.Is(err, domain.ErrImageTooLarge):
		return New("IMAGE_TOO_LARGE", "the image exceeds the pixel limit", http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return New("PAYLOAD_TOO_LARGE", "the payload exceeds the upload size limit", http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrUnknownFormat):
		return New("UNKNOWN_FORMAT", "unknown image format", http.StatusBadRequest)
	case errors.Is(err, domain.ErrFormatNotEnabled):
		return New("FORMAT_NOT_ENABLED", "the requested format is not enabled for this bucket", http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnknownPreset):
		return New("UNKNOWN_PRESET", "the requested preset is not declared for this bucket", http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnknownBucket):
		return New("UNKNOWN_BUCKET", "bucket not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrCustomSizeNotAllowed):
		return New("CUSTOM_SIZE_NOT_ALLOWED", "custom sizing is only allowed in realtime buckets", http.StatusBadRequest)
	case errors.Is(err, domain.ErrImageNotFound):
		return NotFound("image")
	default:
		return Internal(err)
	}
}

func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
