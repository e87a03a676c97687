package handler

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ChillFish8/lust/internal/adapter/handler/dto/request"
	"github.com/ChillFish8/lust/internal/adapter/handler/dto/response"
	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/pkg/httputil"
	"github.com/ChillFish8/lust/internal/usecase/bucket"
)

// hardUploadCap bounds request bodies before base64 decoding when no
// stricter limit is configured.
const hardUploadCap = 100 << 20

// ImageHandler translates the HTTP surface into domain operations. It
// holds no pipeline logic of its own.
type ImageHandler struct {
	buckets BucketResolver
}

func NewImageHandler(buckets BucketResolver) *ImageHandler {
	return &ImageHandler{buckets: buckets}
}

// Upload handles POST /admin/:bucket/create.
func (h *ImageHandler) Upload(c *gin.Context) {
	controller, err := h.buckets.Get(c.Param("bucket"))
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, hardUploadCap)

	var req request.UploadImage
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var declared domain.Format
	if req.Format != "" {
		declared, err = domain.ParseFormat(req.Format)
		if err != nil {
			httputil.HandleError(c, err)
			return
		}
	}

	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "data is not valid base64")
		return
	}

	report, err := controller.Upload(c.Request.Context(), raw, declared)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	httputil.OK(c, response.UploadReportToResponse(report))
}

// Fetch handles GET /:bucket/:image_id.
func (h *ImageHandler) Fetch(c *gin.Context) {
	controller, err := h.buckets.Get(c.Param("bucket"))
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	imageID, err := uuid.Parse(c.Param("image_id"))
	if err != nil {
		httputil.Error(c, http.StatusBadRequest, "INVALID_ID", "invalid image id")
		return
	}

	req := bucket.FetchRequest{
		ImageID: imageID,
		Preset:  c.Query("size"),
	}

	if format := c.Query("format"); format != "" {
		req.Format, err = domain.ParseFormat(format)
		if err != nil {
			httputil.HandleError(c, err)
			return
		}
	}

	custom, err := parseCustomSize(c)
	if err != nil {
		httputil.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req.Custom = custom

	variant, err := controller.Fetch(c.Request.Context(), req)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	if variant == nil {
		httputil.Error(c, http.StatusNotFound, "NOT_FOUND", "image not found")
		return
	}

	if c.Query("encode") == "true" {
		httputil.OK(c, response.VariantToEncodedResponse(c.Param("bucket"), imageID.String(), variant))
		return
	}

	c.Data(http.StatusOK, variant.Format.ContentType(), variant.Data)
}

// Delete handles DELETE /admin/:bucket/delete/:image_id. Deleting an
// unknown image still answers 200.
func (h *ImageHandler) Delete(c *gin.Context) {
	controller, err := h.buckets.Get(c.Param("bucket"))
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	imageID, err := uuid.Parse(c.Param("image_id"))
	if err != nil {
		httputil.Error(c, http.StatusBadRequest, "INVALID_ID", "invalid image id")
		return
	}

	if err := controller.Delete(c.Request.Context(), imageID); err != nil {
		httputil.HandleError(c, err)
		return
	}

	httputil.OK(c, response.Deleted{ImageID: imageID.String()})
}

// List handles POST /admin/:bucket/list.
func (h *ImageHandler) List(c *gin.Context) {
	controller, err := h.buckets.Get(c.Param("bucket"))
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	var req request.ListImages
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}

	filter, err := listFilter(req.Filter)
	if err != nil {
		httputil.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	entries, hasNext, err := controller.List(c.Request.Context(), filter, req.Page)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	if req.Order == "desc" {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	httputil.OK(c, response.ListPage{
		Page:    req.Page,
		Entries: entries,
		HasNext: hasNext,
	})
}

func listFilter(filter *request.ListFilter) (adapter.ListFilter, error) {
	if filter == nil || filter.FilterType == "" || filter.FilterType == "all" {
		return adapter.ListFilter{}, nil
	}
	if filter.FilterType != "creation_date" {
		return adapter.ListFilter{}, errInvalidFilterType
	}
	if filter.WithValue == nil {
		return adapter.ListFilter{}, errMissingFilterValue
	}
	return adapter.ListFilter{
		From: filter.WithValue.From,
		To:   filter.WithValue.To,
	}, nil
}

func parseCustomSize(c *gin.Context) (*bucket.CustomSize, error) {
	widthStr, heightStr := c.Query("width"), c.Query("height")
	if widthStr == "" && heightStr == "" {
		return nil, nil
	}
	if widthStr == "" || heightStr == "" {
		return nil, errPartialCustomSize
	}

	width, err := strconv.Atoi(widthStr)
	if err != nil {
		return nil, errPartialCustomSize
	}
	height, err := strconv.Atoi(heightStr)
	if err != nil {
		return nil, errPartialCustomSize
	}
	return &bucket.CustomSize{Width: width, Height: height}, nil
}
