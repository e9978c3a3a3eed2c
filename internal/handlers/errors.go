package handlers

import (
	"errors"
	"net/http"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/parser"
	"catalog-import-service/internal/services"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target    error
	status    int
	code      string
	retryable bool
}

var errorMappings = []errorMapping{
	{services.ErrCategoryNotFound, http.StatusNotFound, "CATEGORY_NOT_FOUND", false},
	{services.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND", false},
	{services.ErrDuplicateItemCode, http.StatusConflict, "DUPLICATE_ITEM_CODE", false},
	{services.ErrNoImages, http.StatusBadRequest, "NO_IMAGES", false},
	{services.ErrTooManyImages, http.StatusBadRequest, "TOO_MANY_IMAGES", false},
	{services.ErrInvalidMainIndex, http.StatusBadRequest, "INVALID_MAIN_INDEX", false},
	{services.ErrInvalidImage, http.StatusBadRequest, "INVALID_IMAGE", false},
	{services.ErrInvalidFilter, http.StatusBadRequest, "INVALID_FILTER", false},
	{parser.ErrUnknownSchema, http.StatusBadRequest, "UNKNOWN_SCHEMA", false},
	{parser.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT", false},
	{services.ErrStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", true},
	{services.ErrObjectStoreFailure, http.StatusServiceUnavailable, "OBJECT_STORE_FAILURE", true},
	{services.ErrValidationTimeout, http.StatusServiceUnavailable, "VALIDATION_TIMEOUT", true},
	{parser.ErrParseTimeout, http.StatusServiceUnavailable, "PARSE_TIMEOUT", true},
}

// respondError writes the error envelope for a service error. A failed
// commit validation answers with the report itself.
func respondError(c *gin.Context, err error) {
	var failed *services.ValidationFailedError
	if errors.As(err, &failed) {
		c.JSON(http.StatusUnprocessableEntity, models.ValidationResponse{
			Success: false,
			Data:    failed.Report,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:      m.code,
					Message:   err.Error(),
					Retryable: m.retryable,
				},
			})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		},
	})
}

func badRequest(c *gin.Context, code, field, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Field:   field,
			Message: message,
		},
	})
}
