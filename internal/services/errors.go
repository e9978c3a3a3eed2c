package services

import (
	"context"
	"errors"
	"fmt"

	"catalog-import-service/internal/clients"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound   = errors.New("category not found or not active")
	ErrDuplicateItemCode  = errors.New("item code already exists in this category")
	ErrStorageUnavailable = errors.New("product storage is unavailable")
	ErrValidationTimeout  = errors.New("validation exceeded its deadline")

	ErrProductNotFound    = errors.New("product not found")
	ErrNoImages           = errors.New("at least one image is required")
	ErrTooManyImages      = fmt.Errorf("a product can have at most %d images", models.MaxProductImages)
	ErrInvalidMainIndex   = errors.New("main image index is out of range")
	ErrInvalidImage       = errors.New("file is not a readable image")
	ErrObjectStoreFailure = errors.New("image upload failed")

	ErrInvalidFilter     = errors.New("invalid product filter")
	ErrInvalidTransition = errors.New("invalid upload session transition")
)

// ValidationFailedError carries the report of a batch that may not be committed.
type ValidationFailedError struct {
	Report *models.ValidationReport
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("import validation failed: %d details errors, %d pricing errors",
		len(e.Report.DetailsErrors), len(e.Report.PricingErrors))
}

// CategoryDirectory resolves the target category of an import.
type CategoryDirectory interface {
	GetActiveCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error)
}

// FreshCategoryDirectory is implemented by directories that cache lookups.
// Commits use it to read the category straight from its source.
type FreshCategoryDirectory interface {
	GetActiveCategoryFresh(ctx context.Context, tenantID, categoryID string) (*models.Category, error)
}

// ProductStore persists committed products.
type ProductStore interface {
	InsertBatch(ctx context.Context, tenantID string, products []*models.Product) ([]uuid.UUID, error)
	GetByID(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
	UpdateImages(ctx context.Context, tenantID string, productID uuid.UUID, image string, images []string) (*models.Product, error)
	Query(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) ([]models.Product, int64, error)
	ExistingItemCodes(ctx context.Context, tenantID, categoryID string, codes []string) ([]string, error)
}

// ObjectStore holds uploaded product images.
type ObjectStore interface {
	PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EventPublisher announces product changes. A nil publisher disables events.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, product *models.Product, actorID string) error
	PublishProductUpdated(ctx context.Context, product *models.Product, changedFields []string, actorID string) error
}

func isCategoryNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, clients.ErrCategoryNotFound)
}

// storageError tags an infrastructure failure as retryable.
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
