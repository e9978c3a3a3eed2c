package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CategoryRepository resolves categories from the shared categories table.
type CategoryRepository struct {
	db    *gorm.DB
	cache *cache.CacheLayer
}

func NewCategoryRepository(db *gorm.DB, redis *redis.Client) *CategoryRepository {
	repo := &CategoryRepository{db: db}
	if redis != nil {
		repo.cache = cache.NewCacheLayerFromClient(redis, cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 1000,
			L1TTL:      30 * time.Second,
			DefaultTTL: CategoryCacheTTL,
			KeyPrefix:  "tesseract:catalog-import:",
		})
	}
	return repo
}

// GetActiveCategory returns the category when it exists for the tenant and
// is active. Missing and inactive categories both yield ErrNotFound.
func (r *CategoryRepository) GetActiveCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, ErrNotFound
	}

	category, err := r.getCategory(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !category.Active() {
		return nil, ErrNotFound
	}
	return category, nil
}

// GetActiveCategoryFresh reads the category from the database and drops
// any cached copy.
func (r *CategoryRepository) GetActiveCategoryFresh(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, ErrNotFound
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, categoryCacheKey(tenantID, id))
	}

	category, err := r.loadCategory(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !category.Active() {
		return nil, ErrNotFound
	}
	return category, nil
}

func categoryCacheKey(tenantID string, id uuid.UUID) string {
	return fmt.Sprintf("category:%s:%s", tenantID, id.String())
}

func (r *CategoryRepository) getCategory(ctx context.Context, tenantID string, id uuid.UUID) (*models.Category, error) {
	if r.cache != nil {
		var category models.Category
		err := r.cache.GetOrSetJSON(ctx, categoryCacheKey(tenantID, id), &category, CategoryCacheTTL, func() (any, error) {
			return r.loadCategory(ctx, tenantID, id)
		})
		if err == nil {
			return &category, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
	}
	return r.loadCategory(ctx, tenantID, id)
}

func (r *CategoryRepository) loadCategory(ctx context.Context, tenantID string, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}
