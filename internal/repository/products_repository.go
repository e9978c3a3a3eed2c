package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache TTL constants
const (
	ProductCacheTTL     = 5 * time.Minute  // Single product cache
	ProductListCacheTTL = 2 * time.Minute  // Product list cache (shorter due to frequent changes)
	CategoryCacheTTL    = 10 * time.Minute // Category lookups during validation
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

type ProductsRepository struct {
	db    *gorm.DB
	cache *cache.CacheLayer
}

func NewProductsRepository(db *gorm.DB, redis *redis.Client) *ProductsRepository {
	repo := &ProductsRepository{db: db}

	if redis != nil {
		repo.cache = cache.NewCacheLayerFromClient(redis, cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "tesseract:catalog-import:",
		})
	}

	return repo
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(tenantID string, prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s:%s:%s", prefix, tenantID, hex.EncodeToString(hash[:]))
}

func productCacheKey(tenantID string, productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:%s", tenantID, productID.String())
}

func (r *ProductsRepository) invalidateProductCaches(ctx context.Context, tenantID string, productID uuid.UUID) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, productCacheKey(tenantID, productID))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("products:list:%s:*", tenantID))
}

// InvalidateTenantListCaches drops every cached listing for a tenant.
func (r *ProductsRepository) InvalidateTenantListCaches(ctx context.Context, tenantID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("products:list:%s:*", tenantID))
}

// InsertBatch creates all products in one transaction. Any failed insert
// rolls back the whole batch.
// SECURITY: every product is assigned tenantID regardless of its contents
func (r *ProductsRepository) InsertBatch(ctx context.Context, tenantID string, products []*models.Product) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(products))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for i, product := range products {
			// one microsecond apart keeps file order under created_at ordering
			stamp := now.Add(time.Duration(i) * time.Microsecond)
			product.TenantID = tenantID
			product.CreatedAt = stamp
			product.UpdatedAt = stamp
			if product.Status == "" {
				product.Status = models.ProductStatusActive
			}
			if product.Images == nil {
				product.Images = models.StringArray{}
			}

			if err := tx.Create(product).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: item_code %s", ErrDuplicateKey, product.ItemCode)
				}
				return fmt.Errorf("insert item_code %s: %w", product.ItemCode, err)
			}
			ids = append(ids, product.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.InvalidateTenantListCaches(ctx, tenantID)
	return ids, nil
}

// GetByID retrieves a product by ID with caching
func (r *ProductsRepository) GetByID(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	if r.cache != nil {
		var product models.Product
		err := r.cache.GetOrSetJSON(ctx, productCacheKey(tenantID, productID), &product, ProductCacheTTL, func() (any, error) {
			return r.loadProduct(ctx, tenantID, productID)
		})
		if err == nil {
			return &product, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
	}
	return r.loadProduct(ctx, tenantID, productID)
}

func (r *ProductsRepository) loadProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateImages replaces the image fields of a product in a single statement
// and returns the stored row.
func (r *ProductsRepository) UpdateImages(ctx context.Context, tenantID string, productID uuid.UUID, image string, images []string) (*models.Product, error) {
	var updated models.Product

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("tenant_id = ? AND id = ?", tenantID, productID).
			Updates(map[string]interface{}{
				"image":      image,
				"images":     models.StringArray(images),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("tenant_id = ? AND id = ?", tenantID, productID).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}

	r.invalidateProductCaches(ctx, tenantID, productID)
	return &updated, nil
}

type listCacheParams struct {
	Filters models.ProductFilters `json:"filters"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"perPage"`
}

type listResult struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

// Query retrieves products with filters and pagination, ordered by
// created_at then id so pages are stable for a fixed filter set.
func (r *ProductsRepository) Query(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) ([]models.Product, int64, error) {
	if r.cache != nil {
		key := generateListCacheKey(tenantID, "products:list", listCacheParams{Filters: filters, Page: page, PerPage: perPage})
		var result listResult
		err := r.cache.GetOrSetJSON(ctx, key, &result, ProductListCacheTTL, func() (any, error) {
			products, total, err := r.query(ctx, tenantID, filters, page, perPage)
			if err != nil {
				return nil, err
			}
			return &listResult{Products: products, Total: total}, nil
		})
		if err == nil {
			return result.Products, result.Total, nil
		}
	}
	return r.query(ctx, tenantID, filters, page, perPage)
}

func (r *ProductsRepository) query(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("tenant_id = ?", tenantID)
	query = applyProductFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	if err := query.Order("created_at ASC, id ASC").Offset(offset).Limit(perPage).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, total, nil
}

// ExistingItemCodes returns which of codes are already committed under the category.
func (r *ProductsRepository) ExistingItemCodes(ctx context.Context, tenantID, categoryID string, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return []string{}, nil
	}

	var existing []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND category_id = ? AND item_code IN ?", tenantID, categoryID, codes).
		Order("item_code ASC").
		Pluck("item_code", &existing).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func applyProductFilters(query *gorm.DB, f models.ProductFilters) *gorm.DB {
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		query = query.Where("(name ILIKE ? OR item_code ILIKE ?)", pattern, pattern)
	}

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	if f.CategoryID != "" {
		query = query.Where("category_id = ?", f.CategoryID)
	}

	// Price range filter
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}

	if f.InStock != nil {
		if *f.InStock {
			query = query.Where("availability > 0")
		} else {
			query = query.Where("availability <= 0")
		}
	}

	return query
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}
