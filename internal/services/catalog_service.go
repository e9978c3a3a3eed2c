package services

import (
	"context"
	"errors"
	"fmt"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"github.com/google/uuid"
)

// CatalogService is the read side over committed products
type CatalogService struct {
	products        ProductStore
	defaultPageSize int
	maxPageSize     int
}

func NewCatalogService(products ProductStore, defaultPageSize, maxPageSize int) *CatalogService {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &CatalogService{products: products, defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

// ListProducts returns one page of products matching all filters, oldest first.
func (s *CatalogService) ListProducts(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) (*models.ProductPage, error) {
	if filters.MinPrice != nil && filters.MaxPrice != nil && filters.MinPrice.GreaterThan(*filters.MaxPrice) {
		return nil, fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidFilter)
	}
	switch filters.Status {
	case "", models.ProductStatusActive, models.ProductStatusDisabled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filters.Status)
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = s.defaultPageSize
	}
	if perPage > s.maxPageSize {
		perPage = s.maxPageSize
	}

	products, total, err := s.products.Query(ctx, tenantID, filters, page, perPage)
	if err != nil {
		return nil, storageError("query products", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	return &models.ProductPage{
		Products:   products,
		Pagination: models.NewPaginationInfo(page, perPage, total, len(products)),
	}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, storageError("load product", err)
	}
	return product, nil
}
