package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// MockCategoryDirectory is a mock implementation of CategoryDirectory
type MockCategoryDirectory struct {
	mock.Mock
}

var _ CategoryDirectory = (*MockCategoryDirectory)(nil)

func (m *MockCategoryDirectory) GetActiveCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	args := m.Called(ctx, tenantID, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

// MockCachingCategoryDirectory also serves uncached lookups.
type MockCachingCategoryDirectory struct {
	MockCategoryDirectory
}

var _ FreshCategoryDirectory = (*MockCachingCategoryDirectory)(nil)

func (m *MockCachingCategoryDirectory) GetActiveCategoryFresh(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	args := m.Called(ctx, tenantID, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

// MockProductStore is a mock implementation of ProductStore
type MockProductStore struct {
	mock.Mock
}

var _ ProductStore = (*MockProductStore)(nil)

func (m *MockProductStore) InsertBatch(ctx context.Context, tenantID string, products []*models.Product) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, products)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockProductStore) GetByID(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) UpdateImages(ctx context.Context, tenantID string, productID uuid.UUID, image string, images []string) (*models.Product, error) {
	args := m.Called(ctx, tenantID, productID, image, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) Query(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) ([]models.Product, int64, error) {
	args := m.Called(ctx, tenantID, filters, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductStore) ExistingItemCodes(ctx context.Context, tenantID, categoryID string, codes []string) ([]string, error) {
	args := m.Called(ctx, tenantID, categoryID, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

var _ EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) PublishProductCreated(ctx context.Context, product *models.Product, actorID string) error {
	args := m.Called(ctx, product, actorID)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishProductUpdated(ctx context.Context, product *models.Product, changedFields []string, actorID string) error {
	args := m.Called(ctx, product, changedFields, actorID)
	return args.Error(0)
}

// MockImporter is a mock implementation of Importer
type MockImporter struct {
	mock.Mock
}

var _ Importer = (*MockImporter)(nil)

func (m *MockImporter) Validate(ctx context.Context, tenantID string, files ImportFiles, categoryID string) (*models.ValidationReport, error) {
	args := m.Called(ctx, tenantID, files, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ValidationReport), args.Error(1)
}

func (m *MockImporter) Commit(ctx context.Context, tenantID, actorID string, files ImportFiles, categoryID string) (*models.CommitResult, error) {
	args := m.Called(ctx, tenantID, actorID, files, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommitResult), args.Error(1)
}

// memoryProductStore keeps committed products in memory. A batch is staged
// and only becomes visible when every row was accepted.
type memoryProductStore struct {
	mu       sync.Mutex
	products []*models.Product
	// failAt makes InsertBatch fail on that row index; -1 disables it.
	failAt int
}

var _ ProductStore = (*memoryProductStore)(nil)

func newMemoryProductStore() *memoryProductStore {
	return &memoryProductStore{failAt: -1}
}

func (s *memoryProductStore) InsertBatch(_ context.Context, tenantID string, products []*models.Product) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]*models.Product, 0, len(products))
	for i, p := range products {
		if i == s.failAt {
			return nil, errors.New("connection reset by peer")
		}
		for _, existing := range s.products {
			if existing.TenantID == tenantID && existing.CategoryID == p.CategoryID && existing.ItemCode == p.ItemCode {
				return nil, repository.ErrDuplicateKey
			}
		}
		cp := *p
		cp.TenantID = tenantID
		cp.ID = uuid.New()
		staged = append(staged, &cp)
	}

	ids := make([]uuid.UUID, len(staged))
	for i, p := range staged {
		products[i].ID = p.ID
		ids[i] = p.ID
	}
	s.products = append(s.products, staged...)
	return ids, nil
}

func (s *memoryProductStore) GetByID(_ context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.TenantID == tenantID && p.ID == productID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memoryProductStore) UpdateImages(_ context.Context, tenantID string, productID uuid.UUID, image string, images []string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.TenantID == tenantID && p.ID == productID {
			p.Image = &image
			p.Images = append(models.StringArray{}, images...)
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memoryProductStore) Query(_ context.Context, tenantID string, filters models.ProductFilters, page, perPage int) ([]models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Product
	for _, p := range s.products {
		if p.TenantID != tenantID {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.ItemCode), strings.ToLower(filters.Search)) {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.InStock != nil && (p.Availability > 0) != *filters.InStock {
			continue
		}
		if filters.MinPrice != nil && p.Price.LessThan(*filters.MinPrice) {
			continue
		}
		if filters.MaxPrice != nil && p.Price.GreaterThan(*filters.MaxPrice) {
			continue
		}
		matched = append(matched, *p)
	}

	total := int64(len(matched))
	start := (page - 1) * perPage
	if start >= len(matched) {
		return []models.Product{}, total, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memoryProductStore) ExistingItemCodes(_ context.Context, tenantID, categoryID string, codes []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[c] = struct{}{}
	}
	var found []string
	for _, p := range s.products {
		if _, ok := wanted[p.ItemCode]; ok && p.TenantID == tenantID && p.CategoryID == categoryID {
			found = append(found, p.ItemCode)
		}
	}
	sort.Strings(found)
	return found, nil
}

func activeCategory(id string) *models.Category {
	active := true
	return &models.Category{
		ID:       uuid.MustParse(id),
		TenantID: "tenant-1",
		Name:     "Peripherals",
		IsActive: &active,
		Status:   models.CategoryStatusActive,
	}
}

func csvFile(name, content string) ImportFile {
	return ImportFile{Name: name, Data: []byte(content)}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
