package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testTenant = "tenant-1"

// MockImporter is a mock implementation of services.Importer
type MockImporter struct {
	mock.Mock
}

var _ services.Importer = (*MockImporter)(nil)

func (m *MockImporter) Validate(ctx context.Context, tenantID string, files services.ImportFiles, categoryID string) (*models.ValidationReport, error) {
	args := m.Called(ctx, tenantID, files, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ValidationReport), args.Error(1)
}

func (m *MockImporter) Commit(ctx context.Context, tenantID, actorID string, files services.ImportFiles, categoryID string) (*models.CommitResult, error) {
	args := m.Called(ctx, tenantID, actorID, files, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommitResult), args.Error(1)
}

// MockCatalog is a mock implementation of Catalog
type MockCatalog struct {
	mock.Mock
}

var _ Catalog = (*MockCatalog)(nil)

func (m *MockCatalog) ListProducts(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) (*models.ProductPage, error) {
	args := m.Called(ctx, tenantID, filters, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductPage), args.Error(1)
}

func (m *MockCatalog) GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

// MockImageAttacher is a mock implementation of ImageAttacher
type MockImageAttacher struct {
	mock.Mock
}

var _ ImageAttacher = (*MockImageAttacher)(nil)

func (m *MockImageAttacher) AttachImages(ctx context.Context, tenantID, actorID string, productID uuid.UUID, images []services.ImageUpload, mainIndex int) (*models.Product, error) {
	args := m.Called(ctx, tenantID, actorID, productID, images, mainIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func setupRouter(importHandler *ImportHandler, productsHandler *ProductsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.DevelopmentAuthMiddleware(), middleware.TenantMiddleware())
	if importHandler != nil {
		api.GET("/products/import/template", importHandler.GetImportTemplate)
		api.POST("/products/import/validate", importHandler.ValidateImport)
		api.POST("/products/import", importHandler.CommitImport)
	}
	if productsHandler != nil {
		api.GET("/products", productsHandler.GetProducts)
		api.GET("/products/:id", productsHandler.GetProduct)
		api.POST("/products/:id/images", productsHandler.AttachImages)
	}
	return r
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, method, url string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Tenant-ID", testTenant)
	return req
}

func importFiles() []formFile {
	return []formFile{
		{"details", "details.csv", []byte("item_code,name,model,description\nAB1,Mouse,M1,wireless\n")},
		{"pricing", "pricing.csv", []byte("item_code,price,availability\nAB1,19.99,5\n")},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestValidateImport_PassesFilesThrough(t *testing.T) {
	imp := new(MockImporter)
	report := &models.ValidationReport{Status: models.ValidationSuccess, MatchedCount: 1, DetailsErrors: []string{}, PricingErrors: []string{}}
	imp.On("Validate", mock.Anything, testTenant, mock.MatchedBy(func(f services.ImportFiles) bool {
		return f.Details.Name == "details.csv" && f.Pricing.Name == "pricing.csv" && len(f.Pricing.Data) > 0
	}), "cat-1").Return(report, nil)

	r := setupRouter(NewImportHandler(imp, 1<<20), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/products/import/validate", map[string]string{"categoryId": "cat-1"}, importFiles()))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.MatchedCount)
	imp.AssertExpectations(t)
}

func TestValidateImport_MissingFileIsForwarded(t *testing.T) {
	imp := new(MockImporter)
	report := &models.ValidationReport{Status: models.ValidationFailed, PricingErrors: []string{"pricing file could not be read: file is missing or empty"}}
	imp.On("Validate", mock.Anything, testTenant, mock.MatchedBy(func(f services.ImportFiles) bool {
		return len(f.Pricing.Data) == 0
	}), "cat-1").Return(report, nil)

	r := setupRouter(NewImportHandler(imp, 1<<20), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/products/import/validate", map[string]string{"categoryId": "cat-1"}, importFiles()[:1]))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "file is missing or empty")
}

func TestValidateImport_FileTooLarge(t *testing.T) {
	imp := new(MockImporter)
	r := setupRouter(NewImportHandler(imp, 16), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/products/import/validate", map[string]string{"categoryId": "cat-1"}, importFiles()))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, w).Error.Code)
	imp.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommitImport_Statuses(t *testing.T) {
	report := &models.ValidationReport{Status: models.ValidationFailed, PricingErrors: []string{"row 2, item_code AB1: price must be zero or greater"}}

	tests := []struct {
		name       string
		result     *models.CommitResult
		err        error
		wantStatus int
		wantBody   string
	}{
		{"created", &models.CommitResult{Count: 1, ProductIDs: []uuid.UUID{uuid.New()}}, nil, http.StatusCreated, `"count":1`},
		{"validation failed", nil, &services.ValidationFailedError{Report: report}, http.StatusUnprocessableEntity, "price must be zero or greater"},
		{"category missing", nil, services.ErrCategoryNotFound, http.StatusNotFound, "CATEGORY_NOT_FOUND"},
		{"duplicate", nil, services.ErrDuplicateItemCode, http.StatusConflict, "DUPLICATE_ITEM_CODE"},
		{"storage down", nil, services.ErrStorageUnavailable, http.StatusServiceUnavailable, `"retryable":true`},
		{"unexpected", nil, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := new(MockImporter)
			if tt.result != nil {
				imp.On("Commit", mock.Anything, testTenant, middleware.DevUserID, mock.Anything, "cat-1").Return(tt.result, nil)
			} else {
				imp.On("Commit", mock.Anything, testTenant, middleware.DevUserID, mock.Anything, "cat-1").Return(nil, tt.err)
			}

			r := setupRouter(NewImportHandler(imp, 1<<20), nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/products/import", map[string]string{"categoryId": "cat-1"}, importFiles()))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestGetImportTemplate(t *testing.T) {
	r := setupRouter(NewImportHandler(new(MockImporter), 0), nil)

	tests := []struct {
		query       string
		wantStatus  int
		wantType    string
		wantContain string
	}{
		{"?schema=pricing&format=csv", http.StatusOK, "text/csv", "item_code,price,availability"},
		{"?schema=details&format=xlsx", http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "PK"},
		{"", http.StatusOK, "application/json", `"template"`},
		{"?schema=stock", http.StatusBadRequest, "application/json", "UNKNOWN_SCHEMA"},
		{"?format=pdf", http.StatusBadRequest, "application/json", "UNSUPPORTED_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/template"+tt.query, nil)
			req.Header.Set("X-Tenant-ID", testTenant)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.wantType)
			assert.Contains(t, w.Body.String(), tt.wantContain)
		})
	}
}

func TestGetProducts_ParsesFilters(t *testing.T) {
	catalog := new(MockCatalog)
	catalog.On("ListProducts", mock.Anything, testTenant, mock.MatchedBy(func(f models.ProductFilters) bool {
		return f.Search == "mouse" && f.Status == models.ProductStatusActive &&
			f.MinPrice != nil && f.MinPrice.String() == "10" &&
			f.MaxPrice == nil && f.InStock != nil && *f.InStock
	}), 2, 5).Return(&models.ProductPage{
		Products:   []models.Product{{ItemCode: "AB1"}},
		Pagination: models.NewPaginationInfo(2, 5, 6, 1),
	}, nil)

	r := setupRouter(nil, NewProductsHandler(catalog, new(MockImageAttacher), 0))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=2&per_page=5&search=mouse&status=active&min_price=10&in_stock=true", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ProductListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 6, resp.Pagination.From)
	assert.Equal(t, 6, resp.Pagination.To)
	assert.Equal(t, 2, resp.Pagination.LastPage)
	catalog.AssertExpectations(t)
}

func TestGetProducts_BadFilter(t *testing.T) {
	r := setupRouter(nil, NewProductsHandler(new(MockCatalog), new(MockImageAttacher), 0))

	for _, q := range []string{"min_price=cheap", "in_stock=maybe"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?"+q, nil)
		req.Header.Set("X-Tenant-ID", testTenant)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "INVALID_FILTER", decodeError(t, w).Error.Code)
	}
}

func TestGetProduct(t *testing.T) {
	id := uuid.New()
	catalog := new(MockCatalog)
	catalog.On("GetProduct", mock.Anything, testTenant, id).Return(&models.Product{ID: id}, nil)
	catalog.On("GetProduct", mock.Anything, testTenant, mock.Anything).Return(nil, services.ErrProductNotFound)
	r := setupRouter(nil, NewProductsHandler(catalog, new(MockImageAttacher), 0))

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/products/" + id.String(), http.StatusOK},
		{"/api/v1/products/" + uuid.NewString(), http.StatusNotFound},
		{"/api/v1/products/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("X-Tenant-ID", testTenant)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.wantStatus, w.Code, tt.path)
	}
}

func TestAttachImages_Handler(t *testing.T) {
	id := uuid.New()
	main := "https://cdn.example.com/b.png"

	tests := []struct {
		name       string
		count      int
		mainIndex  string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"attached", 2, "1", nil, http.StatusOK, ""},
		{"too many", 5, "0", services.ErrTooManyImages, http.StatusBadRequest, "TOO_MANY_IMAGES"},
		{"upload failed", 1, "0", services.ErrObjectStoreFailure, http.StatusServiceUnavailable, "OBJECT_STORE_FAILURE"},
		{"bad main index", 1, "first", nil, http.StatusBadRequest, "INVALID_MAIN_INDEX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attacher := new(MockImageAttacher)
			call := attacher.On("AttachImages", mock.Anything, testTenant, middleware.DevUserID, id,
				mock.MatchedBy(func(images []services.ImageUpload) bool { return len(images) == tt.count }), mock.Anything)
			if tt.err != nil {
				call.Return(nil, tt.err)
			} else {
				call.Return(&models.Product{ID: id, Image: &main, Images: models.StringArray{"a", main}}, nil)
			}

			var files []formFile
			for i := 0; i < tt.count; i++ {
				files = append(files, formFile{"images", "img.png", []byte("png-bytes")})
			}

			r := setupRouter(nil, NewProductsHandler(new(MockCatalog), attacher, 1<<20))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/products/"+id.String()+"/images", map[string]string{"mainIndex": tt.mainIndex}, files))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
			}
		})
	}
}

func TestMissingTenantIsRejected(t *testing.T) {
	r := setupRouter(nil, NewProductsHandler(new(MockCatalog), new(MockImageAttacher), 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
