package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog is the product read surface
type Catalog interface {
	ListProducts(ctx context.Context, tenantID string, filters models.ProductFilters, page, perPage int) (*models.ProductPage, error)
	GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
}

// ImageAttacher stores product images
type ImageAttacher interface {
	AttachImages(ctx context.Context, tenantID, actorID string, productID uuid.UUID, images []services.ImageUpload, mainIndex int) (*models.Product, error)
}

type ProductsHandler struct {
	catalog       Catalog
	attachments   ImageAttacher
	maxImageBytes int64
}

func NewProductsHandler(catalog Catalog, attachments ImageAttacher, maxImageBytes int64) *ProductsHandler {
	return &ProductsHandler{catalog: catalog, attachments: attachments, maxImageBytes: maxImageBytes}
}

// GetProducts lists committed products
// @Summary List products
// @Tags Products
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "Matches name or item code"
// @Param status query string false "ACTIVE or DISABLED"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param in_stock query bool false "Only products with availability above zero"
// @Param category_id query string false "Category"
// @Success 200 {object} models.ProductListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /products [get]
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	if perPage == 0 {
		perPage, _ = strconv.Atoi(c.Query("limit"))
	}

	filters := models.ProductFilters{
		Search:     strings.TrimSpace(c.Query("search")),
		Status:     models.ProductStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		CategoryID: strings.TrimSpace(c.Query("category_id")),
	}

	var ok bool
	if filters.MinPrice, ok = decimalQuery(c, "min_price"); !ok {
		return
	}
	if filters.MaxPrice, ok = decimalQuery(c, "max_price"); !ok {
		return
	}
	if raw := c.Query("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "INVALID_FILTER", "in_stock", "in_stock must be true or false")
			return
		}
		filters.InStock = &inStock
	}

	result, err := h.catalog.ListProducts(c.Request.Context(), middleware.GetTenantID(c), filters, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       result.Products,
		Pagination: result.Pagination,
	})
}

// GetProduct returns one product
// @Summary Get product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.ProductResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	id, ok := productIDParam(c)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// AttachImages replaces the images of a product
// @Summary Attach product images
// @Tags Products
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Product ID"
// @Param images formData file true "One to four images"
// @Param mainIndex formData int false "Index of the main image" default(0)
// @Success 200 {object} models.ProductResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /products/{id}/images [post]
func (h *ProductsHandler) AttachImages(c *gin.Context) {
	id, ok := productIDParam(c)
	if !ok {
		return
	}

	if h.maxImageBytes > 0 {
		limit := int64(models.MaxProductImages+1)*h.maxImageBytes + (1 << 20)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "INVALID_REQUEST", "images", "request must be multipart/form-data with images")
		return
	}

	mainIndex, err := strconv.Atoi(c.DefaultPostForm("mainIndex", "0"))
	if err != nil {
		badRequest(c, "INVALID_MAIN_INDEX", "mainIndex", "mainIndex must be a whole number")
		return
	}

	headers := form.File["images"]
	uploads := make([]services.ImageUpload, 0, len(headers))
	if len(headers) <= models.MaxProductImages {
		for _, header := range headers {
			data, err := readLimited(header, h.maxImageBytes)
			if err != nil {
				uploadError(c, "images", err)
				return
			}
			uploads = append(uploads, services.ImageUpload{Filename: header.Filename, Data: data})
		}
	} else {
		// Count alone decides the outcome; skip reading the payloads.
		for _, header := range headers {
			uploads = append(uploads, services.ImageUpload{Filename: header.Filename})
		}
	}

	product, err := h.attachments.AttachImages(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), id, uploads, mainIndex)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

func productIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "INVALID_ID", "id", "product id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decimalQuery(c *gin.Context, key string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		badRequest(c, "INVALID_FILTER", key, key+" must be a decimal number")
		return nil, false
	}
	return &d, true
}
