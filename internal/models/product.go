package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusDisabled ProductStatus = "DISABLED"
)

// MaxProductImages is the number of images a product may carry.
const MaxProductImages = 4

// Bounds of the numeric(20,4) price column.
const (
	PriceScale         = 4
	PriceIntegerDigits = 16
)

// StringArray type for PostgreSQL JSONB (array of strings)
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringArray: %T", value)
	}
	return json.Unmarshal(bytes, a)
}

// Product represents a committed catalog entry.
// Rows are created only by an import batch; image fields are set by attachment.
type Product struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string          `json:"tenantId" gorm:"not null;index:idx_products_tenant_id;index:idx_products_tenant_category_item,unique,priority:1"`
	CategoryID    string          `json:"categoryId" gorm:"not null;index;index:idx_products_tenant_category_item,unique,priority:2"`
	ItemCode      string          `json:"itemCode" gorm:"not null;index:idx_products_tenant_category_item,unique,priority:3"`
	Name          string          `json:"name" gorm:"not null"`
	Model         string          `json:"model" gorm:"not null"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(20,4);not null"`
	Availability  int             `json:"availability" gorm:"not null;default:0"`
	Status        ProductStatus   `json:"status" gorm:"not null;default:'ACTIVE';index"`
	Image         *string         `json:"image"`
	Images        StringArray     `json:"images" gorm:"type:jsonb;not null;default:'[]'"`
	ImportBatchID uuid.UUID       `json:"importBatchId" gorm:"type:uuid;index"`
	CreatedByID   *string         `json:"createdById,omitempty"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// ProductFilters narrows a catalog listing. All supplied filters are ANDed.
type ProductFilters struct {
	Search     string
	Status     ProductStatus
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	InStock    *bool
	CategoryID string
}

// ProductPage is one page of a catalog listing.
type ProductPage struct {
	Products   []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

// PaginationInfo is the page metadata returned with every listing.
// From and To are 1-based positions within the full result, 0 when the page is empty.
type PaginationInfo struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
	From        int   `json:"from"`
	To          int   `json:"to"`
}

// NewPaginationInfo computes page metadata for a page of length count.
func NewPaginationInfo(page, perPage int, total int64, count int) *PaginationInfo {
	info := &PaginationInfo{
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    1,
	}
	if perPage > 0 && total > 0 {
		info.LastPage = int((total + int64(perPage) - 1) / int64(perPage))
	}
	if count > 0 {
		info.From = (page-1)*perPage + 1
		info.To = info.From + count - 1
	}
	return info
}
