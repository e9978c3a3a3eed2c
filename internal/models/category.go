package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category statuses as written by the categories service.
const (
	CategoryStatusActive   = "ACTIVE"
	CategoryStatusApproved = "APPROVED"
)

// Category represents a product category (read-only to the import pipeline)
type Category struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string          `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	Name        string          `json:"name" gorm:"not null"`
	Slug        string          `json:"slug"`
	Description *string         `json:"description,omitempty"`
	IsActive    *bool           `json:"isActive" gorm:"column:is_active;default:true"`
	Status      string          `json:"status" gorm:"not null;default:'ACTIVE'"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" gorm:"column:updated_at"`
	DeletedAt   *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"column:deleted_at;index"`
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// Active reports whether products may be imported into the category.
// A nil IsActive is treated as active, matching the column default.
func (c *Category) Active() bool {
	if c == nil {
		return false
	}
	if c.IsActive != nil && !*c.IsActive {
		return false
	}
	switch strings.ToUpper(c.Status) {
	case "", CategoryStatusActive, CategoryStatusApproved:
		return true
	}
	return false
}
