package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
)

// ErrCategoryNotFound is returned when categories-service has no active
// category with the requested id.
var ErrCategoryNotFound = errors.New("category not found")

// CategoriesClient resolves import target categories against categories-service
type CategoriesClient struct {
	baseURL    string
	httpClient *http.Client
}

// Category represents a category from categories-service
type Category struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenantId"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// CategoryResponse from categories-service
type CategoryResponse struct {
	Success bool      `json:"success"`
	Data    *Category `json:"data,omitempty"`
	Message *string   `json:"message,omitempty"`
}

// NewCategoriesClient creates a client for the given base URL
func NewCategoriesClient(baseURL string, timeout time.Duration) *CategoriesClient {
	if baseURL == "" {
		baseURL = "http://categories-service:8080"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CategoriesClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetActiveCategory fetches a category and rejects it unless it is active
func (c *CategoriesClient) GetActiveCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, ErrCategoryNotFound
	}

	url := fmt.Sprintf("%s/api/v1/categories/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("categories-service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrCategoryNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("categories-service returned %d", resp.StatusCode)
	}

	var result CategoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode category response: %w", err)
	}
	if !result.Success || result.Data == nil {
		return nil, ErrCategoryNotFound
	}

	category := result.Data.toModel(id, tenantID)
	if !category.Active() {
		return nil, ErrCategoryNotFound
	}
	return category, nil
}

func (c *Category) toModel(id uuid.UUID, tenantID string) *models.Category {
	return &models.Category{
		ID:          id,
		TenantID:    tenantID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		IsActive:    c.IsActive,
		Status:      strings.ToUpper(c.Status),
	}
}
