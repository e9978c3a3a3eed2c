package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportSchema tags which of the two import files a stream holds.
type ImportSchema string

const (
	SchemaDetails ImportSchema = "details"
	SchemaPricing ImportSchema = "pricing"
)

// Column names shared by the file contract, the parser and error messages.
const (
	ColumnItemCode     = "item_code"
	ColumnName         = "name"
	ColumnModel        = "model"
	ColumnDescription  = "description"
	ColumnPrice        = "price"
	ColumnAvailability = "availability"
)

// DetailsRow is one data row of a details file.
type DetailsRow struct {
	Row         int    `json:"row"`
	ItemCode    string `json:"item_code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Model       string `json:"model" validate:"required"`
	Description string `json:"description"`
}

// PricingRow is one data row of a pricing file. Blank cells stay nil.
type PricingRow struct {
	Row          int              `json:"row"`
	ItemCode     string           `json:"item_code" validate:"required"`
	Price        *decimal.Decimal `json:"price" validate:"required"`
	Availability *int             `json:"availability" validate:"required,gte=0"`
}

// JoinedRecord is a product candidate present in both files.
type JoinedRecord struct {
	ItemCode     string          `json:"item_code"`
	Name         string          `json:"name"`
	Model        string          `json:"model"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Availability int             `json:"availability"`
}

// ValidationStatus is the verdict of a validation run.
type ValidationStatus string

const (
	ValidationSuccess ValidationStatus = "SUCCESS"
	ValidationFailed  ValidationStatus = "FAILED"
)

// ValidationReport lists every defect found in a candidate batch.
// Slices are never nil so the JSON form is stable.
type ValidationReport struct {
	Status           ValidationStatus `json:"status"`
	DetailsErrors    []string         `json:"details_errors"`
	PricingErrors    []string         `json:"pricing_errors"`
	CategoryError    string           `json:"category_error,omitempty"`
	UnmatchedDetails []string         `json:"unmatched_details"`
	UnmatchedPricing []string         `json:"unmatched_pricing"`
	MatchedCount     int              `json:"matched_count"`
}

// Succeeded reports whether the batch may be committed.
func (r *ValidationReport) Succeeded() bool {
	return r != nil && r.Status == ValidationSuccess
}

// CommitResult is returned by a successful import commit.
type CommitResult struct {
	BatchID    uuid.UUID   `json:"batchId"`
	ProductIDs []uuid.UUID `json:"productIds"`
	Count      int         `json:"count"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, integer
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// DetailsImportColumns returns the column definitions for the details file
func DetailsImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: ColumnItemCode, Description: "Item code shared with the pricing file", Required: true, Type: "string", Example: "AB1"},
		{Name: ColumnName, Description: "Product name", Required: true, Type: "string", Example: "Mouse"},
		{Name: ColumnModel, Description: "Model", Required: true, Type: "string", Example: "M1"},
		{Name: ColumnDescription, Description: "Product description", Required: false, Type: "string", Example: "wireless"},
	}
}

// PricingImportColumns returns the column definitions for the pricing file
func PricingImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: ColumnItemCode, Description: "Item code shared with the details file", Required: true, Type: "string", Example: "AB1"},
		{Name: ColumnPrice, Description: "Unit price, zero or greater", Required: true, Type: "number", Example: "19.99"},
		{Name: ColumnAvailability, Description: "Units available, zero or greater", Required: true, Type: "integer", Example: "5"},
	}
}

// ImportTemplateFor returns the template definition for a schema.
// The bool is false for an unknown schema.
func ImportTemplateFor(schema ImportSchema) (ImportTemplate, bool) {
	switch schema {
	case SchemaDetails:
		return ImportTemplate{Entity: "product_details", Version: "1.0", Columns: DetailsImportColumns()}, true
	case SchemaPricing:
		return ImportTemplate{Entity: "product_pricing", Version: "1.0", Columns: PricingImportColumns()}, true
	}
	return ImportTemplate{}, false
}
