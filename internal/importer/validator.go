package importer

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"catalog-import-service/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EmptyBatchMessage is reported when the two files share no item codes.
const EmptyBatchMessage = "no products to import: the files share no item codes"

// Input is everything a validation run looks at. A file that failed to
// parse carries its error instead of rows.
type Input struct {
	Details    []models.DetailsRow
	DetailsErr error
	Pricing    []models.PricingRow
	PricingErr error

	CategoryID string
	// Category is nil when the id did not resolve.
	Category *models.Category

	// Existing holds item codes already committed under the category.
	Existing map[string]struct{}
}

// Validator checks a candidate batch and lists every defect it finds.
// It never touches storage; the caller resolves the category and the
// existing item codes up front.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate produces a fresh report. Identical input yields an identical report.
func (v *Validator) Validate(in Input) *models.ValidationReport {
	report := &models.ValidationReport{
		DetailsErrors:    []string{},
		PricingErrors:    []string{},
		UnmatchedDetails: []string{},
		UnmatchedPricing: []string{},
	}

	join := Join(in.Details, in.Pricing)
	bothParsed := in.DetailsErr == nil && in.PricingErr == nil

	if in.DetailsErr != nil {
		report.DetailsErrors = append(report.DetailsErrors, fileError("details", in.DetailsErr))
	} else {
		report.DetailsErrors = append(report.DetailsErrors, v.detailsErrors(in.Details, join.DetailsDups, in.Existing)...)
	}
	if in.PricingErr != nil {
		report.PricingErrors = append(report.PricingErrors, fileError("pricing", in.PricingErr))
	} else {
		report.PricingErrors = append(report.PricingErrors, v.pricingErrors(in.Pricing, join.PricingDups)...)
	}

	if bothParsed {
		report.UnmatchedDetails = join.UnmatchedDetails
		report.UnmatchedPricing = join.UnmatchedPricing
		report.MatchedCount = len(join.Records)

		for _, code := range join.UnmatchedDetails {
			report.PricingErrors = append(report.PricingErrors, fmt.Sprintf("no matching pricing row for %s", code))
		}
		for _, code := range join.UnmatchedPricing {
			report.DetailsErrors = append(report.DetailsErrors, fmt.Sprintf("no matching details row for %s", code))
		}
		if report.MatchedCount == 0 {
			report.DetailsErrors = append(report.DetailsErrors, EmptyBatchMessage)
		}
	}

	switch {
	case strings.TrimSpace(in.CategoryID) == "":
		report.CategoryError = "a category is required"
	case !in.Category.Active():
		report.CategoryError = fmt.Sprintf("category %s does not exist or is not active", in.CategoryID)
	}

	report.Status = models.ValidationFailed
	if len(report.DetailsErrors) == 0 && len(report.PricingErrors) == 0 &&
		report.CategoryError == "" && report.MatchedCount >= 1 {
		report.Status = models.ValidationSuccess
	}
	return report
}

func (v *Validator) detailsErrors(rows []models.DetailsRow, dups []Duplicate, existing map[string]struct{}) []string {
	dupByRow := duplicatesByRow(dups)
	var errs []string
	for _, row := range rows {
		errs = append(errs, v.fieldErrors(row.Row, row.ItemCode, row)...)
		if d, ok := dupByRow[row.Row]; ok {
			errs = append(errs, rowMessage(row.Row, row.ItemCode, fmt.Sprintf("item_code duplicates row %d", d.FirstRow)))
			continue
		}
		if _, ok := existing[row.ItemCode]; ok && row.ItemCode != "" {
			errs = append(errs, rowMessage(row.Row, row.ItemCode, "item_code already exists in this category"))
		}
	}
	return errs
}

func (v *Validator) pricingErrors(rows []models.PricingRow, dups []Duplicate) []string {
	dupByRow := duplicatesByRow(dups)
	var errs []string
	for _, row := range rows {
		errs = append(errs, v.fieldErrors(row.Row, row.ItemCode, row)...)
		if row.Price != nil {
			errs = append(errs, priceErrors(row.Row, row.ItemCode, *row.Price)...)
		}
		if d, ok := dupByRow[row.Row]; ok {
			errs = append(errs, rowMessage(row.Row, row.ItemCode, fmt.Sprintf("item_code duplicates row %d", d.FirstRow)))
		}
	}
	return errs
}

var maxPrice = decimal.New(1, models.PriceIntegerDigits)

// priceErrors keeps prices within what the price column stores exactly.
func priceErrors(rowNum int, itemCode string, price decimal.Decimal) []string {
	var errs []string
	if price.IsNegative() {
		errs = append(errs, rowMessage(rowNum, itemCode, "price must be zero or greater"))
	}
	if !price.Equal(price.Truncate(models.PriceScale)) {
		errs = append(errs, rowMessage(rowNum, itemCode, fmt.Sprintf("price may have at most %d decimal places", models.PriceScale)))
	}
	if price.Abs().GreaterThanOrEqual(maxPrice) {
		errs = append(errs, rowMessage(rowNum, itemCode, fmt.Sprintf("price may have at most %d digits before the decimal point", models.PriceIntegerDigits)))
	}
	return errs
}

// fieldErrors runs the struct tag rules for one row, in field order.
func (v *Validator) fieldErrors(rowNum int, itemCode string, row interface{}) []string {
	err := v.validate.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{rowMessage(rowNum, itemCode, err.Error())}
	}

	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, rowMessage(rowNum, itemCode, describe(fe)))
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be %s or greater", fe.Field(), zeroWord(fe.Param()))
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func zeroWord(param string) string {
	if param == "0" {
		return "zero"
	}
	return param
}

func rowMessage(rowNum int, itemCode, msg string) string {
	if itemCode == "" {
		return fmt.Sprintf("row %d: %s", rowNum, msg)
	}
	return fmt.Sprintf("row %d, item_code %s: %s", rowNum, itemCode, msg)
}

func fileError(file string, err error) string {
	return fmt.Sprintf("%s file could not be read: %s", file, err.Error())
}

func duplicatesByRow(dups []Duplicate) map[int]Duplicate {
	m := make(map[int]Duplicate, len(dups))
	for _, d := range dups {
		m[d.Row] = d
	}
	return m
}

// SortedCodes returns the keys of a code set in order.
func SortedCodes(set map[string]struct{}) []string {
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
