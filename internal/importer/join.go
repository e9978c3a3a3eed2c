// Package importer joins details and pricing rows and validates the candidate batch.
package importer

import (
	"sort"

	"catalog-import-service/internal/models"
)

// Duplicate is a repeated item_code within one file. FirstRow holds the
// occurrence used for joining.
type Duplicate struct {
	ItemCode string
	Row      int
	FirstRow int
}

// JoinResult is the outcome of matching the two files on item_code.
type JoinResult struct {
	Records          []models.JoinedRecord
	UnmatchedDetails []string
	UnmatchedPricing []string
	DetailsDups      []Duplicate
	PricingDups      []Duplicate
}

// Join matches details and pricing rows on item_code. The first occurrence
// of a code wins, later ones are reported as duplicates. Records follow the
// order of first appearance in details; unmatched sets are sorted. Rows with
// a blank item_code never join.
func Join(details []models.DetailsRow, pricing []models.PricingRow) *JoinResult {
	result := &JoinResult{
		Records:          []models.JoinedRecord{},
		UnmatchedDetails: []string{},
		UnmatchedPricing: []string{},
	}

	detailsByCode := make(map[string]models.DetailsRow, len(details))
	detailsOrder := make([]string, 0, len(details))
	for _, row := range details {
		if row.ItemCode == "" {
			continue
		}
		if first, ok := detailsByCode[row.ItemCode]; ok {
			result.DetailsDups = append(result.DetailsDups, Duplicate{ItemCode: row.ItemCode, Row: row.Row, FirstRow: first.Row})
			continue
		}
		detailsByCode[row.ItemCode] = row
		detailsOrder = append(detailsOrder, row.ItemCode)
	}

	pricingByCode := make(map[string]models.PricingRow, len(pricing))
	for _, row := range pricing {
		if row.ItemCode == "" {
			continue
		}
		if first, ok := pricingByCode[row.ItemCode]; ok {
			result.PricingDups = append(result.PricingDups, Duplicate{ItemCode: row.ItemCode, Row: row.Row, FirstRow: first.Row})
			continue
		}
		pricingByCode[row.ItemCode] = row
	}

	for _, code := range detailsOrder {
		p, ok := pricingByCode[code]
		if !ok {
			result.UnmatchedDetails = append(result.UnmatchedDetails, code)
			continue
		}
		d := detailsByCode[code]
		record := models.JoinedRecord{
			ItemCode:    code,
			Name:        d.Name,
			Model:       d.Model,
			Description: d.Description,
		}
		if p.Price != nil {
			record.Price = *p.Price
		}
		if p.Availability != nil {
			record.Availability = *p.Availability
		}
		result.Records = append(result.Records, record)
	}

	for code := range pricingByCode {
		if _, ok := detailsByCode[code]; !ok {
			result.UnmatchedPricing = append(result.UnmatchedPricing, code)
		}
	}

	sort.Strings(result.UnmatchedDetails)
	sort.Strings(result.UnmatchedPricing)
	return result
}

// ItemCodes returns the distinct non-blank codes of a details file in file order.
func ItemCodes(details []models.DetailsRow) []string {
	seen := make(map[string]struct{}, len(details))
	codes := make([]string, 0, len(details))
	for _, row := range details {
		if row.ItemCode == "" {
			continue
		}
		if _, ok := seen[row.ItemCode]; ok {
			continue
		}
		seen[row.ItemCode] = struct{}{}
		codes = append(codes, row.ItemCode)
	}
	return codes
}
