package importer

import (
	"testing"

	"catalog-import-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func detailsRows(codes ...string) []models.DetailsRow {
	rows := make([]models.DetailsRow, len(codes))
	for i, code := range codes {
		rows[i] = models.DetailsRow{Row: i + 2, ItemCode: code, Name: "Name " + code, Model: "M-" + code}
	}
	return rows
}

func pricingRows(codes ...string) []models.PricingRow {
	rows := make([]models.PricingRow, len(codes))
	for i, code := range codes {
		rows[i] = models.PricingRow{Row: i + 2, ItemCode: code, Price: dec("1.50"), Availability: intPtr(3)}
	}
	return rows
}

func TestJoin_SetAlgebra(t *testing.T) {
	tests := []struct {
		name             string
		details          []string
		pricing          []string
		matched          []string
		unmatchedDetails []string
		unmatchedPricing []string
	}{
		{"identical", []string{"A", "B"}, []string{"B", "A"}, []string{"A", "B"}, []string{}, []string{}},
		{"disjoint", []string{"A"}, []string{"B"}, []string{}, []string{"A"}, []string{"B"}},
		{"overlap", []string{"C", "A", "B"}, []string{"B", "D", "C"}, []string{"C", "B"}, []string{"A"}, []string{"D"}},
		{"empty details", nil, []string{"Z", "Y"}, []string{}, []string{}, []string{"Y", "Z"}},
		{"both empty", nil, nil, []string{}, []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Join(detailsRows(tt.details...), pricingRows(tt.pricing...))

			codes := make([]string, 0, len(result.Records))
			for _, r := range result.Records {
				codes = append(codes, r.ItemCode)
			}
			assert.Equal(t, tt.matched, codes)
			assert.Equal(t, tt.unmatchedDetails, result.UnmatchedDetails)
			assert.Equal(t, tt.unmatchedPricing, result.UnmatchedPricing)
		})
	}
}

func TestJoin_FirstOccurrenceWinsAndDuplicatesSurface(t *testing.T) {
	details := []models.DetailsRow{
		{Row: 2, ItemCode: "AB1", Name: "First", Model: "M1"},
		{Row: 3, ItemCode: "AB1", Name: "Second", Model: "M2"},
	}
	pricing := []models.PricingRow{
		{Row: 2, ItemCode: "AB1", Price: dec("19.99"), Availability: intPtr(5)},
		{Row: 3, ItemCode: "AB1", Price: dec("1.00"), Availability: intPtr(1)},
		{Row: 4, ItemCode: "AB1", Price: dec("2.00"), Availability: intPtr(1)},
	}

	result := Join(details, pricing)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "First", result.Records[0].Name)
	assert.True(t, result.Records[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 5, result.Records[0].Availability)

	assert.Equal(t, []Duplicate{{ItemCode: "AB1", Row: 3, FirstRow: 2}}, result.DetailsDups)
	assert.Len(t, result.PricingDups, 2)
}

func TestJoin_BlankItemCodesNeverJoin(t *testing.T) {
	details := []models.DetailsRow{{Row: 2, Name: "Orphan"}}
	pricing := []models.PricingRow{{Row: 2, Price: dec("1")}}

	result := Join(details, pricing)

	assert.Empty(t, result.Records)
	assert.Empty(t, result.UnmatchedDetails)
	assert.Empty(t, result.UnmatchedPricing)
}

func TestJoin_Deterministic(t *testing.T) {
	d := detailsRows("E", "C", "A", "X")
	p := pricingRows("A", "Q", "C", "R", "E")

	first := Join(d, p)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Join(d, p))
	}
}

func TestItemCodes(t *testing.T) {
	rows := detailsRows("B", "", "A", "B")
	assert.Equal(t, []string{"B", "A"}, ItemCodes(rows))
}
