// Package parser turns uploaded details and pricing spreadsheets into typed rows.
package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"catalog-import-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnknownSchema     = errors.New("unknown import schema")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrParseTimeout      = errors.New("parsing exceeded its deadline")
)

// ParseError addresses the first cell that could not be read.
// Row is 1-based with the header on row 1.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	if e.Value != "" {
		return fmt.Sprintf("row %d, column %s: %s (value %q)", e.Row, e.Column, e.Reason, e.Value)
	}
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Reason)
}

// Parser reads import files under a per-file deadline.
type Parser struct {
	timeout time.Duration
}

// New creates a parser. A zero timeout disables the deadline.
func New(timeout time.Duration) *Parser {
	return &Parser{timeout: timeout}
}

// FormatFromFilename detects the import format from a file extension.
func FormatFromFilename(name string) (models.ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return models.ImportFormatCSV, nil
	case ".xlsx", ".xls":
		return models.ImportFormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q (use .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(name))
}

// Parse reads r as the given schema and returns []models.DetailsRow or []models.PricingRow.
func (p *Parser) Parse(ctx context.Context, r io.Reader, format models.ImportFormat, schema models.ImportSchema) (any, error) {
	switch schema {
	case models.SchemaDetails:
		return p.ParseDetails(ctx, r, format)
	case models.SchemaPricing:
		return p.ParsePricing(ctx, r, format)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
}

// ParseDetails reads a details file.
func (p *Parser) ParseDetails(ctx context.Context, r io.Reader, format models.ImportFormat) ([]models.DetailsRow, error) {
	var rows []models.DetailsRow
	err := p.withDeadline(ctx, func() error {
		t, err := readTable(r, format, "Details", []string{models.ColumnItemCode, models.ColumnName, models.ColumnModel})
		if err != nil {
			return err
		}
		rows = make([]models.DetailsRow, 0, len(t.records))
		for i, rec := range t.records {
			rows = append(rows, models.DetailsRow{
				Row:         t.lines[i],
				ItemCode:    t.cell(rec, models.ColumnItemCode),
				Name:        t.cell(rec, models.ColumnName),
				Model:       t.cell(rec, models.ColumnModel),
				Description: t.cell(rec, models.ColumnDescription),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ParsePricing reads a pricing file. Blank price or availability cells are left nil.
func (p *Parser) ParsePricing(ctx context.Context, r io.Reader, format models.ImportFormat) ([]models.PricingRow, error) {
	var rows []models.PricingRow
	err := p.withDeadline(ctx, func() error {
		t, err := readTable(r, format, "Pricing", []string{models.ColumnItemCode, models.ColumnPrice, models.ColumnAvailability})
		if err != nil {
			return err
		}
		rows = make([]models.PricingRow, 0, len(t.records))
		for i, rec := range t.records {
			rowNum := t.lines[i]
			row := models.PricingRow{Row: rowNum, ItemCode: t.cell(rec, models.ColumnItemCode)}

			if raw := t.cell(rec, models.ColumnPrice); raw != "" {
				price, err := parseDecimal(raw)
				if err != nil {
					return &ParseError{Row: rowNum, Column: models.ColumnPrice, Value: raw, Reason: "not a decimal number"}
				}
				row.Price = &price
			}
			if raw := t.cell(rec, models.ColumnAvailability); raw != "" {
				qty, err := parseInt(raw)
				if errors.Is(err, errIntRange) {
					return &ParseError{Row: rowNum, Column: models.ColumnAvailability, Value: raw, Reason: "whole number is out of range"}
				}
				if err != nil {
					return &ParseError{Row: rowNum, Column: models.ColumnAvailability, Value: raw, Reason: "not a whole number"}
				}
				row.Availability = &qty
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// withDeadline runs fn and gives up with ErrParseTimeout once the deadline passes.
func (p *Parser) withDeadline(ctx context.Context, fn func() error) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrParseTimeout
		}
		return ctx.Err()
	}
}

type table struct {
	columns map[string]int
	records [][]string
	// lines holds the 1-based file line each record starts on.
	lines []int
}

func (t *table) cell(rec []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func readTable(r io.Reader, format models.ImportFormat, preferredSheet string, required []string) (*table, error) {
	var (
		records [][]string
		lines   []int
		err     error
	)
	switch format {
	case models.ImportFormatCSV:
		records, lines, err = readCSV(r)
	case models.ImportFormatXLSX:
		records, err = readXLSX(r, preferredSheet)
		lines = make([]int, len(records))
		for i := range records {
			lines[i] = i + 1
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &ParseError{Row: 1, Column: required[0], Reason: "header row is missing"}
	}

	columns := make(map[string]int)
	for i, h := range records[0] {
		name := normalizeHeader(h)
		if _, seen := columns[name]; !seen && name != "" {
			columns[name] = i
		}
	}
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, &ParseError{Row: 1, Column: col, Reason: "required column is missing"}
		}
	}

	data, dataLines := records[1:], lines[1:]
	for len(data) > 0 && blankRecord(data[len(data)-1]) {
		data = data[:len(data)-1]
		dataLines = dataLines[:len(dataLines)-1]
	}
	return &table{columns: columns, records: data, lines: dataLines}, nil
}

// readCSV also returns the line each record starts on, since the reader
// skips empty lines and quoted cells may span several lines.
func readCSV(r io.Reader) ([][]string, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, nil, &ParseError{
					Row:    csvErr.Line,
					Reason: fmt.Sprintf("malformed CSV at character %d: %v", csvErr.Column, csvErr.Err),
				}
			}
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return records, lines, nil
}

func readXLSX(r io.Reader, preferredSheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, preferredSheet) {
			sheetName = name
			break
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	return rows, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.TrimSuffix(h, "*")
	h = strings.TrimSpace(h)
	return strings.ReplaceAll(h, " ", "_")
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var (
	errIntRange = errors.New("integer out of range")

	groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

	maxInt = decimal.NewFromInt(math.MaxInt)
	minInt = decimal.NewFromInt(math.MinInt)
)

// stripGrouping removes thousands separators from "1,250.50". Any other
// comma, as in "1,5", is left in place so the number fails to parse.
func stripGrouping(raw string) string {
	if groupedNumber.MatchString(raw) {
		return strings.ReplaceAll(raw, ",", "")
	}
	return raw
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(stripGrouping(raw))
}

// parseInt accepts "5" and spreadsheet renderings such as "5.0".
func parseInt(raw string) (int, error) {
	raw = stripGrouping(raw)
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, errIntRange
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	if d.GreaterThan(maxInt) || d.LessThan(minInt) {
		return 0, errIntRange
	}
	return int(d.IntPart()), nil
}
