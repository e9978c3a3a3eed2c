package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"catalog-import-service/internal/models"
	"github.com/xuri/excelize/v2"
)

// TemplateFilename is the download name for a schema's template.
func TemplateFilename(schema models.ImportSchema, format models.ImportFormat) string {
	return fmt.Sprintf("products_%s_template.%s", schema, format)
}

// WriteTemplate writes an empty import file for the schema. The XLSX
// template marks required columns with a trailing " *", which the parser
// strips when reading; the CSV template uses the bare column names.
func WriteTemplate(w io.Writer, schema models.ImportSchema, format models.ImportFormat) error {
	template, ok := models.ImportTemplateFor(schema)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
	}

	switch format {
	case models.ImportFormatCSV:
		return writeCSVTemplate(w, template)
	case models.ImportFormatXLSX:
		return writeXLSXTemplate(w, schema, template)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func writeCSVTemplate(w io.Writer, template models.ImportTemplate) error {
	writer := csv.NewWriter(w)

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	if err := writer.Write(headers); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSXTemplate(w io.Writer, schema models.ImportSchema, template models.ImportTemplate) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Details"
	if schema == models.SchemaPricing {
		sheetName = "Pricing"
	}
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		style := headerStyle
		if col.Required {
			headerText = col.Name + " *"
			style = requiredStyle
		}
		f.SetCellValue(sheetName, cell, headerText)
		f.SetCellStyle(sheetName, cell, cell, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "Upload a details file and a pricing file together. Rows are matched on item_code.")
	f.SetCellValue("Instructions", "A4", "Every item_code must appear once in each file. Unmatched codes are reported and nothing is imported.")
	f.SetCellValue("Instructions", "A5", "Columns marked * are required. Leave the header row in place.")

	f.SetCellValue("Instructions", "A7", "Column")
	f.SetCellValue("Instructions", "B7", "Description")
	f.SetCellValue("Instructions", "C7", "Required")
	f.SetCellValue("Instructions", "D7", "Type")
	f.SetCellValue("Instructions", "E7", "Example")

	for i, col := range template.Columns {
		row := i + 8
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 20)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 20)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	return f.Write(w)
}
