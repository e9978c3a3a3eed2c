package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/parser"
	"catalog-import-service/internal/services"
	"github.com/gin-gonic/gin"
)

var errFileTooLarge = errors.New("file exceeds the upload size limit")

// ImportHandler exposes the two-file product import
type ImportHandler struct {
	importer       services.Importer
	maxUploadBytes int64
}

func NewImportHandler(importer services.Importer, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{importer: importer, maxUploadBytes: maxUploadBytes}
}

// GetImportTemplate returns the column definition or a blank template file
// @Summary Download import template
// @Tags Import
// @Produce json,text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param schema query string false "details or pricing" default(details)
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.ImportTemplate
// @Failure 400 {object} models.ErrorResponse
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	schema := models.ImportSchema(strings.ToLower(c.DefaultQuery("schema", string(models.SchemaDetails))))
	template, ok := models.ImportTemplateFor(schema)
	if !ok {
		badRequest(c, "UNKNOWN_SCHEMA", "schema", "schema must be details or pricing")
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	switch format {
	case "json":
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
		return
	case string(models.ImportFormatCSV), string(models.ImportFormatXLSX):
	default:
		badRequest(c, "UNSUPPORTED_FORMAT", "format", "format must be json, csv or xlsx")
		return
	}

	var buf bytes.Buffer
	if err := parser.WriteTemplate(&buf, schema, models.ImportFormat(format)); err != nil {
		respondError(c, err)
		return
	}

	contentType := "text/csv"
	if format == string(models.ImportFormatXLSX) {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	filename := parser.TemplateFilename(schema, models.ImportFormat(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// ValidateImport runs the dry run over a details and a pricing file
// @Summary Validate a product import
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param details formData file true "Details spreadsheet (csv or xlsx)"
// @Param pricing formData file true "Pricing spreadsheet (csv or xlsx)"
// @Param categoryId formData string true "Target category"
// @Success 200 {object} models.ValidationResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /products/import/validate [post]
func (h *ImportHandler) ValidateImport(c *gin.Context) {
	files, categoryID, ok := h.readImportForm(c)
	if !ok {
		return
	}

	report, err := h.importer.Validate(c.Request.Context(), middleware.GetTenantID(c), files, categoryID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ValidationResponse{
		Success: report.Succeeded(),
		Data:    report,
	})
}

// CommitImport validates again and creates every product of the batch
// @Summary Commit a product import
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param details formData file true "Details spreadsheet (csv or xlsx)"
// @Param pricing formData file true "Pricing spreadsheet (csv or xlsx)"
// @Param categoryId formData string true "Target category"
// @Success 201 {object} models.CommitResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ValidationResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /products/import [post]
func (h *ImportHandler) CommitImport(c *gin.Context) {
	files, categoryID, ok := h.readImportForm(c)
	if !ok {
		return
	}

	result, err := h.importer.Commit(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), files, categoryID)
	if err != nil {
		respondError(c, err)
		return
	}

	message := fmt.Sprintf("%d products imported", result.Count)
	c.JSON(http.StatusCreated, models.CommitResponse{
		Success: true,
		Data:    result,
		Message: &message,
	})
}

// readImportForm collects both files and the category. A missing file is
// passed on empty so it is reported alongside the other file's problems.
func (h *ImportHandler) readImportForm(c *gin.Context) (services.ImportFiles, string, bool) {
	var files services.ImportFiles

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxUploadBytes+(1<<20))
	}
	if _, err := c.MultipartForm(); err != nil {
		badRequest(c, "INVALID_REQUEST", "", "request must be multipart/form-data with details and pricing files")
		return files, "", false
	}

	var err error
	if files.Details, err = h.formFile(c, "details"); err != nil {
		uploadError(c, "details", err)
		return files, "", false
	}
	if files.Pricing, err = h.formFile(c, "pricing"); err != nil {
		uploadError(c, "pricing", err)
		return files, "", false
	}

	categoryID := strings.TrimSpace(c.PostForm("categoryId"))
	if categoryID == "" {
		categoryID = strings.TrimSpace(c.PostForm("category_id"))
	}
	return files, categoryID, true
}

func (h *ImportHandler) formFile(c *gin.Context, field string) (services.ImportFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return services.ImportFile{}, nil
	}
	data, err := readLimited(header, h.maxUploadBytes)
	if err != nil {
		return services.ImportFile{}, fmt.Errorf("%s: %w", header.Filename, err)
	}
	return services.ImportFile{Name: header.Filename, Data: data}, nil
}

func readLimited(header *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && header.Size > limit {
		return nil, errFileTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit <= 0 {
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}

func uploadError(c *gin.Context, field string, err error) {
	if errors.Is(err, errFileTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Field:   field,
				Message: err.Error(),
			},
		})
		return
	}
	badRequest(c, "INVALID_FILE", field, err.Error())
}
