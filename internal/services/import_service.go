package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/parser"
	"catalog-import-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ImportFile is one uploaded spreadsheet. The format follows the file name.
type ImportFile struct {
	Name string
	Data []byte
}

// ImportFiles pairs the details and pricing spreadsheets of a batch.
type ImportFiles struct {
	Details ImportFile
	Pricing ImportFile
}

// ImportSettings bounds the stages of an import.
type ImportSettings struct {
	ParseTimeout      time.Duration
	ValidationTimeout time.Duration
	CommitTimeout     time.Duration
}

// DefaultImportSettings returns the deadlines used when none are configured.
func DefaultImportSettings() ImportSettings {
	return ImportSettings{
		ParseTimeout:      30 * time.Second,
		ValidationTimeout: 60 * time.Second,
		CommitTimeout:     2 * time.Minute,
	}
}

// ImportService validates and commits product import batches
type ImportService struct {
	parser     *parser.Parser
	validator  *importer.Validator
	categories CategoryDirectory
	products   ProductStore
	events     EventPublisher
	settings   ImportSettings
	logger     *logrus.Entry
}

// NewImportService creates a new ImportService
func NewImportService(categories CategoryDirectory, products ProductStore, events EventPublisher, settings ImportSettings, logger *logrus.Logger) *ImportService {
	return &ImportService{
		parser:     parser.New(settings.ParseTimeout),
		validator:  importer.NewValidator(),
		categories: categories,
		products:   products,
		events:     events,
		settings:   settings,
		logger:     logger.WithField("component", "import-service"),
	}
}

// evaluation is the outcome of one parse, join and validate pass.
type evaluation struct {
	report   *models.ValidationReport
	records  []models.JoinedRecord
	category *models.Category
}

// Validate is the dry run: it writes nothing and may be repeated freely.
func (s *ImportService) Validate(ctx context.Context, tenantID string, files ImportFiles, categoryID string) (*models.ValidationReport, error) {
	eval, err := s.evaluate(ctx, tenantID, files, categoryID, false)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tenantID":   tenantID,
		"categoryID": categoryID,
		"status":     eval.report.Status,
		"matched":    eval.report.MatchedCount,
	}).Info("Import validated")
	return eval.report, nil
}

// Commit re-validates the files and inserts every joined record in one
// transaction. Once the insert starts it is not cancelled by the caller.
func (s *ImportService) Commit(ctx context.Context, tenantID, actorID string, files ImportFiles, categoryID string) (*models.CommitResult, error) {
	eval, err := s.evaluate(ctx, tenantID, files, categoryID, true)
	if err != nil {
		return nil, err
	}
	if categoryID != "" && eval.category == nil {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
	}
	if !eval.report.Succeeded() {
		return nil, &ValidationFailedError{Report: eval.report}
	}

	batchID := uuid.New()
	products := make([]*models.Product, 0, len(eval.records))
	for _, rec := range eval.records {
		product := &models.Product{
			TenantID:      tenantID,
			CategoryID:    categoryID,
			ItemCode:      rec.ItemCode,
			Name:          rec.Name,
			Model:         rec.Model,
			Description:   rec.Description,
			Price:         rec.Price,
			Availability:  rec.Availability,
			Status:        models.ProductStatusActive,
			Images:        models.StringArray{},
			ImportBatchID: batchID,
		}
		if actorID != "" {
			actor := actorID
			product.CreatedByID = &actor
		}
		products = append(products, product)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.CommitTimeout)
	defer cancel()

	ids, err := s.products.InsertBatch(commitCtx, tenantID, products)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"tenantID": tenantID,
			"batchID":  batchID,
			"count":    len(products),
		}).WithError(err).Error("Import commit rolled back")

		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateItemCode
		}
		return nil, storageError("insert batch", err)
	}

	if s.events != nil {
		for _, product := range products {
			if err := s.events.PublishProductCreated(commitCtx, product, actorID); err != nil {
				s.logger.WithError(err).WithField("productID", product.ID).Warn("Failed to publish product.created")
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"tenantID":   tenantID,
		"categoryID": categoryID,
		"batchID":    batchID,
		"count":      len(ids),
	}).Info("Import committed")

	return &models.CommitResult{BatchID: batchID, ProductIDs: ids, Count: len(ids)}, nil
}

// evaluate parses and validates the files. A fresh evaluation bypasses any
// category cache, so a commit never relies on a stale active flag.
func (s *ImportService) evaluate(ctx context.Context, tenantID string, files ImportFiles, categoryID string, fresh bool) (*evaluation, error) {
	if s.settings.ValidationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.ValidationTimeout)
		defer cancel()
	}

	in := importer.Input{CategoryID: categoryID}

	// Parse failures other than deadlines become report entries.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		in.Details, in.DetailsErr = parseDetails(gctx, s.parser, files.Details)
		return deadlineOnly(in.DetailsErr)
	})
	g.Go(func() error {
		in.Pricing, in.PricingErr = parsePricing(gctx, s.parser, files.Pricing)
		return deadlineOnly(in.PricingErr)
	})
	if err := g.Wait(); err != nil {
		return nil, s.timeoutError(ctx, err)
	}

	eval := &evaluation{}
	if categoryID != "" {
		category, err := s.lookupCategory(ctx, tenantID, categoryID, fresh)
		switch {
		case err == nil:
			eval.category = category
		case isCategoryNotFound(err):
		default:
			return nil, s.timeoutError(ctx, storageError("resolve category", err))
		}
	}
	in.Category = eval.category

	if eval.category != nil && in.DetailsErr == nil {
		existing, err := s.products.ExistingItemCodes(ctx, tenantID, categoryID, importer.ItemCodes(in.Details))
		if err != nil {
			return nil, s.timeoutError(ctx, storageError("look up existing item codes", err))
		}
		in.Existing = make(map[string]struct{}, len(existing))
		for _, code := range existing {
			in.Existing[code] = struct{}{}
		}
	}

	done := make(chan *models.ValidationReport, 1)
	go func() {
		done <- s.validator.Validate(in)
	}()
	select {
	case eval.report = <-done:
	case <-ctx.Done():
		return nil, s.timeoutError(ctx, ctx.Err())
	}

	if eval.report.Succeeded() {
		eval.records = importer.Join(in.Details, in.Pricing).Records
	}
	return eval, nil
}

// timeoutError reports ErrValidationTimeout once the validation deadline has passed.
func (s *ImportService) timeoutError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrValidationTimeout
	}
	return err
}

func deadlineOnly(err error) error {
	if errors.Is(err, parser.ErrParseTimeout) || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseDetails(ctx context.Context, p *parser.Parser, f ImportFile) ([]models.DetailsRow, error) {
	if len(f.Data) == 0 {
		return nil, errors.New("file is missing or empty")
	}
	format, err := parser.FormatFromFilename(f.Name)
	if err != nil {
		return nil, err
	}
	return p.ParseDetails(ctx, bytes.NewReader(f.Data), format)
}

func parsePricing(ctx context.Context, p *parser.Parser, f ImportFile) ([]models.PricingRow, error) {
	if len(f.Data) == 0 {
		return nil, errors.New("file is missing or empty")
	}
	format, err := parser.FormatFromFilename(f.Name)
	if err != nil {
		return nil, err
	}
	return p.ParsePricing(ctx, bytes.NewReader(f.Data), format)
}

func (s *ImportService) lookupCategory(ctx context.Context, tenantID, categoryID string, fresh bool) (*models.Category, error) {
	if fresh {
		if dir, ok := s.categories.(FreshCategoryDirectory); ok {
			return dir.GetActiveCategoryFresh(ctx, tenantID, categoryID)
		}
	}
	return s.categories.GetActiveCategory(ctx, tenantID, categoryID)
}
