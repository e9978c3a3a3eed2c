package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/storage"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ImageUpload is one image submitted for a product.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// AttachmentSettings tunes image uploads.
type AttachmentSettings struct {
	Concurrency   int
	UploadTimeout time.Duration
	UploadRetries int
	RetryBackoff  time.Duration
}

func DefaultAttachmentSettings() AttachmentSettings {
	return AttachmentSettings{
		Concurrency:   models.MaxProductImages,
		UploadTimeout: 30 * time.Second,
		UploadRetries: 2,
		RetryBackoff:  200 * time.Millisecond,
	}
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// AttachmentService uploads product images and records their URLs
type AttachmentService struct {
	products ProductStore
	objects  ObjectStore
	events   EventPublisher
	settings AttachmentSettings
	logger   *logrus.Entry
}

func NewAttachmentService(products ProductStore, objects ObjectStore, events EventPublisher, settings AttachmentSettings, logger *logrus.Logger) *AttachmentService {
	if settings.Concurrency <= 0 {
		settings.Concurrency = models.MaxProductImages
	}
	return &AttachmentService{
		products: products,
		objects:  objects,
		events:   events,
		settings: settings,
		logger:   logger.WithField("component", "attachment-service"),
	}
}

type preparedImage struct {
	contentType string
	ext         string
	data        []byte
}

// AttachImages uploads every image and then sets image and images on the
// product in one update. If any upload fails the product is left unchanged.
func (s *AttachmentService) AttachImages(ctx context.Context, tenantID, actorID string, productID uuid.UUID, images []ImageUpload, mainIndex int) (*models.Product, error) {
	switch {
	case len(images) == 0:
		return nil, ErrNoImages
	case len(images) > models.MaxProductImages:
		return nil, ErrTooManyImages
	case mainIndex < 0 || mainIndex >= len(images):
		return nil, ErrInvalidMainIndex
	}

	if s.objects == nil {
		return nil, fmt.Errorf("%w: no object store configured", ErrObjectStoreFailure)
	}

	if _, err := s.products.GetByID(ctx, tenantID, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, storageError("load product", err)
	}

	prepared := make([]preparedImage, len(images))
	for i, img := range images {
		p, err := prepareImage(img)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d (%s): %v", ErrInvalidImage, i+1, img.Filename, err)
		}
		prepared[i] = p
	}

	uploadID := uuid.New()
	urls := make([]string, len(prepared))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)
	for i, img := range prepared {
		key := storage.ImageKey(tenantID, productID.String(), fmt.Sprintf("%s-%d", uploadID, i), img.ext)
		g.Go(func() error {
			url, err := s.upload(gctx, key, img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WithFields(logrus.Fields{
			"tenantID":  tenantID,
			"productID": productID,
			"uploadID":  uploadID,
		}).WithError(err).Error("Image upload failed, product left unchanged")
		return nil, fmt.Errorf("%w: %v", ErrObjectStoreFailure, err)
	}

	product, err := s.products.UpdateImages(ctx, tenantID, productID, urls[mainIndex], urls)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, storageError("update images", err)
	}

	if s.events != nil {
		if err := s.events.PublishProductUpdated(ctx, product, []string{"image", "images"}, actorID); err != nil {
			s.logger.WithError(err).WithField("productID", productID).Warn("Failed to publish product.updated")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"tenantID":  tenantID,
		"productID": productID,
		"count":     len(urls),
	}).Info("Product images attached")
	return product, nil
}

// upload puts one object, retrying with exponential backoff.
func (s *AttachmentService) upload(ctx context.Context, key string, img preparedImage) (string, error) {
	backoff := s.settings.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.settings.UploadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		url, err := s.putOnce(ctx, key, img)
		if err == nil {
			return url, nil
		}
		lastErr = err
		s.logger.WithFields(logrus.Fields{
			"key":     key,
			"attempt": attempt + 1,
		}).WithError(err).Warn("Image upload attempt failed")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (s *AttachmentService) putOnce(ctx context.Context, key string, img preparedImage) (string, error) {
	if s.settings.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.UploadTimeout)
		defer cancel()
	}
	return s.objects.PutImage(ctx, key, img.data, img.contentType)
}

func prepareImage(img ImageUpload) (preparedImage, error) {
	if len(img.Data) == 0 {
		return preparedImage{}, errors.New("file is empty")
	}
	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return preparedImage{}, err
	}
	if b := decoded.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return preparedImage{}, errors.New("image has no pixels")
	}

	contentType := http.DetectContentType(img.Data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return preparedImage{}, fmt.Errorf("unsupported content type %s", contentType)
	}
	return preparedImage{contentType: contentType, ext: ext, data: img.Data}, nil
}
