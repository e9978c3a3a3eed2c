package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 10 * time.Second

// Publisher emits product lifecycle events for imported products
type Publisher struct {
	publisher *events.Publisher
	send      func(ctx context.Context, event *events.ProductEvent) error
	logger    *logrus.Entry
	inflight  sync.WaitGroup
}

// NewPublisher connects to NATS and makes sure the products stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	if natsURL == "" {
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-import-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		send:      publisher.PublishProduct,
		logger:    logger.WithField("component", "catalog-import-events"),
	}, nil
}

// Close waits for in-flight events and closes the NATS connection
func (p *Publisher) Close() {
	p.inflight.Wait()
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event
func (p *Publisher) PublishProductCreated(ctx context.Context, product *models.Product, actorID string) error {
	event := buildProductEvent(events.ProductCreated, product)
	event.ActorID = actorID
	event.ChangeType = "created"
	return p.publish(ctx, event)
}

// PublishProductUpdated publishes a product.updated event
func (p *Publisher) PublishProductUpdated(ctx context.Context, product *models.Product, changedFields []string, actorID string) error {
	event := buildProductEvent(events.ProductUpdated, product)
	event.ActorID = actorID
	event.ChangeType = "updated"
	event.ChangedFields = changedFields

	newValue := map[string]interface{}{}
	for _, field := range changedFields {
		switch field {
		case "image":
			newValue["image"] = product.Image
		case "images":
			newValue["images"] = []string(product.Images)
		}
	}
	event.NewValue = newValue

	return p.publish(ctx, event)
}

func buildProductEvent(eventType string, product *models.Product) *events.ProductEvent {
	event := events.NewProductEvent(eventType, product.TenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = product.ID.String()
	event.ProductName = product.Name
	event.SKU = product.ItemCode
	event.Status = string(product.Status)
	event.Price = product.Price.InexactFloat64()
	event.CategoryID = product.CategoryID
	return event
}

// publish sends the event in the background so callers never block on NATS
func (p *Publisher) publish(_ context.Context, event *events.ProductEvent) error {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		fields := logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
			"sku":       event.SKU,
			"tenantID":  event.TenantID,
		}
		if err := p.send(pubCtx, event); err != nil {
			p.logger.WithFields(fields).WithError(err).Error("Failed to publish product event")
			return
		}
		p.logger.WithFields(fields).Debug("Product event published")
	}()

	return nil
}
