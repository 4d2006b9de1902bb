package events

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pricing-service/internal/models"
)

// Publisher wraps the go-shared events publisher for price change events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher creates a new price change events publisher
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		// Default to GKE internal NATS service URL
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "pricing-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "pricing-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishPriceChanged publishes a product.price_changed event for an applied
// item. The batch is the provenance: downstream consumers can trace every
// change back to the confirmed batch that produced it.
func (p *Publisher) PublishPriceChanged(ctx context.Context, item *models.PriceChangeItem, batch *models.PriceChangeBatch, tenantID string) error {
	event := events.NewProductEvent("product.price_changed", tenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = item.ProductID.String()
	event.ProductName = item.ProductTitle
	event.SKU = item.VendorCode
	event.Price = item.NewPrice
	event.ChangeType = "price_changed"
	event.ChangedFields = []string{"price"}
	event.OldValue = map[string]interface{}{
		"price":         item.OldPrice,
		"discount":      item.OldDiscount,
		"discountPrice": item.OldDiscountPrice,
	}
	event.NewValue = map[string]interface{}{
		"price":         item.NewPrice,
		"discount":      item.NewDiscount,
		"discountPrice": item.NewDiscountPrice,
		"batchId":       batch.ID.String(),
		"safetyLevel":   item.SafetyLevel,
	}
	return p.publish(ctx, event)
}

// publish sends the event asynchronously so chunk processing never blocks on
// the message bus.
func (p *Publisher) publish(ctx context.Context, event *events.ProductEvent) error {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish price change event")
		}
	}()

	return nil
}
