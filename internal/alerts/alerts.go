// Package alerts publishes low-stock notifications after inventory changes.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// LowStockAlert announces that an item dropped below the threshold.
type LowStockAlert struct {
	AlertID    string    `json:"alertId"`
	ItemID     string    `json:"itemId,omitempty"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Threshold  int       `json:"threshold"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewLowStockAlert stamps an alert with a fresh id and the current time.
func NewLowStockAlert(itemID, name string, quantity, threshold int) LowStockAlert {
	return LowStockAlert{
		AlertID:    uuid.NewString(),
		ItemID:     itemID,
		Name:       name,
		Quantity:   quantity,
		Threshold:  threshold,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers alerts.
type Publisher interface {
	PublishLowStock(ctx context.Context, alert LowStockAlert) error
}

// PubSubPublisher publishes alerts as JSON messages to one topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubPublisher connects to projectID using application default
// credentials unless opts override them.
func NewPubSubPublisher(ctx context.Context, projectID, topicID string, logger *zap.Logger, opts ...option.ClientOption) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(topicID), logger: logger}, nil
}

func (p *PubSubPublisher) PublishLowStock(ctx context.Context, alert LowStockAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   "low_stock",
			"itemId": alert.ItemID,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish low stock alert: %w", err)
	}

	p.logger.Info("Low stock alert published",
		zap.String("message_id", id),
		zap.String("item", alert.Name),
		zap.Int("quantity", alert.Quantity),
	)
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// LogPublisher writes alerts to the log when no topic is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (l LogPublisher) PublishLowStock(ctx context.Context, alert LowStockAlert) error {
	l.Logger.Warn("Low stock",
		zap.String("item_id", alert.ItemID),
		zap.String("item", alert.Name),
		zap.Int("quantity", alert.Quantity),
		zap.Int("threshold", alert.Threshold),
	)
	return nil
}
