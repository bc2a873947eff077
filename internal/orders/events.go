package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload as a version 1 event correlated to orderID.
func NewEnvelope(eventType, producer, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

// Topic returns the topic an event type is published on.
func (e Envelope) Topic() string {
	switch e.EventType {
	case EventOrderPlaced:
		return TopicOrderPlaced
	case EventOrderStatusChanged:
		return TopicOrderStatusChanged
	default:
		return TopicOrderCancelled
	}
}

type OrderPlacedPayload struct {
	OrderID      string   `json:"order_id"`
	PlantID      string   `json:"plant_id"`
	PlantName    string   `json:"plant_name"`
	Customer     Customer `json:"customer"`
	SellerEmail  string   `json:"seller_email"`
	Quantity     int      `json:"quantity"`
	PriceCents   int64    `json:"price_cents"`
	StockDebited bool     `json:"stock_debited"`
}

type OrderStatusChangedPayload struct {
	OrderID     string `json:"order_id"`
	From        Status `json:"from"`
	To          Status `json:"to"`
	SellerEmail string `json:"seller_email"`
}

type OrderCancelledPayload struct {
	OrderID   string `json:"order_id"`
	PlantID   string `json:"plant_id"`
	Quantity  int    `json:"quantity"`
	Restocked bool   `json:"restocked"`
	Reason    string `json:"reason"` // cancelled_by_user | out_of_stock
}
