package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const headerEventType = "event_type"

// EncodeEnvelope renders env as a message value plus headers carrying the
// event type and the trace context of ctx.
func EncodeEnvelope(ctx context.Context, env orders.Envelope) ([]byte, []kafka.Header, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("encode envelope: %w", err)
	}
	carrier := headerCarrier{{Key: headerEventType, Value: []byte(env.EventType)}}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return b, carrier, nil
}

// DecodeEnvelope parses m and returns a context carrying the producer's trace.
func DecodeEnvelope(ctx context.Context, m kafka.Message) (context.Context, orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return ctx, env, fmt.Errorf("decode envelope: %w", err)
	}
	carrier := headerCarrier(m.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier), env, nil
}

// UnwrapPayload decodes an envelope payload into its concrete type.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// headerCarrier adapts message headers to propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	out := make([]string, 0, len(*c))
	for _, h := range *c {
		out = append(out, h.Key)
	}
	return out
}
