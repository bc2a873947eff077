// Package notify turns order lifecycle events into emails. Delivery is best
// effort: failures are retried, then logged and dropped. Nothing here can
// affect an order.
package notify

import (
	"context"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/plantnet-orders/internal/kafka"
	"github.com/ariefcatur/plantnet-orders/internal/metrics"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/redisx"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Dispatcher struct {
	Mailer  Mailer
	Redis   *redis.Client // optional; dedups redelivered events
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Service string

	// Backoff builds the retry policy for one send; defaults to 4 tries over a few seconds.
	Backoff func() backoff.BackOff
}

// HandleMessage adapts Handle to the Kafka consumer. It always returns nil
// so a bad message never blocks its partition.
func (d *Dispatcher) HandleMessage(ctx context.Context, m kafka.Message) error {
	ctx, env, err := kafkax.DecodeEnvelope(ctx, m)
	if err != nil {
		d.Log.Warn("dropping undecodable event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}
	d.Handle(ctx, env)
	return nil
}

func (d *Dispatcher) Handle(ctx context.Context, env orders.Envelope) {
	ctx, span := otel.Tracer("plantnet/notify").Start(ctx, "notify."+env.EventType)
	span.SetAttributes(attribute.String("event.id", env.EventID), attribute.String("order.id", env.CorrelationID))
	defer span.End()

	log := d.Log.With(zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))

	if env.EventType != orders.EventOrderPlaced {
		log.Debug("no notification for event")
		return
	}
	if first, err := d.claim(ctx, env.EventID); err != nil {
		log.Warn("dedup check failed; sending anyway", zap.Error(err))
	} else if !first {
		log.Info("duplicate event skipped")
		d.Metrics.Notification(env.EventType, "duplicate")
		return
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		log.Warn("bad OrderPlaced payload", zap.Error(err))
		return
	}
	for _, m := range OrderPlacedMessages(p) {
		d.deliver(ctx, log, m)
	}
}

// OrderPlacedMessages builds the customer confirmation and the seller heads-up.
func OrderPlacedMessages(p orders.OrderPlacedPayload) []Message {
	return []Message{
		{
			To:      p.Customer.Email,
			Subject: "Order Successfully Placed",
			Body:    fmt.Sprintf("You Have Successfully Placed An Order. Transaction Id %s", p.OrderID),
		},
		{
			To:      p.SellerEmail,
			Subject: "You Have An Order to Process",
			Body:    fmt.Sprintf("Get The Plants Ready For %s", p.Customer.Name),
		},
	}
}

func (d *Dispatcher) deliver(ctx context.Context, log *zap.Logger, m Message) {
	log = log.With(zap.String("to", m.To), zap.String("subject", m.Subject))
	if m.To == "" {
		log.Warn("no recipient; mail skipped")
		d.Metrics.Notification(orders.EventOrderPlaced, "skipped")
		return
	}

	attempt := 0
	op := func() error {
		attempt++
		return d.Mailer.Send(ctx, m)
	}
	if err := backoff.Retry(op, backoff.WithContext(d.policy(), ctx)); err != nil {
		log.Error("mail delivery failed", zap.Int("attempts", attempt), zap.Error(err))
		d.Metrics.Notification(orders.EventOrderPlaced, "failed")
		return
	}
	log.Info("mail sent", zap.Int("attempts", attempt))
	d.Metrics.Notification(orders.EventOrderPlaced, "sent")
}

func (d *Dispatcher) policy() backoff.BackOff {
	if d.Backoff != nil {
		return d.Backoff()
	}
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxElapsedTime(30*time.Second),
	), 3)
}

func (d *Dispatcher) claim(ctx context.Context, eventID string) (bool, error) {
	if d.Redis == nil {
		return true, nil
	}
	return redisx.Claim(ctx, d.Redis, fmt.Sprintf(redisx.KeyDedup, d.Service, eventID), redisx.TTLDedup)
}
