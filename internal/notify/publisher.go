package notify

import (
	"context"
	"errors"
	"sync"

	kafkax "github.com/ariefcatur/plantnet-orders/internal/kafka"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"go.uber.org/zap"
)

// KafkaEvents publishes lifecycle events to their topics, keyed by order id.
type KafkaEvents struct {
	Producer *kafkax.Producer
}

func (k *KafkaEvents) Publish(ctx context.Context, env orders.Envelope) error {
	value, headers, err := kafkax.EncodeEnvelope(ctx, env)
	if err != nil {
		return err
	}
	return k.Producer.Publish(ctx, env.Topic(), orders.PartitionKey(env.CorrelationID), value, headers...)
}

var ErrQueueFull = errors.New("notification queue full")

// LocalEvents hands events to a Dispatcher inside the api process, for
// deployments without Kafka. Publish never blocks; a full queue drops the event.
type LocalEvents struct {
	d     *Dispatcher
	queue chan orders.Envelope
	log   *zap.Logger
	wg    sync.WaitGroup
	once  sync.Once
}

func NewLocalEvents(d *Dispatcher, buf, workers int) *LocalEvents {
	if buf <= 0 {
		buf = 256
	}
	if workers <= 0 {
		workers = 1
	}
	l := &LocalEvents{d: d, queue: make(chan orders.Envelope, buf), log: d.Log}
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			for env := range l.queue {
				l.d.Handle(context.Background(), env)
			}
		}()
	}
	return l
}

func (l *LocalEvents) Publish(_ context.Context, env orders.Envelope) error {
	select {
	case l.queue <- env:
		return nil
	default:
		l.log.Warn("notification dropped", zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))
		return ErrQueueFull
	}
}

// Close drains queued events and waits for the workers. Publish must not be
// called afterwards.
func (l *LocalEvents) Close() {
	l.once.Do(func() { close(l.queue) })
	l.wg.Wait()
}
