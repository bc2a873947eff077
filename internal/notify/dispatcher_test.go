package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []Message
	calls    map[string]int
	failures map[string]int // recipient -> failures before success; -1 fails forever
}

func (f *fakeMailer) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[m.To]++
	if n := f.failures[m.To]; n < 0 || f.calls[m.To] <= n {
		return errors.New("smtp: 451 try again later")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) snapshot() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func newDispatcher(m Mailer) *Dispatcher {
	return &Dispatcher{
		Mailer:  m,
		Log:     zap.NewNop(),
		Service: "test",
		Backoff: func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) },
	}
}

func placed(t *testing.T) orders.Envelope {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderPlaced, "test", "order-42", orders.OrderPlacedPayload{
		OrderID:     "order-42",
		PlantID:     "monstera",
		Customer:    orders.Customer{Name: "Fern", Email: "fern@example.com"},
		SellerEmail: "grower@example.com",
		Quantity:    1,
	})
	require.NoError(t, err)
	return env
}

func TestHandle_OrderPlacedSendsBothMails(t *testing.T) {
	m := &fakeMailer{}
	newDispatcher(m).Handle(context.Background(), placed(t))

	sent := m.snapshot()
	require.Len(t, sent, 2)
	assert.Equal(t, "fern@example.com", sent[0].To)
	assert.Equal(t, "Order Successfully Placed", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "order-42")
	assert.Equal(t, "grower@example.com", sent[1].To)
	assert.Equal(t, "You Have An Order to Process", sent[1].Subject)
	assert.Contains(t, sent[1].Body, "Fern")
}

func TestHandle_RetriesTransientFailures(t *testing.T) {
	m := &fakeMailer{failures: map[string]int{"fern@example.com": 2}}
	newDispatcher(m).Handle(context.Background(), placed(t))

	assert.Len(t, m.snapshot(), 2)
	assert.Equal(t, 3, m.calls["fern@example.com"])
}

func TestHandle_PermanentFailureIsSwallowed(t *testing.T) {
	m := &fakeMailer{failures: map[string]int{"fern@example.com": -1}}
	newDispatcher(m).Handle(context.Background(), placed(t))

	sent := m.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "grower@example.com", sent[0].To)
	assert.Equal(t, 3, m.calls["fern@example.com"])
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	m := &fakeMailer{}
	env, err := orders.NewEnvelope(orders.EventOrderCancelled, "test", "order-42", orders.OrderCancelledPayload{OrderID: "order-42"})
	require.NoError(t, err)

	newDispatcher(m).Handle(context.Background(), env)

	assert.Empty(t, m.snapshot())
}

func TestHandle_SkipsMissingRecipient(t *testing.T) {
	m := &fakeMailer{}
	env, err := orders.NewEnvelope(orders.EventOrderPlaced, "test", "order-7", orders.OrderPlacedPayload{
		OrderID:  "order-7",
		Customer: orders.Customer{Email: "fern@example.com"},
	})
	require.NoError(t, err)

	newDispatcher(m).Handle(context.Background(), env)

	require.Len(t, m.snapshot(), 1)
	assert.NotContains(t, m.calls, "")
}

func TestHandleMessage_DropsGarbage(t *testing.T) {
	m := &fakeMailer{}
	err := newDispatcher(m).HandleMessage(context.Background(), kafka.Message{Topic: orders.TopicOrderPlaced, Value: []byte("nope")})

	assert.NoError(t, err)
	assert.Empty(t, m.snapshot())
}

func TestLocalEvents_DeliversAsynchronously(t *testing.T) {
	m := &fakeMailer{}
	local := NewLocalEvents(newDispatcher(m), 8, 2)

	require.NoError(t, local.Publish(context.Background(), placed(t)))
	local.Close()

	assert.Len(t, m.snapshot(), 2)
}
