package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "reservations.events")

	msg := NewMessage().
		WithKey("car-1").
		WithEventType("reservation.created").
		WithCorrelationID("req-1").
		WithValue(map[string]string{"id": "r-1"}).
		Build()

	require.NoError(t, p.Publish(context.Background(), msg))
	require.Len(t, w.messages, 1)

	sent := w.messages[0]
	assert.Equal(t, "car-1", string(sent.Key))
	assert.JSONEq(t, `{"id":"r-1"}`, string(sent.Value))
	assert.Equal(t, "reservation.created", headerValue(sent, HeaderEventType))
	assert.Equal(t, "req-1", headerValue(sent, HeaderCorrelationID))
	assert.NotEmpty(t, headerValue(sent, HeaderEventID))
}

func TestProducer_RejectsInvalidMessages(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t")

	err := p.Publish(context.Background(), NewMessage().WithValue("x").Build())
	assert.ErrorIs(t, err, ErrEmptyKey)

	err = p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(make(chan int)).Build())
	assert.ErrorIs(t, err, ErrEmptyValue)
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t")
	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "outer")
		assert.Equal(t, "t", msg.Topic)
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "inner")
		return next(ctx, msg)
	})

	require.NoError(t, p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(1).Build()))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	boom := errors.New("broker unreachable")
	w := &fakeWriter{err: boom}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "reservations.events")

	err := p.Publish(context.Background(), NewMessage().WithKey("car-1").WithValue(1).Build())
	assert.ErrorIs(t, err, boom)

	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "reservations.events", headerValue(dlq.messages[0], HeaderOriginalTopic))
	assert.Equal(t, boom.Error(), headerValue(dlq.messages[0], HeaderDLQError))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "t")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(1).Build())
	assert.ErrorIs(t, err, ErrProducerClosed)
}
