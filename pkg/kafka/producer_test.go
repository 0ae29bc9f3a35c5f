package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func buildMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey("booking-1").
		WithEventType("booking.created").
		WithValue(map[string]string{"id": "booking-1"}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return msg
}

func TestPublish_WritesKeyValueAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "booking-events"}

	if err := p.Publish(context.Background(), buildMessage(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	got := w.messages[0]
	if string(got.Key) != "booking-1" {
		t.Errorf("expected key booking-1, got %s", got.Key)
	}
	if header(got, HeaderEventType) != "booking.created" {
		t.Errorf("missing event type header")
	}
	if header(got, HeaderEventID) == "" {
		t.Errorf("expected generated event id")
	}
}

func TestPublish_RejectsEmptyKeyAndValue(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, topic: "t"}

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}
}

func TestPublish_FailureGoesToDLQ(t *testing.T) {
	writeErr := errors.New("leader not available")
	dlq := &fakeWriter{}
	p := &Producer{writer: &fakeWriter{err: writeErr}, dlqWriter: dlq, topic: "booking-events", dlqTopic: "booking-events-dlq"}

	err := p.Publish(context.Background(), buildMessage(t))
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected DLQ message, got %d", len(dlq.messages))
	}
	if header(dlq.messages[0], HeaderOriginalTopic) != "booking-events" {
		t.Errorf("expected original topic header")
	}
	if header(dlq.messages[0], HeaderDLQError) != writeErr.Error() {
		t.Errorf("expected dlq error header")
	}
}

func TestPublish_MiddlewareOrder(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, topic: "t"}
	var order []string
	for _, name := range []string{"outer", "inner"} {
		name := name
		p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	if err := p.Publish(context.Background(), buildMessage(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("unexpected middleware order %v", order)
	}
}

func TestClose_RejectsLaterPublishes(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "t"}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Error("expected writer to be closed")
	}
	if err := p.Publish(context.Background(), buildMessage(t)); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestBuild_ReportsEncodingFailure(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("expected encoding error")
	}
}
