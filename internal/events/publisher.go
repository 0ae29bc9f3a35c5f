// Package events publishes booking lifecycle events. Publishing happens after
// the owning transaction commits and never fails the caller's operation.
package events

import (
	"context"
	"sync"
	"time"

	"zivara/pkg/kafka"
	"zivara/pkg/logger"
	"zivara/pkg/model"
)

const (
	BookingCreated                = "booking.created"
	BookingConfirmed              = "booking.confirmed"
	BookingCancelled              = "booking.cancelled"
	BookingReconciliationRequired = "booking.reconciliation_required"

	schemaVersion = "1"
)

// BookingEvent is the payload of every booking event.
type BookingEvent struct {
	Type       string              `json:"type"`
	BookingID  string              `json:"booking_id"`
	GuestID    string              `json:"guest_id,omitempty"`
	CategoryID string              `json:"category_id,omitempty"`
	CheckIn    string              `json:"check_in,omitempty"`
	CheckOut   string              `json:"check_out,omitempty"`
	RoomIDs    []string            `json:"room_ids,omitempty"`
	TotalPrice int64               `json:"total_price,omitempty"`
	Currency   string              `json:"currency,omitempty"`
	Status     model.BookingStatus `json:"status,omitempty"`
	Payment    model.PaymentStatus `json:"payment_status,omitempty"`
	Reference  string              `json:"payment_reference,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *model.Booking) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		GuestID:    b.GuestID,
		CategoryID: b.CategoryID,
		CheckIn:    b.CheckIn.Format(model.NightLayout),
		CheckOut:   b.CheckOut.Format(model.NightLayout),
		RoomIDs:    b.RoomIDs,
		TotalPrice: b.TotalPrice,
		Currency:   b.Currency,
		Status:     b.Status,
		Payment:    b.PaymentStatus,
		Reference:  b.PaymentReference,
		Reason:     b.CancelReason,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event BookingEvent)
}

type messageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer messageProducer
	source   string
	log      *logger.Logger
}

// NewKafkaPublisher keys every message by booking id so one booking's events stay ordered.
func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, source: source, log: log}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event BookingEvent) {
	msg, err := kafka.NewMessage().
		WithKey(event.BookingID).
		WithEventType(event.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(p.source).
		WithValue(event).
		Build()
	if err != nil {
		p.log.Error("Failed to build booking event", "type", event.Type, "booking_id", event.BookingID, "error", err)
		return
	}

	// The request context may already be cancelled once the response is written.
	if err := p.producer.Publish(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error("Failed to publish booking event", "type", event.Type, "booking_id", event.BookingID, "error", err)
	}
}

type logPublisher struct {
	log *logger.Logger
}

// NewLogPublisher records events in the service log when Kafka is disabled.
func NewLogPublisher(log *logger.Logger) Publisher {
	return &logPublisher{log: log}
}

func (p *logPublisher) Publish(_ context.Context, event BookingEvent) {
	p.log.Info("Booking event", "type", event.Type, "booking_id", event.BookingID, "status", event.Status)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []BookingEvent
}

func (r *Recorder) Publish(_ context.Context, event BookingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []BookingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BookingEvent(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
