// Package events announces committed reservations to downstream consumers.
package events

import (
	"context"
	"time"

	"carrental/pkg/kafka"
	"carrental/pkg/middleware"
	"carrental/pkg/model"
)

const (
	EventReservationCreated = "reservation.created"
	SchemaVersion           = "1"
)

// Publisher delivery is best effort: callers log failures and carry on.
type Publisher interface {
	ReservationCreated(ctx context.Context, reservation *model.Reservation) error
	Close() error
}

type ReservationCreatedEvent struct {
	ReservationID   string    `json:"reservation_id"`
	VehicleID       string    `json:"vehicle_id"`
	RequesterID     string    `json:"requester_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Amount          float64   `json:"amount"`
	DriverRequired  bool      `json:"driver_required"`
	TransactionRef  string    `json:"transaction_ref"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewReservationCreatedEvent(r *model.Reservation) ReservationCreatedEvent {
	return ReservationCreatedEvent{
		ReservationID:   r.ID,
		VehicleID:       r.VehicleID,
		RequesterID:     r.RequesterID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
		Amount:          r.Amount,
		DriverRequired:  r.DriverRequired,
		TransactionRef:  r.TransactionRef,
		CreatedAt:       r.CreatedAt,
	}
}

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer MessagePublisher
	source   string
}

func NewKafkaPublisher(producer MessagePublisher, source string) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
	}
}

// ReservationCreated keys the message by vehicle so events for one vehicle keep
// their order within a partition.
func (p *kafkaPublisher) ReservationCreated(ctx context.Context, reservation *model.Reservation) error {
	msg := kafka.NewMessage().
		WithKey(reservation.VehicleID).
		WithEventID(reservation.ID).
		WithEventType(EventReservationCreated).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithValue(NewReservationCreatedEvent(reservation)).
		Build()

	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher is used when no brokers are configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) ReservationCreated(context.Context, *model.Reservation) error { return nil }

func (noopPublisher) Close() error { return nil }
