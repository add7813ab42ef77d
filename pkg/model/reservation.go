package model

import (
	"time"

	"carrental/pkg/interval"
)

// Reservation is an immutable ledger record of a committed booking.
type Reservation struct {
	ID              string    `json:"id" bson:"_id"`
	VehicleID       string    `json:"vehicle_id" bson:"vehicle_id"`
	RequesterID     string    `json:"requester_id" bson:"requester_id"`
	StartTime       time.Time `json:"start_time" bson:"start_time"`
	EndTime         time.Time `json:"end_time" bson:"end_time"`
	DurationMinutes int       `json:"duration_minutes" bson:"duration_minutes"`
	Amount          float64   `json:"amount" bson:"amount"`
	DriverRequired  bool      `json:"driver_required" bson:"driver_required"`
	TransactionRef  string    `json:"transaction_ref" bson:"transaction_ref"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{Start: r.StartTime, End: r.EndTime}
}

func (r *Reservation) Slot() Slot {
	return Slot{Interval: r.Interval(), ReservationID: r.ID}
}

// BookingRequest is the typed input of the booking coordinator. RequesterID is
// supplied by the authentication layer, never by the request body.
type BookingRequest struct {
	VehicleID       string            `json:"vehicle_id" validate:"required,max=128,identifier"`
	RequesterID     string            `json:"-" validate:"required,max=128"`
	Interval        interval.Interval `json:"interval"`
	DurationMinutes int               `json:"duration_minutes" validate:"gte=0"`
	Amount          float64           `json:"amount" validate:"finite,gte=0"`
	DriverRequired  bool              `json:"driver_required"`
	TransactionRef  string            `json:"transaction_ref" validate:"omitempty,max=128"`
}

// Slot is one busy entry of a vehicle's availability set.
type Slot struct {
	Interval      interval.Interval `json:"interval" bson:"interval"`
	ReservationID string            `json:"reservation_id" bson:"reservation_id"`
}
