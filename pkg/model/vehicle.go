package model

import "time"

// Vehicle is the slice of the catalog record the reservation core reads.
type Vehicle struct {
	ID         string    `json:"id" bson:"_id" validate:"required,max=128,identifier"`
	HourlyRate float64   `json:"hourly_rate" bson:"hourly_rate" validate:"finite,gte=0"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}
