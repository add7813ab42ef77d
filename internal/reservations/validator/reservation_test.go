package validator

import (
	"errors"
	"math"
	"testing"
	"time"

	"carrental/pkg/interval"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func validRequest() *model.BookingRequest {
	return &model.BookingRequest{
		VehicleID:   "car-1",
		RequesterID: "user-1",
		Interval:    interval.Interval{Start: start, End: start.Add(2 * time.Hour)},
		Amount:      240,
	}
}

func TestValidate(t *testing.T) {
	v := NewReservationValidator(logger.Discard(), 60)

	tests := []struct {
		name      string
		mutate    func(r *model.BookingRequest)
		wantField string
	}{
		{name: "valid", mutate: func(*model.BookingRequest) {}},
		{name: "valid with matching duration", mutate: func(r *model.BookingRequest) { r.DurationMinutes = 120 }},
		{name: "missing vehicle", mutate: func(r *model.BookingRequest) { r.VehicleID = "" }, wantField: "VehicleID"},
		{name: "malformed vehicle id", mutate: func(r *model.BookingRequest) { r.VehicleID = "car 1/../x" }, wantField: "VehicleID"},
		{name: "missing requester", mutate: func(r *model.BookingRequest) { r.RequesterID = "" }, wantField: "RequesterID"},
		{name: "negative amount", mutate: func(r *model.BookingRequest) { r.Amount = -1 }, wantField: "Amount"},
		{name: "negative amount below a cent", mutate: func(r *model.BookingRequest) { r.Amount = -0.004 }, wantField: "Amount"},
		{name: "NaN amount", mutate: func(r *model.BookingRequest) { r.Amount = math.NaN() }, wantField: "Amount"},
		{name: "infinite amount", mutate: func(r *model.BookingRequest) { r.Amount = math.Inf(1) }, wantField: "Amount"},
		{name: "negative duration", mutate: func(r *model.BookingRequest) { r.DurationMinutes = -5 }, wantField: "DurationMinutes"},
		{
			name:      "end before start",
			mutate:    func(r *model.BookingRequest) { r.Interval.End = r.Interval.Start.Add(-time.Hour) },
			wantField: "Interval",
		},
		{
			name:      "end equals start",
			mutate:    func(r *model.BookingRequest) { r.Interval.End = r.Interval.Start },
			wantField: "Interval",
		},
		{
			name:      "shorter than minimum",
			mutate:    func(r *model.BookingRequest) { r.Interval.End = r.Interval.Start.Add(59 * time.Minute) },
			wantField: "Interval",
		},
		{name: "exactly the minimum", mutate: func(r *model.BookingRequest) { r.Interval.End = r.Interval.Start.Add(time.Hour) }},
		{name: "duration mismatch", mutate: func(r *model.BookingRequest) { r.DurationMinutes = 90 }, wantField: "DurationMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := v.Validate(req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.wantField, verrs[0].Field)
		})
	}
}

func TestValidate_ReportsAllFieldErrors(t *testing.T) {
	v := NewReservationValidator(logger.Discard(), 60)

	err := v.Validate(&model.BookingRequest{Amount: -3})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.Contains(t, err.Error(), "VehicleID is required")
	assert.Contains(t, err.Error(), "RequesterID is required")
}

func TestValidateVehicle(t *testing.T) {
	v := NewReservationValidator(logger.Discard(), 60)

	assert.NoError(t, v.ValidateVehicle(&model.Vehicle{ID: "car-1", HourlyRate: 90}))
	assert.Error(t, v.ValidateVehicle(&model.Vehicle{ID: "car-1", HourlyRate: -1}))
	assert.Error(t, v.ValidateVehicle(&model.Vehicle{ID: "car-1", HourlyRate: math.NaN()}))
	assert.Error(t, v.ValidateVehicle(&model.Vehicle{HourlyRate: 10}))
}
