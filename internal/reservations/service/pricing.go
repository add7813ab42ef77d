package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	reservationserrors "carrental/internal/reservations/errors"
	"carrental/internal/reservations/repository"
	"carrental/pkg/config"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"
)

const (
	minutesPerDay = 24 * 60
	// amountEpsilon absorbs float noise when comparing against the tolerance.
	amountEpsilon = 1e-9
)

// ExpectedAmount is the rental price for a stay: the hourly rate pro-rated per
// minute, plus the daily driver fee pro-rated per minute when a driver is booked.
func ExpectedAmount(minutes int, hourlyRate float64, driverRequired bool, driverDailyRate float64) float64 {
	amount := float64(minutes) * hourlyRate / 60
	if driverRequired {
		amount += float64(minutes) * driverDailyRate / minutesPerDay
	}
	return sanitizer.RoundAmount(amount)
}

// PriceVerifier compares the caller's amount against the catalog rate. The
// amount is an input of the booking core; the verifier only decides whether a
// mismatch is tolerated.
type PriceVerifier struct {
	vehicles        repository.VehicleRepository
	policy          string
	tolerance       float64
	driverDailyRate float64
	log             *logger.Logger
}

func NewPriceVerifier(vehicles repository.VehicleRepository, cfg *config.Config) *PriceVerifier {
	return &PriceVerifier{
		vehicles:        vehicles,
		policy:          cfg.PricePolicy,
		tolerance:       cfg.PriceTolerance,
		driverDailyRate: cfg.DriverDailyRate,
		log:             cfg.Log,
	}
}

// Verify returns nil when the amount is acceptable under the configured policy.
// Under PricePolicyWarn every problem, including an unknown vehicle or a failed
// rate lookup, is logged and tolerated.
func (p *PriceVerifier) Verify(ctx context.Context, req *model.BookingRequest) error {
	if p == nil || p.policy == config.PricePolicyTrust || p.vehicles == nil {
		return nil
	}

	strict := p.policy == config.PricePolicyStrict

	vehicle, err := p.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrVehicleNotFound) {
			if strict {
				return invalidInput("Unknown vehicle", map[string]any{"vehicle_id": req.VehicleID}, err)
			}
			p.log.Warn("Price not verified, vehicle has no catalog rate", "vehicle_id", req.VehicleID)
			return nil
		}
		if strict {
			return storageError("Failed to look up vehicle rate", err)
		}
		p.log.Warn("Price not verified, vehicle rate lookup failed", "vehicle_id", req.VehicleID, "error", err)
		return nil
	}

	minutes := req.Interval.DurationMinutes()
	expected := ExpectedAmount(minutes, vehicle.HourlyRate, req.DriverRequired, p.driverDailyRate)
	if math.Abs(expected-req.Amount) <= p.tolerance+amountEpsilon {
		return nil
	}

	if strict {
		p.log.Warn("Price mismatch rejected",
			"vehicle_id", req.VehicleID,
			"amount", req.Amount,
			"expected", expected,
		)
		return invalidInput(
			fmt.Sprintf("Amount %.2f does not match the expected %.2f", req.Amount, expected),
			map[string]any{"amount": req.Amount, "expected_amount": expected},
			nil,
		)
	}

	p.log.Warn("Price mismatch accepted",
		"vehicle_id", req.VehicleID,
		"amount", req.Amount,
		"expected", expected,
		"minutes", minutes,
	)
	return nil
}

func invalidInput(message string, details map[string]any, cause error) *apperrors.AppError {
	appErr := apperrors.Validation(message, details)
	if cause != nil {
		appErr.Err = fmt.Errorf("%w: %w", reservationserrors.ErrInvalidInput, cause)
	} else {
		appErr.Err = reservationserrors.ErrInvalidInput
	}
	return appErr
}

func storageError(message string, cause error) *apperrors.AppError {
	return apperrors.Storage(message, fmt.Errorf("%w: %w", reservationserrors.ErrStorage, cause))
}
