package validator

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate          *validator.Validate
	minBookingMinutes int
	logger            *logger.Logger
}

func NewReservationValidator(log *logger.Logger, minBookingMinutes int) *ReservationValidator {
	v := validator.New()

	if err := v.RegisterValidation("identifier", validateIdentifier); err != nil {
		log.Fatal("Failed to register 'identifier' validator",
			"error", err,
		)
	}

	if err := v.RegisterValidation("finite", validateFinite); err != nil {
		log.Fatal("Failed to register 'finite' validator",
			"error", err,
		)
	}

	log.Debug("Reservation validator initialized", "min_booking_minutes", minBookingMinutes)

	return &ReservationValidator{
		validate:          v,
		minBookingMinutes: minBookingMinutes,
		logger:            log,
	}
}

func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierRegex.MatchString(fl.Field().String())
}

func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Validate checks a booking request without touching storage. Field errors are
// reported together; interval and duration rules only run once fields are valid.
func (v *ReservationValidator) Validate(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if err := req.Interval.Validate(); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "Interval",
				Message: "interval end must be after its start",
			},
		}
	}

	minutes := req.Interval.DurationMinutes()
	if minutes < v.minBookingMinutes {
		return ValidationErrors{
			ValidationError{
				Field:   "Interval",
				Message: fmt.Sprintf("reservation must last at least %d minutes, got %d", v.minBookingMinutes, minutes),
			},
		}
	}

	if req.DurationMinutes > 0 && req.DurationMinutes != minutes {
		return ValidationErrors{
			ValidationError{
				Field:   "DurationMinutes",
				Message: fmt.Sprintf("duration_minutes (%d) does not match the interval (%d)", req.DurationMinutes, minutes),
			},
		}
	}

	return nil
}

func (v *ReservationValidator) ValidateVehicle(vehicle *model.Vehicle) error {
	if err := v.validate.Struct(vehicle); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
		case "finite":
			message = fmt.Sprintf("%s must be a finite number", err.Field())
		case "identifier":
			message = fmt.Sprintf("%s must contain only letters, digits, '.', '_', ':' or '-'", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
