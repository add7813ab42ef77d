package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrDuplicateID = errors.New("reservation id already exists")

	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrInvalidInput and ErrStorage classify booking failures for errors.Is; the
	// coordinator wraps them inside the AppError it returns.
	ErrInvalidInput = errors.New("invalid booking input")

	ErrStorage = errors.New("reservation storage failure")
)
