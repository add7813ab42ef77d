package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental/internal/reservations/availability"
	"carrental/internal/reservations/events"
	"carrental/internal/reservations/repository"
	"carrental/internal/reservations/validator"
	"carrental/pkg/config"
	"carrental/pkg/db"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/lock"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"

	"github.com/google/uuid"
)

const vehicleLockPrefix = "vehicle:"

// BookingService is the single write path of the reservation core.
type BookingService interface {
	// Book commits a reservation or returns an *apperrors.AppError with code
	// INVALID_INPUT, SLOT_CONFLICT or STORAGE_ERROR. A rejected attempt leaves no
	// trace in the index or the ledger.
	Book(ctx context.Context, req *model.BookingRequest) (*model.Reservation, error)
}

type bookingService struct {
	ledger    repository.ReservationRepository
	index     availability.Index
	locker    lock.Locker
	txManager db.TransactionManager
	prices    *PriceVerifier
	publisher events.Publisher
	validator *validator.ReservationValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	ledger repository.ReservationRepository,
	index availability.Index,
	locker lock.Locker,
	txManager db.TransactionManager,
	prices *PriceVerifier,
	publisher events.Publisher,
	validator *validator.ReservationValidator,
	cfg *config.Config,
) BookingService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &bookingService{
		ledger:    ledger,
		index:     index,
		locker:    locker,
		txManager: txManager,
		prices:    prices,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.Reservation, error) {
	if req == nil {
		return nil, invalidInput("Booking request is required", nil, nil)
	}

	s.sanitize(req)
	s.applyDefaults(req)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	req.Amount = sanitizer.RoundAmount(req.Amount)
	if err := s.prices.Verify(ctx, req); err != nil {
		return nil, err
	}

	release, err := s.acquireVehicleLock(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release vehicle lock", "vehicle_id", req.VehicleID, "error", releaseErr)
		}
	}()

	reservation := s.newReservation(req)

	err = s.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.reserveSlot(txCtx, reservation); err != nil {
			return err
		}
		if err := s.ledger.Create(txCtx, reservation); err != nil {
			return storageError("Failed to persist reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejection(reservation, err)
	}

	s.cfg.Log.Info("Reservation committed",
		"id", reservation.ID,
		"vehicle_id", reservation.VehicleID,
		"requester_id", reservation.RequesterID,
		"start_time", reservation.StartTime,
		"end_time", reservation.EndTime,
		"duration_minutes", reservation.DurationMinutes,
	)

	if err := s.publisher.ReservationCreated(ctx, reservation); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event", "id", reservation.ID, "error", err)
	}

	return reservation, nil
}

func (s *bookingService) reserveSlot(ctx context.Context, reservation *model.Reservation) error {
	err := s.index.CheckAndReserve(ctx, reservation.VehicleID, reservation.Interval(), reservation.ID)
	if err == nil {
		return nil
	}

	var conflict *availability.SlotConflictError
	if errors.As(err, &conflict) {
		start, end := conflict.Conflicting.Format(time.RFC3339)
		return apperrors.SlotConflict(
			fmt.Sprintf("Vehicle is already reserved from %s to %s", start, end),
			conflict.ConflictingReservationID,
			err,
		)
	}
	return storageError("Failed to reserve vehicle slot", err)
}

// rejection normalises a failed unit of work into the coordinator's error taxonomy.
func (s *bookingService) rejection(reservation *model.Reservation, err error) error {
	if apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		s.cfg.Log.Info("Reservation rejected, slot taken",
			"vehicle_id", reservation.VehicleID,
			"start_time", reservation.StartTime,
			"end_time", reservation.EndTime,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Error("Failed to commit reservation",
		"vehicle_id", reservation.VehicleID,
		"start_time", reservation.StartTime,
		"end_time", reservation.EndTime,
		"error", err,
	)
	if apperrors.HasCode(err, apperrors.CodeStorage) {
		return err
	}
	return storageError("Failed to commit reservation", err)
}

func (s *bookingService) acquireVehicleLock(ctx context.Context, vehicleID string) (lock.Release, error) {
	release, err := s.locker.Acquire(ctx, vehicleLockPrefix+vehicleID)
	if err == nil {
		return release, nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.cfg.Log.Warn("Gave up waiting for vehicle lock", "vehicle_id", vehicleID, "error", err)
		appErr := apperrors.Timeout("Timed out waiting for the vehicle to become available for booking")
		appErr.Err = err
		return nil, appErr
	}

	s.cfg.Log.Error("Failed to acquire vehicle lock", "vehicle_id", vehicleID, "error", err)
	return nil, storageError("Failed to acquire vehicle lock", err)
}

func (s *bookingService) newReservation(req *model.BookingRequest) *model.Reservation {
	return &model.Reservation{
		ID:              uuid.NewString(),
		VehicleID:       req.VehicleID,
		RequesterID:     req.RequesterID,
		StartTime:       req.Interval.Start,
		EndTime:         req.Interval.End,
		DurationMinutes: req.Interval.DurationMinutes(),
		Amount:          req.Amount,
		DriverRequired:  req.DriverRequired,
		TransactionRef:  req.TransactionRef,
		CreatedAt:       s.now().UTC().Truncate(time.Millisecond),
	}
}

// --- Helpers ---

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.VehicleID = sanitizer.SanitizeIdentifier(req.VehicleID)
	req.RequesterID = sanitizer.SanitizeIdentifier(req.RequesterID)
	req.TransactionRef = sanitizer.SanitizeReference(req.TransactionRef)
	req.Interval.Start = req.Interval.Start.UTC()
	req.Interval.End = req.Interval.End.UTC()
}

func (s *bookingService) applyDefaults(req *model.BookingRequest) {
	if req.TransactionRef == "" {
		req.TransactionRef = uuid.NewString()
	}
}

func (s *bookingService) validate(req *model.BookingRequest) error {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "vehicle_id", req.VehicleID, "error", err)
		return invalidInput("Booking validation failed", validationDetails(err), err)
	}
	return nil
}

func validationDetails(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]any{"error": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, v := range verrs {
		fields[v.Field] = v.Message
	}
	return map[string]any{"fields": fields}
}
