package service

import (
	"context"
	"errors"
	"time"

	"carrental/internal/reservations/availability"
	reservationserrors "carrental/internal/reservations/errors"
	"carrental/internal/reservations/repository"
	"carrental/internal/reservations/validator"
	"carrental/pkg/config"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/interval"
	"carrental/pkg/lock"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

// QueryService is the read side. It consults the same availability index the
// booking path writes to.
type QueryService interface {
	AvailableVehicles(ctx context.Context, vehicleIDs []string, from, to time.Time) ([]string, error)
	ListBusy(ctx context.Context, vehicleID string, from, to time.Time) ([]interval.Interval, error)
	FreeWindows(ctx context.Context, vehicleID string, from, to time.Time) ([]interval.Interval, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	ListAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	// RebuildVehicleIndex re-derives a vehicle's busy set from the ledger.
	RebuildVehicleIndex(ctx context.Context, vehicleID string) (int, error)
	UpsertVehicle(ctx context.Context, vehicle *model.Vehicle) error
}

type queryService struct {
	ledger    repository.ReservationRepository
	index     availability.Index
	vehicles  repository.VehicleRepository
	locker    lock.Locker
	validator *validator.ReservationValidator
	cfg       *config.Config
}

func NewQueryService(
	ledger repository.ReservationRepository,
	index availability.Index,
	vehicles repository.VehicleRepository,
	locker lock.Locker,
	validator *validator.ReservationValidator,
	cfg *config.Config,
) QueryService {
	return &queryService{
		ledger:    ledger,
		index:     index,
		vehicles:  vehicles,
		locker:    locker,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *queryService) AvailableVehicles(ctx context.Context, vehicleIDs []string, from, to time.Time) ([]string, error) {
	window, err := queryWindow(from, to)
	if err != nil {
		return nil, err
	}

	ids := sanitizer.NormalizeIdentifiers(vehicleIDs)
	free := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.AvailabilityConcurrency, 1))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			busy, err := s.index.ListBusy(gctx, id, window.Start, window.End)
			if err != nil {
				return err
			}
			free[i] = len(busy) == 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to compute vehicle availability", "vehicles", len(ids), "error", err)
		return nil, storageError("Failed to compute vehicle availability", err)
	}

	available := make([]string, 0, len(ids))
	for i, id := range ids {
		if free[i] {
			available = append(available, id)
		}
	}

	s.cfg.Log.Debug("Availability computed",
		"requested", len(ids),
		"available", len(available),
		"from", window.Start,
		"to", window.End,
	)
	return available, nil
}

func (s *queryService) ListBusy(ctx context.Context, vehicleID string, from, to time.Time) ([]interval.Interval, error) {
	vehicleID, err := requireID("Vehicle ID", vehicleID)
	if err != nil {
		return nil, err
	}
	window, err := queryWindow(from, to)
	if err != nil {
		return nil, err
	}

	slots, err := s.index.ListBusy(ctx, vehicleID, window.Start, window.End)
	if err != nil {
		s.cfg.Log.Error("Failed to list busy intervals", "vehicle_id", vehicleID, "error", err)
		return nil, storageError("Failed to list busy intervals", err)
	}

	busy := make([]interval.Interval, 0, len(slots))
	for _, slot := range slots {
		busy = append(busy, slot.Interval)
	}
	return busy, nil
}

func (s *queryService) FreeWindows(ctx context.Context, vehicleID string, from, to time.Time) ([]interval.Interval, error) {
	busy, err := s.ListBusy(ctx, vehicleID, from, to)
	if err != nil {
		return nil, err
	}
	return interval.Complement(from.UTC(), to.UTC(), busy), nil
}

func (s *queryService) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	id, err := requireID("Reservation ID", id)
	if err != nil {
		return nil, err
	}

	reservation, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		s.cfg.Log.Error("Failed to retrieve reservation", "id", id, "error", err)
		return nil, storageError("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func (s *queryService) ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	requesterID, err := requireID("Requester ID", requesterID)
	if err != nil {
		return nil, 0, err
	}

	return s.page(ctx,
		func(ctx context.Context) (int64, error) { return s.ledger.CountByRequester(ctx, requesterID) },
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.ledger.FindByRequester(ctx, requesterID, limit, offset)
		},
		"requester_id", requesterID,
	)
}

func (s *queryService) ListAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return s.page(ctx,
		s.ledger.Count,
		func(ctx context.Context) ([]*model.Reservation, error) { return s.ledger.FindAll(ctx, limit, offset) },
	)
}

// page runs the count and the find concurrently.
func (s *queryService) page(
	ctx context.Context,
	count func(context.Context) (int64, error),
	find func(context.Context) ([]*model.Reservation, error),
	logArgs ...any,
) ([]*model.Reservation, int64, error) {
	var total int64
	var reservations []*model.Reservation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		reservations, err = find(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to list reservations", append(logArgs, "error", err)...)
		return nil, 0, storageError("Failed to retrieve reservations", err)
	}
	if reservations == nil {
		reservations = []*model.Reservation{}
	}
	return reservations, total, nil
}

func (s *queryService) RebuildVehicleIndex(ctx context.Context, vehicleID string) (int, error) {
	vehicleID, err := requireID("Vehicle ID", vehicleID)
	if err != nil {
		return 0, err
	}

	release, err := s.locker.Acquire(ctx, vehicleLockPrefix+vehicleID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, apperrors.Timeout("Timed out waiting for the vehicle lock")
		}
		return 0, storageError("Failed to acquire vehicle lock", err)
	}
	defer func() {
		if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release vehicle lock", "vehicle_id", vehicleID, "error", releaseErr)
		}
	}()

	reservations, err := s.ledger.FindByVehicle(ctx, vehicleID)
	if err != nil {
		s.cfg.Log.Error("Failed to load ledger for rebuild", "vehicle_id", vehicleID, "error", err)
		return 0, storageError("Failed to load reservations", err)
	}

	slots := make([]model.Slot, 0, len(reservations))
	for _, r := range reservations {
		slots = append(slots, r.Slot())
	}

	if err := s.index.Rebuild(ctx, vehicleID, slots); err != nil {
		s.cfg.Log.Error("Failed to rebuild availability index", "vehicle_id", vehicleID, "error", err)
		return 0, storageError("Failed to rebuild availability index", err)
	}

	s.cfg.Log.Info("Availability index rebuilt", "vehicle_id", vehicleID, "slots", len(slots))
	return len(slots), nil
}

func (s *queryService) UpsertVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	if vehicle == nil {
		return apperrors.InvalidInput("Vehicle is required")
	}
	vehicle.ID = sanitizer.SanitizeIdentifier(vehicle.ID)

	if err := s.validator.ValidateVehicle(vehicle); err != nil {
		return invalidInput("Vehicle validation failed", validationDetails(err), err)
	}
	vehicle.HourlyRate = sanitizer.RoundAmount(vehicle.HourlyRate)

	if err := s.vehicles.Upsert(ctx, vehicle); err != nil {
		s.cfg.Log.Error("Failed to save vehicle rate", "vehicle_id", vehicle.ID, "error", err)
		return storageError("Failed to save vehicle", err)
	}

	s.cfg.Log.Info("Vehicle rate saved", "vehicle_id", vehicle.ID, "hourly_rate", vehicle.HourlyRate)
	return nil
}

func queryWindow(from, to time.Time) (interval.Interval, error) {
	window, err := interval.New(from, to)
	if err != nil {
		return interval.Interval{}, apperrors.InvalidInput("Query range requires from < to")
	}
	return window, nil
}

func requireID(name, id string) (string, error) {
	id = sanitizer.SanitizeIdentifier(id)
	if id == "" {
		return "", apperrors.InvalidInput(name + " cannot be empty")
	}
	return id, nil
}
