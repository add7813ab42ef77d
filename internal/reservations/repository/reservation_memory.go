package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	reservationserrors "carrental/internal/reservations/errors"
	"carrental/pkg/db/memory"
	"carrental/pkg/model"
)

type memoryReservationRepository struct {
	mu           sync.RWMutex
	reservations map[string]model.Reservation
	// staged records are written inside an open transaction and hidden from reads.
	staged map[string]model.Reservation
}

func NewMemoryReservationRepository() ReservationRepository {
	return &memoryReservationRepository{
		reservations: make(map[string]model.Reservation),
		staged:       make(map[string]model.Reservation),
	}
}

func (r *memoryReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := reservation.ID
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.reservations[id]
	if _, pending := r.staged[id]; exists || pending {
		return fmt.Errorf("%w: %s", reservationserrors.ErrDuplicateID, id)
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	record := *reservation
	staged := memory.OnCommit(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.staged, id)
		r.reservations[id] = record
	})
	if !staged {
		r.reservations[id] = record
		return nil
	}
	r.staged[id] = record
	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.staged, id)
	})
	return nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return &reservation, nil
}

func (r *memoryReservationRepository) FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.find(ctx, func(res *model.Reservation) bool { return res.RequesterID == requesterID }, limit, offset)
}

func (r *memoryReservationRepository) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	return r.count(ctx, func(res *model.Reservation) bool { return res.RequesterID == requesterID })
}

func (r *memoryReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	return r.find(ctx, func(*model.Reservation) bool { return true }, limit, offset)
}

func (r *memoryReservationRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, func(*model.Reservation) bool { return true })
}

func (r *memoryReservationRepository) FindByVehicle(ctx context.Context, vehicleID string) ([]*model.Reservation, error) {
	return r.find(ctx, func(res *model.Reservation) bool { return res.VehicleID == vehicleID }, 0, 0)
}

func (r *memoryReservationRepository) find(ctx context.Context, match func(*model.Reservation) bool, limit int, offset int64) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matches := []*model.Reservation{}
	for _, res := range r.reservations {
		res := res
		if match(&res) {
			matches = append(matches, &res)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartTime.Equal(matches[j].StartTime) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].StartTime.Before(matches[j].StartTime)
	})

	if offset >= int64(len(matches)) {
		return []*model.Reservation{}, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *memoryReservationRepository) count(ctx context.Context, match func(*model.Reservation) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, res := range r.reservations {
		if match(&res) {
			n++
		}
	}
	return n, nil
}
