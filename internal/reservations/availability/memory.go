package availability

import (
	"context"
	"sync"
	"time"

	"carrental/pkg/db/memory"
	"carrental/pkg/interval"
	"carrental/pkg/model"
)

type vehicleSlots struct {
	mu    sync.RWMutex
	slots []model.Slot
	// pending holds reservation ids whose slots block new reservations but stay
	// hidden from readers until their transaction commits.
	pending map[string]struct{}
}

func (v *vehicleSlots) visible(from, to time.Time) []model.Slot {
	busy := busyWithin(v.slots, from, to)
	if len(v.pending) == 0 {
		return busy
	}
	out := busy[:0]
	for _, s := range busy {
		if _, staged := v.pending[s.ReservationID]; !staged {
			out = append(out, s)
		}
	}
	return out
}

// MemoryIndex holds every vehicle's slots in process. Each vehicle has its own
// lock, so operations on different vehicles never contend.
type MemoryIndex struct {
	mu       sync.Mutex
	vehicles map[string]*vehicleSlots
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vehicles: make(map[string]*vehicleSlots)}
}

func (m *MemoryIndex) vehicle(vehicleID string, create bool) *vehicleSlots {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vehicles[vehicleID]
	if !ok && create {
		v = &vehicleSlots{}
		m.vehicles[vehicleID] = v
	}
	return v
}

// CheckAndReserve stages the slot when ctx carries an in-memory transaction: it
// blocks other reservations at once, becomes visible to ListBusy on commit and is
// removed on rollback. Outside a transaction the slot is visible immediately.
func (m *MemoryIndex) CheckAndReserve(ctx context.Context, vehicleID string, iv interval.Interval, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := iv.Validate(); err != nil {
		return err
	}

	v := m.vehicle(vehicleID, true)
	v.mu.Lock()
	if existing, found := findConflict(v.slots, iv); found {
		v.mu.Unlock()
		return conflictError(vehicleID, iv, existing)
	}
	v.slots = insertSorted(v.slots, model.Slot{Interval: iv, ReservationID: reservationID})
	staged := memory.OnCommit(ctx, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.pending, reservationID)
	})
	if staged {
		if v.pending == nil {
			v.pending = make(map[string]struct{})
		}
		v.pending[reservationID] = struct{}{}
	}
	v.mu.Unlock()

	memory.OnRollback(ctx, func() {
		_ = m.Release(context.Background(), vehicleID, reservationID)
	})
	return nil
}

func (m *MemoryIndex) ListBusy(ctx context.Context, vehicleID string, from, to time.Time) ([]model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := m.vehicle(vehicleID, false)
	if v == nil {
		return []model.Slot{}, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible(from, to), nil
}

func (m *MemoryIndex) Release(_ context.Context, vehicleID, reservationID string) error {
	v := m.vehicle(vehicleID, false)
	if v == nil {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.slots, _ = removeReservation(v.slots, reservationID)
	delete(v.pending, reservationID)
	return nil
}

func (m *MemoryIndex) Rebuild(ctx context.Context, vehicleID string, slots []model.Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := normalizeSlots(vehicleID, slots)
	if err != nil {
		return err
	}

	v := m.vehicle(vehicleID, true)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.slots = normalized
	v.pending = nil
	return nil
}
