// Package availability keeps, per vehicle, the ordered set of busy intervals and
// performs the atomic check-and-reserve the booking path depends on.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"carrental/pkg/interval"
	"carrental/pkg/model"
)

var ErrSlotConflict = errors.New("slot conflicts with an existing reservation")

// SlotConflictError names the earliest-starting reservation that overlaps the request.
type SlotConflictError struct {
	VehicleID                string
	Requested                interval.Interval
	ConflictingReservationID string
	Conflicting              interval.Interval
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("vehicle %s: %s overlaps reservation %s (%s)",
		e.VehicleID, e.Requested, e.ConflictingReservationID, e.Conflicting)
}

func (e *SlotConflictError) Unwrap() error {
	return ErrSlotConflict
}

type Index interface {
	// CheckAndReserve inserts iv for vehicleID unless it overlaps an existing slot,
	// in which case it returns a *SlotConflictError. Atomic per vehicle.
	CheckAndReserve(ctx context.Context, vehicleID string, iv interval.Interval, reservationID string) error
	// ListBusy returns the slots intersecting [from, to), ordered by start. A zero
	// bound leaves that side open.
	ListBusy(ctx context.Context, vehicleID string, from, to time.Time) ([]model.Slot, error)
	// Release removes the slot of reservationID. Used to compensate a failed unit of work.
	Release(ctx context.Context, vehicleID, reservationID string) error
	// Rebuild replaces the vehicle's slots with the given set.
	Rebuild(ctx context.Context, vehicleID string, slots []model.Slot) error
}

func sortSlots(slots []model.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i].Interval, slots[j].Interval
		if a.Start.Equal(b.Start) {
			return slots[i].ReservationID < slots[j].ReservationID
		}
		return a.Start.Before(b.Start)
	})
}

// findConflict scans slots sorted by start and returns the earliest-starting one
// overlapping iv.
func findConflict(slots []model.Slot, iv interval.Interval) (model.Slot, bool) {
	for _, s := range slots {
		if !s.Interval.Start.Before(iv.End) {
			break
		}
		if s.Interval.Overlaps(iv) {
			return s, true
		}
	}
	return model.Slot{}, false
}

func insertSorted(slots []model.Slot, slot model.Slot) []model.Slot {
	i := sort.Search(len(slots), func(i int) bool {
		return slots[i].Interval.Start.After(slot.Interval.Start)
	})
	slots = append(slots, model.Slot{})
	copy(slots[i+1:], slots[i:])
	slots[i] = slot
	return slots
}

func removeReservation(slots []model.Slot, reservationID string) ([]model.Slot, bool) {
	for i, s := range slots {
		if s.ReservationID == reservationID {
			return append(slots[:i], slots[i+1:]...), true
		}
	}
	return slots, false
}

func inRange(iv interval.Interval, from, to time.Time) bool {
	if !to.IsZero() && !iv.Start.Before(to) {
		return false
	}
	if !from.IsZero() && !from.Before(iv.End) {
		return false
	}
	return true
}

func busyWithin(slots []model.Slot, from, to time.Time) []model.Slot {
	out := []model.Slot{}
	for _, s := range slots {
		if !to.IsZero() && !s.Interval.Start.Before(to) {
			break
		}
		if inRange(s.Interval, from, to) {
			out = append(out, s)
		}
	}
	return out
}

func conflictError(vehicleID string, iv interval.Interval, existing model.Slot) *SlotConflictError {
	return &SlotConflictError{
		VehicleID:                vehicleID,
		Requested:                iv,
		ConflictingReservationID: existing.ReservationID,
		Conflicting:              existing.Interval,
	}
}

// normalizeSlots validates, sorts and checks a rebuild set for internal overlaps.
func normalizeSlots(vehicleID string, slots []model.Slot) ([]model.Slot, error) {
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		if err := s.Interval.Validate(); err != nil {
			return nil, fmt.Errorf("reservation %s: %w", s.ReservationID, err)
		}
		s.Interval = interval.Interval{Start: s.Interval.Start.UTC(), End: s.Interval.End.UTC()}
		out = append(out, s)
	}
	sortSlots(out)
	for i := 1; i < len(out); i++ {
		if out[i-1].Interval.Overlaps(out[i].Interval) {
			return nil, conflictError(vehicleID, out[i].Interval, out[i-1])
		}
	}
	return out, nil
}
