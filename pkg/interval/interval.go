// Package interval models half-open time ranges [Start, End) on UTC instants.
package interval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WireLayout is the "DD/MM/YYYY HH:mm" format used by booking clients.
const WireLayout = "02/01/2006 15:04"

var ErrInvalidInterval = errors.New("invalid interval")

type Interval struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// New builds a validated interval with both endpoints normalised to UTC.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC(), End: end.UTC()}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return fmt.Errorf("%w: missing endpoint", ErrInvalidInterval)
	}
	if !iv.Start.Before(iv.End) {
		return fmt.Errorf("%w: end %s must be after start %s",
			ErrInvalidInterval,
			iv.End.Format(time.RFC3339),
			iv.Start.Format(time.RFC3339),
		)
	}
	return nil
}

// Overlaps reports whether the two ranges share any instant. Touching ranges do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Intersects is Overlaps against a bare [from, to) range.
func (iv Interval) Intersects(from, to time.Time) bool {
	return iv.Start.Before(to) && from.Before(iv.End)
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// DurationMinutes truncates partial minutes.
func (iv Interval) DurationMinutes() int {
	return int(iv.Duration() / time.Minute)
}

func (iv Interval) Format(layout string) (string, string) {
	return iv.Start.Format(layout), iv.End.Format(layout)
}

func (iv Interval) String() string {
	return iv.Start.Format(time.RFC3339) + "/" + iv.End.Format(time.RFC3339)
}

// Parse reads both endpoints with ParseInstant and validates the result.
func Parse(from, to string, loc *time.Location) (Interval, error) {
	start, err := ParseInstant(from, loc)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseInstant(to, loc)
	if err != nil {
		return Interval{}, err
	}
	return New(start, end)
}

// ParseInstant accepts RFC3339 or WireLayout. WireLayout values carry no zone and are
// read in loc (UTC when nil).
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidInterval)
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(WireLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrInvalidInterval, value)
	}
	return t.UTC(), nil
}
