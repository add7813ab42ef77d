package interval

import (
	"sort"
	"time"
)

// SortByStart orders intervals by start, then end, in place.
func SortByStart(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		if ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].End.Before(ivs[j].End)
		}
		return ivs[i].Start.Before(ivs[j].Start)
	})
}

// Merge clips busy intervals to [from, to), sorts them and joins any that overlap or touch.
func Merge(from, to time.Time, busy []Interval) []Interval {
	clipped := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if !b.Intersects(from, to) {
			continue
		}
		if b.Start.Before(from) {
			b.Start = from
		}
		if b.End.After(to) {
			b.End = to
		}
		clipped = append(clipped, b)
	}
	SortByStart(clipped)

	merged := make([]Interval, 0, len(clipped))
	for _, b := range clipped {
		if len(merged) == 0 {
			merged = append(merged, b)
			continue
		}
		last := &merged[len(merged)-1]
		if !b.Start.After(last.End) {
			if b.End.After(last.End) {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// Complement returns the free gaps of [from, to) not covered by busy.
func Complement(from, to time.Time, busy []Interval) []Interval {
	if !from.Before(to) {
		return []Interval{}
	}
	free := make([]Interval, 0)
	cursor := from
	for _, b := range Merge(from, to, busy) {
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(to) {
		free = append(free, Interval{Start: cursor, End: to})
	}
	return free
}
