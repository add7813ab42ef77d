package interval

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func mustNew(t *testing.T, start, end time.Time) Interval {
	t.Helper()
	iv, err := New(start, end)
	require.NoError(t, err)
	return iv
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		iv      Interval
		wantErr bool
	}{
		{name: "two hours", iv: Interval{Start: at(10, 0), End: at(12, 0)}},
		{name: "zero length", iv: Interval{Start: at(10, 0), End: at(10, 0)}, wantErr: true},
		{name: "reversed", iv: Interval{Start: at(12, 0), End: at(10, 0)}, wantErr: true},
		{name: "missing start", iv: Interval{End: at(10, 0)}, wantErr: true},
		{name: "missing end", iv: Interval{Start: at(10, 0)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.iv.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidInterval), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNew_NormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2024, 1, 1, 15, 30, 0, 0, loc)

	iv := mustNew(t, start, start.Add(2*time.Hour))

	assert.Equal(t, time.UTC, iv.Start.Location())
	assert.Equal(t, at(10, 0), iv.Start)
	assert.Equal(t, at(12, 0), iv.End)
}

func TestOverlaps(t *testing.T) {
	base := Interval{Start: at(10, 0), End: at(12, 0)}

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "partial overlap on the right", other: Interval{Start: at(11, 0), End: at(13, 0)}, want: true},
		{name: "partial overlap on the left", other: Interval{Start: at(9, 0), End: at(10, 30)}, want: true},
		{name: "contained", other: Interval{Start: at(10, 30), End: at(11, 0)}, want: true},
		{name: "containing", other: Interval{Start: at(9, 0), End: at(13, 0)}, want: true},
		{name: "identical", other: base, want: true},
		{name: "touching after", other: Interval{Start: at(12, 0), End: at(13, 0)}, want: false},
		{name: "touching before", other: Interval{Start: at(8, 0), End: at(10, 0)}, want: false},
		{name: "disjoint", other: Interval{Start: at(14, 0), End: at(15, 0)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestOverlaps_SymmetricAndReflexive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	origin := at(0, 0)
	random := func() Interval {
		start := origin.Add(time.Duration(rng.Intn(48*60)) * time.Minute)
		return Interval{Start: start, End: start.Add(time.Duration(1+rng.Intn(6*60)) * time.Minute)}
	}

	for i := 0; i < 2000; i++ {
		a, b := random(), random()
		require.Equal(t, a.Overlaps(b), b.Overlaps(a), "a=%s b=%s", a, b)
		require.True(t, a.Overlaps(a), "a=%s", a)
	}
}

func TestDurationMinutes(t *testing.T) {
	assert.Equal(t, 120, Interval{Start: at(10, 0), End: at(12, 0)}.DurationMinutes())
	assert.Equal(t, 30, Interval{Start: at(10, 30), End: at(11, 0)}.DurationMinutes())
	assert.Equal(t, 0, Interval{Start: at(10, 0), End: at(10, 0).Add(59 * time.Second)}.DurationMinutes())
}

func TestParse(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)

	t.Run("wire layout in booking zone", func(t *testing.T) {
		iv, err := Parse("01/01/2024 15:30", "01/01/2024 17:30", kolkata)
		require.NoError(t, err)
		assert.Equal(t, at(10, 0), iv.Start)
		assert.Equal(t, at(12, 0), iv.End)
	})

	t.Run("rfc3339 ignores booking zone", func(t *testing.T) {
		iv, err := Parse("2024-01-01T10:00:00Z", "2024-01-01T12:00:00Z", kolkata)
		require.NoError(t, err)
		assert.Equal(t, at(10, 0), iv.Start)
		assert.Equal(t, 120, iv.DurationMinutes())
	})

	t.Run("nil location means UTC", func(t *testing.T) {
		iv, err := Parse("01/01/2024 10:00", "01/01/2024 12:00", nil)
		require.NoError(t, err)
		assert.Equal(t, at(10, 0), iv.Start)
	})

	t.Run("unparseable endpoint", func(t *testing.T) {
		_, err := Parse("tomorrow", "01/01/2024 12:00", nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("empty endpoint", func(t *testing.T) {
		_, err := Parse("01/01/2024 10:00", " ", nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("reversed endpoints", func(t *testing.T) {
		_, err := Parse("01/01/2024 12:00", "01/01/2024 10:00", nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})
}

func TestComplement(t *testing.T) {
	busy := []Interval{
		{Start: at(14, 0), End: at(15, 0)},
		{Start: at(10, 0), End: at(12, 0)},
		{Start: at(11, 0), End: at(12, 30)},
		{Start: at(7, 0), End: at(9, 0)},
	}

	free := Complement(at(8, 0), at(16, 0), busy)

	assert.Equal(t, []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(12, 30), End: at(14, 0)},
		{Start: at(15, 0), End: at(16, 0)},
	}, free)
}

func TestComplement_EdgeCases(t *testing.T) {
	assert.Equal(t, []Interval{{Start: at(8, 0), End: at(10, 0)}}, Complement(at(8, 0), at(10, 0), nil))
	assert.Empty(t, Complement(at(8, 0), at(10, 0), []Interval{{Start: at(7, 0), End: at(11, 0)}}))
	assert.Empty(t, Complement(at(10, 0), at(8, 0), nil))
}
