package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"carrental/internal/reservations/availability"
	reservationserrors "carrental/internal/reservations/errors"
	"carrental/internal/reservations/repository"
	"carrental/internal/reservations/validator"
	"carrental/pkg/config"
	"carrental/pkg/db/memory"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/interval"
	"carrental/pkg/lock"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []*model.Reservation
	err       error
}

func (p *fakePublisher) ReservationCreated(_ context.Context, r *model.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, r)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type failingLedger struct {
	repository.ReservationRepository
	createErr error
}

func (l *failingLedger) Create(ctx context.Context, r *model.Reservation) error {
	return l.createErr
}

// blockingLedger parks Create until release is closed, then fails it.
type blockingLedger struct {
	repository.ReservationRepository
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLedger) Create(ctx context.Context, r *model.Reservation) error {
	close(l.entered)
	<-l.release
	return errors.New("replica lost")
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, key string) (lock.Release, error)
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (lock.Release, error) {
	return l.acquireFn(ctx, key)
}

type fixture struct {
	cfg       *config.Config
	ledger    repository.ReservationRepository
	index     *availability.MemoryIndex
	vehicles  repository.VehicleRepository
	locker    lock.Locker
	publisher *fakePublisher
	booking   BookingService
	query     QueryService
}

func newTestConfig() *config.Config {
	return &config.Config{
		MinBookingMinutes:       config.DefaultMinBookingMinutes,
		PricePolicy:             config.PricePolicyTrust,
		PriceTolerance:          config.DefaultPriceTolerance,
		DriverDailyRate:         config.DefaultDriverDailyRate,
		AvailabilityConcurrency: 4,
		Log:                     logger.Discard(),
	}
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{
		cfg:       newTestConfig(),
		ledger:    repository.NewMemoryReservationRepository(),
		index:     availability.NewMemoryIndex(),
		vehicles:  repository.NewMemoryVehicleRepository(),
		locker:    lock.NewKeyedMutex(),
		publisher: &fakePublisher{},
	}
	for _, opt := range opts {
		opt(f)
	}

	v := validator.NewReservationValidator(f.cfg.Log, f.cfg.MinBookingMinutes)
	f.booking = NewBookingService(
		f.ledger,
		f.index,
		f.locker,
		memory.NewTransactionManager(),
		NewPriceVerifier(f.vehicles, f.cfg),
		f.publisher,
		v,
		f.cfg,
	)
	f.query = NewQueryService(f.ledger, f.index, f.vehicles, f.locker, v, f.cfg)
	return f
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func request(vehicleID string, start, end time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		VehicleID:   vehicleID,
		RequesterID: "user-1",
		Interval:    interval.Interval{Start: start, End: end},
		Amount:      100,
	}
}

func TestBook_Scenarios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
	require.NoError(t, err)
	assert.Equal(t, 120, first.DurationMinutes)
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.TransactionRef, "transaction ref defaults to a generated id")

	t.Run("overlap is a slot conflict naming the existing reservation", func(t *testing.T) {
		_, err := f.booking.Book(ctx, request("V", at(11, 0), at(13, 0)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, availability.ErrSlotConflict))

		appErr := apperrors.AsAppError(err)
		assert.Equal(t, apperrors.CodeSlotConflict, appErr.Code)
		assert.Equal(t, first.ID, appErr.Details["conflicting_reservation_id"])
	})

	t.Run("touching boundary commits", func(t *testing.T) {
		r, err := f.booking.Book(ctx, request("V", at(12, 0), at(13, 0)))
		require.NoError(t, err)
		assert.Equal(t, 60, r.DurationMinutes)
	})

	t.Run("shorter than the minimum is invalid", func(t *testing.T) {
		_, err := f.booking.Book(ctx, request("V", at(10, 30), at(11, 0)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, reservationserrors.ErrInvalidInput))
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
	})

	t.Run("zero length is invalid", func(t *testing.T) {
		_, err := f.booking.Book(ctx, request("V", at(10, 0), at(10, 0)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, reservationserrors.ErrInvalidInput))
	})

	t.Run("available vehicles excludes the busy one", func(t *testing.T) {
		ids, err := f.query.AvailableVehicles(ctx, []string{"V", "W"}, at(9, 0), at(11, 0))
		require.NoError(t, err)
		assert.Equal(t, []string{"W"}, ids)
	})

	total, err := f.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "rejections leave the ledger untouched")
}

func TestBook_ValidationRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.BookingRequest)
		field  string
	}{
		{"missing vehicle", func(r *model.BookingRequest) { r.VehicleID = "  " }, "VehicleID"},
		{"missing requester", func(r *model.BookingRequest) { r.RequesterID = "" }, "RequesterID"},
		{"negative amount", func(r *model.BookingRequest) { r.Amount = -5 }, "Amount"},
		{"negative amount rounding to zero", func(r *model.BookingRequest) { r.Amount = -0.004 }, "Amount"},
		{"NaN amount", func(r *model.BookingRequest) { r.Amount = math.NaN() }, "Amount"},
		{"duration mismatch", func(r *model.BookingRequest) { r.DurationMinutes = 90 }, "DurationMinutes"},
		{"end before start", func(r *model.BookingRequest) { r.Interval.End = at(9, 0) }, "Interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request("V", at(10, 0), at(12, 0))
			tt.mutate(req)

			_, err := f.booking.Book(ctx, req)
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodeInvalidInput, appErr.Code)
			fields, ok := appErr.Details["fields"].(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
		})
	}

	busy, err := f.query.ListBusy(ctx, "V", at(0, 0), at(23, 0))
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestBook_MatchingDurationAccepted(t *testing.T) {
	f := newFixture(t)

	req := request("V", at(10, 0), at(12, 0))
	req.DurationMinutes = 120
	req.TransactionRef = "  pay_123 "

	r, err := f.booking.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pay_123", r.TransactionRef)
}

func TestBook_ConcurrentOverlappingRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			offset := time.Duration(i) * time.Minute
			_, errs[i] = f.booking.Book(ctx, request("V", at(10, 0).Add(offset), at(12, 0).Add(offset)))
		}(i)
	}
	close(start)
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperrors.HasCode(err, apperrors.CodeSlotConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	all, err := f.ledger.FindByVehicle(ctx, "V")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBook_ConcurrentDisjointRequestsAllCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(0, 0).Add(time.Duration(i) * 2 * time.Hour)
			_, errs[i] = f.booking.Book(ctx, request("V", start, start.Add(2*time.Hour)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	busy, err := f.query.ListBusy(ctx, "V", at(0, 0), at(0, 0).Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, busy, n)
}

func TestBook_LedgerFailureRollsBackTheSlot(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.ledger = &failingLedger{
			ReservationRepository: repository.NewMemoryReservationRepository(),
			createErr:             errors.New("disk full"),
		}
	})
	ctx := context.Background()

	_, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, reservationserrors.ErrStorage))
	assert.Equal(t, apperrors.CodeStorage, apperrors.AsAppError(err).Code)
	assert.NotContains(t, apperrors.AsAppError(err).Message, "disk full")

	slots, err := f.index.ListBusy(ctx, "V", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Empty(t, f.publisher.published)
}

func TestBook_UncommittedSlotIsHiddenFromReaders(t *testing.T) {
	ledger := &blockingLedger{
		ReservationRepository: repository.NewMemoryReservationRepository(),
		entered:               make(chan struct{}),
		release:               make(chan struct{}),
	}
	f := newFixture(t, func(f *fixture) { f.ledger = ledger })
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
		done <- err
	}()
	<-ledger.entered

	available, err := f.query.AvailableVehicles(ctx, []string{"V"}, at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"V"}, available)

	busy, err := f.query.ListBusy(ctx, "V", at(0, 0), at(23, 0))
	require.NoError(t, err)
	assert.Empty(t, busy)

	free, err := f.query.FreeWindows(ctx, "V", at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.Len(t, free, 1)

	err = f.index.CheckAndReserve(ctx, "V", interval.Interval{Start: at(11, 0), End: at(13, 0)}, "other")
	assert.True(t, errors.Is(err, availability.ErrSlotConflict), "a staged slot still blocks overlapping reservations")

	close(ledger.release)
	require.Error(t, <-done)

	busy, err = f.query.ListBusy(ctx, "V", at(0, 0), at(23, 0))
	require.NoError(t, err)
	assert.Empty(t, busy)
	require.NoError(t, f.index.CheckAndReserve(ctx, "V", interval.Interval{Start: at(11, 0), End: at(13, 0)}, "other"))
}

func TestBook_CommittedSlotBecomesVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
	require.NoError(t, err)

	slots, err := f.index.ListBusy(ctx, "V", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, r.ID, slots[0].ReservationID)
}

func TestBook_LockWaitTimesOut(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.locker = &fakeLocker{acquireFn: func(ctx context.Context, key string) (lock.Release, error) {
			assert.Equal(t, "vehicle:V", key)
			return nil, context.DeadlineExceeded
		}}
	})

	_, err := f.booking.Book(context.Background(), request("V", at(10, 0), at(12, 0)))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.AsAppError(err).Code)
}

func TestBook_LockBackendFailure(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.locker = &fakeLocker{acquireFn: func(ctx context.Context, key string) (lock.Release, error) {
			return nil, errors.New("redis down")
		}}
	})

	_, err := f.booking.Book(context.Background(), request("V", at(10, 0), at(12, 0)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, reservationserrors.ErrStorage))
}

func TestBook_LockReleasedOnEveryPath(t *testing.T) {
	keyed := lock.NewKeyedMutex()
	f := newFixture(t, func(f *fixture) { f.locker = keyed })
	ctx := context.Background()

	_, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
	require.NoError(t, err)
	_, err = f.booking.Book(ctx, request("V", at(11, 0), at(12, 0)))
	require.Error(t, err)

	assert.Zero(t, keyed.Len())
}

func TestBook_PublishesEventAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	r, err := f.booking.Book(context.Background(), request("V", at(10, 0), at(12, 0)))
	require.NoError(t, err, "publish failures do not fail the booking")

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, r.ID, f.publisher.published[0].ID)
}

func TestBook_PricePolicies(t *testing.T) {
	ctx := context.Background()
	seed := func(f *fixture) {
		require.NoError(t, f.vehicles.Upsert(ctx, &model.Vehicle{ID: "V", HourlyRate: 50}))
	}

	tests := []struct {
		name    string
		policy  string
		vehicle string
		amount  float64
		driver  bool
		wantErr bool
	}{
		{"strict exact", config.PricePolicyStrict, "V", 100, false, false},
		{"strict with driver", config.PricePolicyStrict, "V", 125, true, false},
		{"strict within tolerance", config.PricePolicyStrict, "V", 100.01, false, false},
		{"strict mismatch", config.PricePolicyStrict, "V", 80, false, true},
		{"strict unknown vehicle", config.PricePolicyStrict, "X", 100, false, true},
		{"warn mismatch", config.PricePolicyWarn, "V", 80, false, false},
		{"warn unknown vehicle", config.PricePolicyWarn, "X", 100, false, false},
		{"trust mismatch", config.PricePolicyTrust, "V", 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(f *fixture) { f.cfg.PricePolicy = tt.policy })
			seed(f)

			req := request(tt.vehicle, at(10, 0), at(12, 0))
			req.Amount = tt.amount
			req.DriverRequired = tt.driver

			_, err := f.booking.Book(ctx, req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, reservationserrors.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExpectedAmount(t *testing.T) {
	assert.InDelta(t, 100.0, ExpectedAmount(120, 50, false, 300), 0.001)
	assert.InDelta(t, 125.0, ExpectedAmount(120, 50, true, 300), 0.001)
	assert.InDelta(t, 300.0+1200.0, ExpectedAmount(1440, 50, true, 300), 0.001)
}

func TestQuery_BusyAndFreeWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
	require.NoError(t, err)
	_, err = f.booking.Book(ctx, request("V", at(14, 0), at(15, 0)))
	require.NoError(t, err)

	first, err := f.query.ListBusy(ctx, "V", at(8, 0), at(18, 0))
	require.NoError(t, err)
	second, err := f.query.ListBusy(ctx, "V", at(8, 0), at(18, 0))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []interval.Interval{
		{Start: at(10, 0), End: at(12, 0)},
		{Start: at(14, 0), End: at(15, 0)},
	}, first)

	free, err := f.query.FreeWindows(ctx, "V", at(8, 0), at(18, 0))
	require.NoError(t, err)
	assert.Equal(t, []interval.Interval{
		{Start: at(8, 0), End: at(10, 0)},
		{Start: at(12, 0), End: at(14, 0)},
		{Start: at(15, 0), End: at(18, 0)},
	}, free)

	_, err = f.query.ListBusy(ctx, "V", at(18, 0), at(8, 0))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestQuery_AvailableVehiclesPreservesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("car-%02d", i)
		ids = append(ids, id)
		if i%3 == 0 {
			_, err := f.booking.Book(ctx, request(id, at(10, 0), at(12, 0)))
			require.NoError(t, err)
		}
	}

	available, err := f.query.AvailableVehicles(ctx, append(ids, "car-01", " "), at(11, 0), at(13, 0))
	require.NoError(t, err)

	var want []string
	for i, id := range ids {
		if i%3 != 0 {
			want = append(want, id)
		}
	}
	assert.Equal(t, want, available)
}

func TestQuery_Reservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := request("V", at(10, 0), at(12, 0))
	mine.RequesterID = "alice"
	r, err := f.booking.Book(ctx, mine)
	require.NoError(t, err)

	theirs := request("W", at(10, 0), at(12, 0))
	theirs.RequesterID = "bob"
	_, err = f.booking.Book(ctx, theirs)
	require.NoError(t, err)

	got, err := f.query.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = f.query.GetReservation(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)

	list, total, err := f.query.ListByRequester(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)

	_, _, err = f.query.ListByRequester(ctx, "", 10, 0)
	require.Error(t, err)

	all, total, err := f.query.ListAll(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)
}

func TestQuery_RebuildVehicleIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.booking.Book(ctx, request("V", at(10, 0), at(12, 0)))
	require.NoError(t, err)

	require.NoError(t, f.index.Rebuild(ctx, "V", nil))
	busy, err := f.query.ListBusy(ctx, "V", at(0, 0), at(23, 0))
	require.NoError(t, err)
	require.Empty(t, busy)

	n, err := f.query.RebuildVehicleIndex(ctx, "V")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.booking.Book(ctx, request("V", at(11, 0), at(13, 0)))
	require.Error(t, err)
	assert.Equal(t, r.ID, apperrors.AsAppError(err).Details["conflicting_reservation_id"])
}

func TestQuery_UpsertVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.query.UpsertVehicle(ctx, &model.Vehicle{ID: " V ", HourlyRate: 49.999}))

	v, err := f.vehicles.FindByID(ctx, "V")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v.HourlyRate, 0.0001)
	assert.False(t, v.UpdatedAt.IsZero())

	err = f.query.UpsertVehicle(ctx, &model.Vehicle{ID: "bad id!", HourlyRate: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}
