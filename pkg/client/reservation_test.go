package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationClient_BookSendsRequesterAndBody(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reservations", r.URL.Path)
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"r-1","vehicle_id":"car-1","duration_minutes":120,"start_time":"2024-01-01T10:00:00Z","end_time":"2024-01-01T12:00:00Z"}}`))
	}))
	defer srv.Close()

	c := NewReservationClient(srv.URL)
	resp, err := c.BookIdempotent(context.Background(), "alice", "key-1", map[string]any{"vehicle_id": "car-1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "alice", gotHeaders.Get(requesterHeader))
	assert.Equal(t, "key-1", gotHeaders.Get("Idempotency-Key"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "car-1", gotBody["vehicle_id"])

	r, err := c.DecodeReservation(resp)
	require.NoError(t, err)
	assert.Equal(t, "r-1", r.ID)
	assert.Equal(t, 120, r.DurationMinutes)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), r.StartTime)
}

func TestReservationClient_PathsAndQueries(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.RequestURI())
		_, _ = w.Write([]byte(`{"data":[{"id":"r-1"}],"total_count":7,"limit":1,"offset":2}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewReservationClient(srv.URL)

	_, err := c.Busy(ctx, "car 1", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")
	require.NoError(t, err)
	_, err = c.SetVehicleRate(ctx, "car-1", 50)
	require.NoError(t, err)
	_, err = c.RebuildIndex(ctx, "car-1")
	require.NoError(t, err)
	resp, err := c.ListAll(ctx, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET /api/v1/vehicles/car%201/busy?from=2024-01-01T00%3A00%3A00Z&to=2024-01-02T00%3A00%3A00Z",
		"PUT /api/v1/admin/vehicles/car-1",
		"POST /api/v1/admin/vehicles/car-1/rebuild",
		"GET /api/v1/admin/reservations?limit=1&offset=2",
	}, got)

	list, meta, err := c.DecodeReservations(resp)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(7), meta.TotalCount)
	assert.Equal(t, int64(2), meta.Offset)
}

func TestGetErrorMessage(t *testing.T) {
	resp := &Response{Body: []byte(`{"code":"SLOT_CONFLICT","error":"Vehicle is already reserved"}`)}
	assert.Equal(t, "Vehicle is already reserved", GetErrorMessage(resp))

	resp = &Response{Body: []byte(`{"code":"TIMEOUT"}`)}
	assert.Equal(t, "TIMEOUT", GetErrorMessage(resp))
}

func TestWaitForHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewHttpClient(srv.URL).WaitForHealthy(context.Background(), time.Second))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.Error(t, NewHttpClient(down.URL).WaitForHealthy(context.Background(), 100*time.Millisecond))
}
