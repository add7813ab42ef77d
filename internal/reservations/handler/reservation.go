package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"carrental/internal/reservations/service"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/interval"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type IntervalBody struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CreateReservationRequest struct {
	VehicleID       string       `json:"vehicle_id"`
	Interval        IntervalBody `json:"interval"`
	DurationMinutes int          `json:"duration_minutes"`
	Amount          float64      `json:"amount"`
	DriverRequired  bool         `json:"driver_required"`
	TransactionRef  string       `json:"transaction_ref"`
}

type AvailableVehiclesRequest struct {
	VehicleIDs []string `json:"vehicle_ids"`
	From       string   `json:"from"`
	To         string   `json:"to"`
}

type AvailableVehiclesResponse struct {
	VehicleIDs []string  `json:"vehicle_ids"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

type WindowsResponse struct {
	VehicleID string              `json:"vehicle_id"`
	From      time.Time           `json:"from"`
	To        time.Time           `json:"to"`
	Intervals []interval.Interval `json:"intervals"`
}

type VehicleRateRequest struct {
	HourlyRate float64 `json:"hourly_rate"`
}

type RebuildResponse struct {
	VehicleID string `json:"vehicle_id"`
	Slots     int    `json:"slots"`
}

type ReservationHandler struct {
	booking  service.BookingService
	query    service.QueryService
	location *time.Location
	log      *logger.Logger
}

// NewReservationHandler reads zone-less "DD/MM/YYYY HH:mm" timestamps in location.
func NewReservationHandler(booking service.BookingService, query service.QueryService, location *time.Location, log *logger.Logger) *ReservationHandler {
	if location == nil {
		location = time.UTC
	}
	return &ReservationHandler{
		booking:  booking,
		query:    query,
		location: location,
		log:      log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID := httputil.RequesterID(r)
	if requesterID == "" {
		h.writeError(w, "Create", apperrors.Unauthorized("Missing "+httputil.RequesterIDHeader+" header"))
		return
	}

	var body CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	iv, err := h.parseInterval(body.Interval.From, body.Interval.To)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	reservation, err := h.booking.Book(r.Context(), &model.BookingRequest{
		VehicleID:       body.VehicleID,
		RequesterID:     requesterID,
		Interval:        iv,
		DurationMinutes: body.DurationMinutes,
		Amount:          body.Amount,
		DriverRequired:  body.DriverRequired,
		TransactionRef:  body.TransactionRef,
	})
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.query.GetReservation(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID := httputil.RequesterID(r)
	if requesterID == "" {
		h.writeError(w, "ListMine", apperrors.Unauthorized("Missing "+httputil.RequesterIDHeader+" header"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	reservations, total, err := h.query.ListByRequester(r.Context(), requesterID, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	reservations, total, err := h.query.ListAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Busy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.windows(w, r, ps, "Busy", h.query.ListBusy)
}

func (h *ReservationHandler) Free(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.windows(w, r, ps, "Free", h.query.FreeWindows)
}

func (h *ReservationHandler) windows(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	name string,
	lookup func(ctx context.Context, vehicleID string, from, to time.Time) ([]interval.Interval, error),
) {
	query := r.URL.Query()
	window, err := h.parseInterval(query.Get("from"), query.Get("to"))
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	vehicleID := ps.ByName("vehicle_id")
	intervals, err := lookup(r.Context(), vehicleID, window.Start, window.End)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WriteSuccess(w, WindowsResponse{
		VehicleID: vehicleID,
		From:      window.Start,
		To:        window.End,
		Intervals: intervals,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body AvailableVehiclesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, "Available", apperrors.InvalidInput("Invalid request body"))
		return
	}

	window, err := h.parseInterval(body.From, body.To)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	ids, err := h.query.AvailableVehicles(r.Context(), body.VehicleIDs, window.Start, window.End)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	if err := httputil.WriteSuccess(w, AvailableVehiclesResponse{
		VehicleIDs: ids,
		From:       window.Start,
		To:         window.End,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Available", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) RebuildIndex(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	vehicleID := ps.ByName("vehicle_id")

	slots, err := h.query.RebuildVehicleIndex(r.Context(), vehicleID)
	if err != nil {
		h.writeError(w, "RebuildIndex", err)
		return
	}

	if err := httputil.WriteSuccess(w, RebuildResponse{VehicleID: vehicleID, Slots: slots}); err != nil {
		h.log.Error("failed to write success response", "handler", "RebuildIndex", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) PutVehicleRate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body VehicleRateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, "PutVehicleRate", apperrors.InvalidInput("Invalid request body"))
		return
	}

	vehicle := &model.Vehicle{ID: ps.ByName("vehicle_id"), HourlyRate: body.HourlyRate}
	if err := h.query.UpsertVehicle(r.Context(), vehicle); err != nil {
		h.writeError(w, "PutVehicleRate", err)
		return
	}

	if err := httputil.WriteSuccess(w, vehicle); err != nil {
		h.log.Error("failed to write success response", "handler", "PutVehicleRate", "operation", "WriteSuccess", "error", err)
	}
}

// parseInterval reads both endpoints but leaves ordering checks to the caller,
// so an inverted booking interval is reported with the other validation errors.
func (h *ReservationHandler) parseInterval(from, to string) (interval.Interval, error) {
	start, err := interval.ParseInstant(from, h.location)
	if err != nil {
		return interval.Interval{}, apperrors.InvalidInput("Invalid 'from' timestamp, expected RFC3339 or DD/MM/YYYY HH:mm")
	}
	end, err := interval.ParseInstant(to, h.location)
	if err != nil {
		return interval.Interval{}, apperrors.InvalidInput("Invalid 'to' timestamp, expected RFC3339 or DD/MM/YYYY HH:mm")
	}
	return interval.Interval{Start: start, End: end}, nil
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.GET("/api/v1/reservations/mine", h.ListMine)

	router.GET("/api/v1/vehicles/:vehicle_id/busy", h.Busy)
	router.GET("/api/v1/vehicles/:vehicle_id/free", h.Free)
	router.POST("/api/v1/vehicles/available", h.Available)

	router.GET("/api/v1/admin/reservations", h.ListAll)
	router.PUT("/api/v1/admin/vehicles/:vehicle_id", h.PutVehicleRate)
	router.POST("/api/v1/admin/vehicles/:vehicle_id/rebuild", h.RebuildIndex)
}
