package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"carrental/pkg/model"
)

const requesterHeader = "X-Requester-ID"

// ReservationClient talks to the reservation HTTP API. It is used by
// operational tooling and end-to-end checks.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *ReservationClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *ReservationClient) Book(ctx context.Context, requesterID string, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/reservations", body, asRequester(requesterID))
}

func (c *ReservationClient) BookIdempotent(ctx context.Context, requesterID, idempotencyKey string, body any) (*Response, error) {
	headers := asRequester(requesterID)
	headers["Idempotency-Key"] = idempotencyKey
	return c.httpClient.POST(ctx, "/api/v1/reservations", body, headers)
}

func (c *ReservationClient) BookRaw(ctx context.Context, requesterID string, rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw(ctx, "/api/v1/reservations", rawBody, asRequester(requesterID))
}

func (c *ReservationClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/reservations/id/"+url.PathEscape(id), nil)
}

func (c *ReservationClient) ListMine(ctx context.Context, requesterID string, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/reservations/mine?"+pageQuery(limit, offset), asRequester(requesterID))
}

func (c *ReservationClient) ListAll(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/admin/reservations?"+pageQuery(limit, offset), nil)
}

func (c *ReservationClient) Busy(ctx context.Context, vehicleID, from, to string) (*Response, error) {
	return c.httpClient.GET(ctx, vehiclePath(vehicleID, "busy")+"?"+rangeQuery(from, to), nil)
}

func (c *ReservationClient) Free(ctx context.Context, vehicleID, from, to string) (*Response, error) {
	return c.httpClient.GET(ctx, vehiclePath(vehicleID, "free")+"?"+rangeQuery(from, to), nil)
}

func (c *ReservationClient) Available(ctx context.Context, vehicleIDs []string, from, to string) (*Response, error) {
	body := map[string]any{
		"vehicle_ids": vehicleIDs,
		"from":        from,
		"to":          to,
	}
	return c.httpClient.POST(ctx, "/api/v1/vehicles/available", body, nil)
}

func (c *ReservationClient) SetVehicleRate(ctx context.Context, vehicleID string, hourlyRate float64) (*Response, error) {
	body := map[string]float64{"hourly_rate": hourlyRate}
	return c.httpClient.PUT(ctx, "/api/v1/admin/vehicles/"+url.PathEscape(vehicleID), body, nil)
}

func (c *ReservationClient) RebuildIndex(ctx context.Context, vehicleID string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/admin/vehicles/"+url.PathEscape(vehicleID)+"/rebuild", nil, nil)
}

func (c *ReservationClient) DecodeReservation(resp *Response) (*model.Reservation, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode reservation wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var reservation model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservation); err != nil {
		return nil, fmt.Errorf("could not decode reservation json:\n%+v\n%s", resp.ToString(), err)
	}

	return &reservation, nil
}

func (c *ReservationClient) DecodeReservations(resp *Response) ([]*model.Reservation, *Metadata, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
		Metadata
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%+v\n%s", resp.ToString(), err)
	}

	var reservations []*model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservations); err != nil {
		return nil, nil, fmt.Errorf("could not decode reservation list:\n%+v\n%s", resp.ToString(), err)
	}

	metadata := wrapper.Metadata
	return reservations, &metadata, nil
}

func asRequester(requesterID string) map[string]string {
	headers := map[string]string{}
	if requesterID != "" {
		headers[requesterHeader] = requesterID
	}
	return headers
}

func vehiclePath(vehicleID, view string) string {
	return "/api/v1/vehicles/" + url.PathEscape(vehicleID) + "/" + view
}

func rangeQuery(from, to string) string {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	return q.Encode()
}

func pageQuery(limit int, offset int64) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))
	return q.Encode()
}
