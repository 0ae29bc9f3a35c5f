package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"zivara/pkg/model"
)

const (
	guestIDHeader        = "X-Guest-ID"
	idempotencyKeyHeader = "Idempotency-Key"
)

// APIError is a non-2xx answer from the reservations API.
type APIError struct {
	StatusCode int
	Code       string         `json:"code"`
	Message    string         `json:"error"`
	Details    map[string]any `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

type Category struct {
	model.RoomCategory
	TotalRooms    int `json:"total_rooms"`
	BookableRooms int `json:"bookable_rooms"`
}

type Availability struct {
	CategoryID string        `json:"category_id"`
	CheckIn    string        `json:"check_in"`
	CheckOut   string        `json:"check_out"`
	Rooms      []*model.Room `json:"rooms"`
}

type Quote struct {
	CategoryID string  `json:"category_id"`
	CheckIn    string  `json:"check_in"`
	CheckOut   string  `json:"check_out"`
	Currency   string  `json:"currency"`
	Nights     int     `json:"nights"`
	RoomCount  int     `json:"room_count"`
	Rate       int64   `json:"nightly_rate"`
	TaxRate    float64 `json:"tax_rate"`
	Subtotal   int64   `json:"subtotal"`
	Tax        int64   `json:"tax"`
	Total      int64   `json:"total"`
}

type BookingPage struct {
	Bookings   []*model.Booking
	TotalCount int64
	Limit      int
	Offset     int64
}

// ReservationClient calls the reservations API on behalf of one guest.
type ReservationClient struct {
	httpClient *HttpClient
	guestID    string
}

func NewReservationClient(baseURL, guestID string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL),
		guestID:    guestID,
	}
}

// HTTP exposes the underlying client, e.g. for WaitForHealthy.
func (c *ReservationClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *ReservationClient) Categories(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	if err := c.get(ctx, "/api/v1/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *ReservationClient) Availability(ctx context.Context, categoryID, checkIn, checkOut string) (*Availability, error) {
	q := url.Values{}
	q.Set("check_in", checkIn)
	q.Set("check_out", checkOut)
	path := "/api/v1/categories/" + url.PathEscape(categoryID) + "/availability?" + q.Encode()

	var availability Availability
	if err := c.get(ctx, path, &availability); err != nil {
		return nil, err
	}
	return &availability, nil
}

func (c *ReservationClient) Quote(ctx context.Context, req *model.QuoteRequest) (*Quote, error) {
	var quote Quote
	if err := c.post(ctx, "/api/v1/quotes", req, "", &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// CreateBooking commits a reservation. A non-empty idempotencyKey makes a
// retried call return the booking created by the first one.
func (c *ReservationClient) CreateBooking(ctx context.Context, r *model.Reservation, idempotencyKey string) (*model.Booking, error) {
	var booking model.Booking
	if err := c.post(ctx, "/api/v1/bookings", r, idempotencyKey, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *ReservationClient) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	if err := c.get(ctx, "/api/v1/bookings/"+url.PathEscape(id), &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *ReservationClient) CancelBooking(ctx context.Context, id, reason string) (*model.Booking, error) {
	var booking model.Booking
	path := "/api/v1/bookings/" + url.PathEscape(id) + "/cancel"
	if err := c.post(ctx, path, &model.CancelRequest{Reason: reason}, "", &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *ReservationClient) StartPayment(ctx context.Context, bookingID string) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	path := "/api/v1/bookings/" + url.PathEscape(bookingID) + "/payment-intent"
	if err := c.post(ctx, path, nil, "", &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *ReservationClient) ListMyBookings(ctx context.Context, limit int, offset int64) (*BookingPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))

	resp, err := c.httpClient.GET(ctx, "/api/v1/guests/me/bookings?"+q.Encode(), c.headers(""))
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var wrapper struct {
		Data       []*model.Booking `json:"data"`
		TotalCount int64            `json:"total_count"`
		Limit      int              `json:"limit"`
		Offset     int64            `json:"offset"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return nil, fmt.Errorf("could not decode paginated response %s: %w", resp, err)
	}
	return &BookingPage{
		Bookings:   wrapper.Data,
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}, nil
}

func (c *ReservationClient) get(ctx context.Context, path string, target any) error {
	resp, err := c.httpClient.GET(ctx, path, c.headers(""))
	if err != nil {
		return err
	}
	return decodeData(resp, target)
}

func (c *ReservationClient) post(ctx context.Context, path string, body any, idempotencyKey string, target any) error {
	resp, err := c.httpClient.POST(ctx, path, body, c.headers(idempotencyKey))
	if err != nil {
		return err
	}
	return decodeData(resp, target)
}

func (c *ReservationClient) headers(idempotencyKey string) http.Header {
	h := make(http.Header)
	if c.guestID != "" {
		h.Set(guestIDHeader, c.guestID)
	}
	if idempotencyKey != "" {
		h.Set(idempotencyKeyHeader, idempotencyKey)
	}
	return h
}

func checkStatus(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := resp.DecodeJSON(apiErr); err != nil {
		apiErr.Message = string(resp.Body)
	}
	return apiErr
}

func decodeData(resp *Response, target any) error {
	if err := checkStatus(resp); err != nil {
		return err
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return fmt.Errorf("could not decode response wrapper %s: %w", resp, err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("could not decode response data %s: %w", resp, err)
	}
	return nil
}
