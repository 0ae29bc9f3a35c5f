package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"zivara/internal/availability"
	"zivara/internal/events"
	"zivara/internal/reservations/service"
	"zivara/internal/reservations/validator"
	"zivara/internal/testutil"
	"zivara/internal/testutil/memstore"
	"zivara/pkg/logger"
	"zivara/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	router   *httprouter.Router
	category *model.RoomCategory
	rooms    []*model.Room
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := testutil.Config()
	store := memstore.New()
	category, rooms := store.AddCategory("Deluxe", 15000, "101", "102")
	v := validator.NewReservationValidator(cfg.Log)

	svc := service.NewReservationService(service.Dependencies{
		Tx:         store,
		Categories: store.Categories(),
		Rooms:      store.Rooms(),
		Bookings:   store.Bookings(),
		Nights:     store.RoomNights(),
		Resolver:   availability.NewResolver(store.Categories(), store.Rooms(), store.Bookings(), cfg),
		Validator:  v,
		Publisher:  &events.Recorder{},
		Clock:      testutil.Now,
	}, cfg)

	router := httprouter.New()
	NewReservationHandler(svc, v, logger.Discard()).RegisterRoutes(router)
	return &env{router: router, category: category, rooms: rooms}
}

type response struct {
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	TotalCount int64           `json:"total_count"`
}

func (e *env) do(t *testing.T, method, path, guestID, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if guestID != "" {
		req.Header.Set("X-Guest-ID", guestID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func (e *env) reservationBody(roomIDs ...string) string {
	ids, _ := json.Marshal(roomIDs)
	return `{"category_id":"` + e.category.ID + `","check_in":"2024-07-10","check_out":"2024-07-12",` +
		`"room_ids":` + string(ids) + `,"expected_total":` + map[int]string{0: "35400", 1: "35400", 2: "70800"}[len(roomIDs)] + `,` +
		`"contact":{"full_name":"Ada Guest","email":"ada@example.com","phone":"555-010-2030"}}`
}

func TestBookingLifecycle(t *testing.T) {
	e := newEnv(t)

	status, resp := e.do(t, http.MethodPost, "/api/v1/quotes", "",
		`{"category_id":"`+e.category.ID+`","check_in":"2024-07-10","check_out":"2024-07-12","room_count":1}`)
	require.Equal(t, http.StatusOK, status)
	var quote struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &quote))
	assert.Equal(t, int64(35400), quote.Total)

	status, resp = e.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", e.reservationBody(e.rooms[0].ID))
	require.Equal(t, http.StatusCreated, status)
	var booking model.Booking
	require.NoError(t, json.Unmarshal(resp.Data, &booking))
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, "5550102030", booking.Contact.Phone)

	status, _ = e.do(t, http.MethodGet, "/api/v1/bookings/"+booking.ID, "guest-1", "")
	assert.Equal(t, http.StatusOK, status)

	status, resp = e.do(t, http.MethodGet, "/api/v1/bookings/"+booking.ID, "guest-2", "")
	assert.Equal(t, http.StatusNotFound, status, "other guests cannot see the booking")
	assert.Equal(t, "NOT_FOUND", resp.Code)

	status, resp = e.do(t, http.MethodGet, "/api/v1/guests/me/bookings?limit=5", "guest-1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), resp.TotalCount)

	status, _ = e.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/cancel", "guest-2", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = e.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/cancel", "guest-1", "")
	require.Equal(t, http.StatusOK, status)
	var cancelled model.Booking
	require.NoError(t, json.Unmarshal(resp.Data, &cancelled))
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, service.DefaultCancelReason, cancelled.CancelReason)

	status, resp = e.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/cancel", "guest-1", `{"reason":"changed plans"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_BOOKING_STATE", resp.Code)
}

func TestCreateBookingErrors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name       string
		guestID    string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing guest", "", e.reservationBody(e.rooms[0].ID), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed body", "guest-1", `{"room_ids":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"empty body", "guest-1", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"empty selection", "guest-1", e.reservationBody(), http.StatusUnprocessableEntity, "EMPTY_SELECTION"},
		{"stale price", "guest-1", strings.Replace(e.reservationBody(e.rooms[0].ID), "35400", "30000", 1), http.StatusConflict, "PRICE_CHANGED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := e.do(t, http.MethodPost, "/api/v1/bookings", tt.guestID, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestCreateBooking_SecondGuestGetsConflict(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", e.reservationBody(e.rooms[0].ID))
	require.Equal(t, http.StatusCreated, status)

	status, resp := e.do(t, http.MethodPost, "/api/v1/bookings", "guest-2", e.reservationBody(e.rooms[0].ID))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AVAILABILITY_CONFLICT", resp.Code)
}

func TestReady(t *testing.T) {
	router := httprouter.New()
	NewHealthHandler(map[string]Check{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}, logger.Discard()).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"mongo": "ok", "redis": "error"}, body.Dependencies)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
