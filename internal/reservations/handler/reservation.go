package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"zivara/internal/reservations/service"
	"zivara/internal/reservations/validator"
	apperrors "zivara/pkg/errors"
	httputil "zivara/pkg/http"
	"zivara/pkg/logger"
	"zivara/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes = 1 << 20

type ReservationHandler struct {
	service   service.ReservationService
	validator *validator.ReservationValidator
	log       *logger.Logger
}

func NewReservationHandler(service service.ReservationService, validator *validator.ReservationValidator, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

func (h *ReservationHandler) Quote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.QuoteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	quote, err := h.service.Quote(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	if err := httputil.WriteSuccess(w, quote); err != nil {
		h.log.Error("failed to write success response", "handler", "Quote", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	guestID, err := httputil.GuestID(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var reservation model.Reservation
	if err := decode(r, &reservation); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	reservation.GuestID = guestID

	booking, err := h.service.Commit(r.Context(), &reservation)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.ownBooking(r, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	guestID, err := httputil.GuestID(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	bookings, total, err := h.service.ListByGuest(r.Context(), guestID, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.ownBooking(r, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	var req model.CancelRequest
	if err := decodeOptional(r, &req); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	if err := h.validator.ValidateCancel(&req); err != nil {
		h.writeError(w, "Cancel", apperrors.Validation("Invalid cancel request", detailsOf(err)))
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), booking.ID, req.Reason)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, cancelled); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/quotes", h.Quote)
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/:id", h.GetByID)
	router.POST("/api/v1/bookings/:id/cancel", h.Cancel)
	router.GET("/api/v1/guests/me/bookings", h.ListMine)
}

// ownBooking hides bookings of other guests behind NOT_FOUND.
func (h *ReservationHandler) ownBooking(r *http.Request, id string) (*model.Booking, error) {
	guestID, err := httputil.GuestID(r)
	if err != nil {
		return nil, err
	}
	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != guestID {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return apperrors.InvalidInput("Invalid request body")
	}
	return nil
}

// decodeOptional accepts an empty body and leaves dst untouched.
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperrors.InvalidInput("Invalid request body")
}

func detailsOf(err error) map[string]any {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.Details()
	}
	return map[string]any{"error": err.Error()}
}
