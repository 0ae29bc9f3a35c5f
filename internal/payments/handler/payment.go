package handler

import (
	"io"
	"net/http"

	"zivara/internal/payments/gateway"
	"zivara/internal/payments/service"
	apperrors "zivara/pkg/errors"
	httputil "zivara/pkg/http"
	"zivara/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	checkout  service.CheckoutService
	finalizer service.Finalizer
	gateway   gateway.Gateway
	log       *logger.Logger
}

func NewPaymentHandler(checkout service.CheckoutService, finalizer service.Finalizer, gw gateway.Gateway, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout:  checkout,
		finalizer: finalizer,
		gateway:   gw,
		log:       log,
	}
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	guestID, err := httputil.GuestID(r)
	if err != nil {
		h.writeError(w, "CreateIntent", err)
		return
	}

	intent, err := h.checkout.StartPayment(r.Context(), ps.ByName("id"), guestID)
	if err != nil {
		h.writeError(w, "CreateIntent", err)
		return
	}

	if err := httputil.WriteCreated(w, intent); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateIntent", "operation", "WriteCreated", "error", err)
	}
}

type webhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Webhook acknowledges every verified event that reached a decision so the
// gateway stops redelivering it. Only transient failures before the decision
// are answered with an error status.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, "Webhook", apperrors.InvalidInput("Failed to read request body"))
		return
	}

	event, err := h.gateway.ParseWebhook(payload, r.Header.Get(gateway.SignatureHeader))
	if err != nil {
		h.writeError(w, "Webhook", err)
		return
	}
	h.log.Info("Payment webhook received", "event_id", event.EventID, "type", event.EventType, "booking_id", event.BookingID)

	if !event.Handled {
		h.ack(w, webhookAck{Received: true})
		return
	}

	_, err = h.finalizer.Finalize(r.Context(), event.BookingID, event.Result)
	ack := webhookAck{Received: true, Outcome: string(event.Result.Outcome)}
	if err != nil {
		code := apperrors.AsAppError(err).Code
		switch code {
		case apperrors.CodePaymentDeclined, apperrors.CodePaymentGateway,
			apperrors.CodeInvalidBookingState, apperrors.CodeConsistency, apperrors.CodeNotFound:
			ack.Code = code
		default:
			h.writeError(w, "Webhook", err)
			return
		}
	}
	h.ack(w, ack)
}

func (h *PaymentHandler) ack(w http.ResponseWriter, ack webhookAck) {
	if err := httputil.WriteSuccess(w, ack); err != nil {
		h.log.Error("failed to write success response", "handler", "Webhook", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings/:id/payment-intent", h.CreateIntent)
}

// RegisterWebhookRoutes is kept apart from RegisterRoutes so the webhook can
// be served without guest rate limiting and idempotency.
func (h *PaymentHandler) RegisterWebhookRoutes(router *httprouter.Router) {
	router.POST("/api/v1/webhooks/stripe", h.Webhook)
}
