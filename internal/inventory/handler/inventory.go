package handler

import (
	"net/http"

	"zivara/internal/inventory/service"
	httputil "zivara/pkg/http"
	"zivara/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type InventoryHandler struct {
	service service.InventoryService
	log     *logger.Logger
}

func NewInventoryHandler(service service.InventoryService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		log:     log,
	}
}

func (h *InventoryHandler) ListCategories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, "ListCategories", err)
		return
	}

	if err := httputil.WriteSuccess(w, categories); err != nil {
		h.log.Error("failed to write success response", "handler", "ListCategories", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) CategoryAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	view, err := h.service.CategoryAvailability(r.Context(), ps.ByName("id"), query.Get("check_in"), query.Get("check_out"))
	if err != nil {
		h.writeError(w, "CategoryAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "CategoryAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) Summary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	summary, err := h.service.Summary(r.Context(), query.Get("check_in"), query.Get("check_out"))
	if err != nil {
		h.writeError(w, "Summary", err)
		return
	}

	if err := httputil.WriteSuccess(w, summary); err != nil {
		h.log.Error("failed to write success response", "handler", "Summary", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/categories", h.ListCategories)
	router.GET("/api/v1/categories/:id/availability", h.CategoryAvailability)
	router.GET("/api/v1/availability", h.Summary)
}

func (h *InventoryHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
