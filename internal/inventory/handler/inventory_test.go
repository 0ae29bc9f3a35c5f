package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"zivara/internal/availability"
	"zivara/internal/inventory/service"
	"zivara/internal/testutil"
	"zivara/internal/testutil/memstore"
	"zivara/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*httprouter.Router, string) {
	t.Helper()
	cfg := testutil.Config()
	store := memstore.New()
	category, _ := store.AddCategory("Deluxe", 15000, "201", "202")
	resolver := availability.NewResolver(store.Categories(), store.Rooms(), store.Bookings(), cfg)
	svc := service.NewInventoryService(store, store.Categories(), store.Rooms(), resolver, cfg)

	router := httprouter.New()
	NewInventoryHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router, category.ID
}

func TestCategoryAvailabilityRoute(t *testing.T) {
	router, categoryID := newRouter(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"available", "/api/v1/categories/" + categoryID + "/availability?check_in=2024-07-10&check_out=2024-07-12", http.StatusOK, ""},
		{"unknown category", "/api/v1/categories/missing/availability?check_in=2024-07-10&check_out=2024-07-12", http.StatusNotFound, "NOT_FOUND"},
		{"empty stay", "/api/v1/categories/" + categoryID + "/availability?check_in=2024-07-10&check_out=2024-07-10", http.StatusUnprocessableEntity, "INVALID_INTERVAL"},
		{"missing dates", "/api/v1/categories/" + categoryID + "/availability", http.StatusUnprocessableEntity, "INVALID_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
				return
			}
			data := body["data"].(map[string]any)
			assert.Len(t, data["rooms"], 2)
		})
	}
}

func TestListCategoriesRoute(t *testing.T) {
	router, _ := newRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []struct {
			Name       string `json:"name"`
			TotalRooms int    `json:"total_rooms"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Deluxe", body.Data[0].Name)
	assert.Equal(t, 2, body.Data[0].TotalRooms)
}
