package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"consultas-gateway/internal/cache"
	"consultas-gateway/internal/routes"
	"consultas-gateway/pkg/logging/logging"
)

// AdminHandler serves cache statistics, the bulk clear and the route listing.
type AdminHandler struct {
	Admin  *cache.Admin
	Routes routes.Table
}

func NewAdminHandler(admin *cache.Admin, table routes.Table) *AdminHandler {
	return &AdminHandler{Admin: admin, Routes: table}
}

// Stats handles GET /admin/cache/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Admin.Stats(r.Context())
	if err != nil {
		h.adminError(w, r, "admin_stats_error", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		cache.Stats
	}{Success: true, Stats: st})
}

// Clear handles DELETE /admin/cache.
func (h *AdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.Admin.Clear(r.Context())
	if err != nil {
		h.adminError(w, r, "admin_clear_error", err)
		return
	}
	logging.L(r.Context()).Info("admin_cache_cleared", zap.Int("deleted", n))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

// ListRoutes handles GET /routes.
func (h *AdminHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "routes": h.Routes})
}

func (h *AdminHandler) adminError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, cache.ErrNoStore) {
		writeError(w, http.StatusServiceUnavailable, "Caché deshabilitada", err.Error())
		return
	}
	logging.L(r.Context()).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Error al acceder al almacenamiento", err.Error())
}
