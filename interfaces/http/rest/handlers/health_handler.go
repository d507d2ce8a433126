package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bit-backend/application/ports"
)

// HealthHandler reports liveness and readiness
type HealthHandler struct {
	pages  ports.SsoPageProvider
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pages ports.SsoPageProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{pages: pages, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. The service is ready once the login page template loads.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.pages.GetSsoPage(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "sso_page": err.Error()})
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
