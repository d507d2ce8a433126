package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bit-backend/application/services"
	"bit-backend/domain/clientlog"
	"bit-backend/interfaces/http/rest/middleware"
	appErrors "bit-backend/pkg/errors"
)

const (
	maxClientLogBody    = 1 << 20
	defaultRecentWindow = 15 * time.Minute
)

// ClientLogHandler accepts log entries posted by clients
type ClientLogHandler struct {
	service      *services.ClientLogService
	errorHandler *appErrors.ErrorHandler
	logger       *zap.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(service *services.ClientLogService, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// Routes mounts the client log endpoints on r
func (h *ClientLogHandler) Routes(r chi.Router) {
	r.Post("/", h.Submit)
	r.Get("/", h.Recent)
}

// SubmitResponse lists the ids assigned to the accepted entries
type SubmitResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

// ClientLogResponse is one stored client log record
type ClientLogResponse struct {
	ID         string          `json:"id"`
	Level      clientlog.Level `json:"level"`
	ClientIP   string          `json:"clientIp"`
	UserAgent  string          `json:"userAgent"`
	RequestID  string          `json:"requestId"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Entry      clientlog.Entry `json:"entry"`
}

// Submit handles POST /api/client-logs with a JSON array of entries
func (h *ClientLogHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClientLogBody)

	var entries []clientlog.Entry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	records, err := h.service.Submit(r.Context(), entries, services.ClientMetadata{
		ClientIP:  middleware.ClientIPKey(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	RespondJSON(w, http.StatusAccepted, SubmitResponse{Accepted: len(records), IDs: ids})
}

// Recent handles GET /api/client-logs?window=15m&limit=50
func (h *ClientLogHandler) Recent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	window := defaultRecentWindow
	if raw := q.Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.errorHandler.Handle(w, r, appErrors.NewValidationError("invalid window: "+raw))
			return
		}
		window = d
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errorHandler.Handle(w, r, appErrors.NewValidationError("invalid limit: "+raw))
			return
		}
		limit = n
	}

	records, err := h.service.Recent(r.Context(), window, limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]ClientLogResponse, 0, len(records))
	for _, record := range records {
		response = append(response, ClientLogResponse{
			ID:         record.ID,
			Level:      record.Level,
			ClientIP:   record.ClientIP,
			UserAgent:  record.UserAgent,
			RequestID:  record.RequestID,
			ReceivedAt: record.ReceivedAt,
			Entry:      record.Entry,
		})
	}
	RespondJSON(w, http.StatusOK, response)
}
