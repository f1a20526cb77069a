package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-now/internal/observability"
	"github.com/kjstillabower/weather-now/internal/screen"
)

// Screen is the controller surface the handlers drive.
type Screen interface {
	State() screen.State
	Refresh(ctx context.Context) screen.State
	Retry(ctx context.Context) screen.State
}

// Handler serves the weather screen over HTTP for headless use.
type Handler struct {
	screen       Screen
	logger       *zap.Logger
	startTime    time.Time
	shuttingDown atomic.Bool
}

func NewHandler(s Screen, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{screen: s, logger: logger, startTime: time.Now()}
}

// NewRouter wires the screen routes, health and metrics. limiter guards the action routes; nil disables it.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/screen", h.GetScreen).Methods(http.MethodGet)
	actions := router.PathPrefix("/screen").Subrouter()
	actions.Use(RateLimitMiddleware(limiter))
	actions.HandleFunc("/refresh", h.PostRefresh).Methods(http.MethodPost)
	actions.HandleFunc("/retry", h.PostRetry).Methods(http.MethodPost)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return router
}

// SetShuttingDown flips /health to 503 so load balancers stop routing here.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// GetScreen handles GET /screen.
func (h *Handler) GetScreen(w http.ResponseWriter, r *http.Request) {
	writeView(w, r, http.StatusOK, h.screen.State())
}

// PostRefresh handles POST /screen/refresh. It blocks until the cycle settles.
// The cycle outlives a client disconnect so joiners still get a result.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	state := h.screen.Refresh(context.WithoutCancel(r.Context()))
	writeView(w, r, http.StatusOK, state)
}

// PostRetry handles POST /screen/retry. Retry is only offered on the error screen.
func (h *Handler) PostRetry(w http.ResponseWriter, r *http.Request) {
	if h.screen.State().Phase() != screen.PhaseError {
		writeError(w, r, http.StatusConflict, "RETRY_UNAVAILABLE", "retry is only available on the error screen")
		return
	}
	state := h.screen.Retry(context.WithoutCancel(r.Context()))
	writeView(w, r, http.StatusOK, state)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.shuttingDown.Load() {
		status, code = "shutting-down", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"screen":    h.screen.State().Phase().String(),
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeView renders state as JSON, or as the plain screen text when the client asks for text/plain.
func writeView(w http.ResponseWriter, r *http.Request, status int, state screen.State) {
	view := screen.Present(state)
	if strings.Contains(r.Header.Get("Accept"), "text/plain") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(view.String() + "\n"))
		return
	}
	writeJSON(w, status, view)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
