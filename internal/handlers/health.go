package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ngoconnect/apiserver/internal/services"
)

const pingTimeout = 2 * time.Second

// HealthHandler reports liveness, store connectivity and user counts.
type HealthHandler struct {
	users   *services.UserService
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

func NewHealthHandler(users *services.UserService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{users: users, started: time.Now(), now: time.Now, logger: logger}
}

// HealthRouter registers the health check and the endpoint index.
func HealthRouter(r chi.Router, h *HealthHandler) {
	r.Get("/", h.Index)
	r.Get("/api/health", h.Health)
}

type HealthStatus struct {
	Server    string    `json:"server"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

type HealthResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Status  HealthStatus   `json:"status"`
	Users   services.Stats `json:"users"`
}

// Health always answers 200 while the process is serving. A store outage
// shows up as a disconnected database and zero counts.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	resp := HealthResponse{
		Success: true,
		Message: "Server is running",
		Status: HealthStatus{
			Server:    "healthy",
			Database:  "connected",
			Timestamp: now.UTC(),
			Uptime:    now.Sub(h.started).Seconds(),
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.users.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "health check: store unreachable", "error", err)
		resp.Status.Database = "disconnected"
	} else if stats, err := h.users.Stats(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "health check: counting users failed", "error", err)
	} else {
		resp.Users = stats
	}

	writeJSON(w, http.StatusOK, resp)
}

type IndexResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Version   string         `json:"version"`
	Endpoints map[string]any `json:"endpoints"`
}

// Version is reported by the endpoint index.
var Version = "1.0.0"

// Index lists the public endpoints.
func (h *HealthHandler) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Success: true,
		Message: "NGO Connect Backend API",
		Version: Version,
		Endpoints: map[string]any{
			"auth": map[string]string{
				"register":       "POST /api/auth/register",
				"login":          "POST /api/auth/login",
				"me":             "GET /api/auth/me",
				"forgotPassword": "POST /api/auth/forgot-password",
				"resetPassword":  "POST /api/auth/reset-password",
			},
			"users": map[string]string{
				"profile":    "PUT /api/users/profile",
				"avatar":     "PUT /api/users/profile/avatar",
				"volunteers": "GET /api/users/volunteers",
				"ngos":       "GET /api/users/ngos",
			},
			"health": "GET /api/health",
		},
	})
}
