package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/upb/ai-orchestrator/utils"
	"go.uber.org/zap"
)

const (
	checkHealthy       = "healthy"
	checkUnhealthy     = "unhealthy"
	checkNotConfigured = "not_configured"
	checkNoProviders   = "none_configured"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderAvailability reports whether any AI provider is configured
type ProviderAvailability interface {
	HasAvailableProvider() bool
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        *sql.DB
	store     Pinger
	providers ProviderAvailability
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and store may be nil when
// the deployment does not use them.
func NewHealthHandler(db *sql.DB, store Pinger, providers ProviderAvailability, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		store:     store,
		providers: providers,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    checkHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
// The database and the shared store gate readiness. Missing providers are
// reported but do not fail it, since content falls back to templates.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	switch {
	case h.db == nil:
		checks["database"] = checkNotConfigured
	case h.checkDatabase(ctx) != nil:
		checks["database"] = checkUnhealthy
		ready = false
	default:
		checks["database"] = checkHealthy
	}

	switch {
	case h.store == nil:
		checks["store"] = checkNotConfigured
	default:
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("store health check failed", zap.Error(err))
			checks["store"] = checkUnhealthy
			ready = false
		} else {
			checks["store"] = checkHealthy
		}
	}

	if h.providers != nil && h.providers.HasAvailableProvider() {
		checks["providers"] = checkHealthy
	} else {
		checks["providers"] = checkNoProviders
	}

	status := checkHealthy
	httpStatus := http.StatusOK
	if !ready {
		status = checkUnhealthy
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase pings the database and runs a trivial query
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}
	return nil
}
