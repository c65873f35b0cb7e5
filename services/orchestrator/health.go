package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/upb/ai-orchestrator/services/store"
	"go.uber.org/zap"
)

const lastSuccessKey = "last_success"

// HealthStatus is the cached verdict for one provider
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// healthTracker keeps short-lived health verdicts and the last successful
// provider in the shared store. Store failures are logged and treated as
// "no verdict".
type healthTracker struct {
	kv     store.Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func healthKey(provider string) string {
	return "health:" + provider
}

func (h *healthTracker) mark(ctx context.Context, provider string, healthy bool, errMsg string) {
	status := HealthStatus{
		Healthy:   healthy,
		CheckedAt: h.now(),
		Error:     errMsg,
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := h.kv.Set(ctx, healthKey(provider), string(raw), h.ttl); err != nil {
		h.logger.Warn("failed to store provider health",
			zap.String("provider", provider),
			zap.Error(err))
	}
}

// status returns the unexpired verdict for provider
func (h *healthTracker) status(ctx context.Context, provider string) (HealthStatus, bool) {
	raw, err := h.kv.Get(ctx, healthKey(provider))
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			h.logger.Warn("failed to read provider health",
				zap.String("provider", provider),
				zap.Error(err))
		}
		return HealthStatus{}, false
	}

	var status HealthStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return HealthStatus{}, false
	}
	if h.ttl > 0 && !h.now().Before(status.CheckedAt.Add(h.ttl)) {
		return HealthStatus{}, false
	}
	return status, true
}

func (h *healthTracker) isUnhealthy(ctx context.Context, provider string) bool {
	status, ok := h.status(ctx, provider)
	return ok && !status.Healthy
}

func (h *healthTracker) rememberSuccess(ctx context.Context, provider string) {
	if err := h.kv.Set(ctx, lastSuccessKey, provider, 0); err != nil {
		h.logger.Warn("failed to store last successful provider",
			zap.String("provider", provider),
			zap.Error(err))
	}
}

func (h *healthTracker) lastSuccess(ctx context.Context) string {
	provider, err := h.kv.Get(ctx, lastSuccessKey)
	if err != nil {
		return ""
	}
	return provider
}

func (h *healthTracker) clear(ctx context.Context, providers []string) error {
	if len(providers) == 0 {
		return nil
	}
	keys := make([]string, len(providers))
	for i, provider := range providers {
		keys[i] = healthKey(provider)
	}
	return h.kv.Delete(ctx, keys...)
}
