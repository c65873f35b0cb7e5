// Package orchestrator runs completions across the registered providers with
// priority ordering, failover, a daily spend cap and cached health verdicts.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/ai-orchestrator/internal/observability"
	"github.com/upb/ai-orchestrator/services/ledger"
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/store"
	"go.uber.org/zap"
)

const (
	// probePrompt and probeMaxTokens keep TestAllProviders as cheap as possible
	probePrompt    = "Say OK"
	probeMaxTokens = 5

	// bookkeepingTimeout bounds ledger and health writes, which run even
	// after the caller's deadline so that spend is never lost
	bookkeepingTimeout = 2 * time.Second
)

// Outcomes of Complete, stored under the "outcome" metadata key
const (
	OutcomeSuccess        = "success"
	OutcomeFailed         = "failed"
	OutcomeBudgetExceeded = "budget_exceeded"
	OutcomeNoProviders    = "no_providers"
	OutcomeCanceled       = "canceled"
)

// Outcome returns how Complete ended for result
func Outcome(result providers.CompletionResult) string {
	if outcome, ok := result.Metadata["outcome"].(string); ok {
		return outcome
	}
	if result.Success {
		return OutcomeSuccess
	}
	return OutcomeFailed
}

// Config holds orchestrator settings
type Config struct {
	// DailyCostLimit caps the day's spend; zero or less disables the cap
	DailyCostLimit float64

	// FailoverEnabled lets a failed attempt continue with the next candidate
	FailoverEnabled bool

	// SmartSelection tries the last successful provider first
	SmartSelection bool

	// HealthTTL is how long a health verdict is honoured
	HealthTTL time.Duration

	// Location decides where the ledger's day boundary falls
	Location *time.Location
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		DailyCostLimit:  10,
		FailoverEnabled: true,
		SmartSelection:  true,
		HealthTTL:       5 * time.Minute,
		Location:        time.UTC,
	}
}

// Summary is the dashboard view of the orchestrator
type Summary struct {
	ProvidersConfigured int     `json:"providers_configured"`
	ProvidersAvailable  int     `json:"providers_available"`
	DailyCostLimit      float64 `json:"daily_cost_limit"`
	LimitEnabled        bool    `json:"limit_enabled"`
	TodayCost           float64 `json:"today_cost"`
	RemainingBudget     float64 `json:"remaining_budget"`
	BestProvider        string  `json:"best_provider,omitempty"`
}

// ProviderHealth is one TestAllProviders verdict
type ProviderHealth struct {
	Identifier  string              `json:"identifier"`
	DisplayName string              `json:"display_name"`
	Model       string              `json:"model,omitempty"`
	Healthy     bool                `json:"healthy"`
	ErrorKind   providers.ErrorKind `json:"error_kind,omitempty"`
	Error       string              `json:"error,omitempty"`
	LatencyMs   int64               `json:"latency_ms"`
}

// ProviderInfo describes a registered provider and its current state
type ProviderInfo struct {
	Identifier   string                         `json:"identifier"`
	DisplayName  string                         `json:"display_name"`
	Priority     int                            `json:"priority"`
	DefaultModel string                         `json:"default_model"`
	Models       map[string]providers.ModelInfo `json:"models"`
	Configured   bool                           `json:"configured"`
	Healthy      bool                           `json:"healthy"`
	CheckedAt    *time.Time                     `json:"checked_at,omitempty"`
	LastError    string                         `json:"last_error,omitempty"`
}

// Orchestrator is safe for concurrent use. Adapters and the registry are
// read-only after construction; shared state lives in the ledger and store.
type Orchestrator struct {
	config   Config
	registry *providers.Registry
	ledger   ledger.Ledger
	health   *healthTracker
	metrics  observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator over registry. kv holds health
// verdicts; usage records spend. A nil metrics discards measurements.
func NewOrchestrator(config Config, registry *providers.Registry, usage ledger.Ledger, kv store.Store, metrics observability.Metrics, logger *zap.Logger) *Orchestrator {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.HealthTTL <= 0 {
		config.HealthTTL = DefaultConfig().HealthTTL
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	o := &Orchestrator{
		config:   config,
		registry: registry,
		ledger:   usage,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	o.health = &healthTracker{
		kv:     kv,
		ttl:    config.HealthTTL,
		now:    func() time.Time { return o.now() },
		logger: logger,
	}
	return o
}

// WithClock replaces the time source
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.config
}

// HasAvailableProvider reports whether at least one adapter is configured
func (o *Orchestrator) HasAvailableProvider() bool {
	return len(o.registry.Configured()) > 0
}

// IsOverDailyLimit reports whether today's spend meets or exceeds the cap.
// A ledger read failure is logged and treated as under the limit.
func (o *Orchestrator) IsOverDailyLimit(ctx context.Context) bool {
	if o.config.DailyCostLimit <= 0 {
		return false
	}

	usage, err := o.GetTodayUsage(ctx)
	if err != nil {
		o.logger.Warn("daily limit check skipped, usage unavailable", zap.Error(err))
		return false
	}
	return usage.Cost >= o.config.DailyCostLimit
}

// Complete runs req against the candidates in order until one succeeds.
// Failures are returned as results, never as errors.
func (o *Orchestrator) Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult {
	requestID := uuid.NewString()

	if o.IsOverDailyLimit(ctx) {
		o.logger.Warn("completion rejected, daily cost limit reached",
			zap.String("request_id", requestID),
			zap.Float64("daily_cost_limit", o.config.DailyCostLimit))
		o.metrics.RecordCompletion(OutcomeBudgetExceeded)
		return providers.CompletionResult{
			Error:     "daily AI cost limit reached",
			ErrorKind: providers.ErrorKindQuotaExceeded,
			Metadata:  map[string]interface{}{"request_id": requestID, "outcome": OutcomeBudgetExceeded},
		}
	}

	candidates := o.candidates(ctx)
	if len(candidates) == 0 {
		o.logger.Warn("completion rejected, no providers configured",
			zap.String("request_id", requestID))
		o.metrics.RecordCompletion(OutcomeNoProviders)
		return providers.CompletionResult{
			Error:     "no AI providers configured",
			ErrorKind: providers.ErrorKindUnknown,
			Metadata:  map[string]interface{}{"request_id": requestID, "outcome": OutcomeNoProviders},
		}
	}

	if !o.config.FailoverEnabled {
		candidates = candidates[:1]
	}

	var (
		attempts []providers.Attempt
		last     *providers.CompletionResult
	)

	for _, adapter := range candidates {
		if ctx.Err() != nil {
			break
		}

		result := adapter.Complete(ctx, req)
		attempts = append(attempts, o.recordAttempt(ctx, requestID, adapter, result))

		if result.Success {
			o.markHealthy(ctx, adapter.Identifier())
			o.metrics.RecordCompletion(OutcomeSuccess)
			return o.finish(result, requestID, OutcomeSuccess, attempts)
		}

		last = &result
		if ctx.Err() != nil {
			// the caller's deadline ended this attempt, not the provider
			break
		}
		o.markUnhealthy(ctx, adapter.Identifier(), result.Error)
	}

	if err := ctx.Err(); err != nil {
		o.logger.Warn("completion abandoned",
			zap.String("request_id", requestID),
			zap.Int("attempts", len(attempts)),
			zap.Error(err))
		o.metrics.RecordCompletion(OutcomeCanceled)
		result := providers.CompletionResult{
			Error:     "completion abandoned: " + err.Error(),
			ErrorKind: providers.ErrorKindUnknown,
		}
		if last != nil {
			result = *last
		}
		return o.finish(result, requestID, OutcomeCanceled, attempts)
	}

	o.logger.Error("all providers failed",
		zap.String("request_id", requestID),
		zap.Int("attempts", len(attempts)),
		zap.String("last_provider", last.Provider),
		zap.String("error_kind", string(last.ErrorKind)),
		zap.String("error", last.Error))
	o.metrics.RecordCompletion(OutcomeFailed)
	return o.finish(*last, requestID, OutcomeFailed, attempts)
}

// TestAllProviders probes every registered adapter once with a tiny prompt,
// bypassing failover. Configured adapters update health and the ledger;
// unconfigured ones are reported without a call.
func (o *Orchestrator) TestAllProviders(ctx context.Context) []ProviderHealth {
	ordered := o.registry.Ordered()
	results := make([]ProviderHealth, 0, len(ordered))

	for _, adapter := range ordered {
		verdict := ProviderHealth{
			Identifier:  adapter.Identifier(),
			DisplayName: adapter.DisplayName(),
			Model:       adapter.DefaultModel(),
		}

		if !adapter.IsConfigured() {
			verdict.Error = "not configured"
			verdict.ErrorKind = providers.ErrorKindNoAPIKey
			results = append(results, verdict)
			continue
		}

		result := adapter.Complete(ctx, providers.CompletionRequest{
			Prompt:    probePrompt,
			MaxTokens: probeMaxTokens,
		})
		o.recordAttempt(ctx, "probe", adapter, result)

		verdict.Healthy = result.Success
		verdict.LatencyMs = result.LatencyMs()
		if result.Success {
			o.markHealthy(ctx, adapter.Identifier())
		} else {
			verdict.Error = result.Error
			verdict.ErrorKind = result.ErrorKind
			o.markUnhealthy(ctx, adapter.Identifier(), result.Error)
		}

		results = append(results, verdict)
	}

	return results
}

// GetSummary reports provider availability and the remaining budget
func (o *Orchestrator) GetSummary(ctx context.Context) (Summary, error) {
	summary := Summary{
		DailyCostLimit: o.config.DailyCostLimit,
		LimitEnabled:   o.config.DailyCostLimit > 0,
	}

	for _, adapter := range o.registry.Configured() {
		summary.ProvidersConfigured++
		if !o.health.isUnhealthy(ctx, adapter.Identifier()) {
			summary.ProvidersAvailable++
		}
	}

	if candidates := o.candidates(ctx); len(candidates) > 0 {
		summary.BestProvider = candidates[0].Identifier()
	}

	usage, err := o.GetTodayUsage(ctx)
	if err != nil {
		return summary, err
	}
	summary.TodayCost = usage.Cost
	if summary.LimitEnabled && usage.Cost < o.config.DailyCostLimit {
		summary.RemainingBudget = o.config.DailyCostLimit - usage.Cost
	}

	return summary, nil
}

// GetTodayUsage returns the ledger totals for the current day
func (o *Orchestrator) GetTodayUsage(ctx context.Context) (ledger.DailyUsage, error) {
	date := ledger.DayKey(o.now(), o.config.Location)
	return o.ledger.Usage(ctx, date, o.registry.Identifiers())
}

// Providers lists every registered provider with its cached health
func (o *Orchestrator) Providers(ctx context.Context) []ProviderInfo {
	ordered := o.registry.Ordered()
	infos := make([]ProviderInfo, 0, len(ordered))

	for _, adapter := range ordered {
		info := ProviderInfo{
			Identifier:   adapter.Identifier(),
			DisplayName:  adapter.DisplayName(),
			Priority:     adapter.Priority(),
			DefaultModel: adapter.DefaultModel(),
			Models:       adapter.AvailableModels(),
			Configured:   adapter.IsConfigured(),
		}

		if info.Configured {
			info.Healthy = true
			if status, ok := o.health.status(ctx, adapter.Identifier()); ok {
				checkedAt := status.CheckedAt
				info.CheckedAt = &checkedAt
				info.Healthy = status.Healthy
				info.LastError = status.Error
			}
		}

		infos = append(infos, info)
	}

	return infos
}

// ClearHealthCache drops every health verdict
func (o *Orchestrator) ClearHealthCache(ctx context.Context) error {
	if err := o.health.clear(ctx, o.registry.Identifiers()); err != nil {
		return err
	}
	for _, id := range o.registry.Identifiers() {
		o.metrics.SetProviderHealth(id, true)
	}
	o.logger.Info("provider health cache cleared")
	return nil
}

// candidates returns configured adapters by priority with unhealthy ones
// moved to the end, then the last successful provider promoted when smart
// selection is on and it has not failed since.
func (o *Orchestrator) candidates(ctx context.Context) []providers.Adapter {
	configured := o.registry.Configured()

	healthy := make([]providers.Adapter, 0, len(configured))
	var unhealthy []providers.Adapter
	for _, adapter := range configured {
		if o.health.isUnhealthy(ctx, adapter.Identifier()) {
			unhealthy = append(unhealthy, adapter)
			continue
		}
		healthy = append(healthy, adapter)
	}

	if o.config.SmartSelection {
		if last := o.health.lastSuccess(ctx); last != "" {
			for i, adapter := range healthy {
				if adapter.Identifier() != last || i == 0 {
					continue
				}
				promoted := make([]providers.Adapter, 0, len(healthy))
				promoted = append(promoted, adapter)
				promoted = append(promoted, healthy[:i]...)
				promoted = append(promoted, healthy[i+1:]...)
				healthy = promoted
				break
			}
		}
	}

	return append(healthy, unhealthy...)
}

// recordAttempt writes the attempt to the ledger, metrics and log
func (o *Orchestrator) recordAttempt(ctx context.Context, requestID string, adapter providers.Adapter, result providers.CompletionResult) providers.Attempt {
	bctx, cancel := o.bookkeepingContext(ctx)
	defer cancel()

	date := ledger.DayKey(o.now(), o.config.Location)
	if err := o.ledger.Record(bctx, date, adapter.Identifier(), result.Cost, result.TotalTokens()); err != nil {
		o.logger.Error("failed to record usage",
			zap.String("request_id", requestID),
			zap.String("provider", adapter.Identifier()),
			zap.Error(err))
	}

	status := "success"
	if !result.Success {
		status = string(result.ErrorKind)
	}
	o.metrics.RecordAttempt(observability.AttemptLabels{
		Provider: adapter.Identifier(),
		Model:    result.Model,
		Status:   status,
	}, result.Latency, result.InputTokens, result.OutputTokens, result.Cost)

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("provider", adapter.Identifier()),
		zap.String("model", result.Model),
		zap.Int64("latency_ms", result.LatencyMs()),
		zap.Int("input_tokens", result.InputTokens),
		zap.Int("output_tokens", result.OutputTokens),
		zap.Float64("cost", result.Cost),
	}
	if result.Success {
		o.logger.Info("provider attempt succeeded", fields...)
	} else {
		fields = append(fields,
			zap.String("error_kind", string(result.ErrorKind)),
			zap.String("error", result.Error))
		o.logger.Warn("provider attempt failed", fields...)
	}

	return providers.Attempt{
		Provider:  adapter.Identifier(),
		Model:     result.Model,
		Success:   result.Success,
		ErrorKind: result.ErrorKind,
		Tokens:    result.TotalTokens(),
		Cost:      result.Cost,
		Latency:   result.Latency,
	}
}

func (o *Orchestrator) markHealthy(ctx context.Context, provider string) {
	bctx, cancel := o.bookkeepingContext(ctx)
	defer cancel()

	o.health.mark(bctx, provider, true, "")
	o.health.rememberSuccess(bctx, provider)
	o.metrics.SetProviderHealth(provider, true)
}

func (o *Orchestrator) markUnhealthy(ctx context.Context, provider, errMsg string) {
	bctx, cancel := o.bookkeepingContext(ctx)
	defer cancel()

	o.health.mark(bctx, provider, false, errMsg)
	o.metrics.SetProviderHealth(provider, false)
}

func (o *Orchestrator) bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (o *Orchestrator) finish(result providers.CompletionResult, requestID, outcome string, attempts []providers.Attempt) providers.CompletionResult {
	metadata := make(map[string]interface{}, len(result.Metadata)+3)
	for k, v := range result.Metadata {
		metadata[k] = v
	}
	metadata["request_id"] = requestID
	metadata["outcome"] = outcome
	metadata["attempts"] = len(attempts)

	result.Metadata = metadata
	result.Attempts = attempts
	return result
}
