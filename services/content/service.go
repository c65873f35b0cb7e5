// Package content generates maintenance and notification copy with the AI
// orchestrator, caching results and falling back to static templates.
package content

import (
	"context"
	"encoding/json"
	"time"

	"github.com/upb/ai-orchestrator/internal/observability"
	"github.com/upb/ai-orchestrator/services/providers"
	"go.uber.org/zap"
)

// Completer is the part of the orchestrator the service needs
type Completer interface {
	HasAvailableProvider() bool
	IsOverDailyLimit(ctx context.Context) bool
	Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult
}

// Config holds content generation settings
type Config struct {
	CacheTTL    time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL:    time.Hour,
		MaxTokens:   400,
		Temperature: 0.7,
	}
}

// Service produces content; it never fails for provider problems
type Service struct {
	config    Config
	completer Completer
	cache     Cache
	metrics   observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a content service. A nil metrics discards measurements.
func NewService(config Config, completer Completer, cache Cache, metrics observability.Metrics, logger *zap.Logger) *Service {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Service{
		config:    config,
		completer: completer,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate returns cached, generated or static copy for req. Only an unknown
// type or variant is an error.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	req, err := normalize(req)
	if err != nil {
		return Result{}, err
	}
	key := cacheKey(req)

	if cached, ok := s.fromCache(ctx, key); ok {
		cached.Source = SourceCache
		s.metrics.RecordContent(string(req.Type), string(SourceCache))
		return cached, nil
	}

	if !s.completer.HasAvailableProvider() {
		s.logger.Debug("no AI provider available, using template", zap.String("key", key))
		return s.template(req), nil
	}
	if s.completer.IsOverDailyLimit(ctx) {
		s.logger.Info("daily AI cost limit reached, using template", zap.String("key", key))
		return s.template(req), nil
	}

	system, user, err := buildPrompts(req)
	if err != nil {
		s.logger.Error("failed to render prompts", zap.String("key", key), zap.Error(err))
		return s.template(req), nil
	}

	temperature := s.config.Temperature
	completion := s.completer.Complete(ctx, providers.CompletionRequest{
		Prompt:       user,
		SystemPrompt: system,
		MaxTokens:    s.config.MaxTokens,
		Temperature:  &temperature,
	})
	if !completion.Success {
		s.logger.Warn("content generation failed, using template",
			zap.String("key", key),
			zap.String("error_kind", string(completion.ErrorKind)),
			zap.String("error", completion.Error))
		return s.template(req), nil
	}

	parsed, err := parseContent(completion.Content)
	if err != nil {
		s.logger.Warn("generated content rejected, using template",
			zap.String("key", key),
			zap.String("provider", completion.Provider),
			zap.Error(err))
		return s.template(req), nil
	}

	result := s.result(req, parsed, SourceAI)
	result.Provider = completion.Provider
	result.Model = completion.Model

	s.store(ctx, key, result)
	s.metrics.RecordContent(string(req.Type), string(SourceAI))
	return result, nil
}

// Invalidate drops the cached copy for one (type, variant, language)
func (s *Service) Invalidate(ctx context.Context, req Request) error {
	req, err := normalize(req)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey(req))
}

// Clear drops all cached copy
func (s *Service) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *Service) fromCache(ctx context.Context, key string) (Result, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("content cache read failed", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}

	var cached Result
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = s.cache.Delete(ctx, key)
		return Result{}, false
	}
	return cached, true
}

func (s *Service) store(ctx context.Context, key string, result Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.config.CacheTTL); err != nil {
		s.logger.Warn("content cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) template(req Request) Result {
	s.metrics.RecordContent(string(req.Type), string(SourceTemplate))
	return s.result(req, fallback(req), SourceTemplate)
}

func (s *Service) result(req Request, c Content, source Source) Result {
	return Result{
		Content:     c,
		Type:        req.Type,
		Variant:     req.Variant,
		Language:    req.Language,
		Source:      source,
		GeneratedAt: s.now().UTC(),
	}
}
