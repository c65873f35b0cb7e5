package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/upb/ai-orchestrator/services"
	"github.com/upb/ai-orchestrator/services/ledger"
	"github.com/upb/ai-orchestrator/services/orchestrator"
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/utils"
	"go.uber.org/zap"
)

// CompletionRequest is the body of POST /api/v1/ai/completions
type CompletionRequest struct {
	Prompt       string   `json:"prompt" validate:"required,max=32000"`
	SystemPrompt string   `json:"system_prompt,omitempty" validate:"max=8000"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    int      `json:"max_tokens,omitempty" validate:"omitempty,gt=0,lte=8192"`
}

// CompletionResponse is a successful orchestrated completion
type CompletionResponse struct {
	RequestID    string            `json:"request_id"`
	Content      string            `json:"content"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	InputTokens  int               `json:"input_tokens"`
	OutputTokens int               `json:"output_tokens"`
	TotalTokens  int               `json:"total_tokens"`
	Cost         float64           `json:"cost"`
	LatencyMs    int64             `json:"latency_ms"`
	Attempts     []AttemptResponse `json:"attempts"`
}

// AttemptResponse is one adapter call made while serving a completion
type AttemptResponse struct {
	Provider  string              `json:"provider"`
	Model     string              `json:"model,omitempty"`
	Success   bool                `json:"success"`
	ErrorKind providers.ErrorKind `json:"error_kind,omitempty"`
	Tokens    int                 `json:"tokens"`
	Cost      float64             `json:"cost"`
	LatencyMs int64               `json:"latency_ms"`
}

// Orchestrator is the part of the orchestrator exposed over HTTP
type Orchestrator interface {
	Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult
	TestAllProviders(ctx context.Context) []orchestrator.ProviderHealth
	GetSummary(ctx context.Context) (orchestrator.Summary, error)
	GetTodayUsage(ctx context.Context) (ledger.DailyUsage, error)
	Providers(ctx context.Context) []orchestrator.ProviderInfo
	ClearHealthCache(ctx context.Context) error
}

// AIHandler serves completions and orchestrator administration
type AIHandler struct {
	orchestrator Orchestrator
	logger       *zap.Logger
}

// NewAIHandler creates a new AIHandler
func NewAIHandler(orch Orchestrator, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		orchestrator: orch,
		logger:       logger,
	}
}

// HandleCompletion handles POST /api/v1/ai/completions
func (h *AIHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	var body CompletionRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.logger.Warn("failed to parse completion request",
			zap.String("http_request_id", reqID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result := h.orchestrator.Complete(ctx, providers.CompletionRequest{
		Prompt:       body.Prompt,
		SystemPrompt: body.SystemPrompt,
		Model:        body.Model,
		Temperature:  body.Temperature,
		MaxTokens:    body.MaxTokens,
	})

	if err := CompletionError(result); err != nil {
		h.logger.Warn("completion failed",
			zap.String("http_request_id", reqID),
			zap.String("outcome", orchestrator.Outcome(result)),
			zap.String("error_kind", string(result.ErrorKind)),
			zap.String("error", result.Error))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, newCompletionResponse(result)); err != nil {
		h.logger.Error("failed to write completion response", zap.Error(err))
	}
}

// HandleSummary handles GET /api/v1/ai/summary
func (h *AIHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.orchestrator.GetSummary(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to build summary", err), h.logger)
		return
	}
	_ = utils.WriteOK(w, summary)
}

// HandleUsage handles GET /api/v1/ai/usage
func (h *AIHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.orchestrator.GetTodayUsage(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to read usage", err), h.logger)
		return
	}
	_ = utils.WriteOK(w, usage)
}

// HandleListProviders handles GET /api/v1/ai/providers
func (h *AIHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.orchestrator.Providers(r.Context()))
}

// HandleTestProviders handles POST /api/v1/ai/providers/test
func (h *AIHandler) HandleTestProviders(w http.ResponseWriter, r *http.Request) {
	results := h.orchestrator.TestAllProviders(r.Context())

	healthy := 0
	for _, res := range results {
		if res.Healthy {
			healthy++
		}
	}
	h.logger.Info("provider probe finished",
		zap.Int("providers", len(results)),
		zap.Int("healthy", healthy))

	_ = utils.WriteOK(w, results)
}

// HandleClearHealth handles DELETE /api/v1/ai/health
func (h *AIHandler) HandleClearHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.ClearHealthCache(r.Context()); err != nil {
		HandleServiceError(w, services.WrapInternal("failed to clear health cache", err), h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func newCompletionResponse(result providers.CompletionResult) CompletionResponse {
	resp := CompletionResponse{
		Content:      result.Content,
		Provider:     result.Provider,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens(),
		Cost:         result.Cost,
		LatencyMs:    result.LatencyMs(),
		Attempts:     make([]AttemptResponse, 0, len(result.Attempts)),
	}
	if id, ok := result.Metadata["request_id"].(string); ok {
		resp.RequestID = id
	}
	for _, a := range result.Attempts {
		resp.Attempts = append(resp.Attempts, AttemptResponse{
			Provider:  a.Provider,
			Model:     a.Model,
			Success:   a.Success,
			ErrorKind: a.ErrorKind,
			Tokens:    a.Tokens,
			Cost:      a.Cost,
			LatencyMs: a.Latency.Milliseconds(),
		})
	}
	return resp
}
