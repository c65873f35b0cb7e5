package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-orchestrator/services/ledger"
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/groq"
	"github.com/upb/ai-orchestrator/services/providers/openai"
	"github.com/upb/ai-orchestrator/services/store"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	orch   *Orchestrator
	kv     *store.MemoryStore
	ledger *ledger.KVLedger
	clock  *time.Time
}

func newTestEnv(t *testing.T, config Config, adapters ...providers.Adapter) *testEnv {
	t.Helper()

	registry := providers.NewRegistry()
	for _, adapter := range adapters {
		require.NoError(t, registry.Register(adapter))
	}

	kv := store.NewMemoryStore()
	usage := ledger.NewKVLedger(kv, 0)
	now := testNow

	env := &testEnv{kv: kv, ledger: usage, clock: &now}
	env.orch = NewOrchestrator(config, registry, usage, kv, nil, zap.NewNop()).
		WithClock(func() time.Time { return *env.clock })
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func (e *testEnv) today() string {
	return ledger.DayKey(*e.clock, time.UTC)
}

func attemptedProviders(result providers.CompletionResult) []string {
	ids := make([]string, 0, len(result.Attempts))
	for _, attempt := range result.Attempts {
		ids = append(ids, attempt.Provider)
	}
	return ids
}

func chatServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOrchestrator_GroqEndToEnd(t *testing.T) {
	var calls int32
	server := chatServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"Hello!"}}],"usage":{"prompt_tokens":5,"completion_tokens":2}}`, &calls)

	adapter := groq.NewAdapter(providers.ProviderConfig{APIKey: "gsk-test", BaseURL: server.URL, Priority: 5})
	env := newTestEnv(t, DefaultConfig(), adapter)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "Say hello"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Hello!", result.Content)
	assert.Equal(t, "groq", result.Provider)
	assert.Equal(t, 5, result.InputTokens)
	assert.Equal(t, 2, result.OutputTokens)
	assert.InDelta(t, 7.0/1000*0.00005, result.Cost, 1e-15)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotEmpty(t, result.Metadata["request_id"])

	usage, err := env.orch.GetTodayUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Requests)
	assert.Equal(t, int64(7), usage.Tokens)
	assert.InDelta(t, result.Cost, usage.Cost, 1e-15)
}

func TestOrchestrator_FailoverOnRateLimit(t *testing.T) {
	var firstCalls, secondCalls int32
	limited := chatServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, &firstCalls)
	healthy := chatServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"From the backup"}}],"usage":{"prompt_tokens":4,"completion_tokens":3}}`, &secondCalls)

	first := groq.NewAdapter(providers.ProviderConfig{APIKey: "gsk-test", BaseURL: limited.URL})
	second := openai.NewAdapter(providers.ProviderConfig{APIKey: "sk-test", BaseURL: healthy.URL})
	env := newTestEnv(t, DefaultConfig(), first, second)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "From the backup", result.Content)
	assert.Equal(t, []string{"groq", "openai"}, attemptedProviders(result))
	assert.Equal(t, providers.ErrorKindRateLimitExceeded, result.Attempts[0].ErrorKind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&firstCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondCalls))

	assert.True(t, env.orch.health.isUnhealthy(context.Background(), "groq"))
	assert.False(t, env.orch.health.isUnhealthy(context.Background(), "openai"))
}

func TestOrchestrator_FailoverThroughThreeProviders(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k").QueueFailure(providers.ErrorKindServerError, "down")
	b := providers.NewMockAdapter("b", 2, "k").QueueFailure(providers.ErrorKindInvalidRequest, "bad")
	c := providers.NewMockAdapter("c", 3, "k").QueueSuccess("third time lucky", 20, 10)
	env := newTestEnv(t, DefaultConfig(), c, b, a)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	require.True(t, result.Success)
	assert.Equal(t, "c", result.Provider)
	require.Len(t, result.Attempts, 3)
	assert.Equal(t, []string{"a", "b", "c"}, attemptedProviders(result))
	assert.False(t, result.Attempts[0].Success)
	assert.False(t, result.Attempts[1].Success)
	assert.True(t, result.Attempts[2].Success)
	assert.Equal(t, 3, result.Metadata["attempts"])

	for _, mock := range []*providers.MockAdapter{a, b, c} {
		assert.Equal(t, 1, mock.Calls(), mock.Identifier())
	}

	usage, err := env.orch.GetTodayUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Requests)
	assert.Equal(t, int64(30), usage.Tokens)
}

func TestOrchestrator_AllFailReturnsLastFailure(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k").QueueFailure(providers.ErrorKindServerError, "down")
	b := providers.NewMockAdapter("b", 2, "k").QueueFailure(providers.ErrorKindInvalidAPIKey, "bad key")
	env := newTestEnv(t, DefaultConfig(), a, b)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, "b", result.Provider)
	assert.Equal(t, providers.ErrorKindInvalidAPIKey, result.ErrorKind)
	assert.Contains(t, result.Error, "bad key")
	assert.Len(t, result.Attempts, 2)
}

func TestOrchestrator_ModelOverrideOnlyReachesItsProvider(t *testing.T) {
	var openaiCalls, groqCalls int32
	var groqModel atomic.Value
	failing := chatServer(t, http.StatusInternalServerError,
		`{"error":{"message":"The server had an error","type":"server_error"}}`, &openaiCalls)
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&groqCalls, 1)
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		groqModel.Store(body.Model)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"fallback"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	t.Cleanup(backup.Close)

	first := openai.NewAdapter(providers.ProviderConfig{APIKey: "sk-test", BaseURL: failing.URL, Priority: 1})
	second := groq.NewAdapter(providers.ProviderConfig{APIKey: "gsk-test", BaseURL: backup.URL, Priority: 2})
	env := newTestEnv(t, DefaultConfig(), first, second)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi", Model: "gpt-4o"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "groq", result.Provider)
	assert.Equal(t, []string{"openai", "groq"}, attemptedProviders(result))
	assert.Equal(t, "gpt-4o", result.Attempts[0].Model)
	assert.Equal(t, second.DefaultModel(), groqModel.Load())
	assert.Equal(t, second.DefaultModel(), result.Model)
	assert.Equal(t, int32(1), atomic.LoadInt32(&groqCalls))
	assert.False(t, env.orch.health.isUnhealthy(context.Background(), "groq"))
	assert.True(t, env.orch.health.isUnhealthy(context.Background(), "openai"))
}

func TestOrchestrator_DailyLimitShortCircuit(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k")
	b := providers.NewMockAdapter("b", 2, "k")
	config := DefaultConfig()
	config.DailyCostLimit = 5
	env := newTestEnv(t, config, a, b)

	require.NoError(t, env.ledger.Record(context.Background(), env.today(), "a", 3, 0))
	require.NoError(t, env.ledger.Record(context.Background(), env.today(), "b", 2, 0))

	assert.True(t, env.orch.IsOverDailyLimit(context.Background()))

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, providers.ErrorKindQuotaExceeded, result.ErrorKind)
	assert.Equal(t, OutcomeBudgetExceeded, Outcome(result))
	assert.Empty(t, result.Attempts)
	assert.Equal(t, 0, a.Calls())
	assert.Equal(t, 0, b.Calls())

	t.Run("new day resets the budget", func(t *testing.T) {
		env.advance(24 * time.Hour)
		assert.False(t, env.orch.IsOverDailyLimit(context.Background()))

		result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})
		assert.True(t, result.Success)
	})
}

func TestOrchestrator_DailyLimitDisabled(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k")
	config := DefaultConfig()
	config.DailyCostLimit = 0
	env := newTestEnv(t, config, a)

	require.NoError(t, env.ledger.Record(context.Background(), env.today(), "a", 1000, 0))

	assert.False(t, env.orch.IsOverDailyLimit(context.Background()))
	assert.True(t, env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"}).Success)
}

type failingLedger struct{}

func (failingLedger) Record(context.Context, string, string, float64, int) error {
	return errors.New("ledger offline")
}

func (failingLedger) Usage(context.Context, string, []string) (ledger.DailyUsage, error) {
	return ledger.DailyUsage{}, errors.New("ledger offline")
}

func TestOrchestrator_LedgerFailuresDoNotBlockCompletions(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k")
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(a))

	orch := NewOrchestrator(DefaultConfig(), registry, failingLedger{}, store.NewMemoryStore(), nil, zap.NewNop())

	assert.False(t, orch.IsOverDailyLimit(context.Background()))

	result := orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})
	assert.True(t, result.Success)

	_, err := orch.GetSummary(context.Background())
	assert.Error(t, err)
}

func TestOrchestrator_SmartSelection(t *testing.T) {
	t.Run("last successful provider goes first", func(t *testing.T) {
		a := providers.NewMockAdapter("a", 1, "k")
		b := providers.NewMockAdapter("b", 2, "k")
		env := newTestEnv(t, DefaultConfig(), a, b)
		env.orch.health.rememberSuccess(context.Background(), "b")

		result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

		require.True(t, result.Success)
		assert.Equal(t, "b", result.Provider)
		assert.Equal(t, 0, a.Calls())
		assert.Equal(t, 1, b.Calls())
	})

	t.Run("disabled keeps priority order", func(t *testing.T) {
		a := providers.NewMockAdapter("a", 1, "k")
		b := providers.NewMockAdapter("b", 2, "k")
		config := DefaultConfig()
		config.SmartSelection = false
		env := newTestEnv(t, config, a, b)
		env.orch.health.rememberSuccess(context.Background(), "b")

		result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

		assert.Equal(t, "a", result.Provider)
		assert.Equal(t, 0, b.Calls())
	})

	t.Run("success is remembered", func(t *testing.T) {
		a := providers.NewMockAdapter("a", 1, "k").QueueFailure(providers.ErrorKindServerError, "down").QueueSuccess("back", 1, 1)
		b := providers.NewMockAdapter("b", 2, "k")
		env := newTestEnv(t, DefaultConfig(), a, b)

		first := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})
		require.Equal(t, "b", first.Provider)

		// a is unhealthy and b is remembered, so b stays in front
		second := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})
		assert.Equal(t, []string{"b"}, attemptedProviders(second))
	})

	t.Run("unconfigured last success is ignored", func(t *testing.T) {
		a := providers.NewMockAdapter("a", 1, "k")
		b := providers.NewMockAdapter("b", 2, "")
		env := newTestEnv(t, DefaultConfig(), a, b)
		env.orch.health.rememberSuccess(context.Background(), "b")

		result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

		assert.Equal(t, "a", result.Provider)
	})
}

func TestOrchestrator_HealthDeprioritization(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k")
	b := providers.NewMockAdapter("b", 2, "k").QueueFailure(providers.ErrorKindServerError, "down")
	config := DefaultConfig()
	config.HealthTTL = time.Minute
	env := newTestEnv(t, config, a, b)
	ctx := context.Background()

	env.orch.health.mark(ctx, "a", false, "rate limited")

	result := env.orch.Complete(ctx, providers.CompletionRequest{Prompt: "hi"})

	require.True(t, result.Success)
	assert.Equal(t, []string{"b", "a"}, attemptedProviders(result), "unhealthy provider tried last and succeeds as last resort")
	assert.False(t, env.orch.health.isUnhealthy(ctx, "a"))
	assert.True(t, env.orch.health.isUnhealthy(ctx, "b"))

	t.Run("verdict expires", func(t *testing.T) {
		env.advance(time.Minute)
		assert.False(t, env.orch.health.isUnhealthy(ctx, "b"))
	})
}

func TestOrchestrator_UnconfiguredProvidersExcluded(t *testing.T) {
	missing := providers.NewMockAdapter("missing", 1, "")
	ready := providers.NewMockAdapter("ready", 2, "k")
	env := newTestEnv(t, DefaultConfig(), missing, ready)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	require.True(t, result.Success)
	assert.Equal(t, []string{"ready"}, attemptedProviders(result))
	assert.Equal(t, 0, missing.Calls())
	_, known := env.orch.health.status(context.Background(), "missing")
	assert.False(t, known)
}

func TestOrchestrator_NoProviders(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), providers.NewMockAdapter("missing", 1, ""))

	assert.False(t, env.orch.HasAvailableProvider())

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, providers.ErrorKindUnknown, result.ErrorKind)
	assert.Equal(t, "no AI providers configured", result.Error)
	assert.Equal(t, OutcomeNoProviders, Outcome(result))
}

func TestOrchestrator_FailoverDisabled(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k").QueueFailure(providers.ErrorKindServerError, "down")
	b := providers.NewMockAdapter("b", 2, "k")
	config := DefaultConfig()
	config.FailoverEnabled = false
	env := newTestEnv(t, config, a, b)

	result := env.orch.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, providers.ErrorKindServerError, result.ErrorKind)
	assert.Equal(t, OutcomeFailed, Outcome(result))
	assert.Equal(t, 0, b.Calls())
}

func TestOrchestrator_DeadlineStopsFailover(t *testing.T) {
	t.Run("expires mid-loop", func(t *testing.T) {
		slow := providers.NewMockAdapter("slow", 1, "k")
		slow.SetDelay(time.Second)
		next := providers.NewMockAdapter("next", 2, "k")
		env := newTestEnv(t, DefaultConfig(), slow, next)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		result := env.orch.Complete(ctx, providers.CompletionRequest{Prompt: "hi"})

		assert.False(t, result.Success)
		assert.Equal(t, "slow", result.Provider)
		assert.Contains(t, result.Error, "timed out")
		assert.Equal(t, OutcomeCanceled, Outcome(result))
		assert.Equal(t, 1, result.Metadata["attempts"])
		assert.Equal(t, 0, next.Calls())

		// the deadline is the caller's, so slow keeps its standing
		assert.False(t, env.orch.health.isUnhealthy(context.Background(), "slow"))
		_, checked := env.orch.health.status(context.Background(), "slow")
		assert.False(t, checked)

		// the failed attempt still reaches the ledger
		usage, err := env.orch.GetTodayUsage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), usage.Requests)
	})

	t.Run("already canceled", func(t *testing.T) {
		a := providers.NewMockAdapter("a", 1, "k")
		env := newTestEnv(t, DefaultConfig(), a)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := env.orch.Complete(ctx, providers.CompletionRequest{Prompt: "hi"})

		assert.False(t, result.Success)
		assert.Equal(t, providers.ErrorKindUnknown, result.ErrorKind)
		assert.Contains(t, result.Error, "context canceled")
		assert.Equal(t, OutcomeCanceled, Outcome(result))
		assert.Empty(t, result.Attempts)
		assert.Equal(t, 0, a.Calls())
	})
}

func TestOrchestrator_TestAllProviders(t *testing.T) {
	up := providers.NewMockAdapter("up", 1, "k")
	down := providers.NewMockAdapter("down", 2, "k").QueueFailure(providers.ErrorKindInvalidAPIKey, "rejected")
	missing := providers.NewMockAdapter("missing", 3, "")
	env := newTestEnv(t, DefaultConfig(), missing, down, up)
	ctx := context.Background()

	first := env.orch.TestAllProviders(ctx)
	second := env.orch.TestAllProviders(ctx)

	require.Len(t, first, 3)
	assert.Equal(t, "up", first[0].Identifier)
	assert.True(t, first[0].Healthy)
	assert.Equal(t, "down", first[1].Identifier)
	assert.False(t, first[1].Healthy)
	assert.Equal(t, providers.ErrorKindInvalidAPIKey, first[1].ErrorKind)
	assert.Equal(t, "missing", first[2].Identifier)
	assert.False(t, first[2].Healthy)
	assert.Equal(t, "not configured", first[2].Error)

	for i := range first {
		assert.Equal(t, first[i].Identifier, second[i].Identifier)
		assert.Equal(t, first[i].Healthy, second[i].Healthy)
		assert.Equal(t, first[i].Error, second[i].Error)
	}

	require.Len(t, up.Requests(), 2)
	assert.Equal(t, probePrompt, up.Requests()[0].Prompt)
	assert.Equal(t, probeMaxTokens, up.Requests()[0].MaxTokens)
	assert.Equal(t, 0, missing.Calls())

	assert.True(t, env.orch.health.isUnhealthy(ctx, "down"))
	usage, err := env.orch.GetTodayUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), usage.Requests)
}

func TestOrchestrator_SummaryAndClearHealth(t *testing.T) {
	a := providers.NewMockAdapter("a", 1, "k")
	b := providers.NewMockAdapter("b", 2, "k")
	c := providers.NewMockAdapter("c", 3, "")
	config := DefaultConfig()
	config.DailyCostLimit = 1
	env := newTestEnv(t, config, a, b, c)
	ctx := context.Background()

	require.NoError(t, env.ledger.Record(ctx, env.today(), "b", 0.25, 100))
	env.orch.health.mark(ctx, "a", false, "down")

	summary, err := env.orch.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProvidersConfigured)
	assert.Equal(t, 1, summary.ProvidersAvailable)
	assert.Equal(t, "b", summary.BestProvider)
	assert.True(t, summary.LimitEnabled)
	assert.InDelta(t, 0.25, summary.TodayCost, 1e-12)
	assert.InDelta(t, 0.75, summary.RemainingBudget, 1e-12)

	infos := env.orch.Providers(ctx)
	require.Len(t, infos, 3)
	assert.False(t, infos[0].Healthy)
	assert.Equal(t, "down", infos[0].LastError)
	assert.NotNil(t, infos[0].CheckedAt)
	assert.True(t, infos[1].Healthy)
	assert.False(t, infos[2].Configured)

	require.NoError(t, env.orch.ClearHealthCache(ctx))

	summary, err = env.orch.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProvidersAvailable)
	assert.Equal(t, "a", summary.BestProvider)
}

func TestOrchestrator_SummaryOverBudget(t *testing.T) {
	config := DefaultConfig()
	config.DailyCostLimit = 1
	env := newTestEnv(t, config, providers.NewMockAdapter("a", 1, "k"))

	require.NoError(t, env.ledger.Record(context.Background(), env.today(), "a", 2, 0))

	summary, err := env.orch.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.RemainingBudget)
}
