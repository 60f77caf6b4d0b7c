package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/essaygrade/internal/store"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"corrections":[]}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockText(`not json at all`),
	)

	resp1, err := mock.Generate(context.Background(), UserPrompt("sys", "first"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text() != `{"corrections":[]}` {
		t.Fatalf("unexpected content %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	// Raw-text mode hands back whatever the model said.
	resp2, err := mock.Generate(context.Background(), UserPrompt("sys", "second"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp2.Text() != "not json at all" {
		t.Fatalf("unexpected content %s", resp2.Content)
	}
}

func TestMockProvider_Truncated(t *testing.T) {
	mock := NewMockProvider(MockTruncated(`{"corrections":[{"original":"teh"`), MockTruncated(`{"a":`))

	resp, err := mock.Generate(context.Background(), UserPrompt("", "essay"))
	if err != nil {
		t.Fatalf("raw text truncation should not error: %v", err)
	}
	if !resp.Truncated() {
		t.Error("expected Truncated() to be true")
	}

	req := UserPrompt("", "essay")
	req.Schema = &Schema{Name: "truncated-test", Definition: map[string]any{"type": "object"}}
	_, err = mock.Generate(context.Background(), req)
	var mt *ErrMaxTokensExceeded
	if !errors.As(err, &mt) {
		t.Fatalf("expected ErrMaxTokensExceeded for schema request, got %v", err)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(MockText(`{}`))
	_, _ = mock.Generate(context.Background(), UserPrompt("sys", "hello"))

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" || mock.Calls[0].Messages[0].Content != "hello" {
		t.Fatalf("unexpected recorded call %+v", mock.Calls[0])
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{RetryAfter: time.Second}})

	_, err := mock.Generate(context.Background(), Request{})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, PurposeEssayAnalysis)
	if p := PurposeFrom(ctx); p != PurposeEssayAnalysis {
		t.Fatalf("expected %q, got %q", PurposeEssayAnalysis, p)
	}
}

// slowProvider blocks until its context is done.
type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowProvider) ModelID() string { return "slow" }

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(slowProvider{}, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not bound the call")
	}
	if p.ModelID() != "slow" {
		t.Errorf("ModelID = %q", p.ModelID())
	}
}

func TestWithTimeout_PassesThroughFastCalls(t *testing.T) {
	p := WithTimeout(NewMockProvider(MockText("ok")), time.Second)
	resp, err := p.Generate(context.Background(), Request{})
	if err != nil || resp.Text() != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}

	if WithTimeout(slowProvider{}, 0) != (slowProvider{}) {
		t.Error("zero timeout should return the provider unchanged")
	}
}

type fakeEventRepo struct {
	store.EventRepo
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (f *fakeEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, data)
	return f.err
}

func TestWithLogging_RecordsEvents(t *testing.T) {
	repo := &fakeEventRepo{}
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"corrections":[]}`), Usage: Usage{InputTokens: 7, OutputTokens: 3}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("boom")}},
	)
	p := WithLogging(mock, repo, "mock")
	ctx := WithPurpose(context.Background(), PurposeEssayAnalysis)

	if _, err := p.Generate(ctx, UserPrompt("be strict", "the essay")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Generate(ctx, UserPrompt("be strict", "the essay")); err == nil {
		t.Fatal("expected error to pass through")
	}

	if len(repo.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(repo.events))
	}
	ok, failed := repo.events[0], repo.events[1]
	if !ok.Success || ok.Purpose != PurposeEssayAnalysis || ok.InputTokens != 7 || ok.Provider != "mock" {
		t.Errorf("unexpected success event %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "[system]\nbe strict") || !strings.Contains(ok.RequestBody, "[user]\nthe essay") {
		t.Errorf("request body not captured: %q", ok.RequestBody)
	}
	if ok.ResponseBody != `{"corrections":[]}` {
		t.Errorf("response body = %q", ok.ResponseBody)
	}
	if failed.Success || !strings.Contains(failed.ErrorMessage, "boom") {
		t.Errorf("unexpected failure event %+v", failed)
	}
}

func TestWithLogging_RepoFailureDoesNotFailRequest(t *testing.T) {
	repo := &fakeEventRepo{err: errors.New("db locked")}
	p := WithLogging(NewMockProvider(MockText("ok")), repo, "mock")
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("logging failure leaked into request: %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Provider: ProviderNone}, nil); err == nil {
		t.Error("expected error for disabled provider")
	}
	if _, err := NewProvider(context.Background(), Config{Provider: "anthropic"}, nil); err == nil {
		t.Error("expected error for missing key")
	}
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, nil)
	if err != nil || p.ModelID() != "mock" {
		t.Fatalf("mock provider = %v, %v", p, err)
	}

	cfg := DefaultConfig()
	cfg.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	p, err = NewProvider(context.Background(), cfg, &fakeEventRepo{})
	if err != nil {
		t.Fatalf("openai provider: %v", err)
	}
	if _, ok := p.(*TimeoutProvider); !ok {
		t.Errorf("expected timeout wrapper, got %T", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"anthropic without key", Config{Provider: "anthropic"}, "ESSAYGRADE_ANTHROPIC_API_KEY"},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}, ""},
		{"openai without key", Config{Provider: "openai"}, "ESSAYGRADE_OPENAI_API_KEY"},
		{"openrouter without key", Config{Provider: "openrouter"}, "ESSAYGRADE_OPENROUTER_API_KEY"},
		{"gemini with key", Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "k"}}, ""},
		{"mock needs no key", Config{Provider: "mock"}, ""},
		{"none is valid", Config{Provider: ProviderNone}, ""},
		{"unknown provider", Config{Provider: "unknown"}, "unknown LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestConfig_Discover(t *testing.T) {
	clearKeyEnv(t)

	if _, ok := DefaultConfig().Discover(); ok {
		t.Fatal("discovered a provider with no keys set")
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENROUTER_API_KEY", "sk-or")
	cfg, ok := DefaultConfig().Discover()
	if !ok || cfg.Provider != "anthropic" || cfg.Anthropic.APIKey != "sk-ant" {
		t.Fatalf("expected anthropic to win over openrouter, got %+v", cfg)
	}

	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, _ = DefaultConfig().Discover()
	if cfg.Provider != "gemini" {
		t.Errorf("expected gemini first, got %s", cfg.Provider)
	}

	explicit := Config{Provider: "mock"}
	cfg, ok = explicit.Discover()
	if !ok || cfg.Provider != "mock" {
		t.Errorf("explicit provider overridden: %+v", cfg)
	}
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("gpt-4o-mini")
	if c == nil {
		t.Fatal("expected pricing for gpt-4o-mini")
	}
	if got := c.Cost(1_000_000, 1_000_000); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("cost = %v, want 0.75", got)
	}
	if LookupCost("openai/gpt-4o-mini") == nil {
		t.Error("expected vendor-prefixed lookup to fall back")
	}
	if LookupCost("no-such-model") != nil {
		t.Error("expected nil for unknown model")
	}
}

func TestLookupCostAnthropicDefaults(t *testing.T) {
	tests := []struct {
		model string
		in    float64
	}{
		{DefaultConfig().Anthropic.Model, 1},
		{"claude-haiku-4-5-20251001", 1},
		{"claude-opus-4-1-20250805", 15},
		{"claude-opus-4-5-20251101", 5},
	}
	for _, tt := range tests {
		c := LookupCost(resolveModel(tt.model, anthropicModels))
		if c == nil {
			t.Errorf("%s: no pricing", tt.model)
			continue
		}
		if c.InputPerMTok != tt.in {
			t.Errorf("%s: input = %v, want %v", tt.model, c.InputPerMTok, tt.in)
		}
	}
}
