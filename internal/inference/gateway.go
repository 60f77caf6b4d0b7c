// Package inference scores feature vectors with the external model backend
// and substitutes a local estimate whenever the backend cannot answer.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
)

// Source tells consumers whether a result came from the backend.
type Source string

const (
	SourceBackend  Source = "backend"
	SourceFallback Source = "fallback"
)

// MaxFallbackConfidence caps the confidence of locally estimated results.
const MaxFallbackConfidence = 0.6

// Config controls the gateway.
type Config struct {
	Endpoint           string        `json:"endpoint"`
	Timeout            time.Duration `json:"timeout"`
	FallbackMin        float64       `json:"fallback_min"`
	FallbackMax        float64       `json:"fallback_max"`
	FallbackConfidence float64       `json:"fallback_confidence"`
	Breaker            BreakerConfig `json:"breaker"`
}

// DefaultConfig returns a 10s timeout and a [0.5,0.9] fallback range.
func DefaultConfig() Config {
	return Config{
		Timeout:            10 * time.Second,
		FallbackMin:        0.5,
		FallbackMax:        0.9,
		FallbackConfidence: 0.5,
	}
}

// Result is the gateway verdict for one vector.
type Result struct {
	Quality         essay.QualityScores `json:"quality"`
	RawScore        float64             `json:"raw_score"`
	NormalizedScore float64             `json:"normalized_score"`
	Confidence      float64             `json:"confidence"`
	Source          Source              `json:"source"`
	FallbackReason  string              `json:"fallback_reason,omitempty"`
}

// Degraded reports whether the fallback produced this result.
func (r Result) Degraded() bool { return r.Source == SourceFallback }

// Option customises a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithClock injects the breaker clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// Gateway calls the scoring backend. It is safe for concurrent use.
type Gateway struct {
	cfg     Config
	scaler  *Scaler
	client  *http.Client
	breaker *Breaker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a gateway. A nil scaler means identity standardisation.
func New(cfg Config, scaler *Scaler, opts ...Option) *Gateway {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FallbackMax <= cfg.FallbackMin {
		cfg.FallbackMin, cfg.FallbackMax = def.FallbackMin, def.FallbackMax
	}
	if cfg.FallbackConfidence <= 0 || cfg.FallbackConfidence > MaxFallbackConfidence {
		cfg.FallbackConfidence = def.FallbackConfidence
	}
	if scaler == nil {
		scaler = IdentityScaler()
	}
	g := &Gateway{cfg: cfg, scaler: scaler, client: http.DefaultClient, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.breaker = NewBreaker(cfg.Breaker, g.now)
	return g
}

// BreakerState exposes the circuit state for diagnostics.
func (g *Gateway) BreakerState() BreakerState {
	return g.breaker.State()
}

var (
	errNoEndpoint  = errors.New("backend not configured")
	errCircuitOpen = errors.New("circuit open")
)

// Score never fails. Any backend problem, including cancellation of ctx,
// produces the fallback estimate instead.
func (g *Gateway) Score(ctx context.Context, v features.Vector) Result {
	if g.cfg.Endpoint == "" {
		return g.fallback(v, errNoEndpoint)
	}
	if !g.breaker.Allow() {
		return g.fallback(v, errCircuitOpen)
	}

	res, err := g.call(ctx, v)
	if err != nil {
		g.breaker.Failure()
		return g.fallback(v, err)
	}
	g.breaker.Success()
	return res
}

type scoreRequest struct {
	Features []float64 `json:"features"`
}

func (g *Gateway) call(ctx context.Context, v features.Vector) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{Features: g.scaler.Apply(v)})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return Result{}, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return parseResponse(data)
}

var requiredNumbers = []string{"score", "normalized_score", "confidence"}

func parseResponse(data []byte) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, errors.New("malformed response: invalid JSON")
	}
	for _, p := range requiredNumbers {
		if r := gjson.GetBytes(data, p); r.Type != gjson.Number {
			return Result{}, fmt.Errorf("malformed response: %s missing or not a number", p)
		}
	}

	quality := make(map[string]float64, len(essay.Dimensions))
	for _, d := range essay.Dimensions {
		r := gjson.GetBytes(data, "quality_scores."+string(d))
		if r.Type != gjson.Number {
			return Result{}, fmt.Errorf("malformed response: quality_scores.%s missing or not a number", d)
		}
		quality[string(d)] = r.Float()
	}
	q, err := essay.QualityScoresFromMap(quality)
	if err != nil {
		return Result{}, fmt.Errorf("malformed response: %w", err)
	}

	return Result{
		Quality:         q,
		RawScore:        gjson.GetBytes(data, "score").Float(),
		NormalizedScore: essay.Clamp01(gjson.GetBytes(data, "normalized_score").Float()),
		Confidence:      essay.Clamp01(gjson.GetBytes(data, "confidence").Float()),
		Source:          SourceBackend,
	}, nil
}

func (g *Gateway) fallback(v features.Vector, reason error) Result {
	q := Estimate(v, g.cfg.FallbackMin, g.cfg.FallbackMax)
	mean := 0.0
	for _, d := range essay.Dimensions {
		mean += q.Get(d)
	}
	mean /= float64(len(essay.Dimensions))

	g.logger.Warn("inference backend unavailable, using fallback estimate",
		"reason", reason.Error(),
		"breaker", g.breaker.State().String())

	return Result{
		Quality:         q,
		RawScore:        mean * 100,
		NormalizedScore: mean,
		Confidence:      g.cfg.FallbackConfidence,
		Source:          SourceFallback,
		FallbackReason:  reason.Error(),
	}
}
