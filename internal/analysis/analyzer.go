// Package analysis asks a language model for grammar and spelling
// corrections and turns whatever comes back into error findings.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"text/template"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/llm"
	"github.com/abhisek/essaygrade/internal/repair"
)

// Config holds configuration for the analyzer.
type Config struct {
	// MaxChars bounds the essay text sent to the model, counted in runes.
	MaxChars    int     `json:"max_chars"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	// DefaultConfidence replaces a missing or non-positive correction confidence.
	DefaultConfidence float64 `json:"default_confidence"`
	// Structured asks the provider for native JSON output. Output that
	// fails validation or hits the token limit still goes to the parser.
	Structured bool `json:"structured"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars:          2000,
		MaxTokens:         2048,
		Temperature:       0.2,
		DefaultConfidence: 0.7,
	}
}

// Result is the analysis verdict for one essay.
type Result struct {
	Grammar  []essay.ErrorFinding `json:"grammar"`
	Spelling []essay.ErrorFinding `json:"spelling"`
	Style    []essay.ErrorFinding `json:"style"`
	Scores   essay.QualityScores  `json:"scores"`
	// ScoresPresent is false when Scores holds the neutral default.
	ScoresPresent bool         `json:"scores_present"`
	Stage         repair.Stage `json:"stage"`
	// InputTruncated reports that the essay exceeded MaxChars.
	InputTruncated bool   `json:"input_truncated,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Degraded reports whether nothing usable came back from the model.
func (r Result) Degraded() bool { return r.Stage == repair.StageNeutral }

// Neutral is the result used when no analysis could be made.
func Neutral() Result {
	return Result{
		Grammar:  []essay.ErrorFinding{},
		Spelling: []essay.ErrorFinding{},
		Style:    []essay.ErrorFinding{},
		Scores:   essay.Neutral(),
		Stage:    repair.StageNeutral,
	}
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithParser replaces the default repair parser.
func WithParser(p *repair.Parser) Option {
	return func(a *Analyzer) { a.parser = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// Analyzer performs LLM-based error detection. It holds no per-call state
// and is safe for concurrent use.
type Analyzer struct {
	provider llm.Provider
	cfg      Config
	parser   *repair.Parser
	logger   *slog.Logger
}

// NewAnalyzer creates an analyzer. Zero config fields take their defaults.
func NewAnalyzer(provider llm.Provider, cfg Config, opts ...Option) *Analyzer {
	def := DefaultConfig()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.DefaultConfidence <= 0 || cfg.DefaultConfidence > 1 {
		cfg.DefaultConfidence = def.DefaultConfidence
	}
	a := &Analyzer{provider: provider, cfg: cfg, parser: repair.NewParser(), logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze never fails. A provider error or an unparseable completion yields
// the neutral result with the reason in Error.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	ctx = llm.WithPurpose(ctx, llm.PurposeEssayAnalysis)

	body, cut := truncateRunes(text, a.cfg.MaxChars)
	userMsg, err := buildAnalysisMessage(body)
	if err != nil {
		return a.neutral(cut, "build prompt: "+err.Error())
	}

	req := llm.UserPrompt(systemPrompt, userMsg)
	req.MaxTokens = a.cfg.MaxTokens
	req.Temperature = a.cfg.Temperature
	if a.cfg.Structured {
		req.Schema = analysisSchema
	}

	raw, err := a.generate(ctx, req)
	if err != nil {
		a.logger.Warn("essay analysis unavailable", "error", err)
		return a.neutral(cut, err.Error())
	}

	out := a.parser.Parse(raw)
	if out.Degraded() {
		a.logger.Warn("essay analysis unparseable", "model", a.provider.ModelID(), "bytes", len(raw))
	}
	res := a.fromPayload(out)
	res.InputTruncated = cut
	return res
}

var analysisSchema = &llm.Schema{
	Name:        "essay-analysis",
	Description: "Corrections and quality scores for one essay",
	Definition:  repair.SchemaDefinition,
}

// generate returns the completion text. Structured output rejected for
// its shape or length is returned as text too, since the parser can
// usually recover most of it.
func (a *Analyzer) generate(ctx context.Context, req llm.Request) (string, error) {
	resp, err := a.provider.Generate(ctx, req)
	if err == nil {
		if resp.Truncated() {
			a.logger.Debug("essay analysis hit the token limit", "model", resp.Model)
		}
		return resp.Text(), nil
	}

	var (
		invalid   *llm.ErrInvalidResponse
		truncated *llm.ErrMaxTokensExceeded
	)
	switch {
	case errors.As(err, &invalid) && len(invalid.Content) > 0:
		a.logger.Debug("structured analysis failed validation", "error", invalid.Err)
		return string(invalid.Content), nil
	case errors.As(err, &truncated) && len(truncated.Content) > 0:
		a.logger.Debug("structured analysis hit the token limit")
		return string(truncated.Content), nil
	}
	return "", err
}

func (a *Analyzer) neutral(cut bool, reason string) Result {
	r := Neutral()
	r.InputTruncated = cut
	r.Error = reason
	return r
}

func (a *Analyzer) fromPayload(out repair.Outcome) Result {
	r := Neutral()
	r.Stage = out.Stage
	r.Scores = out.Payload.Scoring
	r.ScoresPresent = out.Payload.ScoringPresent
	for _, c := range out.Payload.Corrections {
		f := a.finding(c)
		switch f.Kind {
		case essay.KindSpelling:
			r.Spelling = append(r.Spelling, f)
		case essay.KindStyle:
			r.Style = append(r.Style, f)
		default:
			r.Grammar = append(r.Grammar, f)
		}
	}
	return r
}

func (a *Analyzer) finding(c repair.Correction) essay.ErrorFinding {
	conf := c.Confidence
	if conf <= 0 {
		conf = a.cfg.DefaultConfidence
	}
	pos := -1
	if c.SentenceNumber > 0 {
		pos = c.SentenceNumber
	}
	return essay.ErrorFinding{
		Original:   c.Original,
		Correction: c.Correction,
		Kind:       essay.ParseKind(c.Type),
		Confidence: essay.Clamp01(conf),
		Severity:   essay.ParseSeverity(c.Severity),
		Position:   pos,
		Reason:     c.Reason,
	}
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

var schemaText = func() string {
	b, err := json.MarshalIndent(repair.SchemaDefinition, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}()

var systemPrompt = `You are an experienced writing teacher marking a student essay.

Instructions:
- Find grammar, spelling, punctuation and style errors. Quote the erroneous text exactly in "original".
- Number sentences from 1 and report the sentence each error occurs in.
- Give a confidence between 0.0 and 1.0 and a severity of minor, moderate or severe.
- Rate the essay in "scoring" on grammar, content, organization, style and mechanics, each 0.0 to 1.0.
- Reply with a single JSON object and nothing else. It must match this schema:
` + schemaText

var analysisUserTemplate = template.Must(template.New("analysis").Parse(`Essay:
"""
{{.}}
"""`))

func buildAnalysisMessage(text string) (string, error) {
	var buf bytes.Buffer
	if err := analysisUserTemplate.Execute(&buf, text); err != nil {
		return "", err
	}
	return buf.String(), nil
}
