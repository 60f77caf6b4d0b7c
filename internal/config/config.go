// Package config gathers every tunable of the grader from command-line
// flags, ESSAYGRADE_* environment variables and an optional JSON file, in
// that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterbourgon/ff/v3"

	"github.com/abhisek/essaygrade/internal/analysis"
	"github.com/abhisek/essaygrade/internal/calibration"
	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
	"github.com/abhisek/essaygrade/internal/inference"
	"github.com/abhisek/essaygrade/internal/llm"
	"github.com/abhisek/essaygrade/internal/proficiency"
)

// EnvPrefix prefixes every environment variable, e.g. ESSAYGRADE_BACKEND_URL.
const EnvPrefix = "ESSAYGRADE"

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the resolved configuration.
type Config struct {
	ConfigFile string
	DBPath     string
	LogLevel   string
	LogFormat  string

	// MinWords is the shortest essay accepted for grading.
	MinWords   int
	ScalerPath string
	StartLevel string

	WeaknessThreshold float64

	Features    features.Bound
	Inference   inference.Config
	LLM         llm.Config
	Analysis    analysis.Config
	Calibration calibration.Policy
	Proficiency proficiency.Policy
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:          "info",
		LogFormat:         FormatText,
		MinWords:          20,
		StartLevel:        string(essay.Beginner),
		WeaknessThreshold: calibration.DefaultWeaknessThreshold,
		Features:          features.DefaultBound(),
		Inference:         inference.DefaultConfig(),
		LLM:               llm.DefaultConfig(),
		Analysis:          analysis.DefaultConfig(),
		Calibration:       calibration.DefaultPolicy(),
		Proficiency:       proficiency.DefaultPolicy(),
	}
}

// register binds every field to a flag on fs with the current values as
// defaults.
func (c *Config) register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "JSON config file (optional)")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "database path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "text or json")

	fs.IntVar(&c.MinWords, "min-words", c.MinWords, "shortest essay accepted")
	fs.StringVar(&c.StartLevel, "start-level", c.StartLevel, "level assigned to new learners")
	fs.Float64Var(&c.WeaknessThreshold, "weakness-threshold", c.WeaknessThreshold, "sub-scores below this count as weaknesses")

	fs.Float64Var(&c.Features.Lo, "feature-min", c.Features.Lo, "lower clamp for feature values")
	fs.Float64Var(&c.Features.Hi, "feature-max", c.Features.Hi, "upper clamp for feature values")

	fs.StringVar(&c.Inference.Endpoint, "backend-url", c.Inference.Endpoint, "scoring backend URL; empty always uses the fallback")
	fs.DurationVar(&c.Inference.Timeout, "backend-timeout", c.Inference.Timeout, "scoring backend timeout")
	fs.StringVar(&c.ScalerPath, "scaler", c.ScalerPath, "feature standardisation parameters (JSON)")
	fs.Float64Var(&c.Inference.FallbackMin, "fallback-min", c.Inference.FallbackMin, "lowest fallback sub-score")
	fs.Float64Var(&c.Inference.FallbackMax, "fallback-max", c.Inference.FallbackMax, "highest fallback sub-score")
	fs.Float64Var(&c.Inference.FallbackConfidence, "fallback-confidence", c.Inference.FallbackConfidence, "confidence reported for fallback scores")
	fs.IntVar(&c.Inference.Breaker.FailureThreshold, "breaker-failures", c.Inference.Breaker.FailureThreshold, "consecutive failures that open the circuit")
	fs.DurationVar(&c.Inference.Breaker.RecoveryTimeout, "breaker-recovery", c.Inference.Breaker.RecoveryTimeout, "time before an open circuit lets a probe through")

	fs.StringVar(&c.LLM.Provider, "llm-provider", c.LLM.Provider, "anthropic, openai, gemini, openrouter, mock or none")
	fs.DurationVar(&c.LLM.Timeout, "llm-timeout", c.LLM.Timeout, "language model request timeout")
	fs.StringVar(&c.LLM.Anthropic.APIKey, "anthropic-api-key", c.LLM.Anthropic.APIKey, "Anthropic API key")
	fs.StringVar(&c.LLM.Anthropic.Model, "anthropic-model", c.LLM.Anthropic.Model, "Anthropic model")
	fs.StringVar(&c.LLM.Anthropic.BaseURL, "anthropic-base-url", c.LLM.Anthropic.BaseURL, "Anthropic API base URL")
	fs.StringVar(&c.LLM.OpenAI.APIKey, "openai-api-key", c.LLM.OpenAI.APIKey, "OpenAI API key")
	fs.StringVar(&c.LLM.OpenAI.Model, "openai-model", c.LLM.OpenAI.Model, "OpenAI model")
	fs.StringVar(&c.LLM.OpenAI.BaseURL, "openai-base-url", c.LLM.OpenAI.BaseURL, "OpenAI-compatible base URL")
	fs.StringVar(&c.LLM.Gemini.APIKey, "gemini-api-key", c.LLM.Gemini.APIKey, "Gemini API key")
	fs.StringVar(&c.LLM.Gemini.Model, "gemini-model", c.LLM.Gemini.Model, "Gemini model")
	fs.StringVar(&c.LLM.OpenRouter.APIKey, "openrouter-api-key", c.LLM.OpenRouter.APIKey, "OpenRouter API key")
	fs.StringVar(&c.LLM.OpenRouter.Model, "openrouter-model", c.LLM.OpenRouter.Model, "OpenRouter model")

	fs.IntVar(&c.Analysis.MaxChars, "analysis-max-chars", c.Analysis.MaxChars, "essay characters sent to the language model")
	fs.IntVar(&c.Analysis.MaxTokens, "analysis-max-tokens", c.Analysis.MaxTokens, "completion token limit")
	fs.Float64Var(&c.Analysis.Temperature, "analysis-temperature", c.Analysis.Temperature, "sampling temperature")
	fs.BoolVar(&c.Analysis.Structured, "analysis-structured", c.Analysis.Structured, "request the provider's native JSON output")

	fs.IntVar(&c.Calibration.LengthBonusWords, "length-bonus-words", c.Calibration.LengthBonusWords, "word count that earns the length bonus")
	fs.IntVar(&c.Calibration.PositionTolerance, "position-tolerance", c.Calibration.PositionTolerance, "position distance under which findings are duplicates")

	fs.IntVar(&c.Proficiency.WindowSize, "window-size", c.Proficiency.WindowSize, "recent scores kept per learner")
	fs.IntVar(&c.Proficiency.PromoteStreak, "promote-streak", c.Proficiency.PromoteStreak, "scores above the band needed to promote")
	fs.IntVar(&c.Proficiency.DemoteStreak, "demote-streak", c.Proficiency.DemoteStreak, "scores below the band needed to demote")
	fs.DurationVar(&c.Proficiency.WarningExpiry, "warning-expiry", c.Proficiency.WarningExpiry, "how long a warning suppresses repeats")
}

// Load parses args, then the environment, then the config file named by
// -config. A missing config file is not an error.
func Load(args []string) (Config, error) {
	c := Default()
	fs := flag.NewFlagSet("essaygrade", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.register(fs)

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.JSONParser),
		ff.WithAllowMissingConfigFile(true),
	)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	// An explicit provider, "none" included, is never overridden by
	// discovery. ff sets env and file values through fs.Set, so Visit
	// sees them too.
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "llm-provider" {
			explicit = true
		}
	})
	if !explicit {
		c.LLM, _ = c.LLM.Discover()
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Names lists every configuration key, for help output.
func Names() []string {
	c := Default()
	fs := flag.NewFlagSet("essaygrade", flag.ContinueOnError)
	c.register(fs)
	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, f.Name) })
	return names
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != FormatText && c.LogFormat != FormatJSON {
		errs = append(errs, fmt.Errorf("log format %q must be %s or %s", c.LogFormat, FormatText, FormatJSON))
	}
	if _, err := essay.ParseLevel(c.StartLevel); err != nil {
		errs = append(errs, err)
	}
	if c.MinWords < 0 {
		errs = append(errs, fmt.Errorf("min-words must not be negative"))
	}
	if c.WeaknessThreshold < 0 || c.WeaknessThreshold > 1 {
		errs = append(errs, fmt.Errorf("weakness-threshold %v outside [0,1]", c.WeaknessThreshold))
	}
	if err := c.Features.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Calibration.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("calibration: %w", err))
	}
	if err := c.Proficiency.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("proficiency: %w", err))
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
