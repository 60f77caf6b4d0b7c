// Package pipeline grades one essay end to end: feature extraction, the
// backend score and language-model analysis in parallel, calibration and
// the learner's proficiency update.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/essaygrade/internal/analysis"
	"github.com/abhisek/essaygrade/internal/apperr"
	"github.com/abhisek/essaygrade/internal/calibration"
	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
	"github.com/abhisek/essaygrade/internal/inference"
	"github.com/abhisek/essaygrade/internal/proficiency"
)

// DefaultMinWords is the shortest essay ValidateSubmission accepts.
const DefaultMinWords = 20

// Scorer produces quality scores for a feature vector and never fails.
// *inference.Gateway implements it.
type Scorer interface {
	Score(ctx context.Context, v features.Vector) inference.Result
}

// Analyst finds grammar and spelling errors and never fails.
// *analysis.Analyzer implements it.
type Analyst interface {
	Analyze(ctx context.Context, text string) analysis.Result
}

// Recorder applies a graded essay to learner state.
// *proficiency.Tracker implements it.
type Recorder interface {
	Record(ctx context.Context, learnerID string, obs proficiency.Observation) (proficiency.State, proficiency.Event, error)
}

// Submission is one essay to grade.
type Submission struct {
	// ID identifies the grading event. Resubmitting the same ID does not
	// advance the learner's state twice. Generated when empty.
	ID        string
	LearnerID string
	Text      string
	Structure *features.Structure
	// OCRConfidence is set for essays transcribed from images.
	OCRConfidence *float64
}

// ProficiencyUpdate is the learner state after recording a submission.
type ProficiencyUpdate struct {
	State proficiency.State `json:"state"`
	Event proficiency.Event `json:"event"`
}

// Outcome holds every intermediate result of one grading.
type Outcome struct {
	SubmissionID string           `json:"submission_id"`
	LearnerID    string           `json:"learner_id,omitempty"`
	GradedAt     time.Time        `json:"graded_at"`
	Vector       features.Vector  `json:"-"`
	Summary      features.Summary `json:"summary"`
	Inference    inference.Result `json:"inference"`
	Analysis     analysis.Result  `json:"analysis"`
	// Quality is the blended input to calibration.
	Quality     essay.QualityScores `json:"quality"`
	Calibration calibration.Result  `json:"calibration"`
	Weaknesses  []essay.Dimension   `json:"weaknesses"`
	Proficiency *ProficiencyUpdate  `json:"proficiency,omitempty"`
}

// Option customises a Grader.
type Option func(*Grader)

// WithAnalyzer enables the language-model analysis. Without one the
// neutral analysis is used.
func WithAnalyzer(a Analyst) Option {
	return func(g *Grader) { g.analyzer = a }
}

// WithTracker enables proficiency tracking for submissions with a learner ID.
func WithTracker(r Recorder) Option {
	return func(g *Grader) { g.tracker = r }
}

// WithWeaknessThreshold overrides calibration.DefaultWeaknessThreshold.
func WithWeaknessThreshold(th float64) Option {
	return func(g *Grader) { g.weakness = th }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Grader) { g.logger = l }
}

// WithClock replaces time.Now for GradedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Grader) { g.now = now }
}

// Grader wires the stages together. It is safe for concurrent use.
type Grader struct {
	extractor *features.Extractor
	scorer    Scorer
	engine    *calibration.Engine
	analyzer  Analyst
	tracker   Recorder
	weakness  float64
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a grader. A nil extractor or engine takes the default.
func New(extractor *features.Extractor, scorer Scorer, engine *calibration.Engine, opts ...Option) *Grader {
	if extractor == nil {
		extractor, _ = features.NewExtractor(features.DefaultBound())
	}
	if engine == nil {
		engine = calibration.Default()
	}
	g := &Grader{
		extractor: extractor,
		scorer:    scorer,
		engine:    engine,
		weakness:  calibration.DefaultWeaknessThreshold,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Grade runs the whole pipeline. Backend trouble never produces an error;
// the only failures are contract violations and proficiency persistence
// errors. On a persistence error the computed outcome is still returned.
func (g *Grader) Grade(ctx context.Context, sub Submission) (Outcome, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	out := Outcome{SubmissionID: sub.ID, LearnerID: sub.LearnerID, GradedAt: g.now()}

	out.Vector, out.Summary = g.extractor.Analyze(sub.Text, sub.Structure)
	out.Inference, out.Analysis = g.score(ctx, sub.Text, out.Vector, out.Summary)
	out.Quality = blend(out.Inference.Quality, out.Analysis)

	res, err := g.engine.Calibrate(calibration.Input{
		Quality:          out.Quality,
		GrammarFindings:  out.Analysis.Grammar,
		SpellingFindings: out.Analysis.Spelling,
		WordCount:        out.Summary.Words,
		StructurePresent: out.Summary.StructurePresent,
		OCRConfidence:    sub.OCRConfidence,
	})
	if err != nil {
		return out, fmt.Errorf("calibrate: %w", err)
	}
	out.Calibration = res
	out.Weaknesses = calibration.Weaknesses(res.AdjustedQuality, g.weakness)

	g.logger.Debug("essay graded",
		"submission", sub.ID,
		"score", res.FinalScore,
		"grade", res.Grade,
		"inference", out.Inference.Source,
		"analysis", out.Analysis.Stage)

	if g.tracker == nil || sub.LearnerID == "" {
		return out, nil
	}
	st, ev, err := g.tracker.Record(ctx, sub.LearnerID, proficiency.Observation{
		EventID:    sub.ID,
		Score:      res.FinalScore,
		Weaknesses: out.Weaknesses,
	})
	if err != nil {
		return out, fmt.Errorf("record proficiency: %w", err)
	}
	out.Proficiency = &ProficiencyUpdate{State: st, Event: ev}
	return out, nil
}

// score runs the gateway and the analysis concurrently and waits for both.
func (g *Grader) score(ctx context.Context, text string, v features.Vector, sum features.Summary) (inference.Result, analysis.Result) {
	var (
		inf inference.Result
		an  = analysis.Neutral()
	)
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		inf = g.scorer.Score(gctx, v)
		return nil
	})
	if g.analyzer != nil && sum.Words > 0 {
		grp.Go(func() error {
			an = g.analyzer.Analyze(gctx, text)
			return nil
		})
	}
	// Neither stage returns an error.
	_ = grp.Wait()
	return inf, an
}

// blend averages the grammar and mechanics sub-scores with the model's own
// scoring block when one was recovered.
func blend(q essay.QualityScores, an analysis.Result) essay.QualityScores {
	if an.Degraded() || !an.ScoresPresent {
		return q
	}
	q.Grammar = (q.Grammar + an.Scores.Grammar) / 2
	q.Mechanics = (q.Mechanics + an.Scores.Mechanics) / 2
	return q
}

// ValidateSubmission rejects empty or too-short essays before grading.
// minWords <= 0 means DefaultMinWords.
func ValidateSubmission(sub Submission, minWords int) error {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		return apperr.InvalidInput("text", "essay text is empty")
	}
	if n := len(strings.Fields(text)); n < minWords {
		return apperr.InvalidInput("text", "essay has %d words, at least %d required", n, minWords)
	}
	if sub.OCRConfidence != nil {
		c := *sub.OCRConfidence
		if c < 0 || c > 1 {
			return apperr.InvalidInput("ocr_confidence", "OCR confidence %.2f outside [0,1]", c)
		}
	}
	return nil
}
