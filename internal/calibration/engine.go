// Package calibration turns quality sub-scores and error findings into a
// final 0-100 score, a letter grade and an uncertainty range.
package calibration

import (
	"math"

	"github.com/abhisek/essaygrade/internal/apperr"
	"github.com/abhisek/essaygrade/internal/essay"
)

// Input is everything the engine needs for one essay.
type Input struct {
	Quality          essay.QualityScores
	GrammarFindings  []essay.ErrorFinding
	SpellingFindings []essay.ErrorFinding
	WordCount        int
	StructurePresent bool
	// OCRConfidence is nil for typed submissions.
	OCRConfidence *float64
}

// Result is the calibrated grade.
type Result struct {
	FinalScore       int                 `json:"final_score"`
	Grade            string              `json:"grade"`
	UncertaintyRange int                 `json:"uncertainty_range"`
	AdjustedQuality  essay.QualityScores `json:"adjusted_quality"`

	Base            float64 `json:"base"`
	Penalty         float64 `json:"penalty"`
	WeightedQuality float64 `json:"weighted_quality"`
	GrammarErrors   int     `json:"grammar_errors"`
	SpellingErrors  int     `json:"spelling_errors"`
	GrammarDensity  float64 `json:"grammar_density"`
	SpellingDensity float64 `json:"spelling_density"`
}

// Engine applies a Policy. It holds no mutable state.
type Engine struct {
	policy Policy
}

// NewEngine validates p and returns an engine.
func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(err, "invalid calibration policy")
	}
	return &Engine{policy: p}, nil
}

// Default returns an engine with DefaultPolicy.
func Default() *Engine {
	return &Engine{policy: DefaultPolicy()}
}

// Calibrate grades one essay. The only error is a contract violation for
// non-finite quality scores.
func (e *Engine) Calibrate(in Input) (Result, error) {
	if err := in.Quality.Validate(); err != nil {
		return Result{}, err
	}
	p := e.policy
	uncertainty := p.uncertainty(in.OCRConfidence)

	if in.WordCount <= 0 {
		final := int(math.Round(p.Floor))
		return Result{
			FinalScore:       final,
			Grade:            p.grade(final),
			UncertaintyRange: uncertainty,
			Base:             p.Floor,
		}, nil
	}

	grammar := Dedup(in.GrammarFindings, p.PositionTolerance)
	spelling := Dedup(in.SpellingFindings, p.PositionTolerance)
	words := float64(in.WordCount)
	gd := float64(len(grammar)) / words * 100
	sd := float64(len(spelling)) / words * 100

	q := in.Quality.Clamp()
	if len(grammar) > 0 {
		if c, ok := capFor(p.GrammarCaps, gd); ok {
			q.Grammar = math.Min(q.Grammar, c)
		}
	}
	if len(spelling) > 0 {
		if c, ok := capFor(p.SpellingCaps, sd); ok {
			q.Mechanics = math.Min(q.Mechanics, c)
		}
	}

	weighted := 0.0
	for _, d := range essay.Dimensions {
		weighted += q.Get(d) * p.Weights.Get(d)
	}
	base := p.mapQuality(weighted)

	penalty := stepPenalty(len(grammar), p.GrammarSteps, p.GrammarPenalty) +
		stepPenalty(len(spelling), p.SpellingSteps, p.SpellingPenalty)
	if p.LengthBonusWords > 0 && in.WordCount >= p.LengthBonusWords {
		penalty -= p.LengthBonus
	}
	if in.StructurePresent {
		penalty -= p.StructureBonus
	}

	final := int(math.Round(essay.ClampRange(base-penalty, p.Floor, p.Ceiling)))
	return Result{
		FinalScore:       final,
		Grade:            p.grade(final),
		UncertaintyRange: uncertainty,
		AdjustedQuality:  q,
		Base:             base,
		Penalty:          penalty,
		WeightedQuality:  weighted,
		GrammarErrors:    len(grammar),
		SpellingErrors:   len(spelling),
		GrammarDensity:   gd,
		SpellingDensity:  sd,
	}, nil
}

// Grade maps a final score to a letter with the default cut-offs.
func Grade(score int) string {
	return DefaultPolicy().grade(score)
}

func (p Policy) grade(score int) string {
	for _, g := range p.Grades {
		if score >= g.Min {
			return g.Letter
		}
	}
	return "F"
}

func (p Policy) uncertainty(conf *float64) int {
	if conf == nil {
		return p.DefaultUncertainty
	}
	c := *conf
	if math.IsNaN(c) {
		return p.WorstUncertainty
	}
	for _, s := range p.Uncertainty {
		if c >= s.MinConfidence {
			return s.Points
		}
	}
	return p.WorstUncertainty
}

// Dedup drops findings that repeat an earlier one: same original and
// correction ignoring case, and positions within tolerance. An unknown
// position (-1) matches any position.
func Dedup(fs []essay.ErrorFinding, tolerance int) []essay.ErrorFinding {
	if len(fs) == 0 {
		return nil
	}
	seen := make(map[string][]int, len(fs))
	out := make([]essay.ErrorFinding, 0, len(fs))
	for _, f := range fs {
		k := f.Key()
		dup := false
		for _, pos := range seen[k] {
			if pos < 0 || f.Position < 0 || abs(pos-f.Position) <= tolerance {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[k] = append(seen[k], f.Position)
		out = append(out, f)
	}
	return out
}

// DefaultWeaknessThreshold marks a sub-score as a weakness.
const DefaultWeaknessThreshold = 0.6

// Weaknesses lists the dimensions of q below threshold, in reporting order.
func Weaknesses(q essay.QualityScores, threshold float64) []essay.Dimension {
	var out []essay.Dimension
	for _, d := range essay.Dimensions {
		if q.Get(d) < threshold {
			out = append(out, d)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
