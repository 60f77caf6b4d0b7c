package calibration

import (
	"fmt"
	"math"

	"github.com/abhisek/essaygrade/internal/essay"
)

// Cap limits a sub-score once an error density is exceeded.
type Cap struct {
	Density float64 // errors per 100 words, exclusive
	Max     float64
}

// Band maps quality [QLo,QHi) linearly onto score [SLo,SHi).
type Band struct {
	QLo, QHi float64
	SLo, SHi float64
}

// GradeCut is the lowest score that earns Letter.
type GradeCut struct {
	Min    int
	Letter string
}

// UncertaintyStep applies Points when OCR confidence is at least MinConfidence.
type UncertaintyStep struct {
	MinConfidence float64
	Points        int
}

// Policy is the full set of calibration constants.
type Policy struct {
	Floor, Ceiling float64

	Weights essay.QualityScores

	// Caps are checked in order; the first whose density is exceeded applies.
	GrammarCaps  []Cap
	SpellingCaps []Cap

	Bands []Band

	GrammarSteps    []int
	GrammarPenalty  float64
	SpellingSteps   []int
	SpellingPenalty float64

	LengthBonusWords int
	LengthBonus      float64
	StructureBonus   float64

	Grades []GradeCut

	DefaultUncertainty int
	Uncertainty        []UncertaintyStep
	WorstUncertainty   int

	// PositionTolerance merges duplicate findings whose positions differ by at most this much.
	PositionTolerance int
}

// DefaultPolicy returns the standard calibration table.
func DefaultPolicy() Policy {
	return Policy{
		Floor:   40,
		Ceiling: 98,
		Weights: essay.QualityScores{
			Content:      0.30,
			Grammar:      0.25,
			Organization: 0.20,
			Style:        0.15,
			Mechanics:    0.10,
		},
		GrammarCaps:  []Cap{{5, 0.40}, {3, 0.50}, {1, 0.60}},
		SpellingCaps: []Cap{{8, 0.50}, {5, 0.60}, {2, 0.70}},
		Bands: []Band{
			{0.00, 0.45, 40, 55},
			{0.45, 0.55, 55, 65},
			{0.55, 0.65, 65, 74},
			{0.65, 0.75, 74, 82},
			{0.75, 0.85, 82, 90},
			{0.85, 1.00, 90, 98},
		},
		GrammarSteps:     []int{3, 6, 10},
		GrammarPenalty:   2,
		SpellingSteps:    []int{3, 6, 10},
		SpellingPenalty:  1,
		LengthBonusWords: 250,
		LengthBonus:      2,
		StructureBonus:   2,
		Grades: []GradeCut{
			{90, "A"}, {85, "B+"}, {80, "B"}, {75, "C+"}, {70, "C"}, {60, "D"},
		},
		DefaultUncertainty: 2,
		Uncertainty:        []UncertaintyStep{{0.95, 2}, {0.85, 3}, {0.70, 5}},
		WorstUncertainty:   8,
		PositionTolerance:  5,
	}
}

// Validate checks the table for gaps and impossible values.
func (p Policy) Validate() error {
	if p.Floor >= p.Ceiling {
		return fmt.Errorf("floor %.0f must be below ceiling %.0f", p.Floor, p.Ceiling)
	}
	sum := 0.0
	for _, d := range essay.Dimensions {
		w := p.Weights.Get(d)
		if w < 0 {
			return fmt.Errorf("weight for %s is negative", d)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights sum to %.4f, want 1", sum)
	}
	if len(p.Bands) == 0 {
		return fmt.Errorf("no score bands")
	}
	if p.Bands[0].QLo != 0 || p.Bands[len(p.Bands)-1].QHi != 1 {
		return fmt.Errorf("score bands must cover [0,1]")
	}
	for i, b := range p.Bands {
		if b.QHi <= b.QLo || b.SHi < b.SLo {
			return fmt.Errorf("band %d is inverted", i)
		}
		if i > 0 {
			prev := p.Bands[i-1]
			if prev.QHi != b.QLo || prev.SHi != b.SLo {
				return fmt.Errorf("band %d is not contiguous with band %d", i, i-1)
			}
		}
	}
	for i := 1; i < len(p.Grades); i++ {
		if p.Grades[i].Min >= p.Grades[i-1].Min {
			return fmt.Errorf("grade cuts must be strictly descending")
		}
	}
	return nil
}

func (p Policy) mapQuality(q float64) float64 {
	q = essay.Clamp01(q)
	for _, b := range p.Bands {
		if q < b.QHi {
			return b.SLo + (q-b.QLo)/(b.QHi-b.QLo)*(b.SHi-b.SLo)
		}
	}
	return p.Bands[len(p.Bands)-1].SHi
}

func capFor(caps []Cap, density float64) (float64, bool) {
	for _, c := range caps {
		if density > c.Density {
			return c.Max, true
		}
	}
	return 0, false
}

func stepPenalty(count int, steps []int, per float64) float64 {
	p := 0.0
	for _, s := range steps {
		if count >= s {
			p += per
		}
	}
	return p
}
