// Package essay holds the value types shared by every grading stage.
package essay

import (
	"math"

	"github.com/abhisek/essaygrade/internal/apperr"
)

// Dimension names a quality sub-score.
type Dimension string

const (
	Grammar      Dimension = "grammar"
	Content      Dimension = "content"
	Organization Dimension = "organization"
	Style        Dimension = "style"
	Mechanics    Dimension = "mechanics"
)

// Dimensions lists every quality dimension in reporting order.
var Dimensions = []Dimension{Grammar, Content, Organization, Style, Mechanics}

// QualityScores rates an essay on five independent [0,1] dimensions.
type QualityScores struct {
	Grammar      float64 `json:"grammar"`
	Content      float64 `json:"content"`
	Organization float64 `json:"organization"`
	Style        float64 `json:"style"`
	Mechanics    float64 `json:"mechanics"`
}

// Neutral returns middling scores used when nothing better is known.
func Neutral() QualityScores {
	return Uniform(0.6)
}

// Uniform returns scores with every dimension set to v.
func Uniform(v float64) QualityScores {
	return QualityScores{Grammar: v, Content: v, Organization: v, Style: v, Mechanics: v}
}

// Get returns the value for a dimension.
func (q QualityScores) Get(d Dimension) float64 {
	switch d {
	case Grammar:
		return q.Grammar
	case Content:
		return q.Content
	case Organization:
		return q.Organization
	case Style:
		return q.Style
	case Mechanics:
		return q.Mechanics
	}
	return 0
}

// Set returns a copy with dimension d replaced.
func (q QualityScores) Set(d Dimension, v float64) QualityScores {
	switch d {
	case Grammar:
		q.Grammar = v
	case Content:
		q.Content = v
	case Organization:
		q.Organization = v
	case Style:
		q.Style = v
	case Mechanics:
		q.Mechanics = v
	}
	return q
}

// Clamp forces every dimension into [0,1]. NaN becomes 0.
func (q QualityScores) Clamp() QualityScores {
	for _, d := range Dimensions {
		q = q.Set(d, Clamp01(q.Get(d)))
	}
	return q
}

// Validate fails when any dimension is not a finite number.
func (q QualityScores) Validate() error {
	for _, d := range Dimensions {
		v := q.Get(d)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.ContractViolation("quality score %s is not finite", d)
		}
	}
	return nil
}

// QualityScoresFromMap builds scores from an untyped record. A missing
// dimension is a contract violation; out-of-range values are clamped.
func QualityScoresFromMap(m map[string]float64) (QualityScores, error) {
	var q QualityScores
	for _, d := range Dimensions {
		v, ok := m[string(d)]
		if !ok {
			return QualityScores{}, apperr.ContractViolation("quality record missing %q", d)
		}
		q = q.Set(d, v)
	}
	if err := q.Validate(); err != nil {
		return QualityScores{}, err
	}
	return q.Clamp(), nil
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	return ClampRange(v, 0, 1)
}

// ClampRange clamps v into [lo,hi]. NaN maps to lo.
func ClampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
