package proficiency

import (
	"fmt"
	"time"

	"github.com/abhisek/essaygrade/internal/essay"
)

// Band holds a level's promotion and demotion thresholds.
// Promote is inclusive, Demote is exclusive.
type Band struct {
	Promote float64
	Demote  float64
}

// Policy parameterises Evaluate.
type Policy struct {
	WindowSize    int
	PromoteStreak int
	DemoteStreak  int
	Bands         map[essay.Level]Band

	WarningExpiry   time.Duration
	WeaknessCount   int
	DecliningMargin float64

	// TrendWindow is how many recent scores make the short-term average.
	TrendWindow int
	// TrendTolerance separates a steady trend from a rising or falling one.
	TrendTolerance float64

	// EventMemory is how many observation IDs are remembered for
	// duplicate detection. Never fewer than WindowSize are kept.
	EventMemory int
}

const (
	DefaultWindowSize    = 10
	DefaultPromoteStreak = 5
	DefaultDemoteStreak  = 3
	DefaultWarningExpiry = 7 * 24 * time.Hour
	DefaultEventMemory   = 100
)

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		WindowSize:    DefaultWindowSize,
		PromoteStreak: DefaultPromoteStreak,
		DemoteStreak:  DefaultDemoteStreak,
		Bands: map[essay.Level]Band{
			essay.Beginner:     {Promote: 80, Demote: 50},
			essay.Intermediate: {Promote: 88, Demote: 60},
			essay.Advanced:     {Promote: 92, Demote: 72},
		},
		WarningExpiry:   DefaultWarningExpiry,
		WeaknessCount:   2,
		DecliningMargin: 5,
		TrendWindow:     3,
		TrendTolerance:  2,
		EventMemory:     DefaultEventMemory,
	}
}

// Validate checks that p is usable.
func (p Policy) Validate() error {
	switch {
	case p.WindowSize <= 0:
		return fmt.Errorf("window size must be positive, got %d", p.WindowSize)
	case p.PromoteStreak <= 0 || p.PromoteStreak > p.WindowSize:
		return fmt.Errorf("promote streak %d must be in [1,%d]", p.PromoteStreak, p.WindowSize)
	case p.DemoteStreak <= 0 || p.DemoteStreak > p.WindowSize:
		return fmt.Errorf("demote streak %d must be in [1,%d]", p.DemoteStreak, p.WindowSize)
	case p.TrendWindow <= 0:
		return fmt.Errorf("trend window must be positive, got %d", p.TrendWindow)
	case p.WarningExpiry <= 0:
		return fmt.Errorf("warning expiry must be positive, got %s", p.WarningExpiry)
	}
	for _, l := range []essay.Level{essay.Beginner, essay.Intermediate, essay.Advanced} {
		b, ok := p.Bands[l]
		if !ok {
			return fmt.Errorf("missing band for level %s", l)
		}
		if b.Demote >= b.Promote {
			return fmt.Errorf("level %s: demote band %.0f must be below promote band %.0f", l, b.Demote, b.Promote)
		}
	}
	return nil
}

func (p Policy) band(l essay.Level) Band {
	if b, ok := p.Bands[l]; ok {
		return b
	}
	return DefaultPolicy().Bands[essay.Beginner]
}

func (p Policy) eventMemory() int {
	if p.EventMemory < p.WindowSize {
		return p.WindowSize
	}
	return p.EventMemory
}
