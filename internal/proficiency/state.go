package proficiency

import (
	"time"

	"github.com/abhisek/essaygrade/internal/essay"
)

// WarningKind identifies why a learner was warned.
type WarningKind string

const (
	WarningMultipleWeaknesses WarningKind = "multiple-weaknesses"
	WarningDecliningTrend     WarningKind = "declining-trend"
)

// Warning is an active notice that expires after ExpiresAfter.
type Warning struct {
	Kind         WarningKind   `json:"kind"`
	IssuedAt     time.Time     `json:"issued_at"`
	ExpiresAfter time.Duration `json:"expires_after"`
	Detail       string        `json:"detail,omitempty"`
}

// Expired reports whether w is no longer active at now.
func (w Warning) Expired(now time.Time) bool {
	return !now.Before(w.IssuedAt.Add(w.ExpiresAfter))
}

// Transition records a level change. History is append-only.
type Transition struct {
	From    essay.Level `json:"from"`
	To      essay.Level `json:"to"`
	Reason  string      `json:"reason"`
	At      time.Time   `json:"at"`
	EventID string      `json:"event_id,omitempty"`
}

// State is a learner's proficiency record.
type State struct {
	LearnerID string      `json:"learner_id"`
	Level     essay.Level `json:"level"`

	// RecentScores is a FIFO window, oldest first.
	RecentScores []int `json:"recent_scores"`

	// ScoresSinceChange counts scores recorded since the last level change.
	ScoresSinceChange int `json:"scores_since_change"`

	Warnings []Warning    `json:"warnings,omitempty"`
	History  []Transition `json:"history,omitempty"`

	// EventIDs holds the IDs of recent observations, oldest first.
	EventIDs  []string  `json:"event_ids,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState seeds a learner at level from prior scores (oldest first).
// Only the most recent DefaultPolicy().WindowSize scores are kept.
func NewState(learnerID string, level essay.Level, prior []int) State {
	return newState(learnerID, level, prior, DefaultPolicy().WindowSize)
}

func newState(learnerID string, level essay.Level, prior []int, window int) State {
	if level == "" {
		level = essay.Beginner
	}
	if window > 0 && len(prior) > window {
		prior = prior[len(prior)-window:]
	}
	recent := append([]int(nil), prior...)
	return State{
		LearnerID:         learnerID,
		Level:             level,
		RecentScores:      recent,
		ScoresSinceChange: len(recent),
	}
}

// Seen reports whether an observation with id was already recorded.
func (s State) Seen(id string) bool {
	if id == "" {
		return false
	}
	for _, e := range s.EventIDs {
		if e == id {
			return true
		}
	}
	return false
}

// ActiveWarning returns the unexpired warning of kind, if any.
func (s State) ActiveWarning(kind WarningKind, now time.Time) (Warning, bool) {
	for _, w := range s.Warnings {
		if w.Kind == kind && !w.Expired(now) {
			return w, true
		}
	}
	return Warning{}, false
}

func (s State) clone() State {
	c := s
	c.RecentScores = append([]int(nil), s.RecentScores...)
	c.Warnings = append([]Warning(nil), s.Warnings...)
	c.History = append([]Transition(nil), s.History...)
	c.EventIDs = append([]string(nil), s.EventIDs...)
	return c
}

// sinceChange returns the scores recorded at the current level.
func (s State) sinceChange() []int {
	n := s.ScoresSinceChange
	if n > len(s.RecentScores) {
		n = len(s.RecentScores)
	}
	return s.RecentScores[len(s.RecentScores)-n:]
}
