package proficiency

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/essaygrade/internal/essay"
)

// EventKind classifies the outcome of one observation.
type EventKind string

const (
	EventPromote   EventKind = "promote"
	EventDemote    EventKind = "demote"
	EventWarn      EventKind = "warn"
	EventStable    EventKind = "stable"
	EventDuplicate EventKind = "duplicate"
)

// Notes attached to stable events at the ends of the level range.
const (
	NoteAlreadyAtTop   = "already_at_top"
	NoteAlreadyAtFloor = "already_at_floor"
)

// Observation is one graded essay fed to the state machine.
type Observation struct {
	EventID    string
	Score      int
	Weaknesses []essay.Dimension
}

// Event is the single result of evaluating an observation.
type Event struct {
	Kind    EventKind   `json:"kind"`
	From    essay.Level `json:"from"`
	To      essay.Level `json:"to"`
	Note    string      `json:"note,omitempty"`
	Message string      `json:"message"`

	// Warning is set for EventWarn.
	Warning *Warning `json:"warning,omitempty"`

	TrendAverage  float64 `json:"trend_average"`
	WindowAverage float64 `json:"window_average"`
}

// Changed reports whether the event moved the learner between levels.
func (e Event) Changed() bool {
	return e.Kind == EventPromote || e.Kind == EventDemote
}

// Evaluate applies one observation to s and returns the new state and the
// event it produced. s is not modified. Rule priority is promote, demote,
// warn, stable.
func Evaluate(s State, in Observation, now time.Time, p Policy) (State, Event) {
	if s.Seen(in.EventID) {
		return s, Event{
			Kind:    EventDuplicate,
			From:    s.Level,
			To:      s.Level,
			Message: fmt.Sprintf("observation %s already recorded", in.EventID),
		}
	}

	next := s.clone()
	next.Warnings = pruneWarnings(next.Warnings, now)

	next.RecentScores = append(next.RecentScores, in.Score)
	if over := len(next.RecentScores) - p.WindowSize; over > 0 {
		next.RecentScores = next.RecentScores[over:]
	}
	next.ScoresSinceChange++
	if next.ScoresSinceChange > len(next.RecentScores) {
		next.ScoresSinceChange = len(next.RecentScores)
	}
	if in.EventID != "" {
		next.EventIDs = append(next.EventIDs, in.EventID)
		if over := len(next.EventIDs) - p.eventMemory(); over > 0 {
			next.EventIDs = next.EventIDs[over:]
		}
	}
	next.UpdatedAt = now

	ev := Event{
		From:          next.Level,
		To:            next.Level,
		TrendAverage:  mean(tail(next.RecentScores, p.TrendWindow)),
		WindowAverage: mean(next.RecentScores),
	}
	band := p.band(next.Level)
	recent := next.sinceChange()

	if streak(recent, p.PromoteStreak, func(v int) bool { return float64(v) >= band.Promote }) {
		to, ok := next.Level.Next()
		if !ok {
			ev.Kind = EventStable
			ev.Note = NoteAlreadyAtTop
			ev.Message = fmt.Sprintf("%d consecutive scores at or above %.0f; already at the highest level", p.PromoteStreak, band.Promote)
			return next, ev
		}
		reason := fmt.Sprintf("%d consecutive scores at or above %.0f", p.PromoteStreak, band.Promote)
		return changeLevel(next, ev, EventPromote, to, reason, in.EventID, now)
	}

	if streak(recent, p.DemoteStreak, func(v int) bool { return float64(v) < band.Demote }) {
		to, ok := next.Level.Prev()
		if !ok {
			ev.Kind = EventStable
			ev.Note = NoteAlreadyAtFloor
			ev.Message = fmt.Sprintf("%d consecutive scores below %.0f; already at the lowest level", p.DemoteStreak, band.Demote)
			return next, ev
		}
		reason := fmt.Sprintf("%d consecutive scores below %.0f", p.DemoteStreak, band.Demote)
		return changeLevel(next, ev, EventDemote, to, reason, in.EventID, now)
	}

	for _, w := range warningCandidates(next, in, band, p) {
		if _, active := next.ActiveWarning(w.Kind, now); active {
			continue
		}
		w.IssuedAt = now
		w.ExpiresAfter = p.WarningExpiry
		next.Warnings = append(next.Warnings, w)
		ev.Kind = EventWarn
		ev.Warning = &w
		ev.Message = w.Detail
		return next, ev
	}

	ev.Kind = EventStable
	ev.Message = trendMessage(ev.TrendAverage, ev.WindowAverage, p.TrendTolerance)
	return next, ev
}

func changeLevel(s State, ev Event, kind EventKind, to essay.Level, reason, eventID string, now time.Time) (State, Event) {
	t := Transition{From: s.Level, To: to, Reason: reason, At: now, EventID: eventID}
	s.History = append(s.History, t)
	s.Level = to
	s.Warnings = nil
	s.ScoresSinceChange = 0

	ev.Kind = kind
	ev.To = to
	ev.Message = fmt.Sprintf("moved from %s to %s: %s", t.From, t.To, reason)
	return s, ev
}

func warningCandidates(s State, in Observation, band Band, p Policy) []Warning {
	var out []Warning
	if p.WeaknessCount > 0 && len(in.Weaknesses) >= p.WeaknessCount {
		names := make([]string, len(in.Weaknesses))
		for i, d := range in.Weaknesses {
			names[i] = string(d)
		}
		out = append(out, Warning{
			Kind:   WarningMultipleWeaknesses,
			Detail: "several areas need work: " + strings.Join(names, ", "),
		})
	}
	trend := tail(s.RecentScores, p.TrendWindow)
	if len(trend) == p.TrendWindow && band.Demote > 0 {
		avg := mean(trend)
		if avg < band.Demote+p.DecliningMargin {
			out = append(out, Warning{
				Kind:   WarningDecliningTrend,
				Detail: fmt.Sprintf("recent average %.1f is close to the %s demotion threshold of %.0f", avg, s.Level, band.Demote),
			})
		}
	}
	return out
}

func trendMessage(trend, window, tolerance float64) string {
	switch {
	case trend > window+tolerance:
		return fmt.Sprintf("recent essays (%.1f) are above your average (%.1f); keep it up", trend, window)
	case trend < window-tolerance:
		return fmt.Sprintf("recent essays (%.1f) are below your average (%.1f); review the feedback", trend, window)
	default:
		return fmt.Sprintf("holding steady around %.1f", window)
	}
}

func pruneWarnings(ws []Warning, now time.Time) []Warning {
	out := ws[:0]
	for _, w := range ws {
		if !w.Expired(now) {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// streak reports whether the last n values all satisfy ok.
func streak(vs []int, n int, ok func(int) bool) bool {
	if n <= 0 || len(vs) < n {
		return false
	}
	for _, v := range vs[len(vs)-n:] {
		if !ok(v) {
			return false
		}
	}
	return true
}

func tail(vs []int, n int) []int {
	if len(vs) <= n {
		return vs
	}
	return vs[len(vs)-n:]
}

func mean(vs []int) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}
