package proficiency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/essaygrade/internal/essay"
)

// StateRepo loads and saves learner state. LoadState returns (nil, nil)
// for an unknown learner.
type StateRepo interface {
	LoadState(ctx context.Context, learnerID string) (*State, error)
	SaveState(ctx context.Context, s State) error
}

// TransitionSink is told about every level change.
type TransitionSink interface {
	RecordTransition(ctx context.Context, learnerID string, t Transition) error
}

// Tracker applies observations to persisted learner state. Calls for the
// same learner are serialised; different learners proceed in parallel.
type Tracker struct {
	repo   StateRepo
	sink   TransitionSink
	policy Policy
	start  essay.Level
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) TrackerOption {
	return func(t *Tracker) { t.policy = p }
}

// WithTransitionSink registers a sink for level changes.
func WithTransitionSink(s TransitionSink) TrackerOption {
	return func(t *Tracker) { t.sink = s }
}

// WithStartLevel sets the level assigned to unknown learners.
func WithStartLevel(l essay.Level) TrackerOption {
	return func(t *Tracker) { t.start = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a tracker backed by repo.
func NewTracker(repo StateRepo, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		repo:   repo,
		policy: DefaultPolicy(),
		start:  essay.Beginner,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Record evaluates obs for learnerID and persists the result.
func (t *Tracker) Record(ctx context.Context, learnerID string, obs Observation) (State, Event, error) {
	if learnerID == "" {
		return State{}, Event{}, fmt.Errorf("learner id is required")
	}

	lock := t.lockFor(learnerID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := t.repo.LoadState(ctx, learnerID)
	if err != nil {
		return State{}, Event{}, fmt.Errorf("load learner %s: %w", learnerID, err)
	}
	if cur == nil {
		s := newState(learnerID, t.start, nil, t.policy.WindowSize)
		cur = &s
	}

	next, ev := Evaluate(*cur, obs, t.now(), t.policy)
	if ev.Kind == EventDuplicate {
		return next, ev, nil
	}

	if err := t.repo.SaveState(ctx, next); err != nil {
		return next, ev, fmt.Errorf("save learner %s: %w", learnerID, err)
	}

	switch ev.Kind {
	case EventPromote, EventDemote:
		t.logger.Info("proficiency level changed",
			"learner", learnerID, "from", ev.From, "to", ev.To, "event", ev.Kind)
		if t.sink != nil {
			tr := next.History[len(next.History)-1]
			if err := t.sink.RecordTransition(ctx, learnerID, tr); err != nil {
				return next, ev, fmt.Errorf("record transition for %s: %w", learnerID, err)
			}
		}
	case EventWarn:
		t.logger.Info("proficiency warning issued",
			"learner", learnerID, "kind", ev.Warning.Kind)
	}

	return next, ev, nil
}

// Seed stores a fresh state for learnerID built from prior scores,
// replacing anything stored before.
func (t *Tracker) Seed(ctx context.Context, learnerID string, level essay.Level, prior []int) (State, error) {
	lock := t.lockFor(learnerID)
	lock.Lock()
	defer lock.Unlock()

	s := newState(learnerID, level, prior, t.policy.WindowSize)
	s.UpdatedAt = t.now()
	if err := t.repo.SaveState(ctx, s); err != nil {
		return State{}, fmt.Errorf("seed learner %s: %w", learnerID, err)
	}
	return s, nil
}

func (t *Tracker) lockFor(learnerID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[learnerID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[learnerID] = l
	}
	return l
}

// MemoryRepo is an in-process StateRepo.
type MemoryRepo struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryRepo returns an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{states: make(map[string]State)}
}

func (m *MemoryRepo) LoadState(_ context.Context, learnerID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[learnerID]
	if !ok {
		return nil, nil
	}
	c := s.clone()
	return &c, nil
}

func (m *MemoryRepo) SaveState(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.LearnerID] = s.clone()
	return nil
}
