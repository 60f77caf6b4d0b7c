package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// sequenceCounter manages the global monotonic sequence number shared by
// gradings, transitions and LLM events. Each lives in its own table, so
// per-table auto-increment IDs can't order them against each other; the
// shared counter can.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sqlx.DB
}

// newSequenceCounter creates a counter and ensures the tracking row exists.
func newSequenceCounter(db *sqlx.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}
	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowxContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		migrationSequence,
		migrationLearners,
		migrationGradings,
		migrationTransitions,
		migrationLLMEvents,
	}
	migrations = append(migrations, migrationIndexes...)
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

const migrationSequence = `
CREATE TABLE IF NOT EXISTS global_sequence (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    next_val INTEGER NOT NULL DEFAULT 1
);
`

const migrationLearners = `
CREATE TABLE IF NOT EXISTS learners (
    id TEXT PRIMARY KEY,
    level TEXT NOT NULL,
    state_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL
);
`

const migrationGradings = `
CREATE TABLE IF NOT EXISTS gradings (
    id TEXT PRIMARY KEY,
    sequence INTEGER NOT NULL,
    learner_id TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL,
    word_count INTEGER NOT NULL,
    final_score INTEGER NOT NULL,
    grade TEXT NOT NULL,
    uncertainty INTEGER NOT NULL,
    source TEXT NOT NULL,
    parse_stage TEXT NOT NULL,
    fallback_reason TEXT NOT NULL DEFAULT '',
    result_json TEXT NOT NULL
);
`

const migrationTransitions = `
CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sequence INTEGER NOT NULL,
    learner_id TEXT NOT NULL,
    from_level TEXT NOT NULL,
    to_level TEXT NOT NULL,
    reason TEXT NOT NULL,
    event_id TEXT NOT NULL DEFAULT '',
    at_ms INTEGER NOT NULL
);
`

const migrationLLMEvents = `
CREATE TABLE IF NOT EXISTS llm_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sequence INTEGER NOT NULL,
    timestamp_ms INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    purpose TEXT NOT NULL DEFAULT '',
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    success INTEGER NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    request_body TEXT NOT NULL DEFAULT '',
    response_body TEXT NOT NULL DEFAULT ''
);
`

var migrationIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_gradings_learner ON gradings(learner_id, sequence)`,
	`CREATE INDEX IF NOT EXISTS idx_transitions_learner ON transitions(learner_id, sequence)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_events_sequence ON llm_events(sequence)`,
}
