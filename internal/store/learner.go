package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/essaygrade/internal/proficiency"
)

// LearnerRepo persists proficiency state as a JSON document per learner.
// It implements proficiency.StateRepo.
type LearnerRepo struct {
	db *sqlx.DB
}

var _ proficiency.StateRepo = (*LearnerRepo)(nil)

// LoadState returns the stored state, or nil for an unknown learner.
func (r *LearnerRepo) LoadState(ctx context.Context, learnerID string) (*proficiency.State, error) {
	var data string
	err := r.db.GetContext(ctx, &data, `SELECT state_json FROM learners WHERE id = ?`, learnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load learner: %w", err)
	}
	var s proficiency.State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decode learner %s: %w", learnerID, err)
	}
	return &s, nil
}

// SaveState upserts the learner's state.
func (r *LearnerRepo) SaveState(ctx context.Context, s proficiency.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode learner %s: %w", s.LearnerID, err)
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO learners (id, level, state_json, updated_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			level = excluded.level,
			state_json = excluded.state_json,
			updated_at_ms = excluded.updated_at_ms`,
		s.LearnerID, string(s.Level), string(data), updated.UnixMilli())
	if err != nil {
		return fmt.Errorf("save learner %s: %w", s.LearnerID, err)
	}
	return nil
}

// Delete removes a learner's state. Gradings and transitions are kept.
func (r *LearnerRepo) Delete(ctx context.Context, learnerID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM learners WHERE id = ?`, learnerID)
	if err != nil {
		return false, fmt.Errorf("delete learner %s: %w", learnerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete learner %s: %w", learnerID, err)
	}
	return n > 0, nil
}

// List returns every known learner ordered by ID.
func (r *LearnerRepo) List(ctx context.Context) ([]LearnerSummary, error) {
	var rows []struct {
		ID        string `db:"id"`
		Level     string `db:"level"`
		UpdatedMs int64  `db:"updated_at_ms"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, level, updated_at_ms FROM learners ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	out := make([]LearnerSummary, len(rows))
	for i, row := range rows {
		out[i] = LearnerSummary{ID: row.ID, Level: row.Level, UpdatedAt: time.UnixMilli(row.UpdatedMs)}
	}
	return out, nil
}

// TransitionRepo is the append-only log of level changes. It implements
// proficiency.TransitionSink.
type TransitionRepo struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

var _ proficiency.TransitionSink = (*TransitionRepo)(nil)

type transitionRow struct {
	ID        int64  `db:"id"`
	Sequence  int64  `db:"sequence"`
	LearnerID string `db:"learner_id"`
	From      string `db:"from_level"`
	To        string `db:"to_level"`
	Reason    string `db:"reason"`
	EventID   string `db:"event_id"`
	AtMs      int64  `db:"at_ms"`
}

// RecordTransition appends a level change.
func (r *TransitionRepo) RecordTransition(ctx context.Context, learnerID string, t proficiency.Transition) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO transitions
		(sequence, learner_id, from_level, to_level, reason, event_id, at_ms)
		VALUES (:sequence, :learner_id, :from_level, :to_level, :reason, :event_id, :at_ms)`,
		transitionRow{
			Sequence:  seqNum,
			LearnerID: learnerID,
			From:      string(t.From),
			To:        string(t.To),
			Reason:    t.Reason,
			EventID:   t.EventID,
			AtMs:      t.At.UnixMilli(),
		})
	if err != nil {
		return fmt.Errorf("save transition: %w", err)
	}
	return nil
}

// ListByLearner returns a learner's transitions oldest first.
func (r *TransitionRepo) ListByLearner(ctx context.Context, learnerID string) ([]TransitionRecord, error) {
	var rows []transitionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, sequence, learner_id, from_level, to_level, reason, event_id, at_ms
		FROM transitions WHERE learner_id = ? ORDER BY sequence`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	out := make([]TransitionRecord, len(rows))
	for i, row := range rows {
		out[i] = TransitionRecord{
			ID:        row.ID,
			Sequence:  row.Sequence,
			LearnerID: row.LearnerID,
			From:      row.From,
			To:        row.To,
			Reason:    row.Reason,
			EventID:   row.EventID,
			At:        time.UnixMilli(row.AtMs),
		}
	}
	return out, nil
}
