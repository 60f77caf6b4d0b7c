package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GradingRepo stores graded essays.
type GradingRepo struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

type gradingRow struct {
	ID             string `db:"id"`
	Sequence       int64  `db:"sequence"`
	LearnerID      string `db:"learner_id"`
	CreatedAtMs    int64  `db:"created_at_ms"`
	WordCount      int    `db:"word_count"`
	FinalScore     int    `db:"final_score"`
	Grade          string `db:"grade"`
	Uncertainty    int    `db:"uncertainty"`
	Source         string `db:"source"`
	ParseStage     string `db:"parse_stage"`
	FallbackReason string `db:"fallback_reason"`
	ResultJSON     string `db:"result_json"`
}

func (r gradingRow) record() GradingRecord {
	return GradingRecord{
		ID:             r.ID,
		Sequence:       r.Sequence,
		LearnerID:      r.LearnerID,
		CreatedAt:      time.UnixMilli(r.CreatedAtMs),
		WordCount:      r.WordCount,
		FinalScore:     r.FinalScore,
		Grade:          r.Grade,
		Uncertainty:    r.Uncertainty,
		Source:         r.Source,
		ParseStage:     r.ParseStage,
		FallbackReason: r.FallbackReason,
		ResultJSON:     r.ResultJSON,
	}
}

const gradingColumns = `id, sequence, learner_id, created_at_ms, word_count, final_score,
	grade, uncertainty, source, parse_stage, fallback_reason, result_json`

// Save stores rec, assigning ID, Sequence and CreatedAt when unset. A
// record with an existing ID replaces the stored one.
func (r *GradingRepo) Save(ctx context.Context, rec *GradingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	rec.Sequence = seqNum

	_, err = r.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO gradings (`+gradingColumns+`) VALUES (
		:id, :sequence, :learner_id, :created_at_ms, :word_count, :final_score,
		:grade, :uncertainty, :source, :parse_stage, :fallback_reason, :result_json)`,
		gradingRow{
			ID:             rec.ID,
			Sequence:       rec.Sequence,
			LearnerID:      rec.LearnerID,
			CreatedAtMs:    rec.CreatedAt.UnixMilli(),
			WordCount:      rec.WordCount,
			FinalScore:     rec.FinalScore,
			Grade:          rec.Grade,
			Uncertainty:    rec.Uncertainty,
			Source:         rec.Source,
			ParseStage:     rec.ParseStage,
			FallbackReason: rec.FallbackReason,
			ResultJSON:     rec.ResultJSON,
		})
	if err != nil {
		return fmt.Errorf("save grading: %w", err)
	}
	return nil
}

// Get returns one grading, or nil if it does not exist.
func (r *GradingRepo) Get(ctx context.Context, id string) (*GradingRecord, error) {
	var row gradingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+gradingColumns+` FROM gradings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grading %s: %w", id, err)
	}
	rec := row.record()
	return &rec, nil
}

// ListByLearner returns a learner's gradings newest first.
func (r *GradingRepo) ListByLearner(ctx context.Context, learnerID string, limit int) ([]GradingRecord, error) {
	q := `SELECT ` + gradingColumns + ` FROM gradings WHERE learner_id = ? ORDER BY sequence DESC`
	args := []any{learnerID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []gradingRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list gradings: %w", err)
	}
	out := make([]GradingRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

// RecentScores returns up to n of a learner's final scores, oldest first.
func (r *GradingRepo) RecentScores(ctx context.Context, learnerID string, n int) ([]int, error) {
	var scores []int
	err := r.db.SelectContext(ctx, &scores, `
		SELECT final_score FROM (
			SELECT final_score, sequence FROM gradings
			WHERE learner_id = ? ORDER BY sequence DESC LIMIT ?
		) ORDER BY sequence`, learnerID, n)
	if err != nil {
		return nil, fmt.Errorf("recent scores: %w", err)
	}
	return scores, nil
}
