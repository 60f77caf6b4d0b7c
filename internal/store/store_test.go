package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/proficiency"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.LearnerRepo().SaveState(ctx, proficiency.NewState("ada", essay.Advanced, []int{91})); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	st, err := s.LearnerRepo().LoadState(ctx, "ada")
	if err != nil || st == nil {
		t.Fatalf("load after reopen: %v, %v", st, err)
	}
	if st.Level != essay.Advanced {
		t.Errorf("level = %s, want advanced", st.Level)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		n, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if n <= prev {
			t.Errorf("sequence %d not greater than %d", n, prev)
		}
		prev = n
	}
}

func TestSequenceCounterConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.seq.Next(ctx)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[n] {
				t.Errorf("duplicate sequence %d", n)
			}
			seen[n] = true
		}()
	}
	wg.Wait()
	if len(seen) != 20 {
		t.Errorf("got %d distinct sequences, want 20", len(seen))
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-haiku", Purpose: "essay-analysis", InputTokens: 100, OutputTokens: 40, LatencyMs: 300, Success: true, RequestBody: "req", ResponseBody: "resp"},
		{Provider: "anthropic", Model: "claude-haiku", Purpose: "essay-analysis", InputTokens: 120, OutputTokens: 60, LatencyMs: 500, Success: true},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "other", LatencyMs: 10, Success: false, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Provider != "openai" || got[0].Success {
		t.Errorf("newest event = %+v, want failed openai call", got[0])
	}

	filtered, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "essay-analysis"})
	if err != nil {
		t.Fatalf("query by purpose: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered len = %d, want 2", len(filtered))
	}

	first := filtered[len(filtered)-1]
	e, err := repo.GetLLMEvent(ctx, first.ID)
	if err != nil || e == nil {
		t.Fatalf("get: %v, %v", e, err)
	}
	if e.RequestBody != "req" || e.ResponseBody != "resp" {
		t.Errorf("bodies = %q/%q", e.RequestBody, e.ResponseBody)
	}
	if time.Since(e.Timestamp) > time.Minute {
		t.Errorf("timestamp %v not recent", e.Timestamp)
	}

	missing, err := repo.GetLLMEvent(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("missing event = %v, %v; want nil, nil", missing, err)
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 || byPurpose[0].Purpose != "essay-analysis" {
		t.Fatalf("by purpose = %+v", byPurpose)
	}
	if byPurpose[0].Calls != 2 || byPurpose[0].InputTokens != 220 || byPurpose[0].AvgLatencyMs != 400 {
		t.Errorf("essay-analysis usage = %+v", byPurpose[0])
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].Model != "claude-haiku" || byModel[0].OutputTokens != 100 {
		t.Errorf("by model = %+v", byModel)
	}
}

func TestLearnerRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.LearnerRepo()
	ctx := context.Background()

	st, err := repo.LoadState(ctx, "nobody")
	if err != nil || st != nil {
		t.Fatalf("unknown learner = %v, %v; want nil, nil", st, err)
	}

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	state := proficiency.NewState("ada", essay.Intermediate, []int{70, 75})
	state.UpdatedAt = now
	state.Warnings = []proficiency.Warning{{Kind: proficiency.WarningDecliningTrend, IssuedAt: now, ExpiresAfter: time.Hour}}
	if err := repo.SaveState(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	state.RecentScores = append(state.RecentScores, 80)
	if err := repo.SaveState(ctx, state); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.LoadState(ctx, "ada")
	if err != nil || got == nil {
		t.Fatalf("load: %v, %v", got, err)
	}
	if len(got.RecentScores) != 3 || got.RecentScores[2] != 80 {
		t.Errorf("scores = %v", got.RecentScores)
	}
	if len(got.Warnings) != 1 || !got.Warnings[0].IssuedAt.Equal(now) {
		t.Errorf("warnings = %+v", got.Warnings)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 || list[0].Level != "intermediate" {
		t.Errorf("list = %+v, %v", list, err)
	}

	deleted, err := repo.Delete(ctx, "ada")
	if err != nil || !deleted {
		t.Errorf("delete = %v, %v", deleted, err)
	}
	deleted, _ = repo.Delete(ctx, "ada")
	if deleted {
		t.Error("second delete reported a row")
	}
}

func TestTrackerOnStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tr := proficiency.NewTracker(s.LearnerRepo(), proficiency.WithTransitionSink(s.TransitionRepo()))

	for i := 0; i < 5; i++ {
		if _, _, err := tr.Record(ctx, "ada", proficiency.Observation{Score: 85}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	ts, err := s.TransitionRepo().ListByLearner(ctx, "ada")
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	if len(ts) != 1 || ts[0].From != "beginner" || ts[0].To != "intermediate" {
		t.Errorf("transitions = %+v", ts)
	}
}

func TestGradingRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.GradingRepo()
	ctx := context.Background()

	for i, score := range []int{60, 70, 80} {
		rec := &GradingRecord{
			LearnerID:  "ada",
			WordCount:  100 + i,
			FinalScore: score,
			Grade:      "C",
			Source:     "fallback",
			ParseStage: "neutral",
			ResultJSON: "{}",
		}
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
		if rec.ID == "" || rec.Sequence == 0 {
			t.Errorf("save did not assign id/sequence: %+v", rec)
		}
	}
	if err := repo.Save(ctx, &GradingRecord{LearnerID: "bob", FinalScore: 99, ResultJSON: "{}"}); err != nil {
		t.Fatalf("save other: %v", err)
	}

	list, err := repo.ListByLearner(ctx, "ada", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].FinalScore != 80 {
		t.Errorf("list = %+v", list)
	}

	got, err := repo.Get(ctx, list[1].ID)
	if err != nil || got == nil || got.FinalScore != 70 {
		t.Errorf("get = %+v, %v", got, err)
	}

	scores, err := repo.RecentScores(ctx, "ada", 2)
	if err != nil {
		t.Fatalf("recent scores: %v", err)
	}
	if len(scores) != 2 || scores[0] != 70 || scores[1] != 80 {
		t.Errorf("recent scores = %v, want [70 80]", scores)
	}
}
