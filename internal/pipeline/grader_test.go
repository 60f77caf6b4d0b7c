package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/essaygrade/internal/analysis"
	"github.com/abhisek/essaygrade/internal/apperr"
	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
	"github.com/abhisek/essaygrade/internal/inference"
	"github.com/abhisek/essaygrade/internal/llm"
	"github.com/abhisek/essaygrade/internal/proficiency"
	"github.com/abhisek/essaygrade/internal/repair"
)

const sampleEssay = `Technology in Schools

Technology has changed how students learn. In this essay I will discuss its benefits and its risks.

First, digital tools give students access to research and evidence from many sources. For example, a student can compare studies in minutes. However, access alone does not guarantee understanding.

Moreover, teachers must evaluate which tools support learning. Some may argue that screens distract students. Nevertheless, careful planning reduces this problem.

In conclusion, technology is a significant resource when schools use it with purpose. Overall, the benefits outweigh the risks.`

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedScorer struct {
	q essay.QualityScores
}

func (f fixedScorer) Score(context.Context, features.Vector) inference.Result {
	return inference.Result{Quality: f.q, Confidence: 0.9, Source: inference.SourceBackend}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, string, proficiency.Observation) (proficiency.State, proficiency.Event, error) {
	return proficiency.State{}, proficiency.Event{}, errors.New("disk full")
}

func analyzerWith(responses ...llm.MockResponse) *analysis.Analyzer {
	return analysis.NewAnalyzer(llm.NewMockProvider(responses...), analysis.DefaultConfig(), analysis.WithLogger(quiet()))
}

func TestGradeFullDegradation(t *testing.T) {
	gw := inference.New(inference.Config{}, nil, inference.WithLogger(quiet()))
	g := New(nil, gw, nil, WithAnalyzer(analyzerWith()), WithLogger(quiet()))

	out, err := g.Grade(context.Background(), Submission{Text: sampleEssay})
	if err != nil {
		t.Fatal(err)
	}

	if out.SubmissionID == "" {
		t.Error("no submission id assigned")
	}
	if out.Inference.Source != inference.SourceFallback || !out.Analysis.Degraded() {
		t.Errorf("inference source = %v analysis degraded = %v", out.Inference.Source, out.Analysis.Degraded())
	}
	if out.Quality != out.Inference.Quality {
		t.Errorf("neutral analysis was blended: %+v vs %+v", out.Quality, out.Inference.Quality)
	}
	if f := out.Calibration.FinalScore; f < 40 || f > 98 || out.Calibration.Grade == "" {
		t.Errorf("calibration = %+v", out.Calibration)
	}
	if out.Proficiency != nil {
		t.Errorf("proficiency = %+v without a learner", out.Proficiency)
	}
}

func TestGradeBlendsAnalysisScores(t *testing.T) {
	reply := `{"scoring": {"grammar": 0.4, "content": 0.1, "organization": 0.1, "style": 0.1, "mechanics": 0.6},
		"corrections": [{"sentence_number": 2, "original": "its risks", "correction": "it's risks", "type": "grammar", "confidence": 0.8}]}`
	g := New(nil, fixedScorer{essay.Uniform(0.8)}, nil, WithAnalyzer(analyzerWith(llm.MockText(reply))), WithLogger(quiet()))

	out, err := g.Grade(context.Background(), Submission{Text: sampleEssay})
	if err != nil {
		t.Fatal(err)
	}

	if out.Analysis.Stage != repair.StageDirect {
		t.Errorf("stage = %v, want direct", out.Analysis.Stage)
	}
	if math.Abs(out.Quality.Grammar-0.6) > 1e-9 || math.Abs(out.Quality.Mechanics-0.7) > 1e-9 {
		t.Errorf("blended grammar = %v mechanics = %v, want 0.6 and 0.7", out.Quality.Grammar, out.Quality.Mechanics)
	}
	if out.Quality.Content != 0.8 {
		t.Errorf("content = %v, only grammar and mechanics are blended", out.Quality.Content)
	}
	if out.Calibration.GrammarErrors != 1 {
		t.Errorf("grammar errors = %d, want 1", out.Calibration.GrammarErrors)
	}
}

func TestGradeWithoutScoringBlockKeepsBackendQuality(t *testing.T) {
	reply := `{"corrections": [{"original": "recieve", "correction": "receive", "type": "spelling"}]}`
	g := New(nil, fixedScorer{essay.Uniform(0.8)}, nil, WithAnalyzer(analyzerWith(llm.MockText(reply))), WithLogger(quiet()))

	out, err := g.Grade(context.Background(), Submission{Text: sampleEssay})
	if err != nil {
		t.Fatal(err)
	}
	if out.Quality != essay.Uniform(0.8) {
		t.Errorf("quality = %+v, want backend quality", out.Quality)
	}
	if out.Calibration.SpellingErrors != 1 {
		t.Errorf("spelling errors = %d, want 1", out.Calibration.SpellingErrors)
	}
}

func TestGradeZeroWords(t *testing.T) {
	mock := llm.NewMockProvider()
	a := analysis.NewAnalyzer(mock, analysis.DefaultConfig(), analysis.WithLogger(quiet()))
	g := New(nil, fixedScorer{essay.Neutral()}, nil, WithAnalyzer(a), WithLogger(quiet()))

	out, err := g.Grade(context.Background(), Submission{Text: "   "})
	if err != nil {
		t.Fatal(err)
	}
	if out.Vector != (features.Vector{}) {
		t.Error("vector not zero")
	}
	if out.Calibration.FinalScore != 40 {
		t.Errorf("final = %d, want 40", out.Calibration.FinalScore)
	}
	if n := mock.CallCount(); n != 0 {
		t.Errorf("analyzer called %d times for an empty essay", n)
	}
}

func TestGradePromotesOnceThroughTracker(t *testing.T) {
	tr := proficiency.NewTracker(proficiency.NewMemoryRepo(), proficiency.WithLogger(quiet()))
	g := New(nil, fixedScorer{essay.Uniform(0.9)}, nil, WithTracker(tr), WithLogger(quiet()))
	ctx := context.Background()

	var kinds []proficiency.EventKind
	for i := 0; i < 7; i++ {
		out, err := g.Grade(ctx, Submission{ID: fmt.Sprintf("sub-%d", i), LearnerID: "ada", Text: sampleEssay})
		if err != nil {
			t.Fatal(err)
		}
		if out.Proficiency == nil {
			t.Fatal("no proficiency outcome for a learner submission")
		}
		if out.Calibration.FinalScore < 80 {
			t.Fatalf("final = %d, want at least 80", out.Calibration.FinalScore)
		}
		kinds = append(kinds, out.Proficiency.Event.Kind)
	}

	promotions := 0
	for _, k := range kinds {
		if k == proficiency.EventPromote {
			promotions++
		}
	}
	if promotions != 1 || kinds[4] != proficiency.EventPromote {
		t.Errorf("events = %v, want a single promotion on the fifth", kinds)
	}

	again, err := g.Grade(ctx, Submission{ID: "sub-6", LearnerID: "ada", Text: sampleEssay})
	if err != nil {
		t.Fatal(err)
	}
	if again.Proficiency.Event.Kind != proficiency.EventDuplicate {
		t.Errorf("regrade event = %v, want duplicate", again.Proficiency.Event.Kind)
	}
	if again.Proficiency.State.Level != essay.Intermediate {
		t.Errorf("level = %v, want intermediate", again.Proficiency.State.Level)
	}
}

func TestGradeKeepsOutcomeOnTrackerError(t *testing.T) {
	g := New(nil, fixedScorer{essay.Uniform(0.7)}, nil, WithTracker(failingRecorder{}), WithLogger(quiet()))

	out, err := g.Grade(context.Background(), Submission{LearnerID: "ada", Text: sampleEssay})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want the tracker failure", err)
	}
	if out.Calibration.FinalScore == 0 || out.Calibration.Grade == "" {
		t.Errorf("calibration lost on tracker error: %+v", out.Calibration)
	}
}

func TestGradeContractViolation(t *testing.T) {
	g := New(nil, fixedScorer{essay.Uniform(math.NaN())}, nil, WithLogger(quiet()))

	_, err := g.Grade(context.Background(), Submission{Text: sampleEssay})
	if !apperr.IsContractViolation(err) {
		t.Errorf("err = %v, want contract violation", err)
	}
}

// rendezvousScorer only answers once the analyzer has started, so it
// returns the marker quality only when both stages run at the same time.
type rendezvousScorer struct {
	started chan struct{}
}

func (s rendezvousScorer) Score(context.Context, features.Vector) inference.Result {
	select {
	case <-s.started:
		return inference.Result{Quality: essay.Uniform(0.75), Source: inference.SourceBackend}
	case <-time.After(2 * time.Second):
		return inference.Result{Quality: essay.Uniform(0.5), Source: inference.SourceFallback}
	}
}

type signallingAnalyst struct {
	started chan struct{}
}

func (a signallingAnalyst) Analyze(context.Context, string) analysis.Result {
	close(a.started)
	return analysis.Neutral()
}

func TestGradeRunsStagesConcurrently(t *testing.T) {
	started := make(chan struct{})
	g := New(nil, rendezvousScorer{started}, nil, WithAnalyzer(signallingAnalyst{started}), WithLogger(quiet()))

	out, err := g.Grade(context.Background(), Submission{Text: sampleEssay})
	if err != nil {
		t.Fatal(err)
	}
	if out.Inference.Source != inference.SourceBackend {
		t.Errorf("source = %v, stages ran one after the other", out.Inference.Source)
	}
}

func TestGradeCancelledContextStillGrades(t *testing.T) {
	gw := inference.New(inference.Config{Endpoint: "http://127.0.0.1:1"}, nil, inference.WithLogger(quiet()))
	g := New(nil, gw, nil, WithLogger(quiet()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := g.Grade(ctx, Submission{Text: sampleEssay})
	if err != nil {
		t.Fatal(err)
	}
	if out.Inference.Source != inference.SourceFallback || out.Calibration.Grade == "" {
		t.Errorf("source = %v grade = %q", out.Inference.Source, out.Calibration.Grade)
	}
}

func TestValidateSubmission(t *testing.T) {
	conf := func(v float64) *float64 { return &v }
	long := strings.Repeat("word ", 25)

	tests := []struct {
		name    string
		sub     Submission
		wantErr bool
	}{
		{"ok", Submission{Text: long}, false},
		{"empty", Submission{Text: ""}, true},
		{"whitespace", Submission{Text: " \n\t "}, true},
		{"too short", Submission{Text: "only a few words here"}, true},
		{"ocr ok", Submission{Text: long, OCRConfidence: conf(0.9)}, false},
		{"ocr out of range", Submission{Text: long, OCRConfidence: conf(1.5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubmission(tt.sub, 0)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !apperr.IsInvalidInput(err) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}

	if err := ValidateSubmission(Submission{Text: "three short words"}, 3); err != nil {
		t.Errorf("custom minimum: %v", err)
	}
}
