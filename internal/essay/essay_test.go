package essay

import (
	"math"
	"testing"

	"github.com/abhisek/essaygrade/internal/apperr"
)

func TestQualityScoresFromMap(t *testing.T) {
	q, err := QualityScoresFromMap(map[string]float64{
		"grammar": 1.4, "content": 0.7, "organization": -0.2, "style": 0.5, "mechanics": 0.9,
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.Grammar != 1 || q.Organization != 0 || q.Content != 0.7 {
		t.Errorf("scores = %+v, want grammar 1 organization 0 content 0.7", q)
	}

	_, err = QualityScoresFromMap(map[string]float64{"grammar": 0.5})
	if !apperr.IsContractViolation(err) {
		t.Errorf("missing dimensions: err = %v, want contract violation", err)
	}

	_, err = QualityScoresFromMap(map[string]float64{
		"grammar": math.NaN(), "content": 0.7, "organization": 0.2, "style": 0.5, "mechanics": 0.9,
	})
	if !apperr.IsContractViolation(err) {
		t.Errorf("NaN grammar: err = %v, want contract violation", err)
	}
}

func TestLevelOrdering(t *testing.T) {
	if next, ok := Beginner.Next(); !ok || next != Intermediate {
		t.Errorf("Beginner.Next() = %v, %v", next, ok)
	}
	if _, ok := Advanced.Next(); ok {
		t.Error("Advanced has a next level")
	}
	if _, ok := Beginner.Prev(); ok {
		t.Error("Beginner has a previous level")
	}
	if prev, ok := Advanced.Prev(); !ok || prev != Intermediate {
		t.Errorf("Advanced.Prev() = %v, %v", prev, ok)
	}
	if _, err := ParseLevel("expert"); err == nil {
		t.Error("ParseLevel accepted expert")
	}
}

func TestParseKind(t *testing.T) {
	kinds := map[string]Kind{" Spelling ": KindSpelling, "word_choice": KindStyle, "subject-verb": KindGrammar}
	for in, want := range kinds {
		if got := ParseKind(in); got != want {
			t.Errorf("ParseKind(%q) = %v, want %v", in, got, want)
		}
	}
	if got := ParseSeverity("major"); got != SeveritySevere {
		t.Errorf("ParseSeverity(major) = %v", got)
	}
	if got := ParseSeverity(""); got != SeverityModerate {
		t.Errorf("ParseSeverity(\"\") = %v", got)
	}
}
