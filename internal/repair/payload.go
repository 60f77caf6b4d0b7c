// Package repair recovers the analysis payload from language-model output
// that may be fenced, prefixed with prose, truncated or otherwise broken.
package repair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/llm"
)

// Correction is one item of the corrections array.
type Correction struct {
	SentenceNumber int     `json:"sentence_number"`
	Original       string  `json:"original"`
	Correction     string  `json:"correction"`
	Type           string  `json:"type"`
	Reason         string  `json:"reason"`
	Confidence     float64 `json:"confidence"`
	Severity       string  `json:"severity"`
}

// Payload is the structured analysis result.
type Payload struct {
	Corrections []Correction        `json:"corrections"`
	Scoring     essay.QualityScores `json:"scoring"`
	// ScoringPresent is false when Scoring holds the neutral default.
	ScoringPresent bool `json:"scoring_present"`
}

// Neutral is the result returned when nothing could be recovered.
func Neutral() Payload {
	return Payload{Corrections: []Correction{}, Scoring: essay.Neutral()}
}

// SchemaDefinition is the JSON schema the model is asked to follow. It is
// embedded in the analysis prompt and sent as the structured output format.
// Labels are free text; unknown ones map to the closest kind or severity.
var SchemaDefinition = map[string]any{
	"type":     "object",
	"required": []any{"corrections"},
	"properties": map[string]any{
		"corrections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"original", "correction"},
				"properties": map[string]any{
					"sentence_number": map[string]any{"type": "integer"},
					"original":        map[string]any{"type": "string"},
					"correction":      map[string]any{"type": "string"},
					"type":            map[string]any{"type": "string", "description": "grammar, spelling, punctuation or style"},
					"reason":          map[string]any{"type": "string"},
					"confidence":      map[string]any{"type": "number"},
					"severity":        map[string]any{"type": "string", "description": "minor, moderate or severe"},
				},
			},
		},
		"scoring": map[string]any{
			"type":     "object",
			"required": []any{"grammar", "content", "organization", "style", "mechanics"},
			"properties": map[string]any{
				"grammar":      map[string]any{"type": "number"},
				"content":      map[string]any{"type": "number"},
				"organization": map[string]any{"type": "number"},
				"style":        map[string]any{"type": "number"},
				"mechanics":    map[string]any{"type": "number"},
			},
		},
	},
}

// Recovery validates less than SchemaDefinition asks for: the document
// needs a corrections array, and each item needs its original and
// correction strings. Items failing that are dropped one by one; optional
// fields are read loosely.
var (
	documentSchema = llm.MustCompileSchema(&llm.Schema{
		Name: "essay-analysis-document",
		Definition: map[string]any{
			"type":       "object",
			"required":   []any{"corrections"},
			"properties": map[string]any{"corrections": map[string]any{"type": "array"}},
		},
	})
	itemSchema = llm.MustCompileSchema(&llm.Schema{
		Name: "essay-analysis-item",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"original", "correction"},
			"properties": map[string]any{
				"original":   map[string]any{"type": "string", "minLength": 1},
				"correction": map[string]any{"type": "string"},
			},
		},
	})
)

// decode parses the first JSON value in s and extracts a payload from it.
// Trailing text after that value is ignored.
func decode(s string) (Payload, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Payload{}, false
	}
	if err := documentSchema.Validate(doc); err != nil {
		return Payload{}, false
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		return Payload{}, false
	}
	return fromJSON(string(canonical)), true
}

func fromJSON(s string) Payload {
	p := Payload{Corrections: []Correction{}, Scoring: essay.Neutral()}
	for _, item := range gjson.Get(s, "corrections").Array() {
		if itemSchema.Validate(item.Value()) != nil {
			continue
		}
		p.Corrections = append(p.Corrections, correctionFrom(item))
	}
	if sc := gjson.Get(s, "scoring"); sc.IsObject() {
		if q, err := scoringFrom(sc); err == nil {
			p.Scoring, p.ScoringPresent = q, true
		}
	}
	return p
}

func correctionFrom(item gjson.Result) Correction {
	return Correction{
		SentenceNumber: int(item.Get("sentence_number").Int()),
		Original:       item.Get("original").String(),
		Correction:     item.Get("correction").String(),
		Type:           item.Get("type").String(),
		Reason:         item.Get("reason").String(),
		Confidence:     item.Get("confidence").Float(),
		Severity:       item.Get("severity").String(),
	}
}

func scoringFrom(sc gjson.Result) (essay.QualityScores, error) {
	m := map[string]float64{}
	for _, d := range essay.Dimensions {
		v := sc.Get(string(d))
		if v.Type != gjson.Number {
			return essay.QualityScores{}, fmt.Errorf("scoring.%s missing", d)
		}
		m[string(d)] = v.Float()
	}
	return essay.QualityScoresFromMap(m)
}
