package repair

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Stage names the strategy that produced a result.
type Stage string

const (
	StageDirect       Stage = "direct"
	StageTruncation   Stage = "truncation"
	StageSubstructure Stage = "substructure"
	StageSalvage      Stage = "salvage"
	StageNeutral      Stage = "neutral"
)

// Strategy is one repair attempt. Attempt must not panic.
type Strategy interface {
	Name() Stage
	Attempt(text string) (Payload, bool)
}

// Direct parses the cleaned text as-is.
type Direct struct{}

func (Direct) Name() Stage { return StageDirect }

func (Direct) Attempt(text string) (Payload, bool) {
	return decode(clean(text))
}

// Truncation closes text that stops mid-string, mid-array or after a
// dangling comma. It tries the longest recoverable prefix first.
type Truncation struct {
	// MaxAttempts bounds the number of cut points tried. Zero means 64.
	MaxAttempts int
}

func (Truncation) Name() Stage { return StageTruncation }

func (t Truncation) Attempt(text string) (Payload, bool) {
	s := clean(text)
	if !strings.HasPrefix(s, "{") {
		return Payload{}, false
	}
	st := scan(s)
	trimmed := strings.TrimRight(s, " \t\r\n")
	truncated := st.inString || st.open != "" || strings.HasSuffix(trimmed, ",")
	if st.malformed || !truncated {
		return Payload{}, false
	}

	if st.inString {
		if p, ok := decode(closeOff(s+`"`, st.open)); ok {
			return p, true
		}
	} else if p, ok := decode(closeOff(s, st.open)); ok {
		return p, true
	}

	limit := t.MaxAttempts
	if limit <= 0 {
		limit = 64
	}
	for i, tried := len(st.cuts)-1, 0; i >= 0 && tried < limit; i, tried = i-1, tried+1 {
		cut := st.cuts[i]
		if p, ok := decode(closeOff(s[:cut.end], cut.closers)); ok {
			return p, true
		}
	}
	return Payload{}, false
}

// closeOff drops trailing separators and appends the closers.
func closeOff(prefix, closers string) string {
	return strings.TrimRight(prefix, " \t\r\n,:") + closers
}

var (
	correctionsRe = regexp.MustCompile(`"corrections"\s*:\s*\[`)
	scoringRe     = regexp.MustCompile(`"scoring"\s*:\s*\{`)
)

// Substructure lifts the corrections array out of an otherwise broken
// document and wraps it with the scoring block if one survives intact.
type Substructure struct{}

func (Substructure) Name() Stage { return StageSubstructure }

func (Substructure) Attempt(text string) (Payload, bool) {
	loc := correctionsRe.FindStringIndex(text)
	if loc == nil {
		return Payload{}, false
	}
	start := loc[1] - 1
	end := balancedEnd(text, start)
	if end < 0 {
		return Payload{}, false
	}
	arr := text[start:end]
	if !gjson.Valid(arr) {
		return Payload{}, false
	}
	doc, err := sjson.SetRaw("{}", "corrections", arr)
	if err != nil {
		return Payload{}, false
	}
	return decode(withScoring(doc, text))
}

// Salvage collects every complete correction object found anywhere in the
// text. Objects missing original or correction are discarded.
type Salvage struct{}

func (Salvage) Name() Stage { return StageSalvage }

func (Salvage) Attempt(text string) (Payload, bool) {
	doc := `{"corrections":[]}`
	found := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := balancedEnd(text, i)
		if end < 0 {
			continue
		}
		obj := text[i:end]
		if !completeItem(obj) {
			continue
		}
		next, err := sjson.SetRaw(doc, "corrections.-1", obj)
		if err != nil {
			continue
		}
		doc = next
		found++
		i = end - 1
	}
	if found == 0 {
		return Payload{}, false
	}
	return decode(withScoring(doc, text))
}

func completeItem(obj string) bool {
	if !gjson.Valid(obj) {
		return false
	}
	o, c := gjson.Get(obj, "original"), gjson.Get(obj, "correction")
	return o.Type == gjson.String && c.Type == gjson.String && o.String() != ""
}

// withScoring copies an intact scoring block from text into doc. Without
// one the payload keeps the neutral default.
func withScoring(doc, text string) string {
	loc := scoringRe.FindStringIndex(text)
	if loc == nil {
		return doc
	}
	start := loc[1] - 1
	end := balancedEnd(text, start)
	if end < 0 {
		return doc
	}
	block := text[start:end]
	if !gjson.Valid(block) {
		return doc
	}
	if _, err := scoringFrom(gjson.Parse(block)); err != nil {
		return doc
	}
	out, err := sjson.SetRaw(doc, "scoring", block)
	if err != nil {
		return doc
	}
	return out
}
