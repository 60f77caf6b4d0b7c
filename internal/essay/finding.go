package essay

import "strings"

// Kind classifies a finding.
type Kind string

const (
	KindGrammar     Kind = "grammar"
	KindSpelling    Kind = "spelling"
	KindPunctuation Kind = "punctuation"
	KindStyle       Kind = "style"
)

// ParseKind maps free-form labels onto a Kind. Unknown labels count as grammar.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spelling", "typo":
		return KindSpelling
	case "punctuation":
		return KindPunctuation
	case "style", "word_choice", "clarity":
		return KindStyle
	default:
		return KindGrammar
	}
}

// Severity grades how much a finding matters.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// ParseSeverity maps free-form labels onto a Severity, defaulting to moderate.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minor", "low":
		return SeverityMinor
	case "severe", "major", "high", "critical":
		return SeveritySevere
	default:
		return SeverityModerate
	}
}

// ErrorFinding is one detected grammar or spelling problem.
type ErrorFinding struct {
	Original   string   `json:"original"`
	Correction string   `json:"correction"`
	Kind       Kind     `json:"kind"`
	Confidence float64  `json:"confidence"`
	Severity   Severity `json:"severity"`
	// Position is a sentence or character index; -1 when unknown.
	Position int    `json:"position"`
	Reason   string `json:"reason,omitempty"`
}

// Key identifies a finding for duplicate suppression, ignoring position.
func (f ErrorFinding) Key() string {
	return strings.ToLower(strings.TrimSpace(f.Original)) + "\x00" +
		strings.ToLower(strings.TrimSpace(f.Correction))
}
