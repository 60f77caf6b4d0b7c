// Package features turns essay text into the fixed 150-slot vector consumed
// by the external scorer. Slot positions are part of the scorer contract:
// each group owns a reserved range and pads with zeros up to its boundary.
package features

import (
	"fmt"
	"math"
)

// Size is the number of slots in every vector.
const Size = 150

// Vector is a positional feature vector. Its length is fixed by type.
type Vector [Size]float64

// Group boundaries. A group never writes outside [start, start+size).
const (
	surfaceStart    = 0
	lexicalStart    = 20
	vocabularyStart = 35
	sentenceStart   = 65
	structureStart  = 80
	coherenceStart  = 95
	mechanicsStart  = 110
	reservedStart   = 130
)

// Slots read directly by the fallback estimator and the CLI.
const (
	SlotWordCount          = surfaceStart + 0
	SlotSentenceCount      = surfaceStart + 2
	SlotParagraphCount     = surfaceStart + 3
	SlotLongWordRatio      = surfaceStart + 5
	SlotTypeToken          = lexicalStart + 0
	SlotAcademic           = vocabularyStart + 0
	SlotTransitionFirst    = vocabularyStart + 1
	SlotTransitionLast     = vocabularyStart + 7
	SlotMeanSentenceLength = sentenceStart + 0
	SlotIntroduction       = structureStart + 0
	SlotConclusion         = structureStart + 1
	SlotMultiSection       = structureStart + 2
	SlotAdjacentOverlap    = coherenceStart + 0
	MechanicsStart         = mechanicsStart
	MechanicsSize          = reservedStart - mechanicsStart
)

// Scale divisors used when counts are squeezed into [0,1].
const (
	WordCountScale      = 1000.0
	ParagraphCountScale = 10.0
	SentenceLengthScale = 40.0
)

// Bound is the closed range every slot is clamped to. It must contain zero
// so padding and degenerate vectors stay legal.
type Bound struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// DefaultBound returns [0,1].
func DefaultBound() Bound {
	return Bound{Lo: 0, Hi: 1}
}

// Validate checks that the bound is usable.
func (b Bound) Validate() error {
	if math.IsNaN(b.Lo) || math.IsNaN(b.Hi) || b.Lo >= b.Hi {
		return fmt.Errorf("invalid feature bound [%v, %v]", b.Lo, b.Hi)
	}
	if b.Lo > 0 || b.Hi < 0 {
		return fmt.Errorf("feature bound [%v, %v] must contain zero", b.Lo, b.Hi)
	}
	return nil
}

func (b Bound) clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	if v < b.Lo {
		return b.Lo
	}
	if v > b.Hi {
		return b.Hi
	}
	return v
}

// Group describes one reserved slot range.
type Group struct {
	Name  string
	Start int
	Size  int
	Slots []string
}

type groupDef struct {
	name    string
	size    int
	slots   []string
	compute func(d *doc) []float64
}

var groupDefs = []groupDef{
	{name: "surface", size: 20, slots: surfaceSlots, compute: surfaceGroup},
	{name: "lexical", size: 15, slots: lexicalSlots, compute: lexicalGroup},
	{name: "vocabulary", size: 30, slots: vocabularySlots(), compute: vocabularyGroup},
	{name: "sentence", size: 15, slots: sentenceSlots, compute: sentenceGroup},
	{name: "structure", size: 15, slots: structureSlots, compute: structureGroup},
	{name: "coherence", size: 15, slots: coherenceSlots, compute: coherenceGroup},
	{name: "mechanics", size: 20, slots: mechanicsSlots(), compute: mechanicsGroup},
	{name: "reserved", size: 20},
}

// Layout returns the slot map in positional order.
func Layout() []Group {
	out := make([]Group, 0, len(groupDefs))
	start := 0
	for _, g := range groupDefs {
		out = append(out, Group{Name: g.name, Start: start, Size: g.size, Slots: g.slots})
		start += g.size
	}
	return out
}

// SlotName returns the measurement name at position i, or "" for padding.
func SlotName(i int) string {
	for _, g := range Layout() {
		if i >= g.Start && i < g.Start+g.Size {
			if off := i - g.Start; off < len(g.Slots) {
				return g.Name + "." + g.Slots[off]
			}
			return ""
		}
	}
	return ""
}

// NamedValue pairs a slot with its value.
type NamedValue struct {
	Index int
	Group string
	Name  string
	Value float64
}

// Describe lists every named slot of v.
func Describe(v Vector) []NamedValue {
	var out []NamedValue
	for _, g := range Layout() {
		for off, name := range g.Slots {
			if off >= g.Size {
				break
			}
			i := g.Start + off
			out = append(out, NamedValue{Index: i, Group: g.Name, Name: name, Value: v[i]})
		}
	}
	return out
}

// Slice returns the vector as a slice for encoding.
func (v Vector) Slice() []float64 {
	out := make([]float64, Size)
	copy(out, v[:])
	return out
}
