package features

import (
	"math"
	"strings"
	"testing"
)

const sampleEssay = `Technology in Schools

Technology has changed how students learn. In this essay I will discuss its benefits and its risks.

First, digital tools give students access to research and evidence from many sources. For example, a student can compare studies in minutes. However, access alone does not guarantee understanding.

Moreover, teachers must evaluate which tools support learning. Some may argue that screens distract students. Nevertheless, careful planning reduces this problem.

In conclusion, technology is a significant resource when schools use it with purpose. Overall, the benefits outweigh the risks.`

func TestLayoutIsFixed(t *testing.T) {
	layout := Layout()
	total := 0
	for _, g := range layout {
		if len(g.Slots) > g.Size {
			t.Errorf("group %s names %d slots but reserves %d", g.Name, len(g.Slots), g.Size)
		}
		total += g.Size
	}
	if total != Size {
		t.Fatalf("groups reserve %d slots, want %d", total, Size)
	}

	starts := map[string]int{}
	for _, g := range layout {
		starts[g.Name] = g.Start
	}
	want := map[string]int{
		"surface":    surfaceStart,
		"lexical":    lexicalStart,
		"vocabulary": vocabularyStart,
		"sentence":   sentenceStart,
		"structure":  structureStart,
		"coherence":  coherenceStart,
		"mechanics":  mechanicsStart,
		"reserved":   reservedStart,
	}
	for name, start := range want {
		if starts[name] != start {
			t.Errorf("%s starts at %d, want %d", name, starts[name], start)
		}
	}

	names := map[int]string{
		SlotWordCount:       "surface.word_count",
		SlotTypeToken:       "lexical.type_token_ratio",
		SlotTransitionFirst: "vocabulary.transition_addition",
		SlotTransitionLast:  "vocabulary.transition_emphasis",
		SlotMultiSection:    "structure.multi_section",
		reservedStart + 3:   "",
	}
	for slot, name := range names {
		if got := SlotName(slot); got != name {
			t.Errorf("SlotName(%d) = %q, want %q", slot, got, name)
		}
	}
}

func TestExtractBounded(t *testing.T) {
	long := strings.Repeat(sampleEssay+"\n\n", 40)
	inputs := map[string]string{
		"empty":       "",
		"whitespace":  "   \n\n\t ",
		"punctuation": "?!... ,,,",
		"single word": "Hello",
		"sample":      sampleEssay,
		"very long":   long,
	}
	bounds := []Bound{DefaultBound(), {Lo: -1, Hi: 1}}
	for name, text := range inputs {
		for _, b := range bounds {
			e, err := NewExtractor(b)
			if err != nil {
				t.Fatal(err)
			}
			v := e.Extract(text, nil)
			for i, x := range v {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					t.Errorf("%s: slot %d not finite", name, i)
				}
				if x < b.Lo || x > b.Hi {
					t.Errorf("%s: slot %d = %v outside [%v,%v]", name, i, x, b.Lo, b.Hi)
				}
			}
			for i := reservedStart; i < Size; i++ {
				if v[i] != 0 {
					t.Errorf("%s: reserved slot %d = %v", name, i, v[i])
				}
			}
		}
	}
}

func TestExtractDegenerateIsZero(t *testing.T) {
	for _, text := range []string{"", "   ", "...!!!", "\n\n\n"} {
		v, sum := Analyze(text, nil)
		if v != (Vector{}) {
			t.Errorf("%q: vector not zero", text)
		}
		if sum != (Summary{}) {
			t.Errorf("%q: summary = %+v", text, sum)
		}
	}
}

func TestExtractSingleWord(t *testing.T) {
	v, sum := Analyze("Hello", nil)
	if sum.Words != 1 || sum.Sentences != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if math.Abs(v[SlotWordCount]-1.0/WordCountScale) > 1e-9 {
		t.Errorf("word count slot = %v", v[SlotWordCount])
	}
	if v[SlotTypeToken] != 1 {
		t.Errorf("type-token ratio = %v, want 1", v[SlotTypeToken])
	}
}

func TestExtractSampleSignals(t *testing.T) {
	v, sum := Analyze(sampleEssay, nil)

	if sum.Paragraphs != 4 || sum.Sections != 1 || !sum.StructurePresent {
		t.Errorf("summary = %+v", sum)
	}
	if math.Abs(v[SlotWordCount]-float64(sum.Words)/WordCountScale) > 1e-9 {
		t.Errorf("word count slot = %v for %d words", v[SlotWordCount], sum.Words)
	}
	if v[SlotIntroduction] != 1 || v[SlotConclusion] != 1 {
		t.Errorf("intro = %v conclusion = %v", v[SlotIntroduction], v[SlotConclusion])
	}
	if v[SlotAcademic] <= 0 {
		t.Error("academic vocabulary not detected")
	}
	for slot := SlotTransitionFirst; slot <= SlotTransitionLast; slot++ {
		if v[slot] > 0 {
			return
		}
	}
	t.Fatal("expected at least one transition category to register")
}

func TestStructureDetectedUnderAnyBound(t *testing.T) {
	// The multi-section slot clamps to zero here; the summary must not.
	e, err := NewExtractor(Bound{Lo: -1, Hi: 0})
	if err != nil {
		t.Fatal(err)
	}
	v, sum := e.Analyze(sampleEssay, nil)
	if v[SlotMultiSection] != 0 {
		t.Fatalf("multi-section slot = %v, want clamped to 0", v[SlotMultiSection])
	}
	if !sum.StructurePresent {
		t.Error("structure lost to the clamp")
	}
}

func TestExtractDeterministic(t *testing.T) {
	if Extract(sampleEssay, nil) != Extract(sampleEssay, nil) {
		t.Error("two extractions of the same text differ")
	}
}

func TestMechanicsRules(t *testing.T) {
	cases := []struct {
		rule string
		text string
	}{
		{"doubled_word", "The the dog ran home."},
		{"third_person_dont", "He don't like apples."},
		{"plural_was", "They was late again."},
		{"modal_of", "We could of won the game."},
		{"lowercase_sentence_start", "The sky is blue. the grass is green."},
		{"lowercase_pronoun_i", "Yesterday i went to the park."},
		{"repeated_punctuation", "What are you doing?!?"},
		{"common_misspellings", "I recieve alot of mail."},
	}
	names := mechanicsSlots()
	clean := Extract("The weather was pleasant and the students walked home together.", nil)
	for _, tc := range cases {
		t.Run(tc.rule, func(t *testing.T) {
			slot := -1
			for i, n := range names {
				if n == tc.rule {
					slot = i
				}
			}
			if slot < 0 {
				t.Fatalf("no slot named %s", tc.rule)
			}
			if v := Extract(tc.text, nil); v[mechanicsStart+slot] <= 0 {
				t.Errorf("%q did not trigger %s", tc.text, tc.rule)
			}
			if clean[mechanicsStart+slot] != 0 {
				t.Errorf("clean text triggered %s", tc.rule)
			}
		})
	}
}

func TestVocabularyRuleSlotsUnique(t *testing.T) {
	seen := map[int]string{}
	for _, r := range vocabularyRules {
		if prev, dup := seen[r.slot]; dup {
			t.Errorf("slot %d used by %s and %s", r.slot, prev, r.name)
		}
		seen[r.slot] = r.name
		if r.slot >= 30 {
			t.Errorf("%s: slot %d outside the vocabulary group", r.name, r.slot)
		}
	}
	seen = map[int]string{}
	for _, r := range mechanicsRules {
		if prev, dup := seen[r.slot]; dup {
			t.Errorf("slot %d used by %s and %s", r.slot, prev, r.name)
		}
		seen[r.slot] = r.name
		if r.slot >= MechanicsSize {
			t.Errorf("%s: slot %d outside the mechanics group", r.name, r.slot)
		}
	}
}

func TestStructureOverride(t *testing.T) {
	st := &Structure{
		Paragraphs: []string{"Cities are growing quickly.", "Transport must adapt to growth.", "Planning matters."},
		Sections:   []string{"Introduction", "Analysis", "Conclusion"},
	}
	v, sum := Analyze("ignored when paragraphs are supplied", st)
	if sum.Paragraphs != 3 || sum.Sections != 3 || !sum.StructurePresent {
		t.Errorf("summary = %+v", sum)
	}
	if v[SlotMultiSection] != 1 {
		t.Errorf("multi-section slot = %v, want 1", v[SlotMultiSection])
	}
}

func TestBoundValidate(t *testing.T) {
	tests := []struct {
		b       Bound
		wantErr bool
	}{
		{DefaultBound(), false},
		{Bound{Lo: -1, Hi: 1}, false},
		{Bound{Lo: -1, Hi: 0}, false},
		{Bound{Lo: 1, Hi: 0}, true},
		{Bound{Lo: 0.2, Hi: 1}, true},
	}
	for _, tt := range tests {
		if err := tt.b.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%+v: err = %v, wantErr %v", tt.b, err, tt.wantErr)
		}
	}
}

func TestSyllables(t *testing.T) {
	for word, want := range map[string]int{"cat": 1, "make": 1, "elephant": 3, "table": 2} {
		if got := syllables(word); got != want {
			t.Errorf("syllables(%q) = %d, want %d", word, got, want)
		}
	}
}
