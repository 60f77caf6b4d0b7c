package features

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// vocabRule counts weighted matches of a word list or pattern. The slot
// value is the weighted rate per ten words.
type vocabRule struct {
	slot    int
	name    string
	weight  float64
	pattern *regexp.Regexp
}

func wordList(words ...string) *regexp.Regexp {
	alts := make([]string, len(words))
	for i, w := range words {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
}

var vocabularyRules = []vocabRule{
	{0, "academic_words", 1, wordList(
		"analyze", "analysis", "approach", "assess", "assume", "concept", "consist", "context",
		"data", "define", "derive", "distribute", "establish", "estimate", "evaluate", "evidence",
		"factor", "function", "identify", "indicate", "interpret", "involve", "method", "occur",
		"percent", "period", "principle", "process", "require", "research", "respond", "role",
		"significant", "source", "specific", "structure", "theory", "variable", "vary", "hypothesis",
	)},
	{1, "transition_addition", 1, wordList("moreover", "furthermore", "additionally", "in addition", "besides", "as well as")},
	{2, "transition_contrast", 1, wordList("however", "nevertheless", "nonetheless", "although", "whereas", "on the other hand", "conversely", "yet")},
	{3, "transition_cause", 1, wordList("therefore", "thus", "consequently", "as a result", "hence", "because", "due to", "accordingly")},
	{4, "transition_example", 1, wordList("for example", "for instance", "such as", "namely", "specifically", "to illustrate")},
	{5, "transition_sequence", 1, wordList("first", "firstly", "second", "secondly", "third", "finally", "next", "subsequently", "lastly")},
	{6, "transition_conclusion", 1, wordList("in conclusion", "to summarize", "in summary", "to conclude", "overall", "ultimately", "to sum up")},
	{7, "transition_emphasis", 1, wordList("indeed", "notably", "in fact", "particularly", "especially", "above all")},
	{8, "hedging", 1, wordList("may", "might", "perhaps", "possibly", "likely", "suggest", "suggests", "appear", "appears", "seem", "seems", "tend to")},
	{9, "boosters", 1, wordList("clearly", "obviously", "certainly", "definitely", "undoubtedly", "surely", "always")},
	{10, "first_person_singular", 1, wordList("i", "me", "my", "mine", "myself")},
	{11, "first_person_plural", 1, wordList("we", "us", "our", "ours", "ourselves")},
	{12, "second_person", 1, wordList("you", "your", "yours", "yourself")},
	{13, "contractions", 1, regexp.MustCompile(`\b\w+'(?:t|s|re|ve|ll|d|m)\b`)},
	{14, "informal_words", 1.5, wordList("gonna", "wanna", "kinda", "sorta", "stuff", "awesome", "cool", "okay", "ok", "yeah", "kids", "guys", "a lot")},
	{15, "intensifiers", 1, wordList("very", "really", "extremely", "totally", "so much", "super")},
	{16, "vague_words", 1, wordList("thing", "things", "something", "somehow", "anything", "whatever", "etc")},
	{17, "citation_markers", 1, wordList("according to", "research", "study", "studies", "evidence", "survey", "statistics", "experts", "cited")},
	{18, "argument_verbs", 1, wordList("argue", "argues", "claim", "claims", "assert", "contend", "demonstrate", "demonstrates", "prove", "proves", "support", "supports")},
	{19, "counterargument", 1.5, wordList("some may argue", "some people believe", "critics", "opponents", "admittedly", "it could be argued", "while it is true")},
	{20, "comparison", 1, wordList("similarly", "likewise", "compared to", "in contrast", "unlike", "in the same way")},
	{21, "passive_voice", 1, regexp.MustCompile(`\b(?:is|are|was|were|be|been|being)\s+\w+ed\b`)},
	{22, "nominalizations", 0.5, regexp.MustCompile(`\b\w{3,}(?:tion|ment|ness|ity|ance|ence)s?\b`)},
	{23, "modal_verbs", 0.5, wordList("must", "should", "shall", "would", "will", "can", "could")},
	{24, "negations", 1, regexp.MustCompile(`\b(?:not|no|never|none|nothing|nobody|\w+n't)\b`)},
	{25, "quantifiers", 0.5, wordList("many", "most", "several", "numerous", "few", "various", "majority", "minority")},
	{26, "temporal_markers", 1, wordList("today", "currently", "recently", "historically", "nowadays", "formerly", "in the past", "in the future")},
	{27, "descriptive_adjectives", 0.5, regexp.MustCompile(`\b\w{3,}(?:ous|ful|ive|able|ible|al)\b`)},
	{28, "opinion_markers", 1.5, wordList("i think", "i believe", "in my opinion", "i feel", "from my perspective", "personally")},
	{29, "academic_phrases", 1.5, wordList("it is important to note", "plays a role", "crucial", "essential", "fundamental", "in terms of", "with regard to")},
}

func vocabularySlots() []string {
	return ruleNames(len(vocabularyRules), func(i int) (int, string) {
		return vocabularyRules[i].slot, vocabularyRules[i].name
	})
}

// mechanicsRule counts a surface error pattern. The slot value is the
// weighted rate per five words, so one error per hundred words reads 0.2.
type mechanicsRule struct {
	slot   int
	name   string
	weight float64
	count  func(d *doc) int
}

// onLower matches against lower-cased body text.
func onLower(pattern string) func(d *doc) int {
	re := regexp.MustCompile(pattern)
	return func(d *doc) int { return len(re.FindAllStringIndex(d.lower, -1)) }
}

// onBody matches against the original casing.
func onBody(pattern string) func(d *doc) int {
	re := regexp.MustCompile(pattern)
	return func(d *doc) int { return len(re.FindAllStringIndex(d.body, -1)) }
}

var mechanicsRules = []mechanicsRule{
	{0, "doubled_word", 1, doubledWords},
	{1, "third_person_dont", 1, onLower(`\b(?:he|she|it)\s+don't\b`)},
	{2, "plural_was", 1, onLower(`\b(?:they|we|you)\s+was\b`)},
	{3, "i_is", 1, onLower(`\bi\s+(?:is|has)\b`)},
	{4, "modal_of", 1, onLower(`\b(?:could|should|would|must|might)\s+of\b`)},
	{5, "a_before_vowel", 0.5, onLower(`\ba\s+[aeio][a-z]+`)},
	{6, "an_before_consonant", 0.5, onLower(`\ban\s+[bcdfgjklmnpqrstvwxyz][a-z]+`)},
	{7, "their_there", 1, onLower(`\bthere\s+(?:own|car|house|friends|family|parents)\b|\btheir\s+(?:is|are|was|were)\b`)},
	{8, "your_youre", 1, onLower(`\byour\s+(?:welcome|going|right|wrong|not)\b`)},
	{9, "its_confusion", 1, onLower(`\bit's\s+(?:own|self)\b|\bits\s+(?:a|an|not|going|been)\b`)},
	{10, "lowercase_sentence_start", 1, lowercaseStarts},
	{11, "missing_space_after_punctuation", 1, onBody(`[a-z]{2}[,;:!?][A-Za-z]|[a-z]{3}\.[A-Z][a-z]`)},
	{12, "lowercase_pronoun_i", 1, onBody(`(?:^|\s)i(?:\s|'|$)`)},
	{13, "repeated_punctuation", 0.5, onBody(`[!?]{2,}|\.{4,}|,,`)},
	{14, "space_before_punctuation", 0.5, onBody(`\w\s+[,;:!?]`)},
	{15, "run_on_sentence", 1, longSentences},
	{16, "comma_splice", 0.5, onLower(`,\s+(?:i|he|she|it|we|they)\s+(?:am|is|are|was|were|have|has)\b`)},
	{17, "subject_verb_agreement", 1, onLower(`\b(?:he|she|it)\s+(?:have|do|are|were)\b|\b(?:they|we)\s+(?:has|does|is)\b`)},
	{18, "double_negative", 1, onLower(`\b(?:don't|doesn't|didn't|can't|won't|ain't)\s+(?:\w+\s+)?(?:nothing|nobody|none|never)\b`)},
	{19, "common_misspellings", 1, onLower(`\b(?:alot|definately|recieve|seperate|occured|untill|wich|becuase|beleive|thier|truely|wierd|goverment|enviroment|tommorow|arguement|begining|buisness|occurence|neccessary)\b`)},
}

func mechanicsSlots() []string {
	return ruleNames(len(mechanicsRules), func(i int) (int, string) {
		return mechanicsRules[i].slot, mechanicsRules[i].name
	})
}

func ruleNames(n int, at func(i int) (int, string)) []string {
	last := -1
	for i := 0; i < n; i++ {
		if s, _ := at(i); s > last {
			last = s
		}
	}
	names := make([]string, last+1)
	for i := 0; i < n; i++ {
		s, name := at(i)
		names[s] = name
	}
	return names
}

func doubledWords(d *doc) int {
	n := 0
	for _, s := range d.sentences {
		for i := 1; i < len(s.words); i++ {
			if s.words[i] == s.words[i-1] && s.words[i] != "that" && s.words[i] != "had" {
				n++
			}
		}
	}
	return n
}

func lowercaseStarts(d *doc) int {
	n := 0
	for _, s := range d.sentences {
		if r, _ := utf8.DecodeRuneInString(s.tokens[0]); unicode.IsLower(r) {
			n++
		}
	}
	return n
}

func longSentences(d *doc) int {
	n := 0
	for _, s := range d.sentences {
		if len(s.words) > 40 {
			n++
		}
	}
	return n
}
