package features

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Structure is optional caller-supplied layout. When nil, paragraphs come
// from blank-line splitting and sections from heading-like lines.
type Structure struct {
	Paragraphs []string `json:"paragraphs,omitempty"`
	Sections   []string `json:"sections,omitempty"`
}

var (
	wordRe       = regexp.MustCompile(`[\p{L}\p{N}]+(?:'[\p{L}]+)*`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]*`)
	blankLineRe  = regexp.MustCompile(`\n[ \t]*\n`)
	listItemRe   = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
	terminalPunc = ".!?,;:"
)

var punctuationFolds = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
	"—", " - ",
	"–", "-",
)

type sentence struct {
	raw    string
	tokens []string
	words  []string
}

type paragraph struct {
	raw       string
	sentences []sentence
}

type doc struct {
	body       string
	lower      string
	words      []string
	sentences  []sentence
	paragraphs []paragraph
	headings   int
	sections   int
	listItems  int
	freq       map[string]int
}

func normalize(text string) string {
	return punctuationFolds.Replace(norm.NFC.String(text))
}

func parse(text string, st *Structure) *doc {
	d := &doc{freq: map[string]int{}}

	var blocks []string
	fromStructure := st != nil && len(st.Paragraphs) > 0
	if fromStructure {
		for _, p := range st.Paragraphs {
			blocks = append(blocks, normalize(p))
		}
	} else {
		blocks = blankLineRe.Split(normalize(text), -1)
	}

	nonEmpty := 0
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			nonEmpty++
		}
	}
	detectHeadings := !fromStructure && nonEmpty > 1

	var bodies []string
	for _, block := range blocks {
		var kept []string
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if listItemRe.MatchString(line) {
				d.listItems++
			}
			if detectHeadings && isHeading(line) {
				d.headings++
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) == 0 {
			continue
		}
		p := paragraph{raw: strings.Join(kept, " ")}
		p.sentences = splitSentences(p.raw)
		if len(p.sentences) == 0 {
			continue
		}
		d.paragraphs = append(d.paragraphs, p)
		d.sentences = append(d.sentences, p.sentences...)
		bodies = append(bodies, p.raw)
	}

	for _, s := range d.sentences {
		d.words = append(d.words, s.words...)
	}
	for _, w := range d.words {
		d.freq[w]++
	}
	d.body = strings.Join(bodies, "\n\n")
	d.lower = strings.ToLower(d.body)

	d.sections = d.headings
	if st != nil && len(st.Sections) > 0 {
		d.sections = 0
		for _, s := range st.Sections {
			if strings.TrimSpace(s) != "" {
				d.sections++
			}
		}
	}
	return d
}

func splitSentences(text string) []sentence {
	var out []sentence
	for _, m := range sentenceRe.FindAllString(text, -1) {
		tokens := wordRe.FindAllString(m, -1)
		if len(tokens) == 0 {
			continue
		}
		words := make([]string, len(tokens))
		for i, t := range tokens {
			words[i] = strings.ToLower(t)
		}
		out = append(out, sentence{raw: strings.TrimSpace(m), tokens: tokens, words: words})
	}
	return out
}

// isHeading recognises markdown headings and short title-like lines that
// carry no terminal punctuation.
func isHeading(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	if strings.ContainsAny(line[len(line)-1:], terminalPunc) {
		return false
	}
	n := len(wordRe.FindAllString(line, -1))
	if n == 0 || n > 8 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func isContent(w string) bool {
	return utf8.RuneCountInString(w) >= 3 && !stopwords[w]
}

func contentSet(words []string) map[string]bool {
	set := map[string]bool{}
	for _, w := range words {
		if isContent(w) {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	return ratio(float64(inter), float64(len(a)+len(b)-inter))
}

func syllables(w string) int {
	n := 0
	prevVowel := false
	for _, r := range w {
		v := strings.ContainsRune("aeiouy", unicode.ToLower(r))
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && n > 1 {
		n--
	}
	if n == 0 {
		n = 1
	}
	return n
}

var stopwords = setOf(
	"a", "an", "the", "and", "or", "but", "if", "of", "to", "in", "on", "at", "by", "for",
	"with", "from", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its",
	"this", "that", "these", "those", "he", "she", "they", "we", "you", "i", "me", "my",
	"our", "your", "their", "his", "her", "them", "us", "him", "not", "no", "so", "do",
	"does", "did", "has", "have", "had", "will", "would", "can", "could", "should", "there",
	"what", "which", "who", "when", "where", "how", "than", "then", "also", "very", "just",
	"about", "into", "all", "any", "some", "such", "more", "most", "other", "only", "own",
)

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
