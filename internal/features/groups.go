package features

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var surfaceSlots = []string{
	"word_count", "char_count", "sentence_count", "paragraph_count", "mean_word_length",
	"long_word_ratio", "short_word_ratio", "mean_syllables", "polysyllable_ratio",
	"commas_per_sentence", "semicolons_colons_per_sentence", "question_ratio",
	"exclamation_ratio", "quotes_per_sentence", "parentheses_per_sentence", "numeric_ratio",
	"inner_capital_ratio", "all_caps_ratio", "stopword_ratio", "words_per_paragraph",
}

func surfaceGroup(d *doc) []float64 {
	n := float64(len(d.words))
	ns := float64(len(d.sentences))
	np := float64(len(d.paragraphs))

	var letters, long, short, syll, poly, numeric, stop float64
	for _, w := range d.words {
		l := utf8.RuneCountInString(w)
		letters += float64(l)
		if l >= 7 {
			long++
		}
		if l <= 3 {
			short++
		}
		sy := syllables(w)
		syll += float64(sy)
		if sy >= 3 {
			poly++
		}
		if r, _ := utf8.DecodeRuneInString(w); unicode.IsDigit(r) {
			numeric++
		}
		if stopwords[w] {
			stop++
		}
	}

	var innerCaps, allCaps, questions, exclaims float64
	for _, s := range d.sentences {
		for i, t := range s.tokens {
			r, _ := utf8.DecodeRuneInString(t)
			if i > 0 && unicode.IsUpper(r) && t != "I" && !strings.HasPrefix(t, "I'") {
				innerCaps++
			}
			if utf8.RuneCountInString(t) >= 2 && strings.ToUpper(t) == t && strings.ToLower(t) != t {
				allCaps++
			}
		}
		switch {
		case strings.HasSuffix(s.raw, "?"):
			questions++
		case strings.HasSuffix(s.raw, "!"):
			exclaims++
		}
	}

	count := func(chars string) float64 {
		c := 0
		for _, r := range d.body {
			if strings.ContainsRune(chars, r) {
				c++
			}
		}
		return float64(c)
	}

	return []float64{
		n / WordCountScale,
		letters / 5000,
		ns / 50,
		np / ParagraphCountScale,
		ratio(letters, n) / 10,
		ratio(long, n),
		ratio(short, n),
		ratio(syll, n) / 3,
		ratio(poly, n),
		ratio(count(","), ns) / 3,
		ratio(count(";:"), ns),
		ratio(questions, ns),
		ratio(exclaims, ns),
		ratio(count(`"`), ns) / 2,
		ratio(count("()"), ns),
		ratio(numeric, n),
		ratio(innerCaps, n),
		ratio(allCaps, n),
		ratio(stop, n),
		ratio(n, np) / 200,
	}
}

var lexicalSlots = []string{
	"type_token_ratio", "root_ttr", "log_ttr", "hapax_ratio", "dis_legomena_ratio",
	"yules_k", "content_word_ratio", "lexical_density", "top_word_share",
	"moving_average_ttr", "long_type_ratio", "mean_word_frequency", "content_guiraud",
	"bigram_repetition",
}

func lexicalGroup(d *doc) []float64 {
	n := float64(len(d.words))
	types := float64(len(d.freq))

	var hapax, dis, sumSq, longTypes float64
	for w, f := range d.freq {
		switch f {
		case 1:
			hapax++
		case 2:
			dis++
		}
		sumSq += float64(f * f)
		if utf8.RuneCountInString(w) >= 7 {
			longTypes++
		}
	}

	var contentN, topContent float64
	contentTypes := map[string]int{}
	for _, w := range d.words {
		if isContent(w) {
			contentN++
			contentTypes[w]++
			if c := float64(contentTypes[w]); c > topContent {
				topContent = c
			}
		}
	}

	logTTR := 0.0
	if n > 1 && types > 0 {
		logTTR = math.Log(types) / math.Log(n)
	}

	bigrams := map[string]int{}
	total := 0
	for _, s := range d.sentences {
		for i := 1; i < len(s.words); i++ {
			bigrams[s.words[i-1]+" "+s.words[i]]++
			total++
		}
	}
	repeated := 0
	for _, c := range bigrams {
		if c > 1 {
			repeated += c - 1
		}
	}

	return []float64{
		ratio(types, n),
		ratio(types, math.Sqrt(n)) / 15,
		logTTR,
		ratio(hapax, types),
		ratio(dis, types),
		ratio(1e4*(sumSq-n), n*n) / 200,
		ratio(contentN, n),
		ratio(float64(len(contentTypes)), n),
		ratio(topContent, contentN),
		movingTTR(d.words, 50),
		ratio(longTypes, types),
		ratio(n, types) / 10,
		ratio(float64(len(contentTypes)), math.Sqrt(contentN)) / 15,
		ratio(float64(repeated), float64(total)),
	}
}

// movingTTR averages type-token ratio over sliding windows so long essays
// are not penalised for length alone.
func movingTTR(words []string, window int) float64 {
	if len(words) == 0 {
		return 0
	}
	if len(words) <= window {
		return float64(len(setOf(words...))) / float64(len(words))
	}
	counts := map[string]int{}
	for _, w := range words[:window] {
		counts[w]++
	}
	sum := float64(len(counts))
	steps := 1
	for i := window; i < len(words); i++ {
		out := words[i-window]
		counts[out]--
		if counts[out] == 0 {
			delete(counts, out)
		}
		counts[words[i]]++
		sum += float64(len(counts))
		steps++
	}
	return sum / float64(steps) / float64(window)
}

func vocabularyGroup(d *doc) []float64 {
	n := float64(len(d.words))
	out := make([]float64, len(vocabularySlots()))
	for _, r := range vocabularyRules {
		c := float64(len(r.pattern.FindAllStringIndex(d.lower, -1)))
		out[r.slot] = ratio(r.weight*c, n) * 10
	}
	return out
}

var sentenceSlots = []string{
	"mean_length", "length_stddev", "min_length", "max_length", "median_length",
	"p25_length", "p75_length", "short_sentence_ratio", "long_sentence_ratio",
	"length_variation", "bin_1_7", "bin_8_14", "bin_15_21", "bin_22_28", "bin_29_plus",
}

func sentenceGroup(d *doc) []float64 {
	lengths := make([]float64, len(d.sentences))
	var short, long float64
	bins := make([]float64, 5)
	for i, s := range d.sentences {
		l := float64(len(s.words))
		lengths[i] = l
		if l < 8 {
			short++
		}
		if l > 25 {
			long++
		}
		b := (len(s.words) - 1) / 7
		if b > 4 {
			b = 4
		}
		bins[b]++
	}
	ns := float64(len(lengths))
	mean := meanOf(lengths)
	std := stddevOf(lengths, mean)
	sorted := append([]float64(nil), lengths...)
	sort.Float64s(sorted)

	out := []float64{
		mean / SentenceLengthScale,
		std / 20,
		sorted[0] / SentenceLengthScale,
		sorted[len(sorted)-1] / 80,
		percentile(sorted, 0.5) / SentenceLengthScale,
		percentile(sorted, 0.25) / SentenceLengthScale,
		percentile(sorted, 0.75) / SentenceLengthScale,
		ratio(short, ns),
		ratio(long, ns),
		ratio(std, mean),
	}
	for _, b := range bins {
		out = append(out, ratio(b, ns))
	}
	return out
}

var structureSlots = []string{
	"introduction", "conclusion", "multi_section", "paragraph_count_capped",
	"sentences_per_paragraph", "paragraph_length_variation", "single_sentence_paragraphs",
	"thesis_cue", "topic_sentence_proxy", "body_paragraph_ratio", "section_count",
	"heading_ratio", "list_item_ratio", "paragraph_balance", "intro_conclusion_overlap",
}

var (
	introCues      = wordList("this essay", "in this essay", "will discuss", "will explore", "i will", "this paper", "i believe", "i argue", "the purpose of")
	thesisCues     = wordList("i believe", "i argue", "this essay will", "in this essay", "my position", "i contend", "should be", "must be")
	conclusionCues = wordList("in conclusion", "to conclude", "in summary", "to summarize", "to sum up", "overall", "ultimately", "in the end", "all in all")
)

// framing scores the opening and closing paragraphs.
func framing(d *doc) (intro, conclusion float64) {
	np := len(d.paragraphs)
	first := strings.ToLower(d.paragraphs[0].raw)
	last := strings.ToLower(d.paragraphs[np-1].raw)

	if np >= 2 && (introCues.MatchString(first) || len(d.paragraphs[0].sentences) >= 2) {
		intro = 1
	}
	switch {
	case np >= 2 && conclusionCues.MatchString(last):
		conclusion = 1
	case np >= 3 && len(d.paragraphs[np-1].sentences) >= 2:
		conclusion = 0.5
	}
	return intro, conclusion
}

func structureGroup(d *doc) []float64 {
	np := len(d.paragraphs)
	first := strings.ToLower(d.paragraphs[0].raw)
	last := strings.ToLower(d.paragraphs[np-1].raw)
	intro, conclusion := framing(d)
	multi := 0.0
	if structurePresent(d, intro, conclusion) {
		multi = 1
	}
	thesis := 0.0
	if thesisCues.MatchString(first) {
		thesis = 1
	}

	lengths := make([]float64, np)
	var single, topical float64
	for i, p := range d.paragraphs {
		lengths[i] = float64(len(p.sentences))
		if len(p.sentences) == 1 {
			single++
		}
		if len(p.sentences) > 1 {
			head := contentSet(p.sentences[0].words)
			var rest []string
			for _, s := range p.sentences[1:] {
				rest = append(rest, s.words...)
			}
			if jaccard(head, contentSet(rest)) > 0 {
				topical++
			}
		}
	}
	mean := meanOf(lengths)
	cv := ratio(stddevOf(lengths, mean), mean)

	body := 0.0
	if np >= 3 {
		body = float64(np-2) / float64(np)
	}
	overlap := 0.0
	if np >= 2 {
		overlap = jaccard(contentSet(wordRe.FindAllString(first, -1)), contentSet(wordRe.FindAllString(last, -1)))
	}

	return []float64{
		intro,
		conclusion,
		multi,
		math.Min(float64(np), 5) / 5,
		mean / 8,
		cv,
		ratio(single, float64(np)),
		thesis,
		ratio(topical, float64(np)),
		body,
		math.Min(float64(d.sections), 6) / 6,
		ratio(float64(d.headings), float64(np)),
		ratio(float64(d.listItems), float64(np)),
		1 - math.Min(cv, 1),
		overlap,
	}
}

// hasStructure reports whether d reads as a sectioned or framed essay.
func hasStructure(d *doc) bool {
	intro, conclusion := framing(d)
	return structurePresent(d, intro, conclusion)
}

// structurePresent reports multi-section organisation: explicit sections,
// or an introduction, body and conclusion laid out in separate paragraphs.
func structurePresent(d *doc, intro, conclusion float64) bool {
	if d.sections >= 2 {
		return true
	}
	return len(d.paragraphs) >= 3 && intro > 0 && conclusion > 0
}

var coherenceSlots = []string{
	"adjacent_overlap_mean", "adjacent_overlap_stddev", "adjacent_overlap_min",
	"adjacent_overlap_max", "zero_overlap_ratio", "paragraph_overlap_mean",
	"transition_initial_ratio", "pronoun_initial_ratio", "repeated_start_ratio",
	"keyword_coverage", "keyword_spread", "connectives_per_sentence", "lexical_chain_ratio",
	"skip_one_overlap", "first_last_overlap",
}

var (
	transitionStarters = setOf(
		"however", "moreover", "furthermore", "additionally", "therefore", "thus", "consequently",
		"hence", "finally", "first", "firstly", "second", "secondly", "next", "then", "also",
		"similarly", "likewise", "nevertheless", "meanwhile", "overall", "indeed", "instead",
		"otherwise", "ultimately", "besides", "still", "accordingly", "lastly",
	)
	pronounStarters = setOf("this", "that", "these", "those", "it", "they", "he", "she", "such")
)

func coherenceGroup(d *doc) []float64 {
	ns := len(d.sentences)
	sets := make([]map[string]bool, ns)
	for i, s := range d.sentences {
		sets[i] = contentSet(s.words)
	}

	var adjacent []float64
	var zero float64
	for i := 1; i < ns; i++ {
		o := jaccard(sets[i-1], sets[i])
		adjacent = append(adjacent, o)
		if o == 0 {
			zero++
		}
	}
	var skip []float64
	for i := 2; i < ns; i++ {
		skip = append(skip, jaccard(sets[i-2], sets[i]))
	}

	var paraOverlap []float64
	for i := 1; i < len(d.paragraphs); i++ {
		paraOverlap = append(paraOverlap, jaccard(paragraphSet(d.paragraphs[i-1]), paragraphSet(d.paragraphs[i])))
	}

	var transitions, pronouns, repeatedStarts, connectives float64
	for i, s := range d.sentences {
		if transitionStarters[s.words[0]] {
			transitions++
		}
		if pronounStarters[s.words[0]] {
			pronouns++
		}
		if i > 0 && d.sentences[i-1].words[0] == s.words[0] {
			repeatedStarts++
		}
		for _, w := range s.words {
			if transitionStarters[w] {
				connectives++
			}
		}
	}

	keywords := topContentWords(d, 10)
	var coverage float64
	for _, set := range sets {
		for k := range keywords {
			if set[k] {
				coverage++
				break
			}
		}
	}
	spread := 0.0
	if top := topContentWords(d, 1); len(top) == 1 {
		for _, p := range d.paragraphs {
			if paragraphSet(p)[firstKey(top)] {
				spread++
			}
		}
		spread = ratio(spread, float64(len(d.paragraphs)))
	}

	seenIn := map[string]int{}
	for _, set := range sets {
		for w := range set {
			seenIn[w]++
		}
	}
	var chained float64
	for _, c := range seenIn {
		if c >= 2 {
			chained++
		}
	}

	adjMean := meanOf(adjacent)
	fl := 0.0
	if ns >= 2 {
		fl = jaccard(sets[0], sets[ns-1])
	}
	return []float64{
		adjMean,
		stddevOf(adjacent, adjMean),
		minOf(adjacent),
		maxOf(adjacent),
		ratio(zero, float64(len(adjacent))),
		meanOf(paraOverlap),
		ratio(transitions, float64(ns)),
		ratio(pronouns, float64(ns)),
		ratio(repeatedStarts, float64(ns)),
		ratio(coverage, float64(ns)),
		spread,
		ratio(connectives, float64(ns)) / 2,
		ratio(chained, float64(len(seenIn))),
		meanOf(skip),
		fl,
	}
}

func paragraphSet(p paragraph) map[string]bool {
	var words []string
	for _, s := range p.sentences {
		words = append(words, s.words...)
	}
	return contentSet(words)
}

// topContentWords returns the k most frequent content words, ties broken
// alphabetically so the result is deterministic.
func topContentWords(d *doc, k int) map[string]bool {
	type wc struct {
		w string
		c int
	}
	var all []wc
	for w, c := range d.freq {
		if isContent(w) {
			all = append(all, wc{w, c})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].c != all[j].c {
			return all[i].c > all[j].c
		}
		return all[i].w < all[j].w
	})
	out := map[string]bool{}
	for i := 0; i < len(all) && i < k; i++ {
		out[all[i].w] = true
	}
	return out
}

func firstKey(m map[string]bool) string {
	for k := range m {
		return k
	}
	return ""
}

func mechanicsGroup(d *doc) []float64 {
	n := float64(len(d.words))
	out := make([]float64, len(mechanicsSlots()))
	for _, r := range mechanicsRules {
		out[r.slot] = ratio(r.weight*float64(r.count(d)), n) * 20
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}

// percentile interpolates linearly on a sorted, non-empty slice.
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
