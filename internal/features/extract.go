package features

// Summary carries the counts later stages reuse instead of re-tokenising.
type Summary struct {
	Words            int  `json:"words"`
	Sentences        int  `json:"sentences"`
	Paragraphs       int  `json:"paragraphs"`
	Sections         int  `json:"sections"`
	StructurePresent bool `json:"structure_present"`
}

// Extractor computes vectors clamped to a configured bound.
type Extractor struct {
	bound Bound
}

// NewExtractor returns an extractor for the given bound.
func NewExtractor(b Bound) (*Extractor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{bound: b}, nil
}

var defaultExtractor = &Extractor{bound: DefaultBound()}

// Extract computes the vector with the default [0,1] bound.
func Extract(text string, st *Structure) Vector {
	return defaultExtractor.Extract(text, st)
}

// Analyze computes the vector and summary with the default bound.
func Analyze(text string, st *Structure) (Vector, Summary) {
	return defaultExtractor.Analyze(text, st)
}

// Extract never fails: degenerate text yields the zero vector.
func (e *Extractor) Extract(text string, st *Structure) Vector {
	v, _ := e.Analyze(text, st)
	return v
}

// Analyze returns the vector together with document counts.
func (e *Extractor) Analyze(text string, st *Structure) (Vector, Summary) {
	var v Vector
	d := parse(text, st)
	if len(d.words) == 0 || len(d.sentences) == 0 {
		return v, Summary{}
	}

	start := 0
	for _, g := range groupDefs {
		if g.compute != nil {
			vals := g.compute(d)
			for i := 0; i < g.size && i < len(vals); i++ {
				v[start+i] = e.bound.clamp(vals[i])
			}
		}
		start += g.size
	}

	return v, Summary{
		Words:            len(d.words),
		Sentences:        len(d.sentences),
		Paragraphs:       len(d.paragraphs),
		Sections:         d.sections,
		StructurePresent: hasStructure(d),
	}
}
