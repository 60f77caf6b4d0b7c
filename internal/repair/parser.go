package repair

// Outcome is the parse result and the stage that produced it.
type Outcome struct {
	Payload Payload `json:"payload"`
	Stage   Stage   `json:"stage"`
}

// Degraded reports whether nothing usable was recovered.
func (o Outcome) Degraded() bool { return o.Stage == StageNeutral }

// Parser runs strategies in order; the first success wins.
type Parser struct {
	strategies []Strategy
}

// NewParser returns a parser with the given strategies, or the default
// direct, truncation, substructure, salvage sequence when none are given.
func NewParser(strategies ...Strategy) *Parser {
	if len(strategies) == 0 {
		strategies = []Strategy{Direct{}, Truncation{}, Substructure{}, Salvage{}}
	}
	return &Parser{strategies: strategies}
}

// Parse never fails. When every strategy gives up it returns the neutral
// payload with StageNeutral.
func (p *Parser) Parse(raw string) Outcome {
	for _, s := range p.strategies {
		if payload, ok := s.Attempt(raw); ok {
			return Outcome{Payload: payload, Stage: s.Name()}
		}
	}
	return Outcome{Payload: Neutral(), Stage: StageNeutral}
}

// Parse runs the default parser.
func Parse(raw string) Outcome {
	return defaultParser.Parse(raw)
}

var defaultParser = NewParser()
