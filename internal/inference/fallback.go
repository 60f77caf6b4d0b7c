package inference

import (
	"math"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
)

// Estimate derives quality sub-scores from a handful of raw feature slots.
// Every dimension is clamped to [lo,hi] so a degraded run never hands out
// an extreme verdict.
func Estimate(v features.Vector, lo, hi float64) essay.QualityScores {
	words := v[features.SlotWordCount] * features.WordCountScale
	paragraphs := v[features.SlotParagraphCount] * features.ParagraphCountScale
	meanLen := v[features.SlotMeanSentenceLength] * features.SentenceLengthScale
	ttr := v[features.SlotTypeToken]
	long := v[features.SlotLongWordRatio]
	academic := v[features.SlotAcademic]

	transitions := 0.0
	for s := features.SlotTransitionFirst; s <= features.SlotTransitionLast; s++ {
		transitions += v[s]
	}
	errorsRate := 0.0
	for s := features.MechanicsStart; s < features.MechanicsStart+features.MechanicsSize; s++ {
		errorsRate += v[s]
	}
	errorsRate = math.Min(errorsRate, 1)

	lengthFactor := math.Min(words/300, 1)
	rhythm := 1 - math.Min(math.Abs(meanLen-18)/18, 1)

	q := essay.QualityScores{
		Content: 0.45 + 0.25*lengthFactor + 0.15*math.Min(academic*2, 1) + 0.15*ttr,
		Organization: 0.4 + 0.2*math.Min(paragraphs, 5)/5 +
			0.15*v[features.SlotIntroduction] + 0.15*v[features.SlotConclusion] +
			0.1*math.Min(transitions, 1),
		Style:     0.4 + 0.3*ttr + 0.2*math.Min(long*4, 1) + 0.1*rhythm,
		Grammar:   0.85 - 0.35*errorsRate,
		Mechanics: 0.85 - 0.25*errorsRate,
	}
	for _, d := range essay.Dimensions {
		q = q.Set(d, essay.ClampRange(q.Get(d), lo, hi))
	}
	return q
}
