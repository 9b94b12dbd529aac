package domain

// CostParams carries the sizing inputs a calculator may consume. Unused
// fields are zero; each calculator reads only what its feature meters on.
type CostParams struct {
	Quantity   int // images, URLs, output languages
	Characters int // speech synthesis input length
}

// CostCalculator computes the point cost of one feature operation. The
// ledger and guard never compute cost themselves; they only consume the
// resulting positive integer.
type CostCalculator interface {
	Kind() JobKind
	Points(params CostParams) int
}

// ImageCost charges one point per generated image.
type ImageCost struct{}

func (ImageCost) Kind() JobKind { return JobKindImageGenerate }

func (ImageCost) Points(p CostParams) int { return max(p.Quantity, 1) }

// SubtitleCost charges one point per output language.
type SubtitleCost struct{}

func (SubtitleCost) Kind() JobKind { return JobKindSubtitle }

func (SubtitleCost) Points(p CostParams) int { return max(p.Quantity, 1) }

// SpeechCost charges one point per started block of 300 input characters.
type SpeechCost struct{}

const speechCharsPerPoint = 300

func (SpeechCost) Kind() JobKind { return JobKindSpeech }

func (SpeechCost) Points(p CostParams) int {
	if p.Characters <= 0 {
		return 1
	}
	return (p.Characters + speechCharsPerPoint - 1) / speechCharsPerPoint
}

// URLRewriteCost charges one point per batch URL.
type URLRewriteCost struct{}

func (URLRewriteCost) Kind() JobKind { return JobKindURLRewrite }

func (URLRewriteCost) Points(p CostParams) int { return max(p.Quantity, 1) }

// CostTable maps job kinds to their calculators.
type CostTable map[JobKind]CostCalculator

// DefaultCostTable assembles the catalog of per-feature calculators.
func DefaultCostTable() CostTable {
	table := CostTable{}
	for _, c := range []CostCalculator{ImageCost{}, SubtitleCost{}, SpeechCost{}, URLRewriteCost{}} {
		table[c.Kind()] = c
	}
	return table
}

// PerUnitCost returns the cost of a single unit of the given kind.
// Unknown kinds cost nothing, which callers must treat as invalid input.
func (t CostTable) PerUnitCost(kind JobKind) int {
	calc, ok := t[kind]
	if !ok {
		return 0
	}
	return calc.Points(CostParams{Quantity: 1})
}
