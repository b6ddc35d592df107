// Package quality implements the PES scoring model: six fixed prompt
// dimensions (Persona, Tone, Format, Specificity, Constraints, Context)
// combined into a single composite Q score by a weighted sum.
package quality

import (
	"errors"
	"fmt"
	"math"
)

// Dimension identifies one of the six PES rubric axes.
type Dimension string

const (
	Persona     Dimension = "P"
	Tone        Dimension = "T"
	Format      Dimension = "F"
	Specificity Dimension = "S"
	Constraints Dimension = "C"
	Context     Dimension = "R"
)

// Dimensions lists every rubric axis in canonical order. All iteration over
// dimensions goes through this slice so output ordering stays stable.
var Dimensions = []Dimension{Persona, Tone, Format, Specificity, Constraints, Context}

// Weights are the fixed contribution of each dimension to Q. They sum to 1.0.
var Weights = map[Dimension]float64{
	Persona:     0.18,
	Tone:        0.22,
	Format:      0.20,
	Specificity: 0.18,
	Constraints: 0.12,
	Context:     0.10,
}

var dimensionNames = map[Dimension]string{
	Persona:     "Persona",
	Tone:        "Tone",
	Format:      "Format",
	Specificity: "Specificity",
	Constraints: "Constraints",
	Context:     "Context",
}

// Name returns the long form of a dimension key.
func (d Dimension) Name() string {
	return dimensionNames[d]
}

// ErrInvalidFeatureVector reports a feature map that is missing a required
// dimension or carries a value outside [0, 1].
var ErrInvalidFeatureVector = errors.New("invalid feature vector")

// FeatureVector maps each dimension to a score in [0, 1]. A vector is
// treated as immutable once computed; Clone before mutating.
type FeatureVector map[Dimension]float64

// Validate checks that all six dimensions are present and in range.
func (fv FeatureVector) Validate() error {
	for _, dim := range Dimensions {
		value, ok := fv[dim]
		if !ok {
			return fmt.Errorf("%w: missing dimension %s", ErrInvalidFeatureVector, dim)
		}
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: dimension %s=%v out of range [0, 1]", ErrInvalidFeatureVector, dim, value)
		}
	}
	return nil
}

func (fv FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(fv))
	for k, v := range fv {
		out[k] = v
	}
	return out
}

// Lowest returns the dimension with the smallest score, breaking ties by
// canonical dimension order.
func (fv FeatureVector) Lowest() Dimension {
	lowest := Dimensions[0]
	for _, dim := range Dimensions[1:] {
		if fv[dim] < fv[lowest] {
			lowest = dim
		}
	}
	return lowest
}

// Score is the composite quality of a prompt: the scalar Q plus the
// per-dimension weighted contributions that produced it.
type Score struct {
	Q         float64               `json:"q"`
	Breakdown map[Dimension]float64 `json:"breakdown"`
}

// ComputeQ derives the composite quality score from a feature vector. Each
// weighted term is rounded to 4 decimal places before summation, which pins
// Q reproducibly to the 4th decimal.
func ComputeQ(fv FeatureVector) (Score, error) {
	if err := fv.Validate(); err != nil {
		return Score{}, err
	}

	breakdown := make(map[Dimension]float64, len(Dimensions))
	var q float64
	for _, dim := range Dimensions {
		term := round4(Weights[dim] * fv[dim])
		breakdown[dim] = term
		q += term
	}

	return Score{Q: round4(q), Breakdown: breakdown}, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Quality level labels, keyed off Q with inclusive lower bounds.
const (
	LevelExcellent = "Excellent"
	LevelGood      = "Good"
	LevelFair      = "Fair"
	LevelPoor      = "Poor"
)

// Level maps a Q score to its qualitative label.
func Level(q float64) string {
	switch {
	case q >= 0.90:
		return LevelExcellent
	case q >= 0.80:
		return LevelGood
	case q >= 0.70:
		return LevelFair
	default:
		return LevelPoor
	}
}

// DefaultSuggestionThreshold is the score below which a dimension is
// considered weak enough to warrant a suggestion.
const DefaultSuggestionThreshold = 0.75

var suggestions = map[Dimension]string{
	Persona:     "Improve Persona: Add explicit role specification (e.g., 'You are a [role] with [experience]')",
	Tone:        "Improve Tone: Specify desired voice (formal/casual/technical) or include example phrasing",
	Format:      "Improve Format: Define output structure (JSON schema, bullet points, table, word count)",
	Specificity: "Improve Specificity: Add quantified constraints (character limits, numerical targets, time bounds)",
	Constraints: "Improve Constraints: Insert enforcement rules (cite sources, mark uncertainties, validation criteria)",
	Context:     "Improve Context: Provide background information (use case, target audience, success metrics)",
}

// Suggest returns one human-readable improvement per dimension strictly
// below the threshold, in canonical dimension order.
func Suggest(fv FeatureVector, threshold float64) []string {
	var out []string
	for _, dim := range Dimensions {
		if fv[dim] < threshold {
			out = append(out, suggestions[dim])
		}
	}
	return out
}
