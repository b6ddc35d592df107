package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFeatures() FeatureVector {
	return FeatureVector{
		Persona:     0.92,
		Tone:        0.88,
		Format:      0.95,
		Specificity: 0.90,
		Constraints: 0.85,
		Context:     0.70,
	}
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, dim := range Dimensions {
		sum += Weights[dim]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestComputeQ(t *testing.T) {
	t.Run("reference vector", func(t *testing.T) {
		score, err := ComputeQ(validFeatures())
		require.NoError(t, err)

		assert.Equal(t, 0.8832, score.Q)
		assert.Equal(t, 0.1656, score.Breakdown[Persona])
		assert.Equal(t, 0.1936, score.Breakdown[Tone])
		assert.Equal(t, 0.1900, score.Breakdown[Format])
		assert.Equal(t, 0.1620, score.Breakdown[Specificity])
		assert.Equal(t, 0.1020, score.Breakdown[Constraints])
		assert.Equal(t, 0.0700, score.Breakdown[Context])

		var sum float64
		for _, term := range score.Breakdown {
			sum += term
		}
		assert.InDelta(t, score.Q, sum, 1e-9)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := ComputeQ(validFeatures())
		require.NoError(t, err)
		second, err := ComputeQ(validFeatures())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("all ones gives Q=1", func(t *testing.T) {
		fv := FeatureVector{}
		for _, dim := range Dimensions {
			fv[dim] = 1.0
		}
		score, err := ComputeQ(fv)
		require.NoError(t, err)
		assert.Equal(t, 1.0, score.Q)
	})

	t.Run("all zeros gives Q=0", func(t *testing.T) {
		fv := FeatureVector{}
		for _, dim := range Dimensions {
			fv[dim] = 0.0
		}
		score, err := ComputeQ(fv)
		require.NoError(t, err)
		assert.Equal(t, 0.0, score.Q)
	})

	t.Run("value above one rejected", func(t *testing.T) {
		fv := validFeatures()
		fv[Persona] = 1.1
		_, err := ComputeQ(fv)
		assert.ErrorIs(t, err, ErrInvalidFeatureVector)
	})

	t.Run("negative value rejected", func(t *testing.T) {
		fv := validFeatures()
		fv[Context] = -0.01
		_, err := ComputeQ(fv)
		assert.ErrorIs(t, err, ErrInvalidFeatureVector)
	})

	t.Run("missing dimension rejected", func(t *testing.T) {
		fv := validFeatures()
		delete(fv, Tone)
		_, err := ComputeQ(fv)
		assert.ErrorIs(t, err, ErrInvalidFeatureVector)
	})
}

func TestLevel(t *testing.T) {
	tests := []struct {
		q    float64
		want string
	}{
		{0.95, LevelExcellent},
		{0.90, LevelExcellent},
		{0.89, LevelGood},
		{0.80, LevelGood},
		{0.79, LevelFair},
		{0.70, LevelFair},
		{0.69, LevelPoor},
		{0.0, LevelPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.q), "Q=%v", tt.q)
	}
}

func TestSuggest(t *testing.T) {
	t.Run("weak dimensions in canonical order", func(t *testing.T) {
		fv := FeatureVector{
			Persona:     0.50,
			Tone:        0.90,
			Format:      0.55,
			Specificity: 0.45,
			Constraints: 0.90,
			Context:     0.35,
		}
		got := Suggest(fv, DefaultSuggestionThreshold)
		require.Len(t, got, 4)
		assert.Contains(t, got[0], "Persona")
		assert.Contains(t, got[1], "Format")
		assert.Contains(t, got[2], "Specificity")
		assert.Contains(t, got[3], "Context")
	})

	t.Run("no suggestions for strong prompt", func(t *testing.T) {
		fv := FeatureVector{}
		for _, dim := range Dimensions {
			fv[dim] = 0.9
		}
		assert.Empty(t, Suggest(fv, DefaultSuggestionThreshold))
	})
}

func TestLowest(t *testing.T) {
	fv := validFeatures()
	assert.Equal(t, Context, fv.Lowest())

	fv[Format] = 0.1
	assert.Equal(t, Format, fv.Lowest())
}
