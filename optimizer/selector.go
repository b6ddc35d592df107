package optimizer

import (
	"sort"

	"github.com/promptdash/promptdash/quality"
)

// DefaultThreshold is the dimension score below which a dimension counts as
// weak and becomes an improvement candidate.
const DefaultThreshold = 0.75

// impactTargetScore is the fixed reference used for the ranking gap. It is a
// heuristic, deliberately independent of the run's quality target.
const impactTargetScore = 0.85

// DimensionImpact ranks how beneficial improving a dimension is:
// weight × gap to the reference score × improvement probability. The
// probability term 1−score² reflects that low scores are easier to raise
// than already-high ones.
func DimensionImpact(dim quality.Dimension, score float64) float64 {
	gap := impactTargetScore - score
	if gap <= 0 {
		return 0
	}
	return quality.Weights[dim] * gap * (1 - score*score)
}

// SelectDimensions returns up to count dimensions below threshold, ordered
// by descending impact. When every dimension clears the threshold it falls
// back to the single lowest-scoring dimension, so the selector never starves
// the loop while scores are sub-perfect.
func SelectDimensions(features quality.FeatureVector, count int, threshold float64) []quality.Dimension {
	type candidate struct {
		dim    quality.Dimension
		impact float64
	}

	var candidates []candidate
	for _, dim := range quality.Dimensions {
		if score := features[dim]; score < threshold {
			candidates = append(candidates, candidate{dim: dim, impact: DimensionImpact(dim, score)})
		}
	}

	if len(candidates) == 0 {
		return []quality.Dimension{features.Lowest()}
	}

	// Stable keeps the canonical dimension order for equal impacts.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].impact > candidates[j].impact
	})

	if count < 1 {
		count = 1
	}
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	selected := make([]quality.Dimension, len(candidates))
	for i, c := range candidates {
		selected[i] = c.dim
	}
	return selected
}
