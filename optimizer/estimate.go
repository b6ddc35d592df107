package optimizer

import "math"

// Estimation assumptions, derived from observed optimization runs: a pass
// raises Q by roughly 0.10-0.15, a rewrite costs about 400 input and 300
// output tokens, and the merge step adds about 500 tokens at half the cost
// of a rewrite.
const (
	avgImprovementPerIteration = 0.12
	estimateInputTokens        = 400
	estimateOutputTokens       = 300
	estimateMergeTokens        = 500
	estimateMergeCostFactor    = 0.5
)

// IterationCost is one line of a cost estimate's breakdown.
type IterationCost struct {
	Iteration  int     `json:"iteration"`
	Dimensions int     `json:"dimensions"`
	Tokens     int     `json:"tokens"`
	CostUSD    float64 `json:"cost_usd"`
}

// CostEstimate projects what an optimization run will cost before it starts.
// Building one performs no provider call.
type CostEstimate struct {
	EstimatedIterations  int             `json:"estimated_iterations"`
	TokensPerIteration   int             `json:"estimated_tokens_per_iteration"`
	EstimatedTotalTokens int             `json:"estimated_total_tokens"`
	EstimatedCostUSD     float64         `json:"estimated_cost_usd"`
	Breakdown            []IterationCost `json:"cost_breakdown"`
	Strategy             Strategy        `json:"strategy"`
	CurrentQ             float64         `json:"current_q"`
	TargetQ              float64         `json:"target_q"`
	DeltaQ               float64         `json:"delta_q"`
}

// EstimateCost projects the spend to move prompt from currentQ to targetQ
// under the given strategy. A non-positive quality gap yields a zero
// estimate.
func (e *Engine) EstimateCost(prompt string, currentQ, targetQ float64, strategy Strategy) (CostEstimate, error) {
	cfg, err := strategy.Config()
	if err != nil {
		return CostEstimate{}, err
	}

	estimate := CostEstimate{
		Strategy: strategy,
		CurrentQ: currentQ,
		TargetQ:  targetQ,
		DeltaQ:   targetQ - currentQ,
	}
	if estimate.DeltaQ <= 0 {
		return estimate, nil
	}

	iterations := int(math.Ceil(estimate.DeltaQ / avgImprovementPerIteration))
	if iterations > cfg.MaxIterations {
		iterations = cfg.MaxIterations
	}

	dims := cfg.DimensionsPerIteration
	tokensPerIteration := (estimateInputTokens + estimateOutputTokens) * dims
	if dims > 1 {
		tokensPerIteration += estimateMergeTokens
	}

	perCall := e.generator.EstimateCost(prompt, estimateOutputTokens)
	costPerIteration := perCall.EstimatedCostUSD * float64(dims)
	if dims > 1 {
		costPerIteration += perCall.EstimatedCostUSD * estimateMergeCostFactor
	}

	estimate.EstimatedIterations = iterations
	estimate.TokensPerIteration = tokensPerIteration
	estimate.EstimatedTotalTokens = tokensPerIteration * iterations
	estimate.EstimatedCostUSD = costPerIteration * float64(iterations)

	for i := 1; i <= iterations; i++ {
		estimate.Breakdown = append(estimate.Breakdown, IterationCost{
			Iteration:  i,
			Dimensions: dims,
			Tokens:     tokensPerIteration,
			CostUSD:    costPerIteration,
		})
	}

	return estimate, nil
}
