package optimizer

import (
	"time"

	"github.com/google/uuid"

	"github.com/promptdash/promptdash/quality"
)

// Status is the terminal state of an optimization run.
type Status string

const (
	// StatusSuccess means the quality target was reached.
	StatusSuccess Status = "success"
	// StatusAlreadyOptimal means the original prompt already met the target;
	// no provider call was made.
	StatusAlreadyOptimal Status = "already_optimal"
	// StatusBudgetExhausted means the cost or iteration budget ran out first.
	StatusBudgetExhausted Status = "budget_exhausted"
	// StatusNoProgress means an iteration failed to raise Q (or produced no
	// rewrites at all). The non-improving candidate is kept as the final
	// prompt rather than rolled back.
	StatusNoProgress Status = "no_progress"
	// StatusCanceled means the run's context was canceled mid-flight. The
	// partial result keeps every iteration recorded before cancellation.
	StatusCanceled Status = "canceled"
)

// Iteration is the audit record of one loop pass. One is appended per pass,
// whether or not Q improved.
type Iteration struct {
	Number        int                   `json:"iteration_number"`
	PromptText    string                `json:"prompt_text"`
	Features      quality.FeatureVector `json:"features"`
	QScore        float64               `json:"q_score"`
	DimensionsHit []quality.Dimension   `json:"dimensions_improved"`
	CostUSD       float64               `json:"cost_usd"`
	TokensUsed    int                   `json:"tokens_used"`
	LatencyMS     float64               `json:"latency_ms"`
	Timestamp     time.Time             `json:"timestamp"`
}

// DimensionChange records a dimension's score before and after the run.
type DimensionChange struct {
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// BenchmarkSummary bundles the run's headline numbers.
type BenchmarkSummary struct {
	AlreadyOptimal    bool    `json:"already_optimal"`
	IterationsUsed    int     `json:"iterations_used"`
	TargetQ           float64 `json:"target_q"`
	TargetAchieved    bool    `json:"target_achieved"`
	CostPerPoint      float64 `json:"cost_per_point"`
	DimensionsChanged int     `json:"dimensions_changed"`
}

// Result is the complete outcome of one optimization run, immutable after
// return. It exclusively owns its Iterations.
type Result struct {
	RunID              uuid.UUID                             `json:"run_id"`
	OriginalPrompt     string                                `json:"original_prompt"`
	OptimizedPrompt    string                                `json:"optimized_prompt"`
	OriginalQ          float64                               `json:"original_q"`
	OptimizedQ         float64                               `json:"optimized_q"`
	DeltaQ             float64                               `json:"delta_q"`
	ImprovementPct     float64                               `json:"improvement_pct"`
	Status             Status                                `json:"status"`
	Iterations         []Iteration                           `json:"iterations"`
	TotalCostUSD       float64                               `json:"total_cost_usd"`
	TotalTokens        int                                   `json:"total_tokens"`
	Strategy           Strategy                              `json:"strategy_used"`
	DimensionsImproved map[quality.Dimension]DimensionChange `json:"dimensions_improved"`
	Benchmark          BenchmarkSummary                      `json:"benchmark_summary"`
	Timestamp          time.Time                             `json:"timestamp"`
}

// BestIteration returns the recorded iteration with the highest Q score,
// nil when the run recorded none.
func (r *Result) BestIteration() *Iteration {
	var best *Iteration
	for i := range r.Iterations {
		if best == nil || r.Iterations[i].QScore > best.QScore {
			best = &r.Iterations[i]
		}
	}
	return best
}

// CostPerPoint is the spend per 0.01 of Q improvement, 0 when the run did
// not improve quality.
func (r *Result) CostPerPoint() float64 {
	if r.DeltaQ <= 0 {
		return 0
	}
	return r.TotalCostUSD / (r.DeltaQ * 100)
}
