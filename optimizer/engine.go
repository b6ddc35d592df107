package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptdash/promptdash/gateway"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/utils"
)

const (
	rewriteMaxTokens = 600
	mergeMaxTokens   = 800
	mergeTemperature = 0.3

	// significantDelta is the per-dimension change that counts as an
	// improvement in the final report.
	significantDelta = 0.01
)

// Generator is the provider seam the engine rewrites through. A
// *gateway.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, req gateway.Request) (*gateway.Response, error)
	EstimateCost(prompt string, maxTokens int) gateway.CostEstimate
}

// Scorer turns prompt text into the six rubric scores. It must be pure.
type Scorer func(text string) quality.FeatureVector

// Saver persists an optimized prompt as a new version. parentID links the
// stored row to the prompt it was derived from.
type Saver interface {
	Save(ctx context.Context, text string, score quality.Score, features quality.FeatureVector, parentID *uuid.UUID) (uuid.UUID, error)
}

// Engine drives the optimization loop. It is stateless across runs; all
// mutable run state lives on the stack of Optimize.
type Engine struct {
	generator Generator
	scorer    Scorer
	saver     Saver
	logger    utils.Logger
}

type EngineOption func(*Engine)

// WithScorer replaces the default keyword-heuristic scorer.
func WithScorer(scorer Scorer) EngineOption {
	return func(e *Engine) {
		e.scorer = scorer
	}
}

// WithSaver enables SaveResult.
func WithSaver(saver Saver) EngineOption {
	return func(e *Engine) {
		e.saver = saver
	}
}

func WithLogger(logger utils.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(generator Generator, opts ...EngineOption) *Engine {
	e := &Engine{
		generator: generator,
		scorer:    quality.EstimateFeatures,
		logger:    utils.NewLogger(utils.LogLevelWarn),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params configures one optimization run.
type Params struct {
	Prompt string
	// TargetQuality overrides the strategy's target when positive.
	TargetQuality float64
	// Strategy defaults to balanced.
	Strategy Strategy
	// MaxIterations lowers the strategy's iteration cap when positive. It
	// can never raise it.
	MaxIterations int
	// SkipEstimate disables the pre-flight budget gate.
	SkipEstimate bool
}

// Optimize runs the loop: score, select weak dimensions, rewrite each
// concurrently, merge, re-score, and stop on target, no-progress, or budget
// exhaustion. On context cancellation it returns the partial result with
// every recorded iteration intact alongside the context error.
func (e *Engine) Optimize(ctx context.Context, params Params) (*Result, error) {
	if params.Strategy == "" {
		params.Strategy = StrategyBalanced
	}
	cfg, err := params.Strategy.Config()
	if err != nil {
		return nil, err
	}

	target := params.TargetQuality
	if target <= 0 {
		target = cfg.TargetQ
	}
	maxIterations := cfg.MaxIterations
	if params.MaxIterations > 0 && params.MaxIterations < maxIterations {
		maxIterations = params.MaxIterations
	}

	originalFeatures := e.scorer(params.Prompt)
	originalScore, err := quality.ComputeQ(originalFeatures)
	if err != nil {
		return nil, err
	}
	originalQ := originalScore.Q

	e.logger.Info("starting optimization",
		"strategy", string(params.Strategy), "target_q", target, "original_q", originalQ)

	if originalQ >= target {
		now := time.Now().UTC()
		return &Result{
			RunID:              uuid.New(),
			OriginalPrompt:     params.Prompt,
			OptimizedPrompt:    params.Prompt,
			OriginalQ:          originalQ,
			OptimizedQ:         originalQ,
			Status:             StatusAlreadyOptimal,
			Strategy:           params.Strategy,
			DimensionsImproved: map[quality.Dimension]DimensionChange{},
			Benchmark: BenchmarkSummary{
				AlreadyOptimal: true,
				TargetQ:        target,
				TargetAchieved: true,
			},
			Timestamp: now,
		}, nil
	}

	if !params.SkipEstimate {
		estimate, err := e.EstimateCost(params.Prompt, originalQ, target, params.Strategy)
		if err != nil {
			return nil, err
		}
		if estimate.EstimatedCostUSD > cfg.MaxCostUSD {
			return nil, fmt.Errorf("%w: estimated $%.4f exceeds budget $%.4f for %s strategy",
				ErrCostLimitExceeded, estimate.EstimatedCostUSD, cfg.MaxCostUSD, params.Strategy)
		}
	}

	current := params.Prompt
	features := originalFeatures
	currentQ := originalQ

	var (
		iterations  []Iteration
		totalCost   float64
		totalTokens int
	)
	// Running out of the loop means the iteration cap was the stopper.
	status := StatusBudgetExhausted

loop:
	for n := 1; n <= maxIterations; n++ {
		if ctx.Err() != nil {
			status = StatusCanceled
			break
		}

		dims := SelectDimensions(features, cfg.DimensionsPerIteration, DefaultThreshold)
		e.logger.Info("iteration start", "iteration", n, "current_q", currentQ, "dimensions", dimensionNames(dims))

		start := time.Now()
		rewrites, cost, tokens := e.rewriteDimensions(ctx, current, features, dims, cfg.Temperature)

		if ctx.Err() != nil {
			totalCost += cost
			totalTokens += tokens
			status = StatusCanceled
			break
		}
		if len(rewrites) == 0 {
			e.logger.Warn("no rewrites succeeded", "iteration", n)
			totalCost += cost
			totalTokens += tokens
			status = StatusNoProgress
			break
		}

		candidate := rewrites[0]
		if len(rewrites) > 1 {
			candidate = e.merge(ctx, current, rewrites, &cost, &tokens)
		}

		newFeatures := e.scorer(candidate)
		newScore, err := quality.ComputeQ(newFeatures)
		if err != nil {
			return nil, err
		}
		newQ := newScore.Q

		iterations = append(iterations, Iteration{
			Number:        n,
			PromptText:    candidate,
			Features:      newFeatures.Clone(),
			QScore:        newQ,
			DimensionsHit: dims,
			CostUSD:       cost,
			TokensUsed:    tokens,
			LatencyMS:     float64(time.Since(start)) / float64(time.Millisecond),
			Timestamp:     time.Now().UTC(),
		})
		totalCost += cost
		totalTokens += tokens

		e.logger.Info("iteration complete",
			"iteration", n, "q", newQ, "delta", newQ-currentQ, "cost_usd", cost, "tokens", tokens)

		// The candidate is kept even when it fails to improve Q.
		current = candidate

		switch {
		case newQ >= target:
			status = StatusSuccess
			break loop
		case newQ <= currentQ:
			e.logger.Warn("quality did not improve, stopping", "iteration", n)
			status = StatusNoProgress
			break loop
		case totalCost > cfg.MaxCostUSD:
			e.logger.Warn("cost budget exhausted", "total_cost_usd", totalCost, "budget_usd", cfg.MaxCostUSD)
			status = StatusBudgetExhausted
			break loop
		}

		features = newFeatures
		currentQ = newQ
	}

	result := e.finalize(params, target, current, originalFeatures, originalQ, status, iterations, totalCost, totalTokens)
	if status == StatusCanceled {
		return result, ctx.Err()
	}
	return result, nil
}

// rewriteDimensions issues one provider call per selected dimension,
// concurrently. Failed rewrites are logged and dropped; survivors come back
// in selection order. The join here is what guarantees no rewrite observes
// another's output before the merge.
func (e *Engine) rewriteDimensions(ctx context.Context, current string, features quality.FeatureVector, dims []quality.Dimension, temperature float64) ([]string, float64, int) {
	type outcome struct {
		text   string
		cost   float64
		tokens int
		err    error
	}

	outcomes := make([]outcome, len(dims))
	var wg sync.WaitGroup
	for i, dim := range dims {
		wg.Add(1)
		go func(i int, dim quality.Dimension) {
			defer wg.Done()
			resp, err := e.generator.Generate(ctx, gateway.Request{
				Prompt:      rewritePrompt(dim, current, features[dim]),
				Temperature: temperature,
				MaxTokens:   rewriteMaxTokens,
			})
			if err != nil {
				outcomes[i] = outcome{err: err}
				return
			}
			outcomes[i] = outcome{
				text:   strings.TrimSpace(resp.Text),
				cost:   resp.CostUSD,
				tokens: resp.TotalTokens(),
			}
		}(i, dim)
	}
	wg.Wait()

	var (
		rewrites []string
		cost     float64
		tokens   int
	)
	for i, out := range outcomes {
		if out.err != nil {
			e.logger.Error("dimension rewrite failed", "dimension", dims[i].Name(), "error", out.err)
			continue
		}
		rewrites = append(rewrites, out.text)
		cost += out.cost
		tokens += out.tokens
	}
	return rewrites, cost, tokens
}

// merge combines multiple rewrites with one extra provider call. A merge
// failure falls back to the first rewrite; it never aborts the run.
func (e *Engine) merge(ctx context.Context, original string, rewrites []string, cost *float64, tokens *int) string {
	resp, err := e.generator.Generate(ctx, gateway.Request{
		Prompt:      mergePrompt(original, rewrites),
		Temperature: mergeTemperature,
		MaxTokens:   mergeMaxTokens,
	})
	if err != nil {
		e.logger.Error("merge failed, keeping first rewrite", "error", err)
		return rewrites[0]
	}

	*cost += resp.CostUSD
	*tokens += resp.TotalTokens()
	return strings.TrimSpace(resp.Text)
}

func (e *Engine) finalize(params Params, target float64, current string, originalFeatures quality.FeatureVector, originalQ float64, status Status, iterations []Iteration, totalCost float64, totalTokens int) *Result {
	finalFeatures := e.scorer(current)
	finalScore, err := quality.ComputeQ(finalFeatures)
	if err != nil {
		// The scorer already produced a valid vector for this text during
		// the loop; treat a failure here as score zero rather than losing
		// the audit trail.
		e.logger.Error("final scoring failed", "error", err)
	}
	finalQ := finalScore.Q

	deltaQ := finalQ - originalQ
	improvementPct := 0.0
	if originalQ > 0 {
		improvementPct = deltaQ / originalQ * 100
	}

	dimensionsImproved := make(map[quality.Dimension]DimensionChange)
	for _, dim := range quality.Dimensions {
		before, after := originalFeatures[dim], finalFeatures[dim]
		if math.Abs(after-before) > significantDelta {
			dimensionsImproved[dim] = DimensionChange{Before: before, After: after}
		}
	}

	result := &Result{
		RunID:              uuid.New(),
		OriginalPrompt:     params.Prompt,
		OptimizedPrompt:    current,
		OriginalQ:          originalQ,
		OptimizedQ:         finalQ,
		DeltaQ:             deltaQ,
		ImprovementPct:     improvementPct,
		Status:             status,
		Iterations:         iterations,
		TotalCostUSD:       totalCost,
		TotalTokens:        totalTokens,
		Strategy:           params.Strategy,
		DimensionsImproved: dimensionsImproved,
		Benchmark: BenchmarkSummary{
			IterationsUsed:    len(iterations),
			TargetQ:           target,
			TargetAchieved:    finalQ >= target,
			DimensionsChanged: len(dimensionsImproved),
		},
		Timestamp: time.Now().UTC(),
	}
	result.Benchmark.CostPerPoint = result.CostPerPoint()

	e.logger.Info("optimization complete",
		"status", string(status), "original_q", originalQ, "final_q", finalQ,
		"delta_q", deltaQ, "total_cost_usd", totalCost, "iterations", len(iterations))

	return result
}

// SaveResult persists the optimized prompt as a new version through the
// configured saver.
func (e *Engine) SaveResult(ctx context.Context, result *Result, parentID *uuid.UUID) (uuid.UUID, error) {
	if e.saver == nil {
		return uuid.Nil, errors.New("no result store configured")
	}

	features := e.scorer(result.OptimizedPrompt)
	score, err := quality.ComputeQ(features)
	if err != nil {
		return uuid.Nil, err
	}
	return e.saver.Save(ctx, result.OptimizedPrompt, score, features, parentID)
}

func dimensionNames(dims []quality.Dimension) string {
	names := make([]string, len(dims))
	for i, dim := range dims {
		names[i] = string(dim)
	}
	return strings.Join(names, ",")
}
