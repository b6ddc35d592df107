package optimizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdash/promptdash/gateway"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/utils"
)

// fakeGenerator scripts provider behavior per request. respond receives the
// meta-prompt and returns the generated text.
type fakeGenerator struct {
	mu           sync.Mutex
	calls        int
	perCallCost  float64
	estimateCost float64
	respond      func(req gateway.Request) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	text, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &gateway.Response{
		Text:         text,
		CostUSD:      f.perCallCost,
		InputTokens:  40,
		OutputTokens: 30,
	}, nil
}

func (f *fakeGenerator) EstimateCost(prompt string, maxTokens int) gateway.CostEstimate {
	return gateway.CostEstimate{EstimatedCostUSD: f.estimateCost}
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// uniform builds a vector with the same score on every dimension.
func uniform(score float64) quality.FeatureVector {
	fv := make(quality.FeatureVector, len(quality.Dimensions))
	for _, dim := range quality.Dimensions {
		fv[dim] = score
	}
	return fv
}

// tableScorer scores each known text with a uniform vector, unknown text
// with the fallback score.
func tableScorer(levels map[string]float64, fallback float64) Scorer {
	return func(text string) quality.FeatureVector {
		if score, ok := levels[text]; ok {
			return uniform(score)
		}
		return uniform(fallback)
	}
}

func newTestEngine(gen Generator, scorer Scorer) *Engine {
	return NewEngine(gen, WithScorer(scorer), WithLogger(utils.NewLogger(utils.LogLevelOff)))
}

func TestOptimizeAlreadyOptimal(t *testing.T) {
	gen := &fakeGenerator{respond: func(gateway.Request) (string, error) {
		return "", errors.New("must not be called")
	}}
	engine := newTestEngine(gen, tableScorer(nil, 0.95))

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:   "a prompt that is already excellent",
		Strategy: StrategyBalanced,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusAlreadyOptimal, result.Status)
	assert.Equal(t, result.OriginalPrompt, result.OptimizedPrompt)
	assert.Zero(t, result.DeltaQ)
	assert.Empty(t, result.Iterations)
	assert.Zero(t, result.TotalCostUSD)
	assert.Zero(t, result.TotalTokens)
	assert.True(t, result.Benchmark.AlreadyOptimal)
	assert.Equal(t, 0, gen.callCount(), "already-optimal runs make no provider call")
	assert.NotEqual(t, uuid.Nil, result.RunID)
}

func TestOptimizeConvergesToTarget(t *testing.T) {
	var mu sync.Mutex
	queue := []string{"first pass", "second pass"}
	gen := &fakeGenerator{
		perCallCost:  0.001,
		estimateCost: 0.001,
		respond: func(gateway.Request) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			text := queue[0]
			if len(queue) > 1 {
				queue = queue[1:]
			}
			return text, nil
		},
	}
	scorer := tableScorer(map[string]float64{
		"seed":        0.30,
		"first pass":  0.60,
		"second pass": 0.90,
	}, 0.30)
	engine := newTestEngine(gen, scorer)

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:   "seed",
		Strategy: StrategyCostEfficient,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "second pass", result.OptimizedPrompt)
	assert.InDelta(t, 0.30, result.OriginalQ, 1e-9)
	assert.InDelta(t, 0.90, result.OptimizedQ, 1e-9)
	assert.InDelta(t, 0.60, result.DeltaQ, 1e-9)
	assert.True(t, result.Benchmark.TargetAchieved)

	require.Len(t, result.Iterations, 2)
	for i, it := range result.Iterations {
		assert.Equal(t, i+1, it.Number, "iteration numbers are 1-based with no gaps")
		if i > 0 {
			assert.GreaterOrEqual(t, it.QScore, result.Iterations[i-1].QScore,
				"q must be non-decreasing up to the success point")
		}
	}
	assert.InDelta(t, 0.002, result.TotalCostUSD, 1e-9)
	assert.Equal(t, 140, result.TotalTokens)
}

func TestOptimizeNoProgressKeepsCandidate(t *testing.T) {
	gen := &fakeGenerator{
		perCallCost:  0.001,
		estimateCost: 0.001,
		respond: func(gateway.Request) (string, error) {
			// Echo behavior: the rewrite never changes anything.
			return "seed", nil
		},
	}
	engine := newTestEngine(gen, tableScorer(map[string]float64{"seed": 0.30}, 0.30))

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:   "seed",
		Strategy: StrategyCostEfficient,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNoProgress, result.Status)
	assert.Equal(t, "seed", result.OptimizedPrompt)
	require.Len(t, result.Iterations, 1, "no-progress terminates at the first iteration")
	assert.Zero(t, result.DeltaQ)
	assert.Empty(t, result.DimensionsImproved)
}

func TestOptimizeInvalidStrategy(t *testing.T) {
	gen := &fakeGenerator{respond: func(gateway.Request) (string, error) { return "", nil }}
	engine := newTestEngine(gen, tableScorer(nil, 0.3))

	_, err := engine.Optimize(context.Background(), Params{Prompt: "seed", Strategy: "turbo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStrategy)
	assert.Equal(t, 0, gen.callCount())
}

func TestOptimizeCostLimitGate(t *testing.T) {
	gen := &fakeGenerator{
		estimateCost: 1.0, // far above every strategy budget
		respond: func(gateway.Request) (string, error) {
			return "", errors.New("must not be called")
		},
	}
	engine := newTestEngine(gen, tableScorer(nil, 0.3))

	_, err := engine.Optimize(context.Background(), Params{Prompt: "seed", Strategy: StrategyBalanced})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCostLimitExceeded)
	assert.Equal(t, 0, gen.callCount(), "the gate fires before any spend")
}

func TestOptimizeMergeFallback(t *testing.T) {
	gen := &fakeGenerator{
		perCallCost:  0.001,
		estimateCost: 0.001,
		respond: func(req gateway.Request) (string, error) {
			if strings.Contains(req.Prompt, "Improved Versions:") {
				return "", errors.New("merge model unavailable")
			}
			return "rewritten", nil
		},
	}
	engine := newTestEngine(gen, tableScorer(map[string]float64{
		"seed":      0.50,
		"rewritten": 0.60,
	}, 0.50))

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:        "seed",
		Strategy:      StrategyBalanced, // two dimensions per iteration forces a merge
		TargetQuality: 0.55,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "rewritten", result.OptimizedPrompt, "merge failure falls back to the first rewrite")
	assert.Equal(t, 3, gen.callCount(), "two rewrites plus the failed merge")
}

func TestOptimizePartialRewriteFailure(t *testing.T) {
	gen := &fakeGenerator{
		perCallCost:  0.001,
		estimateCost: 0.001,
		respond: func(req gateway.Request) (string, error) {
			if strings.Contains(req.Prompt, "Tone dimension") {
				return "", errors.New("transient provider error")
			}
			return "rewritten", nil
		},
	}
	engine := newTestEngine(gen, tableScorer(map[string]float64{
		"seed":      0.50,
		"rewritten": 0.90,
	}, 0.50))

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:   "seed",
		Strategy: StrategyBalanced,
	})
	require.NoError(t, err)

	// One of the two rewrites failed; the survivor is used without a merge.
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "rewritten", result.OptimizedPrompt)
	assert.Equal(t, 2, gen.callCount())
	require.Len(t, result.Iterations, 1)
	assert.Len(t, result.Iterations[0].DimensionsHit, 2, "both attempted dimensions are recorded")
}

func TestOptimizeAllRewritesFail(t *testing.T) {
	gen := &fakeGenerator{
		estimateCost: 0.001,
		respond: func(gateway.Request) (string, error) {
			return "", errors.New("provider down")
		},
	}
	engine := newTestEngine(gen, tableScorer(map[string]float64{"seed": 0.30}, 0.30))

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:   "seed",
		Strategy: StrategyBalanced,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNoProgress, result.Status)
	assert.Equal(t, "seed", result.OptimizedPrompt)
	assert.Empty(t, result.Iterations)
}

func TestOptimizeCancellation(t *testing.T) {
	gen := &fakeGenerator{
		estimateCost: 0.001,
		respond: func(gateway.Request) (string, error) {
			return "rewritten", nil
		},
	}
	engine := newTestEngine(gen, tableScorer(map[string]float64{"seed": 0.30}, 0.30))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Optimize(ctx, Params{Prompt: "seed", Strategy: StrategyBalanced})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "cancellation still returns the partial result")
	assert.Equal(t, StatusCanceled, result.Status)
	assert.Empty(t, result.Iterations)
}

// Every candidate scores a hair better than the last without reaching the
// target, so the iteration cap is the stopper.
func TestOptimizeStopsAtIterationCap(t *testing.T) {
	var mu sync.Mutex
	counter := 0
	gen := &fakeGenerator{
		perCallCost:  0.0001,
		estimateCost: 0.0001,
		respond: func(gateway.Request) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			counter++
			return strings.Repeat("x", counter), nil
		},
	}
	scorer := func(text string) quality.FeatureVector {
		score := 0.30 + 0.05*float64(len(text))
		if score > 1 {
			score = 1
		}
		return uniform(score)
	}
	engine := newTestEngine(gen, scorer)

	result, err := engine.Optimize(context.Background(), Params{
		Prompt:   "",
		Strategy: StrategyCostEfficient,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusBudgetExhausted, result.Status)
	assert.Len(t, result.Iterations, 2)
	assert.Greater(t, result.DeltaQ, 0.0)
}

type recordingSaver struct {
	text     string
	parentID *uuid.UUID
	id       uuid.UUID
}

func (s *recordingSaver) Save(_ context.Context, text string, _ quality.Score, _ quality.FeatureVector, parentID *uuid.UUID) (uuid.UUID, error) {
	s.text = text
	s.parentID = parentID
	return s.id, nil
}

func TestSaveResult(t *testing.T) {
	saver := &recordingSaver{id: uuid.New()}
	gen := &fakeGenerator{respond: func(gateway.Request) (string, error) { return "", nil }}
	engine := NewEngine(gen,
		WithLogger(utils.NewLogger(utils.LogLevelOff)),
		WithSaver(saver),
	)

	parent := uuid.New()
	id, err := engine.SaveResult(context.Background(), &Result{OptimizedPrompt: "final text"}, &parent)
	require.NoError(t, err)

	assert.Equal(t, saver.id, id)
	assert.Equal(t, "final text", saver.text)
	require.NotNil(t, saver.parentID)
	assert.Equal(t, parent, *saver.parentID)
}

func TestSaveResultWithoutSaver(t *testing.T) {
	gen := &fakeGenerator{respond: func(gateway.Request) (string, error) { return "", nil }}
	engine := newTestEngine(gen, tableScorer(nil, 0.5))

	_, err := engine.SaveResult(context.Background(), &Result{OptimizedPrompt: "x"}, nil)
	assert.Error(t, err)
}
