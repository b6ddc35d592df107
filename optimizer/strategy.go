// Package optimizer implements iterative, provider-driven prompt
// improvement: score the prompt, pick the weakest rubric dimensions,
// rewrite each one, merge the rewrites, re-score, and repeat until the
// quality target, budget, or iteration cap is hit.
package optimizer

import (
	"errors"
	"fmt"
)

// Strategy names a budget/behavior bundle for an optimization run.
type Strategy string

const (
	StrategyBalanced      Strategy = "balanced"
	StrategyCostEfficient Strategy = "cost_efficient"
	StrategyMaxQuality    Strategy = "max_quality"
)

// ErrInvalidStrategy is wrapped into errors returned for unknown strategy
// names.
var ErrInvalidStrategy = errors.New("invalid optimization strategy")

// ErrCostLimitExceeded is wrapped into errors returned when the pre-flight
// estimate exceeds the strategy budget. It fires before any provider spend.
var ErrCostLimitExceeded = errors.New("cost limit exceeded")

// StrategyConfig is the fixed configuration a strategy binds.
type StrategyConfig struct {
	TargetQ                float64
	MaxCostUSD             float64
	MaxIterations          int
	DimensionsPerIteration int
	Temperature            float64
	Description            string
}

var strategyConfigs = map[Strategy]StrategyConfig{
	StrategyBalanced: {
		TargetQ:                0.85,
		MaxCostUSD:             0.20,
		MaxIterations:          3,
		DimensionsPerIteration: 2,
		Temperature:            0.3,
		Description:            "Balanced approach: good quality at reasonable cost",
	},
	StrategyCostEfficient: {
		TargetQ:                0.75,
		MaxCostUSD:             0.05,
		MaxIterations:          2,
		DimensionsPerIteration: 1,
		Temperature:            0.5,
		Description:            "Budget-friendly: essential improvements only",
	},
	StrategyMaxQuality: {
		TargetQ:                0.90,
		MaxCostUSD:             0.50,
		MaxIterations:          5,
		DimensionsPerIteration: 3,
		Temperature:            0.2,
		Description:            "Premium quality: comprehensive optimization",
	},
}

// Strategies lists the known strategies in a stable order.
func Strategies() []Strategy {
	return []Strategy{StrategyBalanced, StrategyCostEfficient, StrategyMaxQuality}
}

// Config returns the strategy's configuration, or ErrInvalidStrategy for an
// unknown name.
func (s Strategy) Config() (StrategyConfig, error) {
	cfg, ok := strategyConfigs[s]
	if !ok {
		return StrategyConfig{}, fmt.Errorf("%w: %q", ErrInvalidStrategy, string(s))
	}
	return cfg, nil
}

// ParseStrategy validates a strategy name from external input.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if _, err := s.Config(); err != nil {
		return "", err
	}
	return s, nil
}
