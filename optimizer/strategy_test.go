package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyConfig(t *testing.T) {
	tests := []struct {
		strategy Strategy
		targetQ  float64
		maxCost  float64
		maxIters int
		dims     int
	}{
		{StrategyBalanced, 0.85, 0.20, 3, 2},
		{StrategyCostEfficient, 0.75, 0.05, 2, 1},
		{StrategyMaxQuality, 0.90, 0.50, 5, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			cfg, err := tt.strategy.Config()
			require.NoError(t, err)
			assert.Equal(t, tt.targetQ, cfg.TargetQ)
			assert.Equal(t, tt.maxCost, cfg.MaxCostUSD)
			assert.Equal(t, tt.maxIters, cfg.MaxIterations)
			assert.Equal(t, tt.dims, cfg.DimensionsPerIteration)
		})
	}
}

func TestStrategyConfigUnknown(t *testing.T) {
	_, err := Strategy("aggressive").Config()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("cost_efficient")
	require.NoError(t, err)
	assert.Equal(t, StrategyCostEfficient, s)

	_, err = ParseStrategy("")
	assert.ErrorIs(t, err, ErrInvalidStrategy)

	_, err = ParseStrategy("BALANCED")
	assert.ErrorIs(t, err, ErrInvalidStrategy, "strategy names are case sensitive")
}

func TestStrategiesStableOrder(t *testing.T) {
	assert.Equal(t,
		[]Strategy{StrategyBalanced, StrategyCostEfficient, StrategyMaxQuality},
		Strategies())
}
