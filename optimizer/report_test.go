package optimizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdash/promptdash/quality"
)

func sampleResult() *Result {
	return &Result{
		RunID:           uuid.New(),
		OriginalPrompt:  "write about AI",
		OptimizedPrompt: "You are a Senior ML Engineer. Write a 500-word article about AI.",
		OriginalQ:       0.42,
		OptimizedQ:      0.87,
		DeltaQ:          0.45,
		ImprovementPct:  107.1,
		Status:          StatusSuccess,
		Iterations: []Iteration{
			{
				Number:        1,
				PromptText:    "intermediate",
				Features:      map[quality.Dimension]float64{quality.Persona: 0.8, quality.Tone: 0.7, quality.Format: 0.6, quality.Specificity: 0.7, quality.Constraints: 0.5, quality.Context: 0.6},
				QScore:        0.68,
				DimensionsHit: []quality.Dimension{quality.Tone, quality.Format},
				CostUSD:       0.012,
				TokensUsed:    900,
				LatencyMS:     1500,
				Timestamp:     time.Now().UTC(),
			},
			{
				Number:        2,
				PromptText:    "You are a Senior ML Engineer. Write a 500-word article about AI.",
				Features:      map[quality.Dimension]float64{quality.Persona: 0.95, quality.Tone: 0.85, quality.Format: 0.9, quality.Specificity: 0.85, quality.Constraints: 0.8, quality.Context: 0.8},
				QScore:        0.87,
				DimensionsHit: []quality.Dimension{quality.Persona},
				CostUSD:       0.008,
				TokensUsed:    700,
				LatencyMS:     1200,
				Timestamp:     time.Now().UTC(),
			},
		},
		TotalCostUSD: 0.020,
		TotalTokens:  1600,
		Strategy:     StrategyBalanced,
		DimensionsImproved: map[quality.Dimension]DimensionChange{
			quality.Persona: {Before: 0.4, After: 0.95},
			quality.Tone:    {Before: 0.5, After: 0.85},
		},
		Benchmark: BenchmarkSummary{
			IterationsUsed:    2,
			TargetQ:           0.85,
			TargetAchieved:    true,
			DimensionsChanged: 2,
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestRenderReportMarkdown(t *testing.T) {
	out, err := RenderReport(sampleResult(), ReportMarkdown)
	require.NoError(t, err)

	assert.Contains(t, out, "# Prompt Optimization Report")
	assert.Contains(t, out, "**Status**: Success (success)")
	assert.Contains(t, out, "**Strategy**: balanced")
	assert.Contains(t, out, "0.4200 -> 0.8700")
	assert.Contains(t, out, "**Iteration 1**")
	assert.Contains(t, out, "**Iteration 2**")
	assert.Contains(t, out, "## Cost Analysis")
	assert.Contains(t, out, "You are a Senior ML Engineer.")
}

func TestRenderReportJSON(t *testing.T) {
	result := sampleResult()
	out, err := RenderReport(result, ReportJSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, result.OriginalPrompt, decoded["original_prompt"])
	assert.Equal(t, string(result.Status), decoded["status"])
	assert.Len(t, decoded["iterations"], 2)
}

func TestRenderReportHTML(t *testing.T) {
	out, err := RenderReport(sampleResult(), ReportHTML)
	require.NoError(t, err)
	assert.Contains(t, out, "<html>")
	assert.Contains(t, out, "Prompt Optimization Report")
}

func TestRenderReportUnknownFormat(t *testing.T) {
	_, err := RenderReport(sampleResult(), "pdf")
	assert.Error(t, err)
}

func TestBestIteration(t *testing.T) {
	result := sampleResult()
	best := result.BestIteration()
	require.NotNil(t, best)
	assert.Equal(t, 2, best.Number)

	empty := &Result{}
	assert.Nil(t, empty.BestIteration())
}

func TestCostPerPoint(t *testing.T) {
	result := sampleResult()
	// $0.020 across 45 hundredths of Q.
	assert.InDelta(t, 0.020/45.0, result.CostPerPoint(), 1e-9)

	flat := &Result{TotalCostUSD: 0.02, DeltaQ: 0}
	assert.Zero(t, flat.CostPerPoint())
}
