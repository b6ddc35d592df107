package optimizer

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/promptdash/promptdash/quality"
)

// ReportFormat selects the rendering of an optimization report.
type ReportFormat string

const (
	ReportMarkdown ReportFormat = "markdown"
	ReportJSON     ReportFormat = "json"
	ReportHTML     ReportFormat = "html"
)

// RenderReport formats a completed result. It is a pure function over the
// result's fields.
func RenderReport(result *Result, format ReportFormat) (string, error) {
	switch format {
	case ReportJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ReportMarkdown:
		return renderMarkdown(result), nil
	case ReportHTML:
		return fmt.Sprintf("<html><body><h1>Optimization Report</h1><pre>%s</pre></body></html>",
			html.EscapeString(renderMarkdown(result))), nil
	default:
		return "", fmt.Errorf("unknown report format: %q", string(format))
	}
}

func renderMarkdown(result *Result) string {
	var b strings.Builder

	statusLabel := "Partial"
	if result.Benchmark.TargetAchieved {
		statusLabel = "Success"
	}

	fmt.Fprintf(&b, "# Prompt Optimization Report\n\n")
	fmt.Fprintf(&b, "## Executive Summary\n\n")
	fmt.Fprintf(&b, "**Status**: %s (%s)\n", statusLabel, result.Status)
	fmt.Fprintf(&b, "**Strategy**: %s\n", result.Strategy)
	fmt.Fprintf(&b, "**Improvement**: %.4f -> %.4f (%+.4f, %+.1f%%)\n",
		result.OriginalQ, result.OptimizedQ, result.DeltaQ, result.ImprovementPct)
	fmt.Fprintf(&b, "**Cost**: $%.4f (%d tokens)\n", result.TotalCostUSD, result.TotalTokens)
	fmt.Fprintf(&b, "**Iterations**: %d\n\n---\n\n", len(result.Iterations))

	b.WriteString("## Quality Breakdown\n\n### Before Optimization\n```\n")
	fmt.Fprintf(&b, "Q Score: %.4f\n", result.OriginalQ)
	for _, dim := range quality.Dimensions {
		if change, ok := result.DimensionsImproved[dim]; ok {
			fmt.Fprintf(&b, "%s: %.2f  ", dim, change.Before)
		}
	}
	b.WriteString("\n```\n\n### After Optimization\n```\n")
	fmt.Fprintf(&b, "Q Score: %.4f\n", result.OptimizedQ)
	if len(result.Iterations) > 0 {
		final := result.Iterations[len(result.Iterations)-1].Features
		for _, dim := range quality.Dimensions {
			fmt.Fprintf(&b, "%s: %.2f", dim, final[dim])
			if change, ok := result.DimensionsImproved[dim]; ok {
				fmt.Fprintf(&b, " (%+.2f)", change.After-change.Before)
			}
			b.WriteString("  ")
		}
	}
	b.WriteString("\n```\n\n---\n\n## Iteration Timeline\n\n")

	for _, it := range result.Iterations {
		fmt.Fprintf(&b, "**Iteration %d**\n", it.Number)
		fmt.Fprintf(&b, "- Improved: %s\n", dimensionNames(it.DimensionsHit))
		fmt.Fprintf(&b, "- Q Score: %.4f\n", it.QScore)
		fmt.Fprintf(&b, "- Cost: $%.4f\n", it.CostUSD)
		fmt.Fprintf(&b, "- Time: %.0fms\n\n", it.LatencyMS)
	}

	b.WriteString("---\n\n## Cost Analysis\n\n")
	fmt.Fprintf(&b, "- **Total Spent**: $%.4f\n", result.TotalCostUSD)
	fmt.Fprintf(&b, "- **Tokens Used**: %d\n", result.TotalTokens)
	fmt.Fprintf(&b, "- **Cost per Quality Point**: $%.4f per 0.01 Q improvement\n", result.CostPerPoint())
	if cfg, err := result.Strategy.Config(); err == nil {
		fmt.Fprintf(&b, "- **Strategy Budget**: $%.2f\n", cfg.MaxCostUSD)
	}

	b.WriteString("\n---\n\n## Optimized Prompt\n\n```\n")
	b.WriteString(result.OptimizedPrompt)
	b.WriteString("\n```\n\n---\n\n## Recommendations\n\n")

	if result.OptimizedQ < 0.90 {
		b.WriteString("- Consider using the max_quality strategy for further improvements\n")
	}
	if result.TotalCostUSD > 0.20 {
		b.WriteString("- High optimization cost: consider the cost_efficient strategy for future prompts\n")
	}
	if len(result.Iterations) == 1 {
		b.WriteString("- Single iteration: could benefit from additional refinement\n")
	}

	return b.String()
}
