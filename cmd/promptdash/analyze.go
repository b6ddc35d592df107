package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptdash/promptdash/quality"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [prompt]",
		Short: "Score a prompt locally, no provider call",
		Long: `Score a prompt against the six-dimension rubric using the local
heuristic analyzer. Pass the prompt as an argument, or pipe it on stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptFromArgs(args)
			if err != nil {
				return err
			}

			features := quality.EstimateFeatures(text)
			score, err := quality.ComputeQ(features)
			if err != nil {
				return err
			}

			out := struct {
				QScore      float64               `json:"q_score"`
				Level       string                `json:"level"`
				Features    quality.FeatureVector `json:"features"`
				Breakdown   map[string]float64    `json:"breakdown"`
				Suggestions []string              `json:"suggestions"`
			}{
				QScore:      score.Q,
				Level:       quality.Level(score.Q),
				Features:    features,
				Breakdown:   breakdownByName(score),
				Suggestions: quality.Suggest(features, quality.DefaultSuggestionThreshold),
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func breakdownByName(score quality.Score) map[string]float64 {
	out := make(map[string]float64, len(score.Breakdown))
	for dim, contribution := range score.Breakdown {
		out[dim.Name()] = contribution
	}
	return out
}

// promptFromArgs returns the single positional argument, falling back to
// stdin so prompts can be piped in.
func promptFromArgs(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no prompt given: pass it as an argument or on stdin")
	}
	return text, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
