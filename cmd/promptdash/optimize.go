package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptdash/promptdash/optimizer"
	"github.com/promptdash/promptdash/quality"
)

func optimizeCmd() *cobra.Command {
	var (
		strategyName  string
		target        float64
		maxIterations int
		providerName  string
		reportFormat  string
		skipEstimate  bool
	)

	cmd := &cobra.Command{
		Use:   "optimize [prompt]",
		Short: "Iteratively rewrite a prompt toward a quality target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptFromArgs(args)
			if err != nil {
				return err
			}
			strategy, err := optimizer.ParseStrategy(strategyName)
			if err != nil {
				return err
			}

			gw, err := buildGateway(providerName)
			if err != nil {
				return err
			}
			engine := optimizer.NewEngine(gw, optimizer.WithLogger(logger))

			result, err := engine.Optimize(cmd.Context(), optimizer.Params{
				Prompt:        text,
				TargetQuality: target,
				Strategy:      strategy,
				MaxIterations: maxIterations,
				SkipEstimate:  skipEstimate,
			})
			if err != nil {
				if result == nil || !errors.Is(err, cmd.Context().Err()) {
					return err
				}
				logger.Warn("optimization interrupted, reporting partial result", "error", err)
			}

			report, err := optimizer.RenderReport(result, optimizer.ReportFormat(reportFormat))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", string(optimizer.StrategyBalanced), "optimization strategy: balanced, cost_efficient, or max_quality")
	cmd.Flags().Float64Var(&target, "target", 0, "target Q score, overrides the strategy default when positive")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "lower the strategy's iteration cap")
	cmd.Flags().StringVar(&providerName, "provider", "", "provider override, defaults to PD_PROVIDER")
	cmd.Flags().StringVar(&reportFormat, "report", string(optimizer.ReportMarkdown), "report format: markdown, json, or html")
	cmd.Flags().BoolVar(&skipEstimate, "skip-estimate", false, "skip the pre-flight cost gate")

	return cmd
}

func estimateCmd() *cobra.Command {
	var (
		strategyName string
		target       float64
		providerName string
	)

	cmd := &cobra.Command{
		Use:   "estimate [prompt]",
		Short: "Estimate optimization cost without making provider calls",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptFromArgs(args)
			if err != nil {
				return err
			}
			strategy, err := optimizer.ParseStrategy(strategyName)
			if err != nil {
				return err
			}
			strategyCfg, err := strategy.Config()
			if err != nil {
				return err
			}
			if target <= 0 {
				target = strategyCfg.TargetQ
			}

			gw, err := buildGateway(providerName)
			if err != nil {
				return err
			}
			engine := optimizer.NewEngine(gw, optimizer.WithLogger(logger))

			score, err := quality.ComputeQ(quality.EstimateFeatures(text))
			if err != nil {
				return err
			}
			estimate, err := engine.EstimateCost(text, score.Q, target, strategy)
			if err != nil {
				return err
			}

			out := struct {
				CurrentQ float64                `json:"current_q"`
				TargetQ  float64                `json:"target_q"`
				Strategy string                 `json:"strategy"`
				Estimate optimizer.CostEstimate `json:"estimate"`
			}{
				CurrentQ: score.Q,
				TargetQ:  target,
				Strategy: string(strategy),
				Estimate: estimate,
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", string(optimizer.StrategyBalanced), "optimization strategy: balanced, cost_efficient, or max_quality")
	cmd.Flags().Float64Var(&target, "target", 0, "target Q score, defaults to the strategy's target")
	cmd.Flags().StringVar(&providerName, "provider", "", "provider override, defaults to PD_PROVIDER")

	return cmd
}
