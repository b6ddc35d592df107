// Command promptdash runs the prompt scoring and optimization service and
// its companion CLI tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptdash/promptdash/config"
	"github.com/promptdash/promptdash/gateway"
	"github.com/promptdash/promptdash/providers"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/utils"
)

var (
	cfg    *config.Config
	logger utils.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "promptdash",
		Short: "Prompt quality scoring and LLM-powered optimization",
		Long: `promptdash scores prompts against a six-dimension rubric and
iteratively rewrites them toward a quality target using a text-generation
provider.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger = utils.NewLogger(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		analyzeCmd(),
		optimizeCmd(),
		estimateCmd(),
		migrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildGateway wires the configured provider into a gateway with quality
// analysis enabled.
func buildGateway(providerName string) (*gateway.Gateway, error) {
	if providerName == "" {
		providerName = cfg.Provider
	}

	registry := providers.NewRegistry()
	provider, err := registry.Get(providerName, cfg.APIKeys[providers.CanonicalName(providerName)])
	if err != nil {
		return nil, err
	}
	provider.SetLogger(logger)

	return gateway.New(provider, cfg, logger, gateway.WithScorer(quality.EstimateFeatures)), nil
}
