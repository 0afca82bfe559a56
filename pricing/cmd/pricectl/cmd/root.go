// Package cmd provides the pricectl commands.
package cmd

import (
	"fmt"
	"os"

	"precifica/pricing/internal/feeconfig"
	"precifica/pricing/internal/logging"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	verbose    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pricectl",
		Short: "Suggest marketplace sale prices from the command line",
		Long: `pricectl computes the minimum sale price that reaches a profit or margin
target on Shopee or Mercado Livre, using the same fee schedule and solver
as the pricing service.

Examples:
  pricectl calc --platform shopee --cost 20 --objective lucro --value 10
  pricectl calc --platform ml --plan premium --cost 40 --objective margem --value 15
  pricectl config defaults > fees.json
  pricectl calc --config fees.json --platform ml --cost 5 --value 2`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig()
			cfg.Level = "warn"
			if opts.verbose {
				cfg.Level = "debug"
			}
			return logging.Initialize(cfg)
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "fee configuration JSON file (default is the built-in schedule)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(newCalcCmd(opts))
	root.AddCommand(newConfigCmd())
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig(path string) (feeconfig.Config, error) {
	if path == "" {
		return feeconfig.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return feeconfig.Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return feeconfig.Decode(f)
}
