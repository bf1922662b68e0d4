package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/backsim/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate a starter config file",
	Long: `Write a default configuration file for one of the strategy variants.

Example:
  backsim config --variant options --out options.yaml`,
	RunE: runConfig,
}

var (
	configVariant string
	configOut     string
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVar(&configVariant, "variant", "equity", "strategy variant: equity, options or futures")
	configCmd.Flags().StringVarP(&configOut, "out", "o", "backsim.yaml", "output path (.yaml, .yml or .json)")
}

func runConfig(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	switch configVariant {
	case "equity":
		cfg = config.Default()
	case "options":
		cfg = config.DefaultOptions()
	case "futures":
		cfg = config.DefaultFutures()
	default:
		return fmt.Errorf("unknown variant %q (equity, options, futures)", configVariant)
	}

	if err := cfg.SaveToFile(configOut); err != nil {
		return err
	}
	fmt.Printf("Wrote %s config to %s\n", configVariant, configOut)
	return nil
}
