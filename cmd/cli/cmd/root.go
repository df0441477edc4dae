// Package cmd implements the steelcut-optimizer command line interface.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steelcut-optimizer/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logger     utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "steelcut-optimizer",
	Short: "A steel cutting-stock optimization service",
	Long: `steelcut-optimizer plans how to cut standard module steel into design
steel demands with minimal material loss.

It groups demands by specification and cross-section, reuses cutting
remainders across plans, welds segments when a demand exceeds every
module length, and reports per-group and total loss rates. The optimize
command runs a single job from a file; the serve command runs the
asynchronous HTTP service backed by a task store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	binName := BinName()
	rootCmd.Example = `  # Run one optimization job from a file
  ` + binName + ` optimize -i ./job.json -o ./result.json

  # Check a job's constraints without planning
  ` + binName + ` validate -i ./job.json

  # Start the HTTP service
  ` + binName + ` serve -c ./config.yaml`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
