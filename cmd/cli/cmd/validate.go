package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steelcut-optimizer/internal/optimizer"
	"github.com/steelcut-optimizer/pkg/config"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a job's constraints without planning",
	Long: `Run the constraint validator on a job file.

Reports every blocking violation together with resolution suggestions,
such as the module lengths that would make an over-long demand weldable
or the segment count that would suffice. Exits non-zero when the job is
infeasible.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	binName := BinName()
	validateCmd.Example = `  ` + binName + ` validate -i ./job.json`

	validateCmd.Flags().StringVarP(&jobFile, "input", "i", "", "Input job file (required)")
	validateCmd.MarkFlagRequired("input")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	req, err := loadJob(jobFile)
	if err != nil {
		return err
	}
	applyDefaults(&req.Constraints, cfg)

	result := optimizer.ValidateConstraints(req.DesignSteels, req.ModuleSteels, req.Constraints)

	if result.IsValid {
		log.Info("Job is feasible: %d design steel(s), %d module length(s)",
			len(req.DesignSteels), len(req.ModuleSteels))
		for _, w := range result.Warnings {
			log.Warn("  %s", w)
		}
		return nil
	}

	for _, v := range result.Violations {
		log.Error("violation [%s]: %s", v.Type, v.Message)
	}
	for _, s := range result.Suggestions {
		log.Info("suggestion [%s]: %s", s.Type, s.Message)
	}
	return fmt.Errorf("job is infeasible: %d violation(s)", len(result.Violations))
}
