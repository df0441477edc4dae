package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/steelcut-optimizer/internal/optimizer"
	"github.com/steelcut-optimizer/pkg/config"
	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/writer"
)

var (
	// Optimize command flags
	jobFile    string
	outputFile string
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run one optimization job from a file",
	Long: `Run the cutting-stock engine once, synchronously, on a job file.

The job file is a JSON document with designSteels, moduleSteels and
constraints, the same shape the HTTP service accepts. The full result
is written to the output file; a per-group summary is printed to the
log.`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	binName := BinName()
	optimizeCmd.Example = `  # Run a job and write the result
  ` + binName + ` optimize -i ./job.json -o ./result.json

  # Run with verbose planner logging
  ` + binName + ` optimize -i ./job.json -o ./result.json -v`

	optimizeCmd.Flags().StringVarP(&jobFile, "input", "i", "", "Input job file (required)")
	optimizeCmd.Flags().StringVarP(&outputFile, "output", "o", "./result.json", "Output file for the full result")
	optimizeCmd.MarkFlagRequired("input")
}

func runOptimize(cmd *cobra.Command, args []string) error {
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

	log.Info("=== Steel Cutting Optimization ===")
	log.Info("Job file:      %s", jobFile)
	log.Info("Design steels: %d", len(req.DesignSteels))
	log.Info("Module steels: %d", len(req.ModuleSteels))
	log.Info("Constraints:   waste<%.0fmm, welds<=%d, budget %dms",
		req.Constraints.WasteThreshold, req.Constraints.MaxWeldingSegments, req.Constraints.TimeLimit)
	log.Info("")

	engine := optimizer.NewEngine(optimizer.EngineOptions{
		WeldCostMM:         cfg.Optimizer.WeldCostMM,
		WeldBenefitFloorMM: cfg.Optimizer.WeldBenefitFloorMM,
		PostPassIterations: cfg.Optimizer.PostPassIterations,
		MaxParallelGroups:  cfg.Optimizer.MaxParallelGroups,
	}, log)

	result, err := engine.Optimize(context.Background(), req)
	if err != nil {
		if apperrors.IsInvalidConstraints(err) && result != nil && result.ConstraintValidation != nil {
			for _, v := range result.ConstraintValidation.Violations {
				log.Error("constraint violation: %s", v.Message)
			}
		}
		return fmt.Errorf("optimization failed: %w", err)
	}

	if err := writer.NewPrettyJSONWriter[*model.OptimizationResult]().WriteToFile(result, outputFile); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	printSummary(log, result)
	log.Info("")
	log.Info("Full result written to %s", outputFile)
	return nil
}

// loadJob reads and decodes a job file.
func loadJob(path string) (*model.OptimizeRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var req model.OptimizeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid job file: %w", err)
	}
	return &req, nil
}

// applyDefaults fills unset constraints from the configured defaults.
func applyDefaults(c *model.Constraints, cfg *config.Config) {
	defaults := cfg.DefaultConstraints()
	if c.WasteThreshold <= 0 {
		c.WasteThreshold = defaults.WasteThreshold
	}
	if c.TargetLossRate <= 0 {
		c.TargetLossRate = defaults.TargetLossRate
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = defaults.TimeLimit
	}
	if c.MaxWeldingSegments < 1 {
		c.MaxWeldingSegments = defaults.MaxWeldingSegments
	}
}

func printSummary(log interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
}, result *model.OptimizationResult) {
	log.Info("=== Result Summary ===")

	keys := make([]string, 0, len(result.Solutions))
	for k := range result.Solutions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sol := result.Solutions[key]
		if sol.Error != "" {
			log.Warn("  %-20s failed: %s", key, sol.Error)
			continue
		}
		log.Info("  %-20s %3d module(s), %8.0fmm material, loss %.4f%%",
			key, sol.TotalModuleUsed, sol.TotalMaterial, sol.LossRate)
	}

	log.Info("")
	log.Info("  Modules used:     %d (%.0fmm)", result.TotalModuleUsed, result.TotalMaterial)
	log.Info("  Waste:            %.0fmm", result.TotalWaste)
	log.Info("  Real remainder:   %.0fmm", result.TotalRealRemainder)
	log.Info("  Pseudo remainder: %.0fmm", result.TotalPseudoRemainder)
	log.Info("  Total loss rate:  %.4f%%", result.TotalLossRate)
	log.Info("  Utilization:      %.4f%%", result.UtilizationRate)
	log.Info("  Execution time:   %dms", result.ExecutionTime)

	for _, unmet := range result.UnmetDemands {
		log.Warn("  unmet demand %s (%s): %d of %d satisfied",
			unmet.DesignID, unmet.GroupKey, unmet.Satisfied, unmet.Required)
	}
	for _, issue := range result.ConsistencyIssues {
		log.Warn("  consistency issue: %s", issue)
	}
}
