package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/backtest"
)

var (
	runConfigPath string
	runSaveModel  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest one candidate configuration",
	Long: `Trains the candidate on its training seasons, evaluates the holdout seasons and,
when walk_forward is set, retrains month by month. Prints the report as JSON.

With --save-model, an accepted candidate's fitted model is stored and becomes the
live model for its sport and target.`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Candidate configuration JSON")
	runCmd.Flags().StringVar(&runSaveModel, "save-model", "", "Store the fitted model under this name if the candidate is accepted")
	_ = runCmd.MarkFlagRequired("config")
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	var cfg backtest.Config
	if err := readJSON(runConfigPath, &cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	report, err := e.service.RunBacktest(ctx, cfg, nil)
	if err != nil {
		return err
	}

	if runSaveModel != "" {
		if report.Rejected {
			e.logger.WithField("reasons", report.Reasons).Warn("Candidate rejected, model not saved")
		} else if err := e.models.SaveModel(ctx, cfg.Sport, runSaveModel, report.Model); err != nil {
			return err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"candidate": cfg.Name,
		"grade":     report.Grade,
		"accuracy":  report.OutOfSample.Accuracy,
		"rejected":  report.Rejected,
	}).Info("Backtest finished")
	return writeJSON(report)
}
