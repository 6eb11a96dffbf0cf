package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/backtest"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/scoring"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
)

var (
	sweepCandidatesPath string
	sweepCalibrate      bool
	sweepOut            string
	sweepVersion        string
	sweepJSON           bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Backtest and rank several candidates",
	Long: `Runs every candidate in parallel and ranks them: accepted before rejected, then by
grade, out-of-sample accuracy and sample size.

With --calibrate-tiers, the best accepted candidate is re-run with every directional
evaluation let through, and the tier thresholds fitted on its training evaluations are
written to --out as a new calibration version.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepCandidatesPath, "candidates", "", "JSON array of candidate configurations")
	sweepCmd.Flags().BoolVar(&sweepCalibrate, "calibrate-tiers", false, "Fit tier thresholds from the best accepted candidate")
	sweepCmd.Flags().StringVar(&sweepOut, "out", "config/calibration.yaml", "Where to write the calibrated file")
	sweepCmd.Flags().StringVar(&sweepVersion, "version", "", "Calibration version (defaults to today's date)")
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "Print the ranked results as JSON")
	_ = sweepCmd.MarkFlagRequired("candidates")
}

func runSweep(cmd *cobra.Command, args []string) error {
	var candidates []backtest.Config
	if err := readJSON(sweepCandidatesPath, &candidates); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	runID := uuid.New().String()
	progress := make(chan backtest.SweepProgress, len(candidates))
	go func() {
		for p := range progress {
			e.logger.WithFields(logrus.Fields{
				"candidate": p.Candidate,
				"completed": fmt.Sprintf("%d/%d", p.Completed, p.Total),
				"grade":     p.Grade,
				"error":     p.Error,
			}).Info("Candidate finished")
		}
	}()

	results, err := e.service.RunSweep(ctx, runID, candidates, progress)
	close(progress)
	if err != nil {
		return err
	}

	if sweepJSON {
		if err := writeJSON(results); err != nil {
			return err
		}
	} else {
		printRanking(results)
	}

	if !sweepCalibrate {
		return nil
	}
	return calibrateTiers(ctx, e, results)
}

func printRanking(results []backtest.CandidateResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tCANDIDATE\tSPORT\tMARKET\tGRADE\tACCURACY\tPICKS\tSTATUS")
	for i, r := range results {
		if r.Report == nil {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t-\t-\t-\tfailed: %s\n", i+1, r.Config.Name, r.Config.Sport, r.Config.Market, r.Error)
			continue
		}
		status := "accepted"
		if r.Report.Rejected {
			status = "rejected"
		}
		oos := r.Report.OutOfSample
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.3f\t%d\t%s\n",
			i+1, r.Config.Name, r.Config.Sport, r.Config.Market, r.Report.Grade, oos.Accuracy, oos.Decided(), status)
	}
	w.Flush()
}

func calibrateTiers(ctx context.Context, e *env, results []backtest.CandidateResult) error {
	var best *backtest.CandidateResult
	for i := range results {
		if results[i].Report != nil && !results[i].Report.Rejected {
			best = &results[i]
			break
		}
	}
	if best == nil {
		return fmt.Errorf("no accepted candidate to calibrate tiers from")
	}

	open := best.Config
	open.Tiers = []scoring.TierRule{{Tier: scoring.TierThree, MinScore: 0, MinEdge: 0}}
	open.MinTier = scoring.TierThree
	open.MinEdge = 0
	report, err := e.service.RunBacktest(ctx, open, nil)
	if err != nil {
		return fmt.Errorf("failed to re-run %s for calibration: %w", open.Name, err)
	}

	base, err := scoring.TierTableFromCalibration(e.calibration)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	version := sweepVersion
	if version == "" {
		version = now.Format("2006-01-02")
	}

	table, fitted, err := backtest.CalibrateTiers(backtest.CalibrationInput{
		Base:         base,
		Version:      version,
		CalibratedAt: now,
		Sport:        open.Sport,
		Market:       open.Market,
		Train:        report.TrainEvaluations,
		Holdout:      report.HoldoutEvaluations,
		Grid:         backtest.DefaultCalibrationGrid(),
	})
	for _, f := range fitted {
		e.logger.WithFields(logrus.Fields{
			"tier":             f.Rule.Tier,
			"min_score":        f.Rule.MinScore,
			"min_edge":         f.Rule.MinEdge,
			"train_accuracy":   f.TrainAccuracy,
			"holdout_accuracy": f.HoldoutAccuracy,
			"dropped":          f.Dropped,
		}).Info("Tier threshold fitted")
	}
	if err != nil {
		return err
	}

	// thresholds only hold for the weights they were scored with
	out := table.ApplyTo(e.calibration)
	if open.Weights != nil {
		weights := make(map[string]float64, len(open.Weights))
		for category, w := range open.Weights {
			weights[string(category)] = w
		}
		out = out.WithWeights(string(open.Sport), string(open.Market), weights)
	}
	if err := config.SaveCalibration(out, sweepOut); err != nil {
		return err
	}
	e.logger.WithFields(logrus.Fields{
		"version": version,
		"out":     sweepOut,
	}).Info("Wrote calibrated tiers")
	return nil
}
