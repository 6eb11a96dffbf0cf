package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// SweepProgress is sent once per finished candidate
type SweepProgress struct {
	RunID     string    `json:"run_id"`
	Candidate string    `json:"candidate"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Grade     int       `json:"grade"`
	Accuracy  float64   `json:"accuracy"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CandidateResult pairs a candidate with its report or the error that stopped it
type CandidateResult struct {
	Config Config  `json:"config"`
	Report *Report `json:"report,omitempty"`
	Err    error   `json:"-"`
	Error  string  `json:"error,omitempty"`
}

type sweepJob struct {
	index int
	cfg   Config
}

type sweepResult struct {
	index  int
	result CandidateResult
}

// Sweep runs independent candidates in parallel. Each candidate's own folds still run in
// order inside Run. Results are ranked by grade, then out-of-sample accuracy, then name;
// failed candidates sort last. progress may be nil.
func (h *Harness) Sweep(
	ctx context.Context,
	runID string,
	candidates []Config,
	games []types.GameRecord,
	snapshots []types.TeamRatingSnapshot,
	workers int,
	progress chan<- SweepProgress,
) ([]CandidateResult, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}
	start := time.Now()

	jobs := make(chan sweepJob)
	results := make(chan sweepResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				report, err := h.Run(ctx, job.cfg, games, snapshots)
				res := CandidateResult{Config: job.cfg, Report: report, Err: err}
				if err != nil {
					res.Error = err.Error()
				}
				results <- sweepResult{index: job.index, result: res}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, cfg := range candidates {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- sweepJob{index: i, cfg: cfg}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]CandidateResult, len(candidates))
	done := make([]bool, len(candidates))
	completed := 0
	for r := range results {
		out[r.index] = r.result
		done[r.index] = true
		completed++

		if progress != nil {
			update := SweepProgress{
				RunID:     runID,
				Candidate: r.result.Config.Name,
				Completed: completed,
				Total:     len(candidates),
				Error:     r.result.Error,
				Timestamp: time.Now().UTC(),
			}
			if r.result.Report != nil {
				update.Grade = r.result.Report.Grade
				update.Accuracy = r.result.Report.OutOfSample.Accuracy
			}
			select {
			case progress <- update:
			case <-ctx.Done():
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := make([]CandidateResult, 0, len(candidates))
	for i, r := range out {
		if done[i] {
			ranked = append(ranked, r)
		}
	}
	RankCandidates(ranked)

	h.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"candidates": len(candidates),
		"workers":    workers,
		"duration":   time.Since(start),
	}).Info("Backtest sweep completed")

	return ranked, nil
}

// RankCandidates orders results best first
func RankCandidates(results []CandidateResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Report == nil) != (b.Report == nil) {
			return a.Report != nil
		}
		if a.Report != nil {
			if a.Report.Grade != b.Report.Grade {
				return a.Report.Grade > b.Report.Grade
			}
			if a.Report.OutOfSample.Accuracy != b.Report.OutOfSample.Accuracy {
				return a.Report.OutOfSample.Accuracy > b.Report.OutOfSample.Accuracy
			}
		}
		return a.Config.Name < b.Config.Name
	})
}
