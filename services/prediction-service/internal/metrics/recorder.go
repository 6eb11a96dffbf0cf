package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stitts-dev/pick-engine/shared/types"
)

const namespace = "pick_engine"

// Recorder exposes pick, grading, Elo and backtest metrics. A nil *Recorder is valid and
// records nothing, so components can take one optionally.
type Recorder struct {
	PicksGenerated     *prometheus.CounterVec
	PicksGraded        *prometheus.CounterVec
	UnitsWon           *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	EloReplayDuration  *prometheus.HistogramVec
	EloTeams           *prometheus.GaugeVec
	BacktestDuration   *prometheus.HistogramVec
	BacktestRuns       *prometheus.CounterVec
	BacktestAccuracy   *prometheus.GaugeVec
	JobRuns            *prometheus.CounterVec
	CacheRequests      *prometheus.CounterVec
}

// NewRecorder registers every metric on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	durations := prometheus.ExponentialBuckets(0.01, 2, 14) // 10ms to ~80s

	return &Recorder{
		PicksGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_generated_total",
			Help:      "Picks published, by sport, market and tier",
		}, []string{"sport", "market", "tier"}),
		PicksGraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_graded_total",
			Help:      "Picks settled, by sport, market and result",
		}, []string{"sport", "market", "result"}),
		UnitsWon: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_won_total",
			Help:      "Units won by settled winning picks at -110",
		}, []string{"sport"}),
		GenerationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pick_generation_duration_seconds",
			Help:      "Time to generate one sport's slate",
			Buckets:   durations,
		}, []string{"sport"}),
		EloReplayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "elo_replay_duration_seconds",
			Help:      "Time for a full Elo replay",
			Buckets:   durations,
		}, []string{"sport"}),
		EloTeams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elo_rated_teams",
			Help:      "Teams with a rating after the last replay",
		}, []string{"sport"}),
		BacktestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_duration_seconds",
			Help:      "Time to run one backtest candidate",
			Buckets:   durations,
		}, []string{"sport", "market"}),
		BacktestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtest_runs_total",
			Help:      "Backtest candidates by outcome",
		}, []string{"sport", "market", "outcome"}),
		BacktestAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backtest_out_of_sample_accuracy",
			Help:      "Out-of-sample accuracy of the last backtest",
		}, []string{"sport", "market"}),
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job executions by job and status",
		}, []string{"job", "status"}),
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by kind and result",
		}, []string{"kind", "result"}),
	}
}

func (r *Recorder) PicksPublished(picks []types.Pick, elapsed time.Duration, sport types.Sport) {
	if r == nil {
		return
	}
	r.GenerationDuration.WithLabelValues(string(sport)).Observe(elapsed.Seconds())
	for _, p := range picks {
		r.PicksGenerated.WithLabelValues(string(p.Sport), string(p.Market), strconv.Itoa(p.Tier)).Inc()
	}
}

func (r *Recorder) Graded(graded []types.GradedPick) {
	if r == nil {
		return
	}
	for _, g := range graded {
		r.PicksGraded.WithLabelValues(string(g.Pick.Sport), string(g.Pick.Market), string(g.Result)).Inc()
		if g.Units.IsPositive() {
			r.UnitsWon.WithLabelValues(string(g.Pick.Sport)).Add(g.Units.InexactFloat64())
		}
	}
}

func (r *Recorder) EloReplayed(sport types.Sport, teams int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.EloReplayDuration.WithLabelValues(string(sport)).Observe(elapsed.Seconds())
	r.EloTeams.WithLabelValues(string(sport)).Set(float64(teams))
}

// BacktestFinished records one candidate. outcome is "accepted", "rejected" or "failed".
func (r *Recorder) BacktestFinished(sport types.Sport, market types.Market, outcome string, accuracy float64, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.BacktestDuration.WithLabelValues(string(sport), string(market)).Observe(elapsed.Seconds())
	r.BacktestRuns.WithLabelValues(string(sport), string(market), outcome).Inc()
	if outcome != "failed" {
		r.BacktestAccuracy.WithLabelValues(string(sport), string(market)).Set(accuracy)
	}
}

func (r *Recorder) JobRun(job string, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.JobRuns.WithLabelValues(job, status).Inc()
}

func (r *Recorder) CacheLookup(kind string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheRequests.WithLabelValues(kind, result).Inc()
}
