package scheduler

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// SourceBreaker trips per sport when that sport's game and snapshot sources keep failing,
// so a dead feed for one sport stops burning scheduled runs without blocking the others.
type SourceBreaker struct {
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

func NewSourceBreaker(names []string, threshold int, timeout time.Duration, logger *logrus.Logger) *SourceBreaker {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(names))
	for _, name := range names {
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: uint32(threshold),
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"component": "circuit_breaker",
					"source":    name,
					"from":      from.String(),
					"to":        to.String(),
				}).Info("Circuit breaker state changed")
			},
		})
	}

	return &SourceBreaker{
		breakers: breakers,
		logger:   logger,
	}
}

// Execute runs fn behind the named breaker. An open breaker returns gobreaker.ErrOpenState
// without calling fn.
func (sb *SourceBreaker) Execute(name string, fn func() error) error {
	breaker, exists := sb.breakers[name]
	if !exists {
		sb.logger.WithFields(logrus.Fields{
			"component": "circuit_breaker",
			"source":    name,
		}).Warn("No circuit breaker found for source, executing without protection")
		return fn()
	}

	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (sb *SourceBreaker) GetState(name string) gobreaker.State {
	if breaker, exists := sb.breakers[name]; exists {
		return breaker.State()
	}
	return gobreaker.StateClosed
}

func (sb *SourceBreaker) GetCounts(name string) gobreaker.Counts {
	if breaker, exists := sb.breakers[name]; exists {
		return breaker.Counts()
	}
	return gobreaker.Counts{}
}

// States reports every breaker's state by name
func (sb *SourceBreaker) States() map[string]string {
	out := make(map[string]string, len(sb.breakers))
	for name, breaker := range sb.breakers {
		out[name] = breaker.State().String()
	}
	return out
}
