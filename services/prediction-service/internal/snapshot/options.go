package snapshot

import (
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
)

type settings struct {
	strict bool
	logger *logrus.Logger
}

// Option configures a Store or HistoryIndex
type Option func(*settings)

// WithStrictLookahead controls what happens when a lookup would return data dated after
// the requested date. Strict (the default) panics; otherwise the violation is logged at
// Error and the lookup reports unknown.
func WithStrictLookahead(strict bool) Option {
	return func(s *settings) {
		s.strict = strict
	}
}

// WithLogger sets the logger used for non-strict violations
func WithLogger(log *logrus.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.logger = log
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{strict: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	return s
}

// guard reports a lookahead violation. It panics in strict mode and returns false otherwise.
func (s settings) guard(err error) bool {
	if s.strict {
		panic(err)
	}
	s.logger.WithError(err).Error("Point-in-time lookup returned future-dated data; treating as unknown")
	return false
}
