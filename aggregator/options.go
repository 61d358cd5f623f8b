package aggregator

import "go.uber.org/zap"

// Option configures a FanIn at construction time.
type Option func(*FanIn)

// WithLogger sets the *zap.Logger used for worker lifecycle events. The
// default is zap.NewNop(), so FanIn is silent unless a logger is given.
func WithLogger(l *zap.Logger) Option {
	return func(f *FanIn) {
		if l != nil {
			f.logger = l
		}
	}
}
