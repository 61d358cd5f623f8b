package worldclient

import "go.uber.org/zap"

// Option configures a Mux at construction time.
type Option func(*Mux)

// WithLogger sets the *zap.Logger used for connection lifecycle events.
// The default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(m *Mux) {
		if l != nil {
			m.logger = l
		}
	}
}
