package uplink

import "go.uber.org/zap"

// Option configures an Uplink at construction time.
type Option func(*Uplink)

// WithLogger sets the *zap.Logger used for connection lifecycle events.
// The default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(u *Uplink) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithMaxRetries bounds sendAndReconnect's retry loop. The default, 0,
// means unlimited retries -- preserving the source's "writes are never
// lost" default while letting a caller opt into bounded retries.
func WithMaxRetries(n int) Option {
	return func(u *Uplink) {
		u.maxRetries = n
	}
}
