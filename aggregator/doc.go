// Package aggregator implements the Aggregator Fan-In core: one worker
// goroutine per configured aggregator endpoint, each maintaining its own
// long-lived subscription and streaming samples into a single user
// callback.
//
// Workers are not started until the first call to AddRules. Each worker
// runs the state machine Connecting -> Handshaking -> Streaming ->
// Failed -> Connecting, exiting only on Disconnect or a handshake
// mismatch (which is fatal for that one worker, not the others).
package aggregator
