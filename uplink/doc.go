// Package uplink implements the Solver->World Uplink core: a single
// connection that announces typed attributes, publishes solution data
// honouring the world model's on-demand gating, answers keep-alives,
// and retries sends forever across reconnects so a caller's write is
// never silently lost.
package uplink
