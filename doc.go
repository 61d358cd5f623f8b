// Package solverconn provides the client-side connection cores used by a
// solver process in the Owl/GRAIL Real-Time Location System: a fan-in
// subscriber for aggregator samples (package aggregator), a keep-alive and
// on-demand-aware uplink to the world model (package uplink), and a
// ticket-multiplexed request/response client to the world model (package
// worldclient). The three share only the framed TCP transport in package
// transport and the wire types/codec interfaces in package wire.
//
// This root package holds the one type common to all three cores.
package solverconn

import "fmt"

// Endpoint identifies a TCP peer by address and port. It is immutable
// after construction.
type Endpoint struct {
	IP   string
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}
