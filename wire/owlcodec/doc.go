// Package owlcodec is a working, production-usable implementation of
// wire.AggregatorCodec, wire.UplinkCodec, and wire.ClientCodec. A solver
// process that already has a codec from elsewhere can ignore this
// package entirely; the connection cores depend only on the wire
// interfaces.
//
// Layout, beyond the tag byte, is deliberately simple: big-endian
// fixed-width integers, wire.EncodeUTF16/DecodeUTF16 for every string,
// and length-prefixed (u16 count) lists. Handshake messages are fixed
// ASCII byte patterns, one per protocol, chosen to be visibly distinct
// from each other in a packet capture.
package owlcodec

var (
	aggregatorHandshake = []byte("GRAIL aggregator")
	uplinkHandshake     = []byte("GRAIL world-uplink")
	clientHandshake     = []byte("GRAIL world-client")
)
