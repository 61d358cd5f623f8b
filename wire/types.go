package wire

// Subscription is an opaque aggregator selection rule. The reference
// codec encodes it as a region glob plus a physical layer id and a rate,
// but any caller providing its own Codec may treat Raw as the entire
// payload and leave the other fields zero.
type Subscription struct {
	Region  string
	Layer   uint32
	RateHz  uint32
	Raw     []byte
}

// SensorPayload carries the decoded body of a server_sample message.
// Fields beyond the URI/timestamp/bytes triple are codec-specific and
// therefore left as a raw slice; no core inspects them.
type SensorPayload struct {
	URI       string
	Timestamp int64
	Data      []byte
}

// Sample is what DecodeSample returns. Only Valid samples are delivered
// to the Aggregator Fan-In's user callback.
type Sample struct {
	Valid  bool
	Sensor SensorPayload
}

// AliasType is a (name, on-demand) pair together with the alias assigned
// to it. Aliases are assigned sequentially starting at 1; alias 0 is
// never issued.
type AliasType struct {
	Alias    uint32
	Name     string
	OnDemand bool
}

// SolutionData is one attribute update as it appears on the wire: the
// alias replaces the type name. Origin is carried on the separate
// create/expire/delete URI and attribute messages, not here -- the
// source constructs SolutionData from just (alias, time, target, data)
// and threads origin through those other calls instead.
type SolutionData struct {
	Alias  uint32
	Time   int64
	Target string
	Data   []byte
}

// OnDemandRequest is one (alias, patterns) entry from a start_on_demand
// or stop_on_demand message.
type OnDemandRequest struct {
	Alias    uint32
	Patterns []string
}

// Request describes the URI/attribute selection common to snapshot,
// range, and stream requests; a particular request kind uses whichever
// subset of fields it needs (e.g. stream ignores Start/End).
type Request struct {
	URI      string
	Attrs    []string
	Start    int64
	End      int64
	Interval int64
}

// AliasedAttribute is one attribute as it arrives on the wire, before
// alias resolution.
type AliasedAttribute struct {
	TypeAlias   uint32
	Created     int64
	Expires     int64
	OriginAlias uint32
	Data        []byte
}

// AliasedWorldData is a DataResponse payload before alias resolution:
// one object URI and the attributes reported for it in this frame.
type AliasedWorldData struct {
	ObjectURI  string
	Attributes []AliasedAttribute
}
