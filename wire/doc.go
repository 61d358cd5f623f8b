// Package wire defines the message types exchanged with an Owl/GRAIL
// aggregator, world model, and client, independent of any one codec's
// concrete byte layout. It pins down the Go-level shapes (Subscription,
// Sample, AliasType, SolutionData, OnDemandRequest, AliasedWorldData,
// Request) and three Codec interfaces -- one per protocol -- that a
// connection core depends on.
//
// wire itself never touches a socket; package wire/owlcodec supplies a
// working implementation of all three Codec interfaces, usable in
// production and in this module's own tests.
package wire

// Tag identifies the first byte of a frame body: the message type.
// The three protocols share one byte space here for documentation
// convenience only -- a given connection only ever sees the subset
// listed in its own Codec interface.
type Tag byte

const (
	TagSubscriptionResponse Tag = 0x01
	TagServerSample         Tag = 0x02

	TagTypeAnnounce      Tag = 0x10
	TagSolutionData      Tag = 0x11
	TagCreateURI         Tag = 0x12
	TagExpireURI         Tag = 0x13
	TagDeleteURI         Tag = 0x14
	TagExpireAttribute   Tag = 0x15
	TagDeleteAttribute   Tag = 0x16
	TagStartOnDemand     Tag = 0x17
	TagStopOnDemand      Tag = 0x18

	TagSnapshotRequest  Tag = 0x20
	TagRangeRequest     Tag = 0x21
	TagStreamRequest    Tag = 0x22
	TagAttributeAlias   Tag = 0x23
	TagOriginAlias      Tag = 0x24
	TagDataResponse     Tag = 0x25
	TagRequestComplete  Tag = 0x26

	TagKeepAlive Tag = 0xFF
)
