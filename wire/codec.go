package wire

// AggregatorCodec is the wire protocol between a solver and one
// aggregator endpoint: subscribe and receive samples.
type AggregatorCodec interface {
	HandshakeMessage() []byte
	EncodeSubscribe(sub Subscription) []byte
	DecodeSubscriptionResponse(body []byte) (Subscription, error)
	DecodeSample(body []byte) (Sample, error)
}

// UplinkCodec is the wire protocol between a solver and the world
// model's uplink-facing side: type announcement, solution writes, URI
// lifecycle mutations, and the on-demand control messages.
type UplinkCodec interface {
	HandshakeMessage() []byte
	EncodeTypeAnnounce(types []AliasType, origin string) []byte
	EncodeSolution(createURIs bool, data []SolutionData) []byte
	EncodeKeepAlive() []byte
	EncodeCreateURI(uri string, created int64, origin string) []byte
	EncodeExpireURI(uri string, expires int64, origin string) []byte
	EncodeDeleteURI(uri string, origin string) []byte
	EncodeExpireAttribute(uri, name, origin string, expires int64) []byte
	EncodeDeleteAttribute(uri, name, origin string) []byte
	DecodeStartOnDemand(body []byte) ([]OnDemandRequest, error)
	DecodeStopOnDemand(body []byte) ([]OnDemandRequest, error)
}

// ClientCodec is the wire protocol between a solver and the world
// model's query-facing side: snapshot/range/stream requests and the
// ticketed responses to them.
type ClientCodec interface {
	HandshakeMessage() []byte
	EncodeSnapshotRequest(req Request, ticket uint32) []byte
	EncodeRangeRequest(req Request, ticket uint32) []byte
	EncodeStreamRequest(req Request, ticket uint32) []byte
	EncodeKeepAlive() []byte
	DecodeAttributeAlias(body []byte) ([]AliasType, error)
	DecodeOriginAlias(body []byte) ([]AliasType, error)
	DecodeDataResponse(body []byte) (AliasedWorldData, uint32, error)
	DecodeRequestComplete(body []byte) (uint32, error)
}
