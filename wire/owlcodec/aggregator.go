package owlcodec

import "github.com/grail-rtls/solverconn/wire"

// Aggregator implements wire.AggregatorCodec.
type Aggregator struct{}

func (Aggregator) HandshakeMessage() []byte {
	return aggregatorHandshake
}

func (Aggregator) EncodeSubscribe(sub wire.Subscription) []byte {
	w := newWriter(subscribeRequestTag)
	w.str(sub.Region).u32(sub.Layer).u32(sub.RateHz).bytesField(sub.Raw)
	return w.bytes()
}

// subscribeRequestTag is the aggregator-bound half of the subscribe
// exchange; wire.TagSubscriptionResponse is the reply tag decoded below.
// It does not need to be exported since this codec is the only writer
// of it.
const subscribeRequestTag = wire.Tag(0x00)

func (Aggregator) DecodeSubscriptionResponse(body []byte) (wire.Subscription, error) {
	r := newReader(body)
	sub := wire.Subscription{
		Region: r.str(),
		Layer:  r.u32(),
		RateHz: r.u32(),
		Raw:    r.bytesField(),
	}
	if r.err != nil {
		return wire.Subscription{}, &wire.ProtocolError{Tag: wire.TagSubscriptionResponse, Err: r.err}
	}
	return sub, nil
}

func (Aggregator) DecodeSample(body []byte) (wire.Sample, error) {
	r := newReader(body)
	valid := r.bool()
	sample := wire.Sample{
		Valid: valid,
		Sensor: wire.SensorPayload{
			URI:       r.str(),
			Timestamp: r.i64(),
			Data:      r.bytesField(),
		},
	}
	if r.err != nil {
		return wire.Sample{}, &wire.ProtocolError{Tag: wire.TagServerSample, Err: r.err}
	}
	return sample, nil
}
