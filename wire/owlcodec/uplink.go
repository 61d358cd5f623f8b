package owlcodec

import "github.com/grail-rtls/solverconn/wire"

// Uplink implements wire.UplinkCodec.
type Uplink struct{}

func (Uplink) HandshakeMessage() []byte {
	return uplinkHandshake
}

func (Uplink) EncodeTypeAnnounce(types []wire.AliasType, origin string) []byte {
	w := newWriter(wire.TagTypeAnnounce)
	w.str(origin).u16(uint16(len(types)))
	for _, t := range types {
		w.u32(t.Alias).str(t.Name).bool(t.OnDemand)
	}
	return w.bytes()
}

func (Uplink) EncodeSolution(createURIs bool, data []wire.SolutionData) []byte {
	w := newWriter(wire.TagSolutionData)
	w.bool(createURIs).u16(uint16(len(data)))
	for _, d := range data {
		w.u32(d.Alias).i64(d.Time).str(d.Target).bytesField(d.Data)
	}
	return w.bytes()
}

func (Uplink) EncodeKeepAlive() []byte {
	return newWriter(wire.TagKeepAlive).bytes()
}

func (Uplink) EncodeCreateURI(uri string, created int64, origin string) []byte {
	w := newWriter(wire.TagCreateURI)
	w.str(uri).i64(created).str(origin)
	return w.bytes()
}

func (Uplink) EncodeExpireURI(uri string, expires int64, origin string) []byte {
	w := newWriter(wire.TagExpireURI)
	w.str(uri).i64(expires).str(origin)
	return w.bytes()
}

func (Uplink) EncodeDeleteURI(uri string, origin string) []byte {
	w := newWriter(wire.TagDeleteURI)
	w.str(uri).str(origin)
	return w.bytes()
}

func (Uplink) EncodeExpireAttribute(uri, name, origin string, expires int64) []byte {
	w := newWriter(wire.TagExpireAttribute)
	w.str(uri).str(name).str(origin).i64(expires)
	return w.bytes()
}

func (Uplink) EncodeDeleteAttribute(uri, name, origin string) []byte {
	w := newWriter(wire.TagDeleteAttribute)
	w.str(uri).str(name).str(origin)
	return w.bytes()
}

func (Uplink) DecodeStartOnDemand(body []byte) ([]wire.OnDemandRequest, error) {
	return decodeOnDemand(wire.TagStartOnDemand, body)
}

func (Uplink) DecodeStopOnDemand(body []byte) ([]wire.OnDemandRequest, error) {
	return decodeOnDemand(wire.TagStopOnDemand, body)
}

func decodeOnDemand(tag wire.Tag, body []byte) ([]wire.OnDemandRequest, error) {
	r := newReader(body)
	count := r.u16()
	reqs := make([]wire.OnDemandRequest, 0, count)
	for i := uint16(0); i < count; i++ {
		alias := r.u32()
		patternCount := r.u16()
		patterns := make([]string, 0, patternCount)
		for j := uint16(0); j < patternCount; j++ {
			patterns = append(patterns, r.str())
		}
		reqs = append(reqs, wire.OnDemandRequest{Alias: alias, Patterns: patterns})
	}
	if r.err != nil {
		return nil, &wire.ProtocolError{Tag: tag, Err: r.err}
	}
	return reqs, nil
}
