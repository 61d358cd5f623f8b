package owlcodec

import "github.com/grail-rtls/solverconn/wire"

// Client implements wire.ClientCodec.
type Client struct{}

func (Client) HandshakeMessage() []byte {
	return clientHandshake
}

func (Client) EncodeSnapshotRequest(req wire.Request, ticket uint32) []byte {
	w := newWriter(wire.TagSnapshotRequest)
	encodeRequestCommon(w, req, ticket)
	return w.bytes()
}

func (Client) EncodeRangeRequest(req wire.Request, ticket uint32) []byte {
	w := newWriter(wire.TagRangeRequest)
	encodeRequestCommon(w, req, ticket)
	w.i64(req.Start).i64(req.End)
	return w.bytes()
}

func (Client) EncodeStreamRequest(req wire.Request, ticket uint32) []byte {
	w := newWriter(wire.TagStreamRequest)
	encodeRequestCommon(w, req, ticket)
	w.i64(req.Interval)
	return w.bytes()
}

func encodeRequestCommon(w *writer, req wire.Request, ticket uint32) {
	w.u32(ticket).str(req.URI).u16(uint16(len(req.Attrs)))
	for _, a := range req.Attrs {
		w.str(a)
	}
}

func (Client) EncodeKeepAlive() []byte {
	return newWriter(wire.TagKeepAlive).bytes()
}

func (Client) DecodeAttributeAlias(body []byte) ([]wire.AliasType, error) {
	return decodeAliasList(wire.TagAttributeAlias, body)
}

func (Client) DecodeOriginAlias(body []byte) ([]wire.AliasType, error) {
	return decodeAliasList(wire.TagOriginAlias, body)
}

func decodeAliasList(tag wire.Tag, body []byte) ([]wire.AliasType, error) {
	r := newReader(body)
	count := r.u16()
	out := make([]wire.AliasType, 0, count)
	for i := uint16(0); i < count; i++ {
		out = append(out, wire.AliasType{Alias: r.u32(), Name: r.str()})
	}
	if r.err != nil {
		return nil, &wire.ProtocolError{Tag: tag, Err: r.err}
	}
	return out, nil
}

func (Client) DecodeDataResponse(body []byte) (wire.AliasedWorldData, uint32, error) {
	r := newReader(body)
	ticket := r.u32()
	uri := r.str()
	count := r.u16()
	attrs := make([]wire.AliasedAttribute, 0, count)
	for i := uint16(0); i < count; i++ {
		attrs = append(attrs, wire.AliasedAttribute{
			TypeAlias:   r.u32(),
			Created:     r.i64(),
			Expires:     r.i64(),
			OriginAlias: r.u32(),
			Data:        r.bytesField(),
		})
	}
	if r.err != nil {
		return wire.AliasedWorldData{}, 0, &wire.ProtocolError{Tag: wire.TagDataResponse, Err: r.err}
	}
	return wire.AliasedWorldData{ObjectURI: uri, Attributes: attrs}, ticket, nil
}

func (Client) DecodeRequestComplete(body []byte) (uint32, error) {
	r := newReader(body)
	ticket := r.u32()
	if r.err != nil {
		return 0, &wire.ProtocolError{Tag: wire.TagRequestComplete, Err: r.err}
	}
	return ticket, nil
}
