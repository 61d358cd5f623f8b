package owlcodec

import (
	"testing"

	"github.com/grail-rtls/solverconn/wire"
	"github.com/stretchr/testify/require"
)

func TestUplinkTypeAnnounceRoundTrip(t *testing.T) {
	types := []wire.AliasType{
		{Alias: 1, Name: "position", OnDemand: false},
		{Alias: 2, Name: "battery", OnDemand: true},
	}
	body := Uplink{}.EncodeTypeAnnounce(types, "solver-a")
	require.Equal(t, byte(wire.TagTypeAnnounce), body[0])

	r := newReader(body[1:])
	origin := r.str()
	count := r.u16()
	require.NoError(t, r.err)
	require.Equal(t, "solver-a", origin)
	require.EqualValues(t, len(types), count)

	got := make([]wire.AliasType, count)
	for i := range got {
		got[i] = wire.AliasType{Alias: r.u32(), Name: r.str(), OnDemand: r.bool()}
	}
	require.NoError(t, r.err)
	require.Equal(t, types, got)
}

func TestSolutionDataRoundTrip(t *testing.T) {
	data := []wire.SolutionData{
		{Alias: 7, Time: 12345, Target: "room/101", Data: []byte{0xAA, 0xBB}},
	}
	body := Uplink{}.EncodeSolution(true, data)

	r := newReader(body[1:])
	createURIs := r.bool()
	count := r.u16()
	require.True(t, createURIs)
	require.EqualValues(t, 1, count)

	got := wire.SolutionData{
		Alias:  r.u32(),
		Time:   r.i64(),
		Target: r.str(),
		Data:   r.bytesField(),
	}
	require.NoError(t, r.err)
	require.Equal(t, data[0], got)
}

func TestOnDemandRoundTrip(t *testing.T) {
	w := newWriter(wire.TagStartOnDemand)
	w.u16(1).u32(42).u16(2).str("^room/.*$").str("^lab/.*$")

	reqs, err := Uplink{}.DecodeStartOnDemand(w.bytes()[1:])
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.EqualValues(t, 42, reqs[0].Alias)
	require.Equal(t, []string{"^room/.*$", "^lab/.*$"}, reqs[0].Patterns)
}

func TestDataResponseRoundTrip(t *testing.T) {
	w := newWriter(wire.TagDataResponse)
	w.u32(9).str("room/101").u16(1)
	w.u32(3).i64(100).i64(200).u32(5).bytesField([]byte("payload"))

	data, ticket, err := Client{}.DecodeDataResponse(w.bytes()[1:])
	require.NoError(t, err)
	require.EqualValues(t, 9, ticket)
	require.Equal(t, "room/101", data.ObjectURI)
	require.Len(t, data.Attributes, 1)
	require.EqualValues(t, 3, data.Attributes[0].TypeAlias)
	require.Equal(t, []byte("payload"), data.Attributes[0].Data)
}

func TestSampleRoundTrip(t *testing.T) {
	w := newWriter(wire.TagServerSample)
	w.bool(true).str("room/101").i64(999).bytesField([]byte{1, 2, 3})

	sample, err := Aggregator{}.DecodeSample(w.bytes()[1:])
	require.NoError(t, err)
	require.True(t, sample.Valid)
	require.Equal(t, "room/101", sample.Sensor.URI)
	require.EqualValues(t, 999, sample.Sensor.Timestamp)
	require.Equal(t, []byte{1, 2, 3}, sample.Sensor.Data)
}

func TestDecodeTruncatedIsProtocolError(t *testing.T) {
	_, err := Aggregator{}.DecodeSample([]byte{1, 0, 0})
	require.Error(t, err)
	var pe *wire.ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, wire.TagServerSample, pe.Tag)
}
