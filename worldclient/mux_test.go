package worldclient

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grail-rtls/solverconn"
	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
	"github.com/grail-rtls/solverconn/wire/owlcodec"
)

func startFakeWorld(t *testing.T) (solverconn.Endpoint, func() *transport.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)
	ep := solverconn.Endpoint{IP: "127.0.0.1", Port: uint16(addr.Port)}

	acceptOnce := func() *transport.Conn {
		peer, err := ln.Accept()
		require.NoError(t, err)
		conn := transport.NewConn(peer)
		handshake := owlcodec.Client{}.HandshakeMessage()
		buf := make([]byte, len(handshake))
		readFullMux(peer, buf)
		peer.Write(buf)
		return conn
	}
	return ep, acceptOnce
}

func readFullMux(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func aliasListFrame(tag wire.Tag, aliases []wire.AliasType) []byte {
	body := []byte{byte(tag)}
	body = append(body, be16(uint16(len(aliases)))...)
	for _, a := range aliases {
		body = append(body, be32(a.Alias)...)
		body = append(body, wire.EncodeUTF16(a.Name)...)
	}
	return body
}

func dataResponseFrame(ticket uint32, uri string, attrs []wire.AliasedAttribute) []byte {
	body := []byte{byte(wire.TagDataResponse)}
	body = append(body, be32(ticket)...)
	body = append(body, wire.EncodeUTF16(uri)...)
	body = append(body, be16(uint16(len(attrs)))...)
	for _, a := range attrs {
		body = append(body, be32(a.TypeAlias)...)
		body = append(body, be64(a.Created)...)
		body = append(body, be64(a.Expires)...)
		body = append(body, be32(a.OriginAlias)...)
		body = append(body, be32(uint32(len(a.Data)))...)
		body = append(body, a.Data...)
	}
	return body
}

func requestCompleteFrame(ticket uint32) []byte {
	return append([]byte{byte(wire.TagRequestComplete)}, be32(ticket)...)
}

func readTicketedRequest(t *testing.T, conn *transport.Conn) uint32 {
	body, err := conn.Receive(nil)
	require.NoError(t, err)
	require.True(t, len(body) >= 5)
	return binary.BigEndian.Uint32(body[1:5])
}

func TestSnapshotHappyPath(t *testing.T) {
	ep, accept := startFakeWorld(t)
	serverConn := make(chan *transport.Conn, 1)
	go func() { serverConn <- accept() }()

	m := New(ep, owlcodec.Client{})
	require.True(t, m.Connected())
	sc := <-serverConn

	resp := m.CurrentSnapshot("room/101", nil)
	ticket := readTicketedRequest(t, sc)

	require.NoError(t, sc.Send(aliasListFrame(wire.TagAttributeAlias, []wire.AliasType{{Alias: 1, Name: "position"}})))
	require.NoError(t, sc.Send(aliasListFrame(wire.TagOriginAlias, []wire.AliasType{{Alias: 1, Name: "solver-a"}})))
	require.NoError(t, sc.Send(dataResponseFrame(ticket, "room/101", []wire.AliasedAttribute{
		{TypeAlias: 1, Created: 10, Expires: 20, OriginAlias: 1, Data: []byte{9}},
	})))
	require.NoError(t, sc.Send(requestCompleteFrame(ticket)))

	state, err := resp.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, state["room/101"], 1)
	require.Equal(t, "position", state["room/101"][0].TypeName)
	require.Equal(t, "solver-a", state["room/101"][0].Origin)

	resp.Close()
	m.Close()
}

func TestStreamingDemux(t *testing.T) {
	ep, accept := startFakeWorld(t)
	serverConn := make(chan *transport.Conn, 1)
	go func() { serverConn <- accept() }()

	m := New(ep, owlcodec.Client{})
	sc := <-serverConn

	step0 := m.Stream("room/0", nil, 1000)
	t0 := readTicketedRequest(t, sc)
	step1 := m.Stream("room/1", nil, 1000)
	t1 := readTicketedRequest(t, sc)

	require.NoError(t, sc.Send(dataResponseFrame(t0, "room/0", nil)))
	require.NoError(t, sc.Send(dataResponseFrame(t1, "room/1", nil)))
	require.NoError(t, sc.Send(dataResponseFrame(t0, "room/0", nil)))
	require.NoError(t, sc.Send(dataResponseFrame(t1, "room/1", nil)))
	require.NoError(t, sc.Send(requestCompleteFrame(t0)))
	require.NoError(t, sc.Send(dataResponseFrame(t1, "room/1", nil)))
	require.NoError(t, sc.Send(requestCompleteFrame(t1)))

	ctx := context.Background()

	s1, err := step0.Next(ctx)
	require.NoError(t, err)
	require.Contains(t, s1, "room/0")
	s2, err := step0.Next(ctx)
	require.NoError(t, err)
	require.Contains(t, s2, "room/0")
	s3, err := step0.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, s3)
	require.True(t, step0.IsComplete())

	r1, err := step1.Next(ctx)
	require.NoError(t, err)
	require.Contains(t, r1, "room/1")
	r2, err := step1.Next(ctx)
	require.NoError(t, err)
	require.Contains(t, r2, "room/1")
	r3, err := step1.Next(ctx)
	require.NoError(t, err)
	require.Contains(t, r3, "room/1")
	r4, err := step1.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, r4)
	require.True(t, step1.IsComplete())

	step0.Close()
	step1.Close()
	m.Close()
}

func TestConnectionCloseResolvesAllPending(t *testing.T) {
	ep, accept := startFakeWorld(t)
	serverConn := make(chan *transport.Conn, 1)
	go func() { serverConn <- accept() }()

	m := New(ep, owlcodec.Client{})
	sc := <-serverConn

	r1 := m.CurrentSnapshot("a", nil)
	readTicketedRequest(t, sc)
	r2 := m.CurrentSnapshot("b", nil)
	readTicketedRequest(t, sc)
	s3 := m.Stream("c", nil, 1)
	readTicketedRequest(t, sc)

	sc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := r1.Get(ctx)
	require.ErrorIs(t, err, ErrConnectionClosed)
	_, err = r2.Get(ctx)
	require.ErrorIs(t, err, ErrConnectionClosed)
	_, err = s3.Next(ctx)
	require.ErrorIs(t, err, ErrConnectionClosed)

	r1.Close()
	r2.Close()
	s3.Close()

	// A request issued after the peer drops the connection must still be
	// able to reconnect -- the receive loop's error exit has to clear
	// m.conn, or every later sendRequest would see a stale non-nil conn
	// and keep failing against the same dead socket forever.
	serverConn2 := make(chan *transport.Conn, 1)
	go func() { serverConn2 <- accept() }()

	r4 := m.CurrentSnapshot("d", nil)
	sc2 := <-serverConn2
	ticket4 := readTicketedRequest(t, sc2)

	require.NoError(t, sc2.Send(requestCompleteFrame(ticket4)))
	state, err := r4.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, state)
	require.True(t, m.Connected())

	r4.Close()
	m.Close()
}
