package uplink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grail-rtls/solverconn"
	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
	"github.com/grail-rtls/solverconn/wire/owlcodec"
)

func freeEndpoint(t *testing.T) solverconn.Endpoint {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())
	return solverconn.Endpoint{IP: "127.0.0.1", Port: uint16(addr.Port)}
}

func TestUplinkRetriesUntilPortOpens(t *testing.T) {
	ep := freeEndpoint(t)

	u := New(ep, []TypeSpec{{Name: "position"}}, "solver-a", owlcodec.Uplink{})
	require.False(t, u.Connected())

	serverUp := make(chan struct{})
	received := make(chan wire.SolutionData, 1)
	go func() {
		time.Sleep(200 * time.Millisecond)
		ln, err := net.Listen("tcp", ep.String())
		if err != nil {
			close(serverUp)
			return
		}
		defer ln.Close()
		close(serverUp)

		peer, err := ln.Accept()
		if err != nil {
			return
		}
		defer peer.Close()
		conn := transport.NewConn(peer)

		handshake := owlcodec.Uplink{}.HandshakeMessage()
		buf := make([]byte, len(handshake))
		readFullUplink(peer, buf)
		peer.Write(buf)

		// TypeAnnounce from reconnect.
		conn.Receive(nil)

		body, err := conn.Receive(nil)
		if err != nil {
			return
		}
		data, _, err := decodeSolutionBody(body)
		if err == nil && len(data) == 1 {
			received <- data[0]
		}
	}()

	<-serverUp
	err := u.SendData([]AttrUpdate{{TypeName: "position", Time: 1, Target: "room/1", Data: []byte{9}}}, false)
	require.NoError(t, err)
	require.True(t, u.Connected())

	select {
	case got := <-received:
		require.Equal(t, "room/1", got.Target)
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the solution frame")
	}

	u.Close()
}

func TestOnDemandGating(t *testing.T) {
	ep := freeEndpoint(t)
	ln, err := net.Listen("tcp", ep.String())
	require.NoError(t, err)
	defer ln.Close()

	serverConn := make(chan *transport.Conn, 1)
	go func() {
		peer, err := ln.Accept()
		if err != nil {
			return
		}
		conn := transport.NewConn(peer)
		handshake := owlcodec.Uplink{}.HandshakeMessage()
		buf := make([]byte, len(handshake))
		readFullUplink(peer, buf)
		peer.Write(buf)
		conn.Receive(nil) // TypeAnnounce
		serverConn <- conn
	}()

	u := New(ep, []TypeSpec{{Name: "loc", OnDemand: true}}, "solver-a", owlcodec.Uplink{})
	require.True(t, u.Connected())
	sc := <-serverConn

	startFrame := []byte{byte(wire.TagStartOnDemand)}
	startFrame = append(startFrame, 0, 1) // count=1
	startFrame = append(startFrame, 0, 0, 0, 1) // alias=1
	startFrame = append(startFrame, 0, 1) // pattern count=1
	startFrame = append(startFrame, wire.EncodeUTF16("^room/.*$")...)
	require.NoError(t, sc.Send(startFrame))

	require.Eventually(t, func() bool {
		u.transMu.Lock()
		defer u.transMu.Unlock()
		return u.gate.size() == 1
	}, time.Second, 10*time.Millisecond)

	emitted := make(chan []byte, 2)
	go func() {
		for i := 0; i < 2; i++ {
			body, err := sc.Receive(nil)
			if err != nil {
				return
			}
			emitted <- body
		}
	}()

	require.NoError(t, u.SendData([]AttrUpdate{{TypeName: "loc", Target: "room/101", Data: []byte{1}}}, false))
	require.NoError(t, u.SendData([]AttrUpdate{{TypeName: "loc", Target: "lab/2", Data: []byte{1}}}, false))

	select {
	case body := <-emitted:
		data, _, err := decodeSolutionBody(body)
		require.NoError(t, err)
		require.Len(t, data, 1)
		require.Equal(t, "room/101", data[0].Target)
	case <-time.After(time.Second):
		t.Fatal("did not observe the room/101 update")
	}

	stopFrame := []byte{byte(wire.TagStopOnDemand)}
	stopFrame = append(stopFrame, 0, 1)
	stopFrame = append(stopFrame, 0, 0, 0, 1)
	stopFrame = append(stopFrame, 0, 1)
	stopFrame = append(stopFrame, wire.EncodeUTF16("^room/.*$")...)
	require.NoError(t, sc.Send(stopFrame))

	require.Eventually(t, func() bool {
		u.transMu.Lock()
		defer u.transMu.Unlock()
		return u.gate.size() == 0
	}, time.Second, 10*time.Millisecond)

	u.Close()
}

func readFullUplink(c net.Conn, buf []byte) (int, error) {
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

// decodeSolutionBody mirrors EncodeSolution's layout for test assertions
// without exporting owlcodec internals.
func decodeSolutionBody(body []byte) ([]wire.SolutionData, bool, error) {
	if len(body) < 1 {
		return nil, false, wire.ErrTruncated
	}
	off := 1
	if len(body) < off+1 {
		return nil, false, wire.ErrTruncated
	}
	createURIs := body[off] != 0
	off++
	if len(body) < off+2 {
		return nil, false, wire.ErrTruncated
	}
	count := int(body[off])<<8 | int(body[off+1])
	off += 2
	out := make([]wire.SolutionData, 0, count)
	for i := 0; i < count; i++ {
		if len(body) < off+4 {
			return nil, false, wire.ErrTruncated
		}
		alias := uint32(body[off])<<24 | uint32(body[off+1])<<16 | uint32(body[off+2])<<8 | uint32(body[off+3])
		off += 4
		if len(body) < off+8 {
			return nil, false, wire.ErrTruncated
		}
		var ts int64
		for j := 0; j < 8; j++ {
			ts = ts<<8 | int64(body[off+j])
		}
		off += 8
		target, n, err := wire.DecodeUTF16(body[off:])
		if err != nil {
			return nil, false, err
		}
		off += n
		if len(body) < off+4 {
			return nil, false, wire.ErrTruncated
		}
		dlen := int(body[off])<<24 | int(body[off+1])<<16 | int(body[off+2])<<8 | int(body[off+3])
		off += 4
		if len(body) < off+dlen {
			return nil, false, wire.ErrTruncated
		}
		data := body[off : off+dlen]
		off += dlen
		out = append(out, wire.SolutionData{Alias: alias, Time: ts, Target: target, Data: data})
	}
	return out, createURIs, nil
}
