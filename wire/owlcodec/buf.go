package owlcodec

import (
	"bytes"
	"encoding/binary"

	"github.com/grail-rtls/solverconn/wire"
)

// writer accumulates one frame body, starting with its tag byte.
type writer struct {
	buf bytes.Buffer
}

func newWriter(tag wire.Tag) *writer {
	w := &writer{}
	w.buf.WriteByte(byte(tag))
	return w
}

func (w *writer) u32(v uint32) *writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *writer) i64(v int64) *writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
	return w
}

func (w *writer) u16(v uint16) *writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *writer) str(s string) *writer {
	w.buf.Write(wire.EncodeUTF16(s))
	return w
}

func (w *writer) bytesField(b []byte) *writer {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
	return w
}

func (w *writer) bool(v bool) *writer {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return w
}

func (w *writer) bytes() []byte {
	return w.buf.Bytes()
}

// reader walks a decoded frame body after its tag byte has already been
// consumed by the caller.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(body []byte) *reader {
	return &reader{buf: body}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.buf)-r.off < n {
		r.err = wire.ErrTruncated
		return false
	}
	return true
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) i64() int64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return int64(v)
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	s, n, err := wire.DecodeUTF16(r.buf[r.off:])
	if err != nil {
		r.err = err
		return ""
	}
	r.off += n
	return s
}

func (r *reader) bytesField() []byte {
	n := int(r.u32())
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) bool() bool {
	if !r.need(1) {
		return false
	}
	v := r.buf[r.off] != 0
	r.off++
	return v
}
