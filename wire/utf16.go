package wire

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"
)

// EncodeUTF16 renders s as a u16-length-prefixed, big-endian UTF-16 byte
// string, the wire encoding every URI and alias name uses.
func EncodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2+2*len(units))
	binary.BigEndian.PutUint16(out, uint16(len(units)))
	for i, u := range units {
		binary.BigEndian.PutUint16(out[2+2*i:], u)
	}
	return out
}

// DecodeUTF16 reads one u16-length-prefixed UTF-16 string from buf,
// returning the decoded string and the number of bytes consumed.
func DecodeUTF16(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, ErrTruncated
	}
	n := int(binary.BigEndian.Uint16(buf))
	need := 2 + 2*n
	if len(buf) < need {
		return "", 0, ErrTruncated
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.BigEndian.Uint16(buf[2+2*i:])
	}
	runes := utf16.Decode(units)
	out := make([]byte, 0, utf8.UTFMax*len(runes))
	for _, r := range runes {
		out = utf8.AppendRune(out, r)
	}
	return string(out), need, nil
}
