// Package fixedrecord implements the binary-comparable fixed-width key
// material the B+ tree layer is built on: a zero-padded byte string
// ordered like a C string, and the small composite keys domain indexes
// need (section 4.5 of the storage spec).
package fixedrecord

import (
	"bytes"
	"hash/fnv"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// maxWidth bounds every String regardless of its declared Width. Slots are
// always encoded at this size so the B+ tree node layout stays fixed even
// though callers pick different logical widths per field (user id, station
// name, train id, ...).
const maxWidth = 48

// String is a fixed-capacity, zero-padded byte string compared byte for
// byte like a C string. Compare, Equal and Hash look only at the
// zero-padded backing array, never at the declared width, and String trims
// the trailing zero padding; the on-disk slot is always maxWidth+1
// bytes so two Strings with different declared widths still compare and
// serialize consistently.
type String struct {
	width uint8
	b     [maxWidth]byte
}

// NewString truncates or zero-pads s to width bytes.
func NewString(width int, s string) String {
	if width <= 0 || width > maxWidth {
		width = maxWidth
	}
	var out String
	out.width = uint8(width)
	n := copy(out.b[:width], s)
	_ = n
	return out
}

// Width reports the declared logical width.
func (s String) Width() int { return int(s.width) }

// String trims the trailing zero padding and returns the logical value.
func (s String) String() string {
	end := s.width
	for end > 0 && s.b[end-1] == 0 {
		end--
	}
	return string(s.b[:end])
}

// Compare orders Strings byte for byte over the full backing array, which
// is equivalent to C-string order once both sides are zero-padded.
func (s String) Compare(other String) int {
	return bytes.Compare(s.b[:], other.b[:])
}

// Equal reports whether two Strings hold the same logical value.
func (s String) Equal(other String) bool { return s.b == other.b }

// Hash returns a stable 32-bit FNV-1a hash of the full backing array, used
// by the station-lookup hash map in the higher layer.
func (s String) Hash() uint32 {
	h := fnv.New32a()
	h.Write(s.b[:])
	return h.Sum32()
}

// StringEncodedSize is the fixed number of bytes String.Encode writes.
func StringEncodedSize() int { return maxWidth + 1 }

// Encode writes the declared width followed by the full zero-padded
// backing array.
func (s String) Encode(buf []byte) {
	buf[0] = s.width
	copy(buf[1:], s.b[:])
}

// DecodeString is the inverse of Encode.
func DecodeString(buf []byte) String {
	var s String
	s.width = buf[0]
	copy(s.b[:], buf[1:1+maxWidth])
	return s
}

// StringCodec is the codec.Codec for String, ready to hand to a paged file
// or a B+ tree.
var StringCodec = codec.Codec[String]{
	Size:   StringEncodedSize(),
	Encode: func(v String, buf []byte) { v.Encode(buf) },
	Decode: DecodeString,
}
