package fixedrecord

import (
	"encoding/binary"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// TrainDateKey is the small composite B+ key described in spec section 4.5:
// a binary-copyable POD ordered first by train id, then by departure date.
// Date is stored as a day offset (caller's choice of epoch); the engine
// never interprets it beyond comparison.
type TrainDateKey struct {
	TrainID String
	Date    int32
}

// Compare orders by TrainID then Date, matching "(trainId, date) ordered by
// id then date" from spec section 4.5.
func (k TrainDateKey) Compare(other TrainDateKey) int {
	if c := k.TrainID.Compare(other.TrainID); c != 0 {
		return c
	}
	switch {
	case k.Date < other.Date:
		return -1
	case k.Date > other.Date:
		return 1
	default:
		return 0
	}
}

// TrainDateKeyEncodedSize is the fixed number of bytes Encode writes.
func TrainDateKeyEncodedSize() int { return StringEncodedSize() + 4 }

// Encode writes TrainID followed by Date (big-endian). The encoding begins
// with TrainID's declared-width byte, so comparing two encodings as raw
// byte strings agrees with Compare only when both TrainIDs share a declared
// width and both dates are non-negative.
func (k TrainDateKey) Encode(buf []byte) {
	k.TrainID.Encode(buf)
	binary.BigEndian.PutUint32(buf[StringEncodedSize():], uint32(k.Date))
}

// DecodeTrainDateKey is the inverse of Encode.
func DecodeTrainDateKey(buf []byte) TrainDateKey {
	return TrainDateKey{
		TrainID: DecodeString(buf[:StringEncodedSize()]),
		Date:    int32(binary.BigEndian.Uint32(buf[StringEncodedSize():])),
	}
}

// TrainDateKeyCodec is the codec.Codec for TrainDateKey.
var TrainDateKeyCodec = codec.Codec[TrainDateKey]{
	Size:   TrainDateKeyEncodedSize(),
	Encode: func(v TrainDateKey, buf []byte) { v.Encode(buf) },
	Decode: DecodeTrainDateKey,
}
