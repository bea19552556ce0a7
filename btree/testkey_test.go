package btree

import (
	"encoding/binary"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// intKey is a minimal codec.Ordered implementation used across the
// package's tests so splits, merges and ordering can be exercised without
// pulling in the fixedrecord package.
type intKey int64

func (k intKey) Compare(other intKey) int {
	switch {
	case k < other:
		return -1
	case k > other:
		return 1
	default:
		return 0
	}
}

func intKeyCodec() codec.Codec[intKey] {
	return codec.Codec[intKey]{
		Size: 8,
		Encode: func(v intKey, buf []byte) {
			binary.BigEndian.PutUint64(buf, uint64(v))
		},
		Decode: func(buf []byte) intKey {
			return intKey(binary.BigEndian.Uint64(buf))
		},
	}
}

type stringVal string

func (s stringVal) Compare(other stringVal) int {
	switch {
	case s < other:
		return -1
	case s > other:
		return 1
	default:
		return 0
	}
}

const stringValWidth = 16

func stringValCodec() codec.Codec[stringVal] {
	return codec.Codec[stringVal]{
		Size: stringValWidth,
		Encode: func(v stringVal, buf []byte) {
			copy(buf, v)
			for i := len(v); i < stringValWidth; i++ {
				buf[i] = 0
			}
		},
		Decode: func(buf []byte) stringVal {
			n := 0
			for n < len(buf) && buf[n] != 0 {
				n++
			}
			return stringVal(buf[:n])
		},
	}
}
