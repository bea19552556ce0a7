package btree

import (
	"encoding/binary"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// node is the shared on-disk layout for both tree variants (spec section 3):
// an isLeaf flag, a live-key count, a parent offset, up to Degree-1 ordered
// keys and up to Degree child/value pointers. For the unique tree a pointer
// is a value-file address; for the multi tree it is unused inside leaves
// (the element itself carries key and value) except for ptrs[Degree], the
// next-leaf chain link shared by both variants.
type node[K any] struct {
	isLeaf bool
	n      int32
	fa     int64
	keys   []K
	ptrs   []int64
}

func newNode[K any](degree int, isLeaf bool) node[K] {
	return node[K]{
		isLeaf: isLeaf,
		keys:   make([]K, degree),
		ptrs:   make([]int64, degree+1),
	}
}

const nodeFixedHeader = 1 + 4 + 8 // isLeaf + n + fa

// nodeCodec builds the fixed-width codec for a node file given the tree's
// degree and key codec, per the on-disk layout in spec section 6: node
// region starts at offset 20 within a tree's file, each record
// isLeaf(1)/n(4)/fa(8)/keys[Degree]/ptrs[Degree+1](8 each).
func nodeCodec[K any](degree int, kc codec.Codec[K]) codec.Codec[node[K]] {
	size := nodeFixedHeader + degree*kc.Size + (degree+1)*8
	return codec.Codec[node[K]]{
		Size: size,
		Encode: func(v node[K], buf []byte) {
			if v.isLeaf {
				buf[0] = 1
			} else {
				buf[0] = 0
			}
			binary.BigEndian.PutUint32(buf[1:5], uint32(v.n))
			binary.BigEndian.PutUint64(buf[5:13], uint64(v.fa))
			off := nodeFixedHeader
			for i := 0; i < degree; i++ {
				kc.Encode(v.keys[i], buf[off:off+kc.Size])
				off += kc.Size
			}
			for i := 0; i <= degree; i++ {
				binary.BigEndian.PutUint64(buf[off:off+8], uint64(v.ptrs[i]))
				off += 8
			}
		},
		Decode: func(buf []byte) node[K] {
			v := newNode[K](degree, buf[0] == 1)
			v.n = int32(binary.BigEndian.Uint32(buf[1:5]))
			v.fa = int64(binary.BigEndian.Uint64(buf[5:13]))
			off := nodeFixedHeader
			for i := 0; i < degree; i++ {
				v.keys[i] = kc.Decode(buf[off : off+kc.Size])
				off += kc.Size
			}
			for i := 0; i <= degree; i++ {
				v.ptrs[i] = int64(binary.BigEndian.Uint64(buf[off : off+8]))
				off += 8
			}
			return v
		},
	}
}

// indexOfChild returns i such that n.ptrs[i] == childAddr, or -1 if n is not
// actually childAddr's parent. Used by the erase-adjust walk to locate a
// node's position among its parent's children without re-deriving it from
// key comparisons.
func indexOfChild[K any](n node[K], childAddr int64) int {
	for i := 0; i <= int(n.n); i++ {
		if n.ptrs[i] == childAddr {
			return i
		}
	}
	return -1
}

// removeInternalSlot deletes the key at idx and the child pointer to its
// right (ptrs[idx+1]), shifting everything after it left by one. It is used
// after a merge folds two children into one, collapsing the separator that
// used to sit between them.
func removeInternalSlot[K any](n *node[K], idx int) {
	for j := idx; j < int(n.n)-1; j++ {
		n.keys[j] = n.keys[j+1]
		n.ptrs[j+1] = n.ptrs[j+2]
	}
	n.n--
}
