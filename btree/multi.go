package btree

import (
	"go.uber.org/zap"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// Element is a (key, value) pair compared lexicographically by key first,
// value second, matching the original multimap node layout where the value
// is stored inline instead of behind a pointer ("we store value even in
// non-leaf node"). It is the K type parameter of the tree[K] core when used
// from MultiTree.
type Element[K codec.Ordered[K], V codec.Ordered[V]] struct {
	Key   K
	Value V
}

func (e Element[K, V]) Compare(other Element[K, V]) int {
	if c := e.Key.Compare(other.Key); c != 0 {
		return c
	}
	return e.Value.Compare(other.Value)
}

func elementCodec[K codec.Ordered[K], V codec.Ordered[V]](kc codec.Codec[K], vc codec.Codec[V]) codec.Codec[Element[K, V]] {
	return codec.Codec[Element[K, V]]{
		Size: kc.Size + vc.Size,
		Encode: func(e Element[K, V], buf []byte) {
			kc.Encode(e.Key, buf[:kc.Size])
			vc.Encode(e.Value, buf[kc.Size:])
		},
		Decode: func(buf []byte) Element[K, V] {
			return Element[K, V]{
				Key:   kc.Decode(buf[:kc.Size]),
				Value: vc.Decode(buf[kc.Size:]),
			}
		},
	}
}

// MultiTree stores an ordered set of (key, value) pairs with no payload
// beyond the pair itself: inserting the same pair twice is a no-op, and
// Find returns every value associated with a key in value order (spec
// section 4.4).
type MultiTree[K codec.Ordered[K], V codec.Ordered[V]] struct {
	t *tree[Element[K, V]]
}

// OpenMulti opens (or creates) a multi-key tree rooted at path.
func OpenMulti[K codec.Ordered[K], V codec.Ordered[V]](path string, keyCodec codec.Codec[K], valueCodec codec.Codec[V], cfg Config) (*MultiTree[K, V], error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ec := elementCodec(keyCodec, valueCodec)
	t, err := openTree[Element[K, V]](path, ec, cfg.halfBlock(), cfg.nodeCacheSize(), logger)
	if err != nil {
		return nil, err
	}
	return &MultiTree[K, V]{t: t}, nil
}

// Insert adds (key, value) if not already present. Per spec section 4.4
// this is idempotent: inserting an existing pair is a silent no-op rather
// than an error.
func (m *MultiTree[K, V]) Insert(key K, value V) error {
	e := Element[K, V]{Key: key, Value: value}
	_, _, found, err := m.t.findExact(e)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return m.t.insertNew(e, 0)
}

// Erase removes (key, value) if present.
func (m *MultiTree[K, V]) Erase(key K, value V) (bool, error) {
	e := Element[K, V]{Key: key, Value: value}
	_, ok, err := m.t.eraseExact(e)
	return ok, err
}

// Contains reports whether (key, value) is present.
func (m *MultiTree[K, V]) Contains(key K, value V) (bool, error) {
	_, _, found, err := m.t.findExact(Element[K, V]{Key: key, Value: value})
	return found, err
}

// lowerBoundByKey mirrors tree.lowerBound but compares only the Key field,
// letting Find descend to the first leaf that could hold key without
// caring which value (if any) it is paired with. This is the multi tree's
// one point of divergence from the shared descent/search code: every other
// operation compares the full element.
func (m *MultiTree[K, V]) lowerBoundByKey(n node[Element[K, V]], key K) int {
	lo, hi := 0, int(n.n)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.keys[mid].Key.Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Find returns every value paired with key, in ascending value order.
func (m *MultiTree[K, V]) Find(key K) ([]V, error) {
	var out []V
	_, n, err := m.t.descend(func(n node[Element[K, V]]) int { return m.lowerBoundByKey(n, key) })
	if err != nil {
		if err == errEmptyTree {
			return out, nil
		}
		return nil, err
	}

	start := m.lowerBoundByKey(n, key)
	for {
		for i := start; i < int(n.n); i++ {
			c := n.keys[i].Key.Compare(key)
			if c == 0 {
				out = append(out, n.keys[i].Value)
			} else if c > 0 {
				return out, nil
			}
		}
		next := n.ptrs[m.t.degree]
		if next == 0 {
			return out, nil
		}
		n, err = m.t.readNode(next)
		if err != nil {
			return nil, err
		}
		start = 0
	}
}

// ForEach visits every (key, value) pair in ascending order.
func (m *MultiTree[K, V]) ForEach(visit func(key K, value V) error) error {
	var visitErr error
	err := m.t.forEach(func(e Element[K, V], _ int64) bool {
		if err := visit(e.Key, e.Value); err != nil {
			visitErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return visitErr
}

func (m *MultiTree[K, V]) Size() int     { return m.t.Size() }
func (m *MultiTree[K, V]) IsEmpty() bool { return m.t.IsEmpty() }
func (m *MultiTree[K, V]) Clear() error  { return m.t.clear() }
func (m *MultiTree[K, V]) Close() error  { return m.t.close() }
