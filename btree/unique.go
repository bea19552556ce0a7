// Package btree implements the storage core's indexed layers: a
// parent-pointer B+ tree over fixed-width keys, in two flavors. UniqueTree
// maps each key to one out-of-line value (spec section 4.3); MultiTree
// stores an ordered set of (key, value) pairs with no payload of its own
// (spec section 4.4). Both are built on the shared tree[K] core in tree.go,
// which carries every split/borrow/merge rule exactly once.
package btree

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/HenryHe0123/ticket-storage/codec"
	"github.com/HenryHe0123/ticket-storage/pagecache"
	"github.com/HenryHe0123/ticket-storage/pagedfile"
)

// UniqueTree is a key -> value map. Keys live inline in the tree nodes;
// values live out-of-line in a companion pagedfile, addressed by the leaf
// pointer, and are fronted by their own LRU cache (spec section 4.2:
// "N≈32 for the value cache, N≈64 for the node cache").
type UniqueTree[K codec.Ordered[K], V any] struct {
	t      *tree[K]
	data   *pagedfile.File[V]
	values *pagecache.Cache[V]
}

// OpenUnique opens (or creates) a unique-key tree rooted at path, with its
// value file at path+".values".
func OpenUnique[K codec.Ordered[K], V any](path string, keyCodec codec.Codec[K], valueCodec codec.Codec[V], cfg Config) (*UniqueTree[K, V], error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	t, err := openTree[K](path, keyCodec, cfg.halfBlock(), cfg.nodeCacheSize(), logger)
	if err != nil {
		return nil, err
	}
	data, err := pagedfile.Open(path+".values", valueCodec, pagedfile.Config{Logger: logger, Checksum: cfg.Checksum})
	if err != nil {
		t.close()
		return nil, err
	}

	u := &UniqueTree[K, V]{t: t, data: data}
	u.values = pagecache.New(cfg.valueCacheSize(), data.Read, data.Overwrite, logger)
	return u, nil
}

// Assign sets key to value, inserting it if absent or overwriting the
// existing value in place if present. Overwrite never touches the tree's
// shape (spec section 4.3, Assign).
func (u *UniqueTree[K, V]) Assign(key K, value V) error {
	addr, idx, found, err := u.t.findExact(key)
	if err != nil {
		return err
	}
	if found {
		n, err := u.t.readNode(addr)
		if err != nil {
			return err
		}
		valAddr := n.ptrs[idx]
		if err := u.data.Overwrite(valAddr, value); err != nil {
			return err
		}
		return u.values.WriteThrough(valAddr, value)
	}

	valAddr, err := u.data.Append(value)
	if err != nil {
		return err
	}
	u.values.InsertNew(valAddr, value)
	return u.t.insertNew(key, valAddr)
}

// Find returns the value for key and whether it was present.
func (u *UniqueTree[K, V]) Find(key K) (V, bool, error) {
	var zero V
	addr, idx, found, err := u.t.findExact(key)
	if err != nil || !found {
		return zero, false, err
	}
	n, err := u.t.readNode(addr)
	if err != nil {
		return zero, false, err
	}
	v, err := u.values.Get(n.ptrs[idx])
	return v, err == nil, err
}

// Get is Find with ErrKeyNotFound instead of a boolean, for callers that
// treat a missing key as exceptional.
func (u *UniqueTree[K, V]) Get(key K) (V, error) {
	v, ok, err := u.Find(key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, ErrKeyNotFound
	}
	return v, nil
}

// Contains reports whether key is present without paying for a value read.
func (u *UniqueTree[K, V]) Contains(key K) (bool, error) {
	_, _, found, err := u.t.findExact(key)
	return found, err
}

// Erase removes key if present. The vacated value-file slot is never
// reclaimed, matching the engine-wide no-compaction policy.
func (u *UniqueTree[K, V]) Erase(key K) (bool, error) {
	_, ok, err := u.t.eraseExact(key)
	return ok, err
}

// ForEach visits every (key, value) pair in ascending key order, stopping
// early if visit returns an error.
func (u *UniqueTree[K, V]) ForEach(visit func(key K, value V) error) error {
	var visitErr error
	err := u.t.forEach(func(k K, ptr int64) bool {
		v, e := u.values.Get(ptr)
		if e != nil {
			visitErr = e
			return false
		}
		if e := visit(k, v); e != nil {
			visitErr = e
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return visitErr
}

// VerifyValues scans the value file's CRC32 column, reporting how many of
// its records fail to checksum. Meaningless (reports everything checked,
// nothing corrupt) unless the tree was opened with Config.Checksum.
func (u *UniqueTree[K, V]) VerifyValues() (checked, corrupt int, err error) {
	return u.data.VerifyAll()
}

func (u *UniqueTree[K, V]) Size() int     { return u.t.Size() }
func (u *UniqueTree[K, V]) IsEmpty() bool { return u.t.IsEmpty() }

// Clear empties both the tree and its value file.
func (u *UniqueTree[K, V]) Clear() error {
	if err := u.t.clear(); err != nil {
		return err
	}
	if err := u.values.Clear(); err != nil {
		return err
	}
	return u.data.Clear()
}

// Close flushes headers and releases both underlying files.
func (u *UniqueTree[K, V]) Close() error {
	if err := u.t.close(); err != nil {
		return fmt.Errorf("btree: close unique tree %w", err)
	}
	if err := u.data.Close(); err != nil {
		return err
	}
	return nil
}
