package btree

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/HenryHe0123/ticket-storage/codec"
	"github.com/HenryHe0123/ticket-storage/pagecache"
)

// treeHeaderSize is the width of the fixed header at offset 0 of every tree
// file (spec section 6): rootOffset(int64), endOffset(int64), size(int32).
// The node region begins right after it.
const treeHeaderSize = 8 + 8 + 4

// tree is the generic parent-pointer B+ tree core shared by UniqueTree and
// MultiTree. K is the full on-disk key type: a plain key for the unique
// tree, or an Element[Key,Value] for the multi tree, where equality and
// ordering are defined over the whole (key, value) pair. Every structural
// operation (split, borrow, merge) is written once here; the two public
// wrappers differ only in what a leaf pointer means and how a descent
// target is chosen.
type tree[K codec.Ordered[K]] struct {
	f      *os.File
	path   string
	degree int
	half   int

	root int64
	end  int64
	size int32

	nc    codec.Codec[node[K]]
	cache *pagecache.Cache[node[K]]
	log   *zap.SugaredLogger
}

func openTree[K codec.Ordered[K]](path string, kc codec.Codec[K], half, nodeCacheSize int, logger *zap.Logger) (*tree[K], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	degree := 2*half + 1
	nc := nodeCodec(degree, kc)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("btree: open %s: %w", path, err)
	}

	t := &tree[K]{
		f:      f,
		path:   path,
		degree: degree,
		half:   half,
		nc:     nc,
		log:    logger.Sugar().With("file", path),
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("btree: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		t.root, t.end, t.size = 0, treeHeaderSize, 0
		if err := t.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := t.readHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}

	t.cache = pagecache.New(nodeCacheSize, t.loadNodeRaw, t.storeNodeRaw, logger)
	return t, nil
}

func (t *tree[K]) readHeader() error {
	buf := make([]byte, treeHeaderSize)
	if _, err := t.f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("btree: read header %s: %w", t.path, err)
	}
	t.root = int64(binary.BigEndian.Uint64(buf[0:8]))
	t.end = int64(binary.BigEndian.Uint64(buf[8:16]))
	t.size = int32(binary.BigEndian.Uint32(buf[16:20]))
	return nil
}

func (t *tree[K]) writeHeader() error {
	var buf [treeHeaderSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(t.root))
	binary.BigEndian.PutUint64(buf[8:16], uint64(t.end))
	binary.BigEndian.PutUint32(buf[16:20], uint32(t.size))
	if _, err := t.f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("btree: write header %s: %w", t.path, err)
	}
	return nil
}

func (t *tree[K]) loadNodeRaw(addr int64) (node[K], error) {
	var zero node[K]
	buf := make([]byte, t.nc.Size)
	if _, err := t.f.ReadAt(buf, addr); err != nil {
		return zero, fmt.Errorf("btree: read node %s@%d: %w", t.path, addr, err)
	}
	return t.nc.Decode(buf), nil
}

func (t *tree[K]) storeNodeRaw(addr int64, n node[K]) error {
	buf := make([]byte, t.nc.Size)
	t.nc.Encode(n, buf)
	if _, err := t.f.WriteAt(buf, addr); err != nil {
		return fmt.Errorf("btree: write node %s@%d: %w", t.path, addr, err)
	}
	return nil
}

func (t *tree[K]) readNode(addr int64) (node[K], error) {
	return t.cache.Get(addr)
}

// writeNode persists a mutated node through the cache, per the write-through
// policy documented in pagecache: the write lands on disk immediately.
func (t *tree[K]) writeNode(addr int64, n node[K]) error {
	return t.cache.WriteThrough(addr, n)
}

// allocate hands out a fresh node address and records the newly written
// node in the backing file and the cache. Callers must have fully
// populated n before calling.
func (t *tree[K]) allocate(n node[K]) (int64, error) {
	addr := t.end
	if err := t.storeNodeRaw(addr, n); err != nil {
		return 0, err
	}
	t.cache.InsertNew(addr, n)
	t.end += int64(t.nc.Size)
	return addr, nil
}

func (t *tree[K]) Size() int    { return int(t.size) }
func (t *tree[K]) IsEmpty() bool { return t.size == 0 }

func (t *tree[K]) clear() error {
	t.root, t.end, t.size = 0, treeHeaderSize, 0
	if err := t.cache.Clear(); err != nil {
		return err
	}
	if err := t.f.Truncate(treeHeaderSize); err != nil {
		return fmt.Errorf("btree: truncate %s: %w", t.path, err)
	}
	return t.writeHeader()
}

func (t *tree[K]) close() error {
	if err := t.writeHeader(); err != nil {
		t.f.Close()
		return err
	}
	return t.f.Close()
}

// lowerBound returns the index of the first key in n at or after key.
func (t *tree[K]) lowerBound(n node[K], key K) int {
	lo, hi := 0, int(n.n)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.keys[mid].Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the index of the first key in n strictly after key; as
// a child index into an internal node it selects the subtree that may
// contain key.
func (t *tree[K]) upperBound(n node[K], key K) int {
	lo, hi := 0, int(n.n)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.keys[mid].Compare(key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// descend walks from the root to a leaf, letting pick choose which child to
// follow at each internal node. Standard point lookups pass
// upperBound(n, key); the multi tree's ordered range scan passes a
// key-only comparison so it lands on the first leaf that could hold key.
func (t *tree[K]) descend(pick func(n node[K]) int) (int64, node[K], error) {
	var zero node[K]
	if t.root == 0 {
		return 0, zero, errEmptyTree
	}
	addr := t.root
	n, err := t.readNode(addr)
	if err != nil {
		return 0, zero, err
	}
	for !n.isLeaf {
		i := pick(n)
		addr = n.ptrs[i]
		n, err = t.readNode(addr)
		if err != nil {
			return 0, zero, err
		}
	}
	return addr, n, nil
}

func (t *tree[K]) firstLeaf() (int64, node[K], error) {
	var zero node[K]
	if t.root == 0 {
		return 0, zero, nil
	}
	addr := t.root
	n, err := t.readNode(addr)
	if err != nil {
		return 0, zero, err
	}
	for !n.isLeaf {
		addr = n.ptrs[0]
		n, err = t.readNode(addr)
		if err != nil {
			return 0, zero, err
		}
	}
	return addr, n, nil
}

// forEach visits every (key, pointer) pair in ascending order by walking
// the leftmost descent followed by the leaf chain (ptrs[degree]).
func (t *tree[K]) forEach(visit func(k K, ptr int64) bool) error {
	addr, n, err := t.firstLeaf()
	if err != nil {
		return err
	}
	if addr == 0 {
		return nil
	}
	for {
		for i := 0; i < int(n.n); i++ {
			if !visit(n.keys[i], n.ptrs[i]) {
				return nil
			}
		}
		next := n.ptrs[t.degree]
		if next == 0 {
			return nil
		}
		n, err = t.readNode(next)
		if err != nil {
			return err
		}
	}
}

// findExact locates key's slot. ok is false when key is absent; addr/idx
// still identify the leaf and insertion point lowerBound would use.
func (t *tree[K]) findExact(key K) (addr int64, idx int, ok bool, err error) {
	addr, n, err := t.descend(func(n node[K]) int { return t.upperBound(n, key) })
	if err != nil {
		if err == errEmptyTree {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	idx = t.lowerBound(n, key)
	ok = idx < int(n.n) && n.keys[idx].Compare(key) == 0
	return addr, idx, ok, nil
}

// insertNew inserts key with leaf pointer ptr, assuming key is not already
// present (callers resolve overwrite/idempotence before calling this).
func (t *tree[K]) insertNew(key K, ptr int64) error {
	if t.root == 0 {
		root := newNode[K](t.degree, true)
		root.n = 1
		root.keys[0] = key
		root.ptrs[0] = ptr
		addr, err := t.allocate(root)
		if err != nil {
			return err
		}
		t.root = addr
		t.size = 1
		return nil
	}

	addr, n, err := t.descend(func(n node[K]) int { return t.upperBound(n, key) })
	if err != nil {
		return err
	}
	i := t.lowerBound(n, key)
	for j := n.n; j > int32(i); j-- {
		n.keys[j] = n.keys[j-1]
		n.ptrs[j] = n.ptrs[j-1]
	}
	n.keys[i] = key
	n.ptrs[i] = ptr
	n.n++
	t.size++

	if int(n.n) < t.degree {
		return t.writeNode(addr, n)
	}
	return t.splitLeaf(addr, n)
}

func (t *tree[K]) splitLeaf(addr int64, n node[K]) error {
	right := newNode[K](t.degree, true)
	right.fa = n.fa
	right.n = n.n - int32(t.half)
	for j := 0; j < int(right.n); j++ {
		right.keys[j] = n.keys[t.half+j]
		right.ptrs[j] = n.ptrs[t.half+j]
	}
	right.ptrs[t.degree] = n.ptrs[t.degree]
	n.n = int32(t.half)

	rightAddr, err := t.allocate(right)
	if err != nil {
		return err
	}
	n.ptrs[t.degree] = rightAddr
	if err := t.writeNode(addr, n); err != nil {
		return err
	}
	promoted := right.keys[0]
	return t.insertInternal(n.fa, addr, rightAddr, promoted)
}

// insertInternal inserts a separator key produced by a child split.
// curAddr==0 means the split propagated past the old root, so a new root is
// grown with leftAddr and rightAddr as its first two children.
func (t *tree[K]) insertInternal(curAddr, leftAddr, rightAddr int64, key K) error {
	if curAddr == 0 {
		newRoot := newNode[K](t.degree, false)
		newRoot.n = 1
		newRoot.keys[0] = key
		newRoot.ptrs[0] = leftAddr
		newRoot.ptrs[1] = rightAddr
		newAddr, err := t.allocate(newRoot)
		if err != nil {
			return err
		}
		if err := t.reparent(leftAddr, newAddr); err != nil {
			return err
		}
		if err := t.reparent(rightAddr, newAddr); err != nil {
			return err
		}
		t.root = newAddr
		return nil
	}

	cur, err := t.readNode(curAddr)
	if err != nil {
		return err
	}
	i := t.lowerBound(cur, key)
	if i < int(cur.n) && cur.keys[i].Compare(key) == 0 {
		return structuralErr("insertInternal", curAddr, "duplicate separator key on split")
	}
	for j := cur.n; j > int32(i); j-- {
		cur.keys[j] = cur.keys[j-1]
		cur.ptrs[j+1] = cur.ptrs[j]
	}
	cur.keys[i] = key
	cur.ptrs[i+1] = rightAddr
	cur.n++

	if int(cur.n) < t.degree {
		return t.writeNode(curAddr, cur)
	}

	newNodeRight := newNode[K](t.degree, false)
	newNodeRight.fa = cur.fa
	midKey := cur.keys[t.half]
	newNodeRight.n = cur.n - int32(t.half) - 1
	for j := 0; j < int(newNodeRight.n); j++ {
		newNodeRight.keys[j] = cur.keys[t.half+1+j]
		newNodeRight.ptrs[j] = cur.ptrs[t.half+1+j]
	}
	newNodeRight.ptrs[newNodeRight.n] = cur.ptrs[cur.n]
	cur.n = int32(t.half)

	newAddr, err := t.allocate(newNodeRight)
	if err != nil {
		return err
	}
	for j := 0; j <= int(newNodeRight.n); j++ {
		if err := t.reparent(newNodeRight.ptrs[j], newAddr); err != nil {
			return err
		}
	}
	if err := t.writeNode(curAddr, cur); err != nil {
		return err
	}
	return t.insertInternal(cur.fa, curAddr, newAddr, midKey)
}

func (t *tree[K]) reparent(childAddr, newFa int64) error {
	child, err := t.readNode(childAddr)
	if err != nil {
		return err
	}
	child.fa = newFa
	return t.writeNode(childAddr, child)
}

// eraseExact removes key if present, rebalancing ancestors as needed. ok is
// false and ptr is zero when key was not found.
func (t *tree[K]) eraseExact(key K) (ptr int64, ok bool, err error) {
	addr, n, err := t.descend(func(n node[K]) int { return t.upperBound(n, key) })
	if err != nil {
		if err == errEmptyTree {
			return 0, false, nil
		}
		return 0, false, err
	}
	i := t.lowerBound(n, key)
	if i >= int(n.n) || n.keys[i].Compare(key) != 0 {
		return 0, false, nil
	}
	ptr = n.ptrs[i]
	for j := i; j < int(n.n)-1; j++ {
		n.keys[j] = n.keys[j+1]
		n.ptrs[j] = n.ptrs[j+1]
	}
	n.n--
	t.size--

	if t.size == 0 {
		if err := t.clear(); err != nil {
			return 0, false, err
		}
		return ptr, true, nil
	}

	if err := t.writeNode(addr, n); err != nil {
		return 0, false, err
	}
	if addr == t.root || int(n.n) >= t.half {
		return ptr, true, nil
	}
	if err := t.eraseAdjustLeaf(addr); err != nil {
		return 0, false, err
	}
	return ptr, true, nil
}

// eraseAdjustLeaf restores the minimum-occupancy invariant for an
// underfull leaf by borrowing from a sibling or merging with one, then
// recurses into the parent if a merge removed one of its children.
func (t *tree[K]) eraseAdjustLeaf(addr int64) error {
	n, err := t.readNode(addr)
	if err != nil {
		return err
	}
	fa, err := t.readNode(n.fa)
	if err != nil {
		return err
	}
	i := indexOfChild(fa, addr)
	if i < 0 {
		return structuralErr("eraseAdjustLeaf", addr, "node missing from parent's child list")
	}
	var rightAddr, leftAddr int64
	if i < int(fa.n) {
		rightAddr = fa.ptrs[i+1]
	}
	if i > 0 {
		leftAddr = fa.ptrs[i-1]
	}

	if rightAddr != 0 {
		right, err := t.readNode(rightAddr)
		if err != nil {
			return err
		}
		if int(right.n) > t.half {
			n.keys[n.n] = right.keys[0]
			n.ptrs[n.n] = right.ptrs[0]
			n.n++
			for j := 0; j < int(right.n)-1; j++ {
				right.keys[j] = right.keys[j+1]
				right.ptrs[j] = right.ptrs[j+1]
			}
			right.n--
			fa.keys[i] = right.keys[0]
			if err := t.writeNode(n.fa, fa); err != nil {
				return err
			}
			if err := t.writeNode(addr, n); err != nil {
				return err
			}
			return t.writeNode(rightAddr, right)
		}
	}
	if leftAddr != 0 {
		left, err := t.readNode(leftAddr)
		if err != nil {
			return err
		}
		if int(left.n) > t.half {
			for j := n.n; j > 0; j-- {
				n.keys[j] = n.keys[j-1]
				n.ptrs[j] = n.ptrs[j-1]
			}
			n.keys[0] = left.keys[left.n-1]
			n.ptrs[0] = left.ptrs[left.n-1]
			n.n++
			left.n--
			fa.keys[i-1] = n.keys[0]
			if err := t.writeNode(n.fa, fa); err != nil {
				return err
			}
			if err := t.writeNode(addr, n); err != nil {
				return err
			}
			return t.writeNode(leftAddr, left)
		}
	}

	if rightAddr != 0 {
		right, err := t.readNode(rightAddr)
		if err != nil {
			return err
		}
		for j := 0; j < int(right.n); j++ {
			n.keys[int(n.n)+j] = right.keys[j]
			n.ptrs[int(n.n)+j] = right.ptrs[j]
		}
		n.ptrs[t.degree] = right.ptrs[t.degree]
		n.n += right.n
		removeInternalSlot(&fa, i)
		if err := t.writeNode(addr, n); err != nil {
			return err
		}
		if err := t.writeNode(n.fa, fa); err != nil {
			return err
		}
		return t.eraseAdjustInternal(n.fa)
	}
	if leftAddr != 0 {
		left, err := t.readNode(leftAddr)
		if err != nil {
			return err
		}
		for j := 0; j < int(n.n); j++ {
			left.keys[int(left.n)+j] = n.keys[j]
			left.ptrs[int(left.n)+j] = n.ptrs[j]
		}
		left.ptrs[t.degree] = n.ptrs[t.degree]
		left.n += n.n
		removeInternalSlot(&fa, i-1)
		if err := t.writeNode(leftAddr, left); err != nil {
			return err
		}
		if err := t.writeNode(left.fa, fa); err != nil {
			return err
		}
		return t.eraseAdjustInternal(left.fa)
	}
	return structuralErr("eraseAdjustLeaf", addr, "no sibling available to borrow from or merge with")
}

// eraseAdjustInternal is eraseAdjustLeaf's counterpart for internal nodes:
// borrowing or merging must additionally re-home the moved children's fa
// pointers, and a root that drops to zero keys is collapsed.
func (t *tree[K]) eraseAdjustInternal(addr int64) error {
	n, err := t.readNode(addr)
	if err != nil {
		return err
	}
	if n.fa == 0 {
		if addr != t.root {
			return structuralErr("eraseAdjustInternal", addr, "parentless node is not the root")
		}
		if n.n == 0 {
			newRoot := n.ptrs[0]
			if err := t.reparent(newRoot, 0); err != nil {
				return err
			}
			t.root = newRoot
		}
		return nil
	}
	if int(n.n) >= t.half {
		return nil
	}

	fa, err := t.readNode(n.fa)
	if err != nil {
		return err
	}
	i := indexOfChild(fa, addr)
	if i < 0 {
		return structuralErr("eraseAdjustInternal", addr, "node missing from parent's child list")
	}
	var rightAddr, leftAddr int64
	if i < int(fa.n) {
		rightAddr = fa.ptrs[i+1]
	}
	if i > 0 {
		leftAddr = fa.ptrs[i-1]
	}

	if rightAddr != 0 {
		right, err := t.readNode(rightAddr)
		if err != nil {
			return err
		}
		if int(right.n) > t.half {
			n.keys[n.n] = fa.keys[i]
			n.ptrs[n.n+1] = right.ptrs[0]
			if err := t.reparent(right.ptrs[0], addr); err != nil {
				return err
			}
			n.n++
			fa.keys[i] = right.keys[0]
			for j := 0; j < int(right.n)-1; j++ {
				right.keys[j] = right.keys[j+1]
				right.ptrs[j] = right.ptrs[j+1]
			}
			right.ptrs[right.n-1] = right.ptrs[right.n]
			right.n--
			if err := t.writeNode(n.fa, fa); err != nil {
				return err
			}
			if err := t.writeNode(addr, n); err != nil {
				return err
			}
			return t.writeNode(rightAddr, right)
		}
	}
	if leftAddr != 0 {
		left, err := t.readNode(leftAddr)
		if err != nil {
			return err
		}
		if int(left.n) > t.half {
			n.ptrs[n.n+1] = n.ptrs[n.n]
			for j := n.n; j > 0; j-- {
				n.keys[j] = n.keys[j-1]
				n.ptrs[j] = n.ptrs[j-1]
			}
			n.keys[0] = fa.keys[i-1]
			n.ptrs[0] = left.ptrs[left.n]
			if err := t.reparent(n.ptrs[0], addr); err != nil {
				return err
			}
			n.n++
			fa.keys[i-1] = left.keys[left.n-1]
			left.n--
			if err := t.writeNode(n.fa, fa); err != nil {
				return err
			}
			if err := t.writeNode(addr, n); err != nil {
				return err
			}
			return t.writeNode(leftAddr, left)
		}
	}

	if rightAddr != 0 {
		right, err := t.readNode(rightAddr)
		if err != nil {
			return err
		}
		n.keys[n.n] = fa.keys[i]
		n.ptrs[n.n+1] = right.ptrs[0]
		if err := t.reparent(right.ptrs[0], addr); err != nil {
			return err
		}
		for j := 0; j < int(right.n); j++ {
			n.keys[int(n.n)+1+j] = right.keys[j]
			n.ptrs[int(n.n)+2+j] = right.ptrs[j+1]
			if err := t.reparent(right.ptrs[j+1], addr); err != nil {
				return err
			}
		}
		n.n += right.n + 1
		removeInternalSlot(&fa, i)
		if err := t.writeNode(addr, n); err != nil {
			return err
		}
		if err := t.writeNode(n.fa, fa); err != nil {
			return err
		}
		return t.eraseAdjustInternal(n.fa)
	}
	if leftAddr != 0 {
		left, err := t.readNode(leftAddr)
		if err != nil {
			return err
		}
		left.keys[left.n] = fa.keys[i-1]
		left.ptrs[left.n+1] = n.ptrs[0]
		if err := t.reparent(n.ptrs[0], leftAddr); err != nil {
			return err
		}
		for j := 0; j < int(n.n); j++ {
			left.keys[int(left.n)+1+j] = n.keys[j]
			left.ptrs[int(left.n)+2+j] = n.ptrs[j+1]
			if err := t.reparent(n.ptrs[j+1], leftAddr); err != nil {
				return err
			}
		}
		left.n += n.n + 1
		removeInternalSlot(&fa, i-1)
		if err := t.writeNode(leftAddr, left); err != nil {
			return err
		}
		if err := t.writeNode(left.fa, fa); err != nil {
			return err
		}
		return t.eraseAdjustInternal(left.fa)
	}
	return structuralErr("eraseAdjustInternal", addr, "no sibling available to borrow from or merge with")
}
