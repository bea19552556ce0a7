package btree

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/HenryHe0123/ticket-storage/common/testutil"
)

func smallConfig() Config {
	return Config{HalfBlock: 2, NodeCacheSize: 4, ValueCacheSize: 4}
}

func openTestUnique(t *testing.T, cfg Config) *UniqueTree[intKey, stringVal] {
	t.Helper()
	path := filepath.Join(testutil.TempDir(t), "unique.tree")
	u, err := OpenUnique[intKey, stringVal](path, intKeyCodec(), stringValCodec(), cfg)
	if err != nil {
		t.Fatalf("OpenUnique: %v", err)
	}
	t.Cleanup(func() { u.Close() })
	return u
}

func TestUniqueAssignAndFind(t *testing.T) {
	u := openTestUnique(t, smallConfig())

	keys := []int64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	for _, k := range keys {
		if err := u.Assign(intKey(k), stringVal("v")); err != nil {
			t.Fatalf("Assign(%d): %v", k, err)
		}
	}

	distinct := map[int64]bool{}
	for _, k := range keys {
		distinct[k] = true
	}
	if u.Size() != len(distinct) {
		t.Fatalf("Size() = %d, want %d", u.Size(), len(distinct))
	}

	for k := range distinct {
		v, ok, err := u.Find(intKey(k))
		if err != nil || !ok || v != "v" {
			t.Fatalf("Find(%d) = %v, %v, %v", k, v, ok, err)
		}
	}
	if _, ok, err := u.Find(intKey(42)); err != nil || ok {
		t.Fatalf("Find(42) should miss, got ok=%v err=%v", ok, err)
	}
}

func TestUniqueAssignOverwritesInPlace(t *testing.T) {
	u := openTestUnique(t, smallConfig())
	if err := u.Assign(intKey(1), "first"); err != nil {
		t.Fatal(err)
	}
	sizeBefore := u.Size()
	if err := u.Assign(intKey(1), "second"); err != nil {
		t.Fatal(err)
	}
	if u.Size() != sizeBefore {
		t.Fatalf("overwrite changed Size(): %d -> %d", sizeBefore, u.Size())
	}
	v, ok, err := u.Find(intKey(1))
	if err != nil || !ok || v != "second" {
		t.Fatalf("Find(1) = %v, %v, %v, want second, true, nil", v, ok, err)
	}
}

func TestUniqueSplitRoundTrip(t *testing.T) {
	u := openTestUnique(t, Config{HalfBlock: 3, NodeCacheSize: 4, ValueCacheSize: 4})
	for i := int64(1); i <= 20; i++ {
		if err := u.Assign(intKey(i), "v"); err != nil {
			t.Fatalf("Assign(%d): %v", i, err)
		}
	}
	if u.Size() != 20 {
		t.Fatalf("Size() = %d, want 20", u.Size())
	}
	seen := 0
	var last intKey = -1
	err := u.ForEach(func(k intKey, v stringVal) error {
		if k <= last {
			t.Fatalf("ForEach out of order: %d after %d", k, last)
		}
		last = k
		seen++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 20 {
		t.Fatalf("ForEach visited %d keys, want 20", seen)
	}
}

func TestUniqueEraseWithMerging(t *testing.T) {
	u := openTestUnique(t, Config{HalfBlock: 2, NodeCacheSize: 4, ValueCacheSize: 4})
	for i := int64(1); i <= 30; i++ {
		if err := u.Assign(intKey(i), "v"); err != nil {
			t.Fatal(err)
		}
	}
	for i := int64(1); i <= 25; i++ {
		ok, err := u.Erase(intKey(i))
		if err != nil || !ok {
			t.Fatalf("Erase(%d) = %v, %v", i, ok, err)
		}
	}
	if u.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", u.Size())
	}
	for i := int64(26); i <= 30; i++ {
		if _, ok, err := u.Find(intKey(i)); err != nil || !ok {
			t.Fatalf("Find(%d) after erase = %v, %v, want true", i, ok, err)
		}
	}
	for i := int64(1); i <= 25; i++ {
		if _, ok, err := u.Find(intKey(i)); err != nil || ok {
			t.Fatalf("Find(%d) should be gone, ok=%v err=%v", i, ok, err)
		}
	}
}

func TestUniqueEraseMissingKey(t *testing.T) {
	u := openTestUnique(t, smallConfig())
	if err := u.Assign(intKey(1), "v"); err != nil {
		t.Fatal(err)
	}
	ok, err := u.Erase(intKey(99))
	if err != nil || ok {
		t.Fatalf("Erase(99) = %v, %v, want false, nil", ok, err)
	}
}

func TestUniqueClear(t *testing.T) {
	u := openTestUnique(t, smallConfig())
	for i := int64(1); i <= 10; i++ {
		u.Assign(intKey(i), "v")
	}
	if err := u.Clear(); err != nil {
		t.Fatal(err)
	}
	if !u.IsEmpty() {
		t.Fatalf("expected empty tree after Clear")
	}
	if err := u.Assign(intKey(1), "after-clear"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := u.Find(intKey(1))
	if err != nil || !ok || v != "after-clear" {
		t.Fatalf("Find(1) after clear+reinsert = %v, %v, %v", v, ok, err)
	}
}

func TestUniqueReopenPreservesData(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "reopen.tree")
	u, err := OpenUnique[intKey, stringVal](path, intKeyCodec(), stringValCodec(), smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	inserted := map[int64]bool{}
	for i := int64(1); i <= 10000; i++ {
		k := rand.Int63n(2000)
		if err := u.Assign(intKey(k), "v"); err != nil {
			t.Fatalf("Assign: %v", err)
		}
		inserted[k] = true
	}
	wantSize := u.Size()
	if err := u.Close(); err != nil {
		t.Fatal(err)
	}

	u2, err := OpenUnique[intKey, stringVal](path, intKeyCodec(), stringValCodec(), smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer u2.Close()
	if u2.Size() != wantSize {
		t.Fatalf("Size() after reopen = %d, want %d", u2.Size(), wantSize)
	}
	for k := range inserted {
		if v, ok, err := u2.Find(intKey(k)); err != nil || !ok || v != "v" {
			t.Fatalf("Find(%d) after reopen = %v, %v, %v", k, v, ok, err)
		}
	}
}
