package btree

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/HenryHe0123/ticket-storage/common/testutil"
)

func openTestMulti(t *testing.T, cfg Config) *MultiTree[intKey, intKey] {
	t.Helper()
	path := filepath.Join(testutil.TempDir(t), "multi.tree")
	m, err := OpenMulti[intKey, intKey](path, intKeyCodec(), intKeyCodec(), cfg)
	if err != nil {
		t.Fatalf("OpenMulti: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMultiInsertIsIdempotent(t *testing.T) {
	m := openTestMulti(t, smallConfig())
	if err := m.Insert(1, 100); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(1, 100); err != nil {
		t.Fatal(err)
	}
	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 after duplicate insert", m.Size())
	}
}

func TestMultiFindReturnsOrderedValues(t *testing.T) {
	m := openTestMulti(t, Config{HalfBlock: 3, NodeCacheSize: 4, ValueCacheSize: 4})
	pairs := []struct{ k, v int64 }{
		{1, 50}, {1, 10}, {1, 30}, {2, 5}, {3, 1}, {1, 20},
	}
	for _, p := range pairs {
		if err := m.Insert(intKey(p.k), intKey(p.v)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := m.Find(intKey(1))
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10, 20, 30, 50}
	if len(got) != len(want) {
		t.Fatalf("Find(1) = %v, want %v", got, want)
	}
	for i, v := range want {
		if int64(got[i]) != v {
			t.Fatalf("Find(1)[%d] = %d, want %d", i, got[i], v)
		}
	}

	got2, err := m.Find(intKey(2))
	if err != nil || len(got2) != 1 || got2[0] != 5 {
		t.Fatalf("Find(2) = %v, %v", got2, err)
	}

	none, err := m.Find(intKey(999))
	if err != nil || len(none) != 0 {
		t.Fatalf("Find(999) = %v, %v, want empty", none, err)
	}
}

func TestMultiEraseRemovesSinglePair(t *testing.T) {
	m := openTestMulti(t, smallConfig())
	m.Insert(1, 10)
	m.Insert(1, 20)

	ok, err := m.Erase(intKey(1), intKey(10))
	if err != nil || !ok {
		t.Fatalf("Erase(1,10) = %v, %v", ok, err)
	}
	got, err := m.Find(intKey(1))
	if err != nil || len(got) != 1 || got[0] != 20 {
		t.Fatalf("Find(1) after erase = %v, %v", got, err)
	}

	ok, err = m.Erase(intKey(1), intKey(999))
	if err != nil || ok {
		t.Fatalf("Erase of absent pair = %v, %v, want false", ok, err)
	}
}

func TestMultiForEachVisitsEverythingInOrder(t *testing.T) {
	m := openTestMulti(t, Config{HalfBlock: 2, NodeCacheSize: 4, ValueCacheSize: 4})
	var inserted [][2]int64
	for k := int64(1); k <= 5; k++ {
		for v := int64(1); v <= 3; v++ {
			m.Insert(intKey(k), intKey(v))
			inserted = append(inserted, [2]int64{k, v})
		}
	}
	sort.Slice(inserted, func(i, j int) bool {
		if inserted[i][0] != inserted[j][0] {
			return inserted[i][0] < inserted[j][0]
		}
		return inserted[i][1] < inserted[j][1]
	})

	var visited [][2]int64
	err := m.ForEach(func(k, v intKey) error {
		visited = append(visited, [2]int64{int64(k), int64(v)})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(visited) != len(inserted) {
		t.Fatalf("ForEach visited %d pairs, want %d", len(visited), len(inserted))
	}
	for i := range inserted {
		if visited[i] != inserted[i] {
			t.Fatalf("visited[%d] = %v, want %v", i, visited[i], inserted[i])
		}
	}
}

func TestMultiClear(t *testing.T) {
	m := openTestMulti(t, smallConfig())
	for i := int64(1); i <= 10; i++ {
		m.Insert(intKey(i), intKey(i))
	}
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	if !m.IsEmpty() {
		t.Fatalf("expected empty tree after Clear")
	}
}
