package btree

import (
	"path/filepath"
	"testing"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
)

func TestInsertSearchOverwrite(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, DefaultOrder)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	if err := idx.Insert(int64(1), 100); err != nil {
		t.Fatalf("insert: %v", err)
	}
	pos, err := idx.Search(int64(1))
	if err != nil || pos != 100 {
		t.Fatalf("pos=%d err=%v", pos, err)
	}
	if err := idx.Insert(int64(1), 200); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	pos, err = idx.Search(int64(1))
	if err != nil || pos != 200 {
		t.Fatalf("pos=%d err=%v", pos, err)
	}
}

func TestRangeOrderedAcrossSplits(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, DefaultOrder)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	for i := int64(1); i <= 60; i++ {
		if err := idx.Insert(i, i*10); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	kvs, err := idx.Range(int64(5), int64(20))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(kvs) != 16 {
		t.Fatalf("got %d rows, want 16", len(kvs))
	}
	for i, kv := range kvs {
		want := int32(5 + i)
		if kv.Key != want {
			t.Fatalf("index %d: got key %v, want %v", i, kv.Key, want)
		}
	}
}

func TestAllReturnsSortedOrder(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, DefaultOrder)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	keys := []int64{30, 10, 50, 20, 40}
	for _, k := range keys {
		if err := idx.Insert(k, k); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	all, err := idx.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	prev := int32(-1)
	for _, kv := range all {
		k := kv.Key.(int32)
		if k < prev {
			t.Fatalf("all() not sorted: %v", all)
		}
		prev = k
	}
	if len(all) != len(keys) {
		t.Fatalf("got %d entries, want %d", len(all), len(keys))
	}
}

func TestDeleteThenSearchMisses(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, DefaultOrder)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	for i := int64(1); i <= 5; i++ {
		if err := idx.Insert(i, i); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := idx.Delete(int64(3)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := idx.Search(int64(3)); err != index.ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if pos, err := idx.Search(int64(4)); err != nil || pos != 4 {
		t.Fatalf("unrelated key disturbed: pos=%d err=%v", pos, err)
	}
}
