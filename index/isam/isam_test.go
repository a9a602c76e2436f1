package isam

import (
	"path/filepath"
	"testing"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
)

func TestBuildThenSearchFindsEveryKey(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, 2, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	pairs := make([]index.KeyValue, 25)
	for i := range pairs {
		pairs[i] = index.KeyValue{Key: int64(i + 1), Position: int64(i)}
	}
	if err := idx.Build(pairs); err != nil {
		t.Fatalf("build: %v", err)
	}

	rootEntries, err := idx.RootEntryCount()
	if err != nil {
		t.Fatalf("root entries: %v", err)
	}
	if rootEntries < 2 {
		t.Fatalf("expected root to have >= 2 entries for 25 keys / block_factor 10, got %d", rootEntries)
	}
	leafBlocks, err := idx.LeafBlockCount()
	if err != nil {
		t.Fatalf("leaf blocks: %v", err)
	}
	if leafBlocks < 3 {
		t.Fatalf("expected >= 3 leaf blocks for 25 keys / block_factor 10, got %d", leafBlocks)
	}

	for _, kv := range pairs {
		pos, err := idx.Search(kv.Key)
		if err != nil {
			t.Fatalf("search %v: %v", kv.Key, err)
		}
		if pos != kv.Position {
			t.Fatalf("key %v: got %d, want %d", kv.Key, pos, kv.Position)
		}
	}
}

func TestInsertAfterBuildOverflowsFullLeaf(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, 2, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	pairs := make([]index.KeyValue, 10)
	for i := range pairs {
		pairs[i] = index.KeyValue{Key: int64(i + 1), Position: int64(i)}
	}
	if err := idx.Build(pairs); err != nil {
		t.Fatalf("build: %v", err)
	}
	before, err := idx.LeafBlockCount()
	if err != nil {
		t.Fatalf("leaf blocks: %v", err)
	}

	if err := idx.Insert(int64(11), 10); err != nil {
		t.Fatalf("insert: %v", err)
	}
	after, err := idx.LeafBlockCount()
	if err != nil {
		t.Fatalf("leaf blocks after: %v", err)
	}
	if after != before+1 {
		t.Fatalf("expected overflow block to be attached, got %d -> %d", before, after)
	}
	pos, err := idx.Search(int64(11))
	if err != nil || pos != 10 {
		t.Fatalf("pos=%d err=%v", pos, err)
	}
}

func TestDeleteScansOverflowChain(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), codec.INT, 0, 2, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	for i := int64(1); i <= 5; i++ {
		if err := idx.Insert(i, i); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := idx.Delete(int64(4)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := idx.Search(int64(4)); err != index.ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	pos, err := idx.Search(int64(5))
	if err != nil || pos != 5 {
		t.Fatalf("unrelated key disturbed: pos=%d err=%v", pos, err)
	}
}
