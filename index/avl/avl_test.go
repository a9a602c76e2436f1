package avl

import (
	"path/filepath"
	"testing"

	"github.com/jlang/reldb/index"
)

func keys(kvs []index.KeyValue) []string {
	out := make([]string, len(kvs))
	for i, kv := range kvs {
		out[i] = kv.Key.(string)
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRangeSearchThenDeleteStringDomain(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), 8, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	for i := int64(1); i <= 5; i++ {
		if err := idx.Insert(string(rune('0'+i)), i); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := idx.Range("2", "4")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if want := []string{"2", "3", "4"}; !sameStrings(keys(got), want) {
		t.Fatalf("range(2,4) = %v, want %v", keys(got), want)
	}

	if err := idx.Delete("2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = idx.Range("1", "5")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if want := []string{"1", "3", "4", "5"}; !sameStrings(keys(got), want) {
		t.Fatalf("range(1,5) after delete = %v, want %v", keys(got), want)
	}
}

func TestInsertOverwritesOnDuplicateKey(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), 8, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	if err := idx.Insert("a", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert("a", 2); err != nil {
		t.Fatalf("overwrite insert: %v", err)
	}
	pos, err := idx.Search("a")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if pos != 2 {
		t.Fatalf("expected last-write-wins position 2, got %d (diverges from the original's no-overwrite bug, per invariant 1)", pos)
	}
}

func TestSearchMissingKey(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), 8, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	if err := idx.Insert("a", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := idx.Search("z"); err != index.ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestNumericDomainComparesByValueNotLexically(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), 8, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	for _, n := range []int64{2, 10, 1, 20} {
		if err := idx.Insert(n, n); err != nil {
			t.Fatalf("insert %d: %v", n, err)
		}
	}
	all, err := idx.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	want := []string{"1", "2", "10", "20"}
	if !sameStrings(keys(all), want) {
		t.Fatalf("numeric order = %v, want %v (lexical order would be 1,10,2,20)", keys(all), want)
	}
}

func TestDeleteRebalancesAndPreservesHeightOrdering(t *testing.T) {
	idx, err := Create(filepath.Join(t.TempDir(), "idx.dat"), 8, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	for i := int64(1); i <= 15; i++ {
		if err := idx.Insert(i, i); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := int64(1); i <= 10; i++ {
		if err := idx.Delete(i); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	all, err := idx.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	want := []string{"11", "12", "13", "14", "15"}
	if !sameStrings(keys(all), want) {
		t.Fatalf("remaining keys = %v, want %v", keys(all), want)
	}
}
