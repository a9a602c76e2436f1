package heap

import (
	"path/filepath"
	"testing"
)

func openTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "rows.heap"), 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestInsertReadAt(t *testing.T) {
	h := openTestHeap(t)
	rec := []byte{1, 2, 3, 4, 5, 6, 7, 1}
	pos, err := h.Insert(rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if pos != 0 {
		t.Fatalf("got pos %d, want 0", pos)
	}
	got, err := h.ReadAt(pos)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(rec) {
		t.Fatalf("got %v, want %v", got, rec)
	}
}

func TestPositionsAreStableAfterTombstone(t *testing.T) {
	h := openTestHeap(t)
	a := []byte{1, 0, 0, 0, 0, 0, 0, 1}
	b := []byte{2, 0, 0, 0, 0, 0, 0, 1}
	posA, _ := h.Insert(a)
	posB, _ := h.Insert(b)

	tombstoned := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	if err := h.WriteAt(posA, tombstoned); err != nil {
		t.Fatalf("write: %v", err)
	}

	gotB, err := h.ReadAt(posB)
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if gotB[7] != 1 {
		t.Fatalf("tombstoning a record moved or altered a sibling record")
	}
}

func TestReadAtOutOfRange(t *testing.T) {
	h := openTestHeap(t)
	if _, err := h.ReadAt(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestScanVisitsAllSlotsInOrder(t *testing.T) {
	h := openTestHeap(t)
	for i := byte(0); i < 5; i++ {
		rec := []byte{i, 0, 0, 0, 0, 0, 0, 1}
		if _, err := h.Insert(rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	var seen []byte
	err := h.Scan(func(pos int64, record []byte) error {
		seen = append(seen, record[0])
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for i, v := range seen {
		if v != byte(i) {
			t.Fatalf("scan order mismatch at %d: got %d", i, v)
		}
	}
}

func TestInsertWrongSizeRejected(t *testing.T) {
	h := openTestHeap(t)
	if _, err := h.Insert([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected wrong-size error")
	}
}
