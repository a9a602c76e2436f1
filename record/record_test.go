package record

import (
	"testing"

	"github.com/jlang/reldb/codec"
)

func testSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "id", Tag: codec.INT},
		{Name: "name", Tag: codec.VARCHAR, MaxLen: 16},
		{Name: "active", Tag: codec.BOOLEAN},
	}}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	p := NewPacker(testSchema())
	values := []any{int64(7), "alice", true}

	buf, err := p.Pack(values, true)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(buf) != p.RecordSize() {
		t.Fatalf("got %d bytes, want %d", len(buf), p.RecordSize())
	}

	got, active, err := p.Unpack(buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if !active {
		t.Fatal("expected active record")
	}
	if got[0] != int32(7) || got[1] != "alice" || got[2] != true {
		t.Fatalf("unexpected values: %v", got)
	}
}

func TestSetActiveTombstones(t *testing.T) {
	p := NewPacker(testSchema())
	buf, err := p.Pack([]any{int64(1), "bob", false}, true)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !p.IsActive(buf) {
		t.Fatal("expected active=true after pack")
	}
	p.SetActive(buf, false)
	if p.IsActive(buf) {
		t.Fatal("expected active=false after tombstone")
	}
	// columns must survive a tombstone flip unchanged
	values, active, err := p.Unpack(buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if active {
		t.Fatal("unpack should report inactive")
	}
	if values[1] != "bob" {
		t.Fatalf("tombstone must not disturb column bytes, got %v", values[1])
	}
}

func TestPackWrongArity(t *testing.T) {
	p := NewPacker(testSchema())
	_, err := p.Pack([]any{int64(1)}, true)
	if err == nil {
		t.Fatal("expected arity error")
	}
}

func TestUnpackFieldSkipsOtherColumns(t *testing.T) {
	p := NewPacker(testSchema())
	buf, err := p.Pack([]any{int64(42), "carol", true}, true)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	v, err := p.UnpackField(buf, 1)
	if err != nil {
		t.Fatalf("unpack field: %v", err)
	}
	if v != "carol" {
		t.Fatalf("got %v, want carol", v)
	}
}
