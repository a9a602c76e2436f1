package codec

import (
	"testing"
	"time"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		tag    Tag
		maxLen int
		value  any
	}{
		{"smallint", SMALLINT, 0, int16(-42)},
		{"int", INT, 0, int32(123456)},
		{"bigint", BIGINT, 0, int64(-9000000000)},
		{"double", DOUBLE, 0, float64(3.5)},
		{"char", CHAR, 8, "hi"},
		{"varchar", VARCHAR, 16, "hello world"},
		{"boolean_true", BOOLEAN, 0, true},
		{"boolean_false", BOOLEAN, 0, false},
		{"date", DATE, 0, "2024-03-01"},
		{"time", TIME, 0, "13:45:09"},
		{"timestamp", TIMESTAMP, 0, "2024-03-01 13:45:09"},
		{"decimal", DECIMAL, 16, "12.34"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Serialize(tc.value, tc.tag, tc.maxLen)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			got, err := Deserialize(buf, tc.tag, tc.maxLen)
			if err != nil {
				t.Fatalf("deserialize: %v", err)
			}
			switch tc.tag {
			case DATE, TIME, TIMESTAMP:
				if _, ok := got.(time.Time); !ok {
					t.Fatalf("expected time.Time, got %T", got)
				}
			default:
				if got != tc.value {
					t.Fatalf("got %v (%T), want %v (%T)", got, got, tc.value, tc.value)
				}
			}
		})
	}
}

func TestSerializeNilIsAllZero(t *testing.T) {
	buf, err := Serialize(nil, INT, 0)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected all-zero buffer, got %v", buf)
		}
	}
	got, err := Deserialize(buf, INT, 0)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestSerializeValueTooLong(t *testing.T) {
	_, err := Serialize("way too long for this column", CHAR, 4)
	if err == nil {
		t.Fatal("expected ErrValueTooLong")
	}
}

func TestCharRoundTripStripsPadding(t *testing.T) {
	buf, err := Serialize("ab", CHAR, 8)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(buf, CHAR, 8)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got != "ab" {
		t.Fatalf("got %q, want %q", got, "ab")
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	buf, err := Serialize("550e8400-e29b-41d4-a716-446655440000", UUID, 0)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(buf, UUID, 0)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	id, ok := got.([16]byte)
	if !ok {
		t.Fatalf("expected [16]byte, got %T", got)
	}
	if id[0] != 0x55 || id[1] != 0x0e {
		t.Fatalf("unexpected UUID bytes: %x", id)
	}
}

func TestSizeByTag(t *testing.T) {
	if Size(INT, 0) != 4 {
		t.Fatal("INT should be 4 bytes")
	}
	if Size(VARCHAR, 40) != 40 {
		t.Fatal("VARCHAR should honor max_len")
	}
	if Size(JSON, 0) != 1024 {
		t.Fatal("JSON should be fixed at 1024")
	}
}
