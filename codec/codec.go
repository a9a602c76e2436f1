package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// dateLayout/timeLayout/tsLayout mirror the textual forms accepted from SQL
// literals and CSV cells before they are packed into their binary widths.
const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
	tsLayout   = "2006-01-02 15:04:05"
)

// Serialize packs a Go value into the fixed-width byte form for tag/maxLen.
// A nil value produces an all-zero buffer, which Deserialize reads back as
// nil (the record packer's NULL convention for a live but unset column).
func Serialize(value any, tag Tag, maxLen int) ([]byte, error) {
	width := Size(tag, maxLen)
	if value == nil {
		return make([]byte, width), nil
	}

	buf := make([]byte, width)
	switch tag {
	case SMALLINT:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case INT:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case BIGINT:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case DOUBLE:
		v, err := asFloat64(value)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	case CHAR, VARCHAR:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrWrongGoType, value, tag)
		}
		if len(s) > width {
			return nil, fmt.Errorf("%w: %d bytes into %d-byte %s", ErrValueTooLong, len(s), width, tag)
		}
		copy(buf, s)
	case BOOLEAN:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T for BOOLEAN", ErrWrongGoType, value)
		}
		if b {
			buf[0] = 1
		}
	case UUID:
		switch v := value.(type) {
		case [16]byte:
			copy(buf, v[:])
		case string:
			id, err := parseUUID(v)
			if err != nil {
				return nil, err
			}
			copy(buf, id[:])
		default:
			return nil, fmt.Errorf("%w: %T for UUID", ErrWrongGoType, value)
		}
	case DATE:
		t, err := asTime(value, dateLayout)
		if err != nil {
			return nil, err
		}
		packed := uint32(t.Year())*10000 + uint32(t.Month())*100 + uint32(t.Day())
		binary.LittleEndian.PutUint32(buf, packed)
	case TIME:
		t, err := asTime(value, timeLayout)
		if err != nil {
			return nil, err
		}
		packed := uint64(t.Hour())*1e10 + uint64(t.Minute())*1e8 + uint64(t.Second())*1e6 + uint64(t.Nanosecond()/1000)
		binary.LittleEndian.PutUint64(buf, packed)
	case TIMESTAMP:
		t, err := asTime(value, tsLayout)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(buf, uint64(t.Unix()))
	case GEOMETRIC:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T for GEOMETRIC", ErrWrongGoType, value)
		}
		if len(s) > width {
			return nil, fmt.Errorf("%w: %d bytes into %d-byte GEOMETRIC", ErrValueTooLong, len(s), width)
		}
		copy(buf, s)
	case JSON:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T for JSON", ErrWrongGoType, value)
		}
		if len(s) > width {
			return nil, fmt.Errorf("%w: %d bytes into %d-byte JSON", ErrValueTooLong, len(s), width)
		}
		copy(buf, s)
	case DECIMAL:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T for DECIMAL", ErrWrongGoType, value)
		}
		if len(s) > width {
			return nil, fmt.Errorf("%w: %d bytes into %d-byte DECIMAL", ErrValueTooLong, len(s), width)
		}
		copy(buf, s)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTag, tag)
	}
	return buf, nil
}

// Deserialize unpacks a fixed-width byte slice back into a Go value. An
// all-zero slice deserializes to nil regardless of tag — this is the
// record packer's only NULL representation.
func Deserialize(data []byte, tag Tag, maxLen int) (any, error) {
	width := Size(tag, maxLen)
	if len(data) < width {
		return nil, fmt.Errorf("%w: have %d want %d for %s", ErrShortBuffer, len(data), width, tag)
	}
	data = data[:width]
	if allZero(data) {
		return nil, nil
	}

	switch tag {
	case SMALLINT:
		return int16(binary.LittleEndian.Uint16(data)), nil
	case INT:
		return int32(binary.LittleEndian.Uint32(data)), nil
	case BIGINT:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case DOUBLE:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case CHAR, VARCHAR:
		return rstripNul(data), nil
	case BOOLEAN:
		return data[0] != 0, nil
	case UUID:
		var id [16]byte
		copy(id[:], data)
		return id, nil
	case DATE:
		packed := binary.LittleEndian.Uint32(data)
		year := packed / 10000
		month := (packed / 100) % 100
		day := packed % 100
		return time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC), nil
	case TIME:
		packed := binary.LittleEndian.Uint64(data)
		hour := packed / 1e10
		minute := (packed / 1e8) % 100
		second := (packed / 1e6) % 100
		micro := packed % 1e6
		return time.Date(0, 1, 1, int(hour), int(minute), int(second), int(micro)*1000, time.UTC), nil
	case TIMESTAMP:
		sec := binary.LittleEndian.Uint64(data)
		return time.Unix(int64(sec), 0).UTC(), nil
	case GEOMETRIC:
		return rstripNul(data), nil
	case JSON:
		return rstripNul(data), nil
	case DECIMAL:
		return rstripNul(data), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTag, tag)
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func rstripNul(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrWrongGoType, value)
	}
}

func asFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrWrongGoType, value)
	}
}

func asTime(value any, layout string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(layout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrWrongGoType, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrWrongGoType, value)
	}
}

func parseUUID(s string) ([16]byte, error) {
	var id [16]byte
	var hexBuf [32]byte
	n := 0
	for _, c := range []byte(s) {
		if c == '-' {
			continue
		}
		if n >= 32 {
			return id, fmt.Errorf("%w: malformed UUID %q", ErrWrongGoType, s)
		}
		hexBuf[n] = c
		n++
	}
	if n != 32 {
		return id, fmt.Errorf("%w: malformed UUID %q", ErrWrongGoType, s)
	}
	for i := 0; i < 16; i++ {
		hi, err := hexVal(hexBuf[i*2])
		if err != nil {
			return id, err
		}
		lo, err := hexVal(hexBuf[i*2+1])
		if err != nil {
			return id, err
		}
		id[i] = hi<<4 | lo
	}
	return id, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("%w: invalid hex digit %q", ErrWrongGoType, c)
	}
}
