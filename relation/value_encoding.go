package relation

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// ValueType tags an encoded value.
type ValueType byte

const (
	TypeMissing ValueType = iota
	TypeString
	TypeInt
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeTime
	TypeBytes
)

// Type returns the type tag of a value.
func Type(v Value) (ValueType, error) {
	switch v.(type) {
	case nil:
		return TypeMissing, nil
	case string:
		return TypeString, nil
	case int:
		return TypeInt, nil
	case int32:
		return TypeInt32, nil
	case int64:
		return TypeInt64, nil
	case float32:
		return TypeFloat32, nil
	case float64:
		return TypeFloat64, nil
	case bool:
		return TypeBool, nil
	case time.Time:
		return TypeTime, nil
	case []byte:
		return TypeBytes, nil
	default:
		return 0, fmt.Errorf("cannot encode value type: %T", v)
	}
}

// AppendValue appends the tagged binary form of v to buf.
func AppendValue(buf []byte, v Value) ([]byte, error) {
	vType, err := Type(v)
	if err != nil {
		return buf, err
	}
	buf = append(buf, byte(vType))

	switch val := v.(type) {
	case nil:
	case string:
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		buf = append(buf, val...)
	case int:
		buf = binary.AppendVarint(buf, int64(val))
	case int32:
		buf = binary.AppendVarint(buf, int64(val))
	case int64:
		buf = binary.AppendVarint(buf, val)
	case float32:
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(val))
	case float64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(val))
	case bool:
		if val {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case time.Time:
		buf = binary.BigEndian.AppendUint64(buf, uint64(val.UnixNano()))
	case []byte:
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		buf = append(buf, val...)
	}
	return buf, nil
}

// DecodeValue reads one tagged value from data and returns it with the number
// of bytes consumed.
func DecodeValue(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty value")
	}
	vType := ValueType(data[0])
	rest := data[1:]

	switch vType {
	case TypeMissing:
		return nil, 1, nil
	case TypeString, TypeBytes:
		l, n := binary.Uvarint(rest)
		if n <= 0 || uint64(len(rest)-n) < l {
			return nil, 0, fmt.Errorf("truncated %v value", vType)
		}
		payload := rest[n : n+int(l)]
		if vType == TypeString {
			return string(payload), 1 + n + int(l), nil
		}
		b := make([]byte, l)
		copy(b, payload)
		return b, 1 + n + int(l), nil
	case TypeInt, TypeInt32, TypeInt64:
		i, n := binary.Varint(rest)
		if n <= 0 {
			return nil, 0, fmt.Errorf("truncated int value")
		}
		switch vType {
		case TypeInt:
			return int(i), 1 + n, nil
		case TypeInt32:
			return int32(i), 1 + n, nil
		}
		return i, 1 + n, nil
	case TypeFloat32:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("float32 value must be 4 bytes, got %d", len(rest))
		}
		return math.Float32frombits(binary.BigEndian.Uint32(rest)), 5, nil
	case TypeFloat64:
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("float value must be 8 bytes, got %d", len(rest))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(rest)), 9, nil
	case TypeBool:
		if len(rest) < 1 {
			return nil, 0, fmt.Errorf("bool value must be 1 byte")
		}
		return rest[0] != 0, 2, nil
	case TypeTime:
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("time value must be 8 bytes, got %d", len(rest))
		}
		return time.Unix(0, int64(binary.BigEndian.Uint64(rest))).UTC(), 9, nil
	default:
		return nil, 0, fmt.Errorf("unknown value type: %v", vType)
	}
}

// AppendRow appends the binary form of a row: key, cell count, cells.
func AppendRow(buf []byte, row Row) ([]byte, error) {
	buf = binary.AppendUvarint(buf, uint64(len(row.Key)))
	buf = append(buf, row.Key...)
	buf = binary.AppendUvarint(buf, uint64(len(row.Values)))
	var err error
	for _, v := range row.Values {
		if buf, err = AppendValue(buf, v); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// DecodeRow is the inverse of AppendRow.
func DecodeRow(data []byte) (Row, error) {
	l, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < l {
		return Row{}, fmt.Errorf("truncated row key")
	}
	key := RowKey(data[n : n+int(l)])
	data = data[n+int(l):]

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return Row{}, fmt.Errorf("truncated row arity")
	}
	data = data[n:]

	values := make([]Value, count)
	for i := range values {
		v, used, err := DecodeValue(data)
		if err != nil {
			return Row{}, fmt.Errorf("cell %d of row %s: %w", i, key, err)
		}
		values[i] = v
		data = data[used:]
	}
	return Row{Key: key, Values: values}, nil
}
