package relation

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// ComparisonMode selects how two join cells are tested for equality.
type ComparisonMode int

const (
	// Strict requires equal types and equal values.
	Strict ComparisonMode = iota
	// AsString compares the string forms of both cells.
	AsString
	// NumericAsLong compares all integer kinds as int64; other types are strict.
	NumericAsLong
)

var comparisonModeNames = [...]string{"strict", "as-string", "numeric-as-long"}

func (m ComparisonMode) String() string {
	if int(m) < len(comparisonModeNames) {
		return comparisonModeNames[m]
	}
	return fmt.Sprintf("ComparisonMode(%d)", int(m))
}

// ParseComparisonMode accepts the names printed by String.
func ParseComparisonMode(s string) (ComparisonMode, error) {
	for i, name := range comparisonModeNames {
		if strings.EqualFold(s, name) {
			return ComparisonMode(i), nil
		}
	}
	return Strict, fmt.Errorf("unknown comparison mode %q", s)
}

// Normalize maps a value to the representative that is compared strictly
// under this mode. Missing stays missing.
func (m ComparisonMode) Normalize(v Value) Value {
	if v == nil {
		return nil
	}
	switch m {
	case AsString:
		return String(v)
	case NumericAsLong:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		}
	}
	return v
}

// Equal tests two cells for equality under the mode. Missing values are never
// equal to anything, including another missing value.
func (m ComparisonMode) Equal(a, b Value) bool {
	if a == nil || b == nil {
		return false
	}
	return ValuesEqual(m.Normalize(a), m.Normalize(b))
}

// ValuesEqual checks if two values have the same type and value. Only the
// types listed on Value are supported.
func ValuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case string, int, int32, int64, float32, float64, bool:
		return a == b
	}
	// values outside the supported types never compare equal
	return false
}

// CompareValues orders two values of the same kind: -1, 0 or 1. Missing sorts
// first; values of different kinds compare by their string forms.
func CompareValues(left, right Value) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	switch l := left.(type) {
	case int:
		if r, ok := right.(int); ok {
			return compareInt64s(int64(l), int64(r))
		}
	case int32:
		if r, ok := right.(int32); ok {
			return compareInt64s(int64(l), int64(r))
		}
	case int64:
		if r, ok := right.(int64); ok {
			return compareInt64s(l, r)
		}
	case float64:
		if r, ok := right.(float64); ok {
			return compareFloats(l, r)
		}
	case float32:
		if r, ok := right.(float32); ok {
			return compareFloats(float64(l), float64(r))
		}
	case bool:
		if r, ok := right.(bool); ok {
			if !l && r {
				return -1
			} else if l && !r {
				return 1
			}
			return 0
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			return l.Compare(r)
		}
	case []byte:
		if r, ok := right.([]byte); ok {
			return bytes.Compare(l, r)
		}
	}
	return strings.Compare(String(left), String(right))
}

func compareInt64s(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
