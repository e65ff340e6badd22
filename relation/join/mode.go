package join

import (
	"fmt"
	"strings"
)

// Side is one of the two join inputs.
type Side int

const (
	Left Side = iota
	Right
)

// Other returns the opposite side.
func (s Side) Other() Side { return 1 - s }

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// sides holds one value per join input, indexed by Side.
type sides[T any] [2]T

// Mode is a join semantics, defined entirely by which row classes it retains.
type Mode int

const (
	Inner Mode = iota
	LeftOuter
	RightOuter
	FullOuter
	LeftAnti
	RightAnti
	FullAnti
	Empty
)

// modeTable lists the retain flags of every mode: matches, left unmatched,
// right unmatched.
var modeTable = [...]struct {
	name                 string
	matched, left, right bool
}{
	Inner:      {"inner", true, false, false},
	LeftOuter:  {"left-outer", true, true, false},
	RightOuter: {"right-outer", true, false, true},
	FullOuter:  {"full-outer", true, true, true},
	LeftAnti:   {"left-anti", false, true, false},
	RightAnti:  {"right-anti", false, false, true},
	FullAnti:   {"full-anti", false, true, true},
	Empty:      {"empty", false, false, false},
}

// Modes lists every join mode.
var Modes = []Mode{Inner, LeftOuter, RightOuter, FullOuter, LeftAnti, RightAnti, FullAnti, Empty}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeTable) {
		return modeTable[m].name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// RetainMatched reports whether matched rows are output.
func (m Mode) RetainMatched() bool { return modeTable[m].matched }

// RetainUnmatched reports whether unmatched rows of the given side are output.
func (m Mode) RetainUnmatched(s Side) bool {
	if s == Left {
		return modeTable[m].left
	}
	return modeTable[m].right
}

// ModeFor returns the mode with the given retain flags.
func ModeFor(matched, leftUnmatched, rightUnmatched bool) Mode {
	for _, m := range Modes {
		e := modeTable[m]
		if e.matched == matched && e.left == leftUnmatched && e.right == rightUnmatched {
			return m
		}
	}
	panic("unreachable: every flag combination has a mode")
}

// ParseMode accepts the names printed by String, case-insensitively; "_" may
// replace "-".
func ParseMode(s string) (Mode, error) {
	s = strings.ReplaceAll(strings.ToLower(s), "_", "-")
	for _, m := range Modes {
		if modeTable[m].name == s {
			return m, nil
		}
	}
	return Inner, fmt.Errorf("unknown join mode %q", s)
}

// OutputOrder is the row order of join outputs.
type OutputOrder int

const (
	// Arbitrary makes no ordering guarantee.
	Arbitrary OutputOrder = iota
	// Deterministic orders matches by probe row, then hash row, and unmatched
	// rows by their input order. Reproducible, but tied to which side probes.
	Deterministic
	// LeftRight orders matches by left row, then right row, followed by left
	// unmatched rows and then right unmatched rows, each in input order.
	LeftRight
)

var outputOrderNames = [...]string{"arbitrary", "deterministic", "left-right"}

func (o OutputOrder) String() string {
	if o >= 0 && int(o) < len(outputOrderNames) {
		return outputOrderNames[o]
	}
	return fmt.Sprintf("OutputOrder(%d)", int(o))
}

// ParseOutputOrder accepts the names printed by String.
func ParseOutputOrder(s string) (OutputOrder, error) {
	s = strings.ReplaceAll(strings.ToLower(s), "_", "-")
	for i, name := range outputOrderNames {
		if name == s {
			return OutputOrder(i), nil
		}
	}
	return Arbitrary, fmt.Errorf("unknown output order %q", s)
}
