package logicanalyzer

import "fmt"

// EdgeMode selects which edges of an input the capture hardware latches.
// The multi-edge modes let the hardware consume several physical edges
// per recorded event, which extends the observable time span without a
// coarser prescaler.
type EdgeMode int

const (
	// ModeAny latches every edge.
	ModeAny EdgeMode = iota
	// ModeRising latches every rising edge.
	ModeRising
	// ModeFalling latches every falling edge.
	ModeFalling
	// ModeFourRising latches every fourth rising edge.
	ModeFourRising
	// ModeSixteenRising latches every sixteenth rising edge.
	ModeSixteenRising
)

var modeNames = map[EdgeMode]string{
	ModeAny:           "any",
	ModeRising:        "rising",
	ModeFalling:       "falling",
	ModeFourRising:    "four rising",
	ModeSixteenRising: "sixteen rising",
}

func (m EdgeMode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("EdgeMode(%d)", int(m))
}

// ParseEdgeMode resolves a symbolic mode name. Mode strings only enter
// the system at the configuration and web boundaries; everything below
// works on the validated enumeration.
func ParseEdgeMode(name string) (EdgeMode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown edge mode %q", ErrInvalidArgument, name)
}

// encode maps a mode to its hardware edge-selection code and edge
// multiplier, the number of physical edges consumed per recorded event.
func (m EdgeMode) encode() (code byte, multiplier int, err error) {
	switch m {
	case ModeAny:
		return 1, 1, nil
	case ModeFalling:
		return 2, 1, nil
	case ModeRising:
		return 3, 1, nil
	case ModeFourRising:
		return 4, 4, nil
	case ModeSixteenRising:
		return 5, 16, nil
	}
	return 0, 0, fmt.Errorf("%w: unknown edge mode %d", ErrInvalidArgument, int(m))
}

// Multiplier returns the number of physical edges per recorded event.
func (m EdgeMode) Multiplier() int {
	_, mul, err := m.encode()
	if err != nil {
		return 0
	}
	return mul
}

// rising reports whether the mode latches rising edges only.
func (m EdgeMode) rising() bool {
	return m == ModeRising || m == ModeFourRising || m == ModeSixteenRising
}
