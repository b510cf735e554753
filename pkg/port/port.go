// Package port holds the definition of the instrument's digital inputs
package port

import (
	"errors"
	"fmt"
)

var ErrUnknownInput = errors.New("unknown digital input")

// DigitalInput identifies one of the four logic inputs ID1..ID4.
type DigitalInput int

const (
	ID1 DigitalInput = iota
	ID2
	ID3
	ID4

	// NumInputs is the number of digital inputs on the instrument.
	NumInputs = 4
)

var inputNames = [NumInputs]string{"ID1", "ID2", "ID3", "ID4"}

func (d DigitalInput) String() string {
	if d < 0 || int(d) >= NumInputs {
		return fmt.Sprintf("DigitalInput(%d)", int(d))
	}
	return inputNames[d]
}

// Lookup resolves an input name ("ID1".."ID4") to its DigitalInput.
func Lookup(name string) (DigitalInput, error) {
	for i, n := range inputNames {
		if n == name {
			return DigitalInput(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInput, name)
}

// FirstInputs returns the names of the first n digital inputs.
// n is clamped to the available inputs.
func FirstInputs(n int) []string {
	if n > NumInputs {
		n = NumInputs
	}
	if n < 0 {
		n = 0
	}
	return append([]string(nil), inputNames[:n]...)
}

// EventType indicates the type of change to the line level.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates a low to high transition.
	RisingEdge
	// FallingEdge indicates a high to low transition.
	FallingEdge
)

func (e EventType) String() string {
	switch e {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	}
	return fmt.Sprintf("EventType(%d)", int(e))
}

type StateType int

const (
	// High indicates a logical 1.
	High StateType = 1
	// Low indicates a logical 0.
	Low StateType = 0
	// Invalid indicates an unknown or invalid state.
	Invalid StateType = -1
)

func (s StateType) String() string {
	switch s {
	case High:
		return "high"
	case Low:
		return "low"
	}
	return "invalid"
}
