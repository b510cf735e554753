package port

import (
	"errors"
	"testing"
)

func TestLookup(t *testing.T) {
	for i, name := range []string{"ID1", "ID2", "ID3", "ID4"} {
		input, err := Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
			continue
		}
		if int(input) != i {
			t.Errorf("Lookup(%q) = %d, want %d", name, input, i)
		}
		if input.String() != name {
			t.Errorf("String() = %q, want %q", input.String(), name)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("SQ1"); !errors.Is(err, ErrUnknownInput) {
		t.Errorf("got %v, want ErrUnknownInput", err)
	}
}

func TestEventTypeString(t *testing.T) {
	if got := RisingEdge.String(); got != "rising" {
		t.Errorf("RisingEdge.String() = %q, want %q", got, "rising")
	}
	if got := FallingEdge.String(); got != "falling" {
		t.Errorf("FallingEdge.String() = %q, want %q", got, "falling")
	}
	if got := EventType(7).String(); got != "EventType(7)" {
		t.Errorf("EventType(7).String() = %q", got)
	}
}

func TestStateTypeString(t *testing.T) {
	for state, want := range map[StateType]string{High: "high", Low: "low", Invalid: "invalid"} {
		if got := state.String(); got != want {
			t.Errorf("StateType(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestFirstInputs(t *testing.T) {
	got := FirstInputs(2)
	if len(got) != 2 || got[0] != "ID1" || got[1] != "ID2" {
		t.Errorf("FirstInputs(2) = %v", got)
	}
	if n := len(FirstInputs(9)); n != NumInputs {
		t.Errorf("FirstInputs(9) has %d names, want %d", n, NumInputs)
	}
	if n := len(FirstInputs(-1)); n != 0 {
		t.Errorf("FirstInputs(-1) has %d names, want 0", n)
	}
}
