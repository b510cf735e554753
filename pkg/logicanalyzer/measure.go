package logicanalyzer

import (
	"fmt"
	"time"

	"github.com/wavicles/pslab-fossasia/pkg/port"
	"github.com/wavicles/pslab-fossasia/pkg/protocol"
)

// frequencyEvents is the number of rising edges captured by
// MeasureFrequency. The per-event spacing budget timeout/frequencyEvents
// drives the prescaler choice, so the whole capture fits the timeout.
const frequencyEvents = 16

// MeasureFrequency measures the frequency on one input in Hz by
// capturing rising edges and dividing the edge count by the spanned
// time. It claims the capture buffer for the duration of the call.
func (la *LogicAnalyzer) MeasureFrequency(channel string, timeout time.Duration) (float64, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	t, err := la.Capture(CaptureConfig{
		Channels: []string{channel},
		Events:   frequencyEvents,
		Modes:    []EdgeMode{ModeRising},
		E2ETime:  timeout.Seconds() / frequencyEvents,
		Timeout:  timeout,
	})
	if err != nil {
		return 0, err
	}

	ts := t[0]
	span := ts[len(ts)-1] - ts[0]
	if span <= 0 {
		return 0, fmt.Errorf("%w: edges %.3f µs apart are below the timer resolution",
			ErrTimingUnattainable, span)
	}

	return float64(len(ts)-1) / span * 1e6, nil
}

// MeasureFrequencyCounter measures the frequency on one input with the
// dedicated hardware edge counter, gated by the host for the given
// interval. Unlike MeasureFrequency it does not claim the capture
// buffer, so it can run alongside another capture.
func (la *LogicAnalyzer) MeasureFrequencyCounter(channel string, gate time.Duration) (float64, error) {
	n, err := la.CountPulses(channel, gate)
	if err != nil {
		return 0, err
	}
	return float64(n) / gate.Seconds(), nil
}

// CountPulses gates the free-running edge counter on one input for
// approximately interval of wall-clock time and returns the count.
// The gate boundaries are host commands, so the result is only as
// accurate as the transport round trip.
func (la *LogicAnalyzer) CountPulses(channel string, interval time.Duration) (int, error) {
	input, err := port.Lookup(channel)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidArgument, interval)
	}

	if err := la.ch.Send(protocol.OpStartCounter, []byte{byte(input)}); err != nil {
		return 0, err
	}

	time.Sleep(interval)

	if err := la.ch.Send(protocol.OpReadCounter, nil); err != nil {
		return 0, err
	}
	n, err := la.ch.ReceiveScalar(4)
	return int(n), err
}

// MeasureInterval measures the time in microseconds between the first
// edge matching modeA on chanA and the first edge matching modeB on
// chanB after the configured trigger fires. For the multi-edge modes
// the matched instant is the Nth physical edge given by the mode's
// multiplier.
func (la *LogicAnalyzer) MeasureInterval(chanA, chanB string, modeA, modeB EdgeMode, timeout time.Duration) (float64, error) {
	if chanA != chanB {
		t, err := la.Capture(CaptureConfig{
			Channels: []string{chanA, chanB},
			Events:   1,
			Modes:    []EdgeMode{modeA, modeB},
			Timeout:  timeout,
		})
		if err != nil {
			return 0, err
		}
		return t[1][0] - t[0][0], nil
	}

	// One channel cannot capture two modes at once. Capture every edge
	// instead and pick the matching edges out of the sequence, using the
	// level latched at the trigger to tell rising from falling.
	events := 2 * (modeA.Multiplier() + modeB.Multiplier() + 1)
	if events < 34 {
		events = 34
	}

	t, err := la.Capture(CaptureConfig{
		Channels: []string{chanA},
		Events:   events,
		Modes:    []EdgeMode{ModeAny},
		Timeout:  timeout,
	})
	if err != nil {
		return 0, err
	}

	input, err := port.Lookup(chanA)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	initial := la.initial[input]

	t1, err := nthQualifying(t[0], modeA, initial, 1)
	if err != nil {
		return 0, err
	}

	// With equal modes the first match would be the same edge twice;
	// take the next qualifying edge for the second instant.
	n := 1
	if modeA == modeB {
		n = 2
	}
	t2, err := nthQualifying(t[0], modeB, initial, n)
	if err != nil {
		return 0, err
	}

	return t2 - t1, nil
}

// nthQualifying returns the instant of the nth event matching mode in a
// sequence of any-edge timestamps. initialHigh is the line level right
// after the trigger edge, which fixes the polarity of every edge in the
// sequence: the first edge leaves the initial level.
func nthQualifying(events []float64, mode EdgeMode, initialHigh bool, n int) (float64, error) {
	var idx int

	switch {
	case mode == ModeAny:
		idx = n - 1
	case mode.rising():
		first := 0
		if initialHigh {
			first = 1
		}
		idx = first + 2*(n*mode.Multiplier()-1)
	default: // falling
		first := 1
		if initialHigh {
			first = 0
		}
		idx = first + 2*(n*mode.Multiplier()-1)
	}

	if idx >= len(events) {
		return 0, fmt.Errorf("%w: edge %d of mode %q not in %d captured events",
			ErrInvalidArgument, n, mode, len(events))
	}
	return events[idx], nil
}

// MeasureDutyCycle measures the period in microseconds and the duty
// cycle of the signal on one input. The trigger is moved to the rising
// edge of the measured channel for the capture and restored afterwards.
func (la *LogicAnalyzer) MeasureDutyCycle(channel string, timeout time.Duration) (period, duty float64, err error) {
	previous := la.trigger
	if err := la.ConfigureTrigger(channel, port.RisingEdge); err != nil {
		return 0, 0, err
	}
	defer func() {
		if previous.Enabled {
			if e := la.ConfigureTrigger(previous.Channel, previous.Direction); e != nil && err == nil {
				err = e
			}
		}
	}()

	// The rising trigger is the period start; the next two edges are the
	// falling edge and the rising edge that closes the period.
	t, err := la.Capture(CaptureConfig{
		Channels: []string{channel},
		Events:   2,
		Modes:    []EdgeMode{ModeAny},
		Timeout:  timeout,
	})
	if err != nil {
		return 0, 0, err
	}

	period = t[0][1]
	if period <= 0 {
		return 0, 0, fmt.Errorf("%w: period below the timer resolution", ErrTimingUnattainable)
	}
	duty = t[0][0] / period
	return period, duty, nil
}

// GetStates reads the instantaneous logic level of all four inputs.
// This is a plain level read, not a capture.
func (la *LogicAnalyzer) GetStates() (map[string]port.StateType, error) {
	if err := la.ch.Send(protocol.OpGetStates, nil); err != nil {
		return nil, err
	}
	mask, err := la.ch.ReceiveScalar(1)
	if err != nil {
		return nil, err
	}

	states := make(map[string]port.StateType, port.NumInputs)
	for _, name := range port.FirstInputs(port.NumInputs) {
		input, _ := port.Lookup(name)
		states[name] = port.Low
		if mask>>input&1 == 1 {
			states[name] = port.High
		}
	}
	return states, nil
}

// GetXY reconstructs the waveform of the last capture: for every
// channel a boolean level per recorded edge, parallel to the unmodified
// timestamps. Any-edge channels alternate starting from the level
// latched at the trigger; rising-mode channels saw only high-going
// edges, falling-mode channels only low-going ones.
func (la *LogicAnalyzer) GetXY(timestamps [][]float64) (x [][]float64, y [][]bool, err error) {
	if len(timestamps) != len(la.channels) {
		return nil, nil, fmt.Errorf("%w: %d timestamp sequences for %d captured channels",
			ErrInvalidArgument, len(timestamps), len(la.channels))
	}

	x = make([][]float64, len(timestamps))
	y = make([][]bool, len(timestamps))

	for i, ts := range timestamps {
		x[i] = append([]float64(nil), ts...)
		levels := make([]bool, len(ts))

		switch mode := la.modes[i]; {
		case mode == ModeAny:
			level := la.initial[la.channels[i]]
			for j := range levels {
				levels[j] = level
				level = !level
			}
		case mode.rising():
			for j := range levels {
				levels[j] = true
			}
		default: // falling
			// all false, the zero value
		}
		y[i] = levels
	}

	return x, y, nil
}
