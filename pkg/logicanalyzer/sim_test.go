package logicanalyzer

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/wavicles/pslab-fossasia/pkg/protocol"
)

// simDevice stands in for the instrument firmware. All four inputs see
// the same free-running square wave; captures are timed against the
// wall clock so the polling lifecycle behaves like real hardware.
type simDevice struct {
	freq   float64 // square wave frequency in Hz
	duty   float64 // high fraction of the period
	states byte    // instantaneous level mask served by OpGetStates

	trigger byte

	events    int
	prescaler int
	inputs    []int
	edges     [][]float64 // qualifying event times in µs per configured channel

	armedAt   time.Time
	stoppedAt float64 // elapsed µs at stop, -1 while not stopped

	counterAt time.Time

	pending []byte
}

func newSim(freq, duty float64) *simDevice {
	return &simDevice{freq: freq, duty: duty, states: 0x0f, trigger: protocol.TriggerDisabled, stoppedAt: -1}
}

func (s *simDevice) Send(opcode byte, payload []byte) error {
	switch opcode {
	case protocol.OpConfigureTrigger:
		s.trigger = payload[1]

	case protocol.OpConfigureCapture:
		n := int(payload[0])
		s.events = int(binary.LittleEndian.Uint16(payload[1:3]))
		s.inputs = s.inputs[:0]
		s.edges = s.edges[:0]
		for i := 0; i < n; i++ {
			input := int(payload[3+2*i])
			code := payload[4+2*i]
			s.inputs = append(s.inputs, input)
			s.edges = append(s.edges, s.qualifyingEdges(code))
		}
		s.prescaler = int(payload[3+2*n])

	case protocol.OpArmCapture:
		s.armedAt = time.Now()
		s.stoppedAt = -1

	case protocol.OpCaptureProgress:
		s.respondScalar(uint32(s.count(0)), 2)

	case protocol.OpStopCapture:
		s.stoppedAt = s.elapsed()
		for i := range s.edges {
			s.respondScalar(uint32(s.count(i)), 2)
		}

	case protocol.OpFetchSamples:
		input := int(payload[0])
		count := int(binary.LittleEndian.Uint16(payload[1:3]))
		idx := -1
		for i, in := range s.inputs {
			if in == input {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("fetch from unconfigured input %d", input)
		}
		tick := float64(Prescalers[s.prescaler]) / ClockRate * 1e6
		for _, t := range s.edges[idx][:count] {
			s.respondScalar(uint32(math.Round(t/tick)), 4)
		}

	case protocol.OpInitialStates:
		if s.initialHigh() {
			s.respondScalar(0x0f, 1)
		} else {
			s.respondScalar(0x00, 1)
		}

	case protocol.OpGetStates:
		s.respondScalar(uint32(s.states), 1)

	case protocol.OpStartCounter:
		s.counterAt = time.Now()

	case protocol.OpReadCounter:
		pulses := time.Since(s.counterAt).Seconds() * s.freq
		s.respondScalar(uint32(pulses), 4)

	default:
		return fmt.Errorf("unknown opcode 0x%02x", opcode)
	}

	return nil
}

func (s *simDevice) Receive(n int) ([]byte, error) {
	if n > len(s.pending) {
		return nil, fmt.Errorf("want %d bytes, %d pending", n, len(s.pending))
	}
	b := s.pending[:n]
	s.pending = s.pending[n:]
	return b, nil
}

func (s *simDevice) ReceiveScalar(width int) (uint32, error) {
	b, err := s.Receive(width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint32(b[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(b)), nil
	default:
		return binary.LittleEndian.Uint32(b), nil
	}
}

func (s *simDevice) respondScalar(v uint32, width int) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	s.pending = append(s.pending, b[:width]...)
}

func (s *simDevice) initialHigh() bool {
	return s.trigger == protocol.TriggerRising
}

// qualifyingEdges generates the capture buffer content for one input:
// the times of the edges a capture unit in the given mode would latch,
// filled up to the per-channel buffer region.
func (s *simDevice) qualifyingEdges(code byte) []float64 {
	period := 1e6 / s.freq
	level := s.initialHigh()
	t := 0.0
	rising := 0

	var out []float64
	for len(out) < protocol.MaxEvents {
		var isRising bool
		if level {
			t += s.duty * period
			isRising = false
		} else {
			t += (1 - s.duty) * period
			isRising = true
		}
		level = !level

		if isRising {
			rising++
		}

		switch code {
		case 1: // any
			out = append(out, t)
		case 2: // falling
			if !isRising {
				out = append(out, t)
			}
		case 3: // rising
			if isRising {
				out = append(out, t)
			}
		case 4: // every fourth rising
			if isRising && rising%4 == 0 {
				out = append(out, t)
			}
		case 5: // every sixteenth rising
			if isRising && rising%16 == 0 {
				out = append(out, t)
			}
		}
	}
	return out
}

// elapsed returns the capture time in µs, frozen at the stop instant
// once the capture was stopped.
func (s *simDevice) elapsed() float64 {
	e := float64(time.Since(s.armedAt).Microseconds())
	if s.stoppedAt >= 0 && s.stoppedAt < e {
		e = s.stoppedAt
	}
	return e
}

// count returns the events recorded so far on the given configured
// channel. The buffer keeps filling past the requested event count
// until it is full or the capture is stopped.
func (s *simDevice) count(channel int) int {
	if channel >= len(s.edges) {
		return 0
	}
	e := s.elapsed()
	n := 0
	for _, t := range s.edges[channel] {
		if t > e {
			break
		}
		n++
	}
	return n
}
