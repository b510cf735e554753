// Package logicanalyzer drives the instrument's logic-analyzer peripheral:
// it programs per-input edge capture, runs the capture lifecycle over the
// command channel and converts raw timer samples into calibrated
// microsecond timestamps and timing measurements.
package logicanalyzer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/womat/debug"

	"github.com/wavicles/pslab-fossasia/pkg/packet"
	"github.com/wavicles/pslab-fossasia/pkg/port"
	"github.com/wavicles/pslab-fossasia/pkg/protocol"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrTimingUnattainable = errors.New("timing not attainable with the available prescalers")
	ErrHardwareBusy       = errors.New("a capture is already running")
	ErrTimeout            = errors.New("timed out waiting for capture")
)

const (
	// defaultTimeout bounds blocking waits when the caller gives none.
	defaultTimeout = time.Second
	// pollInterval is the pause between progress queries while waiting
	// for a capture to complete.
	pollInterval = 2 * time.Millisecond
)

// stateType represents the state of the capture session.
type stateType int

const (
	// idle: the hardware capture resource is free.
	idle stateType = iota
	// configured: a capture is programmed but not armed.
	configured
	// running: the hardware is capturing; the buffer and timer are owned
	// by this session until fetch or stop.
	running
)

// Trigger is the reference edge that defines a capture's time origin.
// It persists across captures until reconfigured.
type Trigger struct {
	Channel   string
	Direction port.EventType
	Enabled   bool
}

// CaptureConfig describes one capture request.
type CaptureConfig struct {
	// Channels are the input names to capture, 1 to 4.
	Channels []string
	// Events is the number of events to record per channel,
	// 1 to protocol.MaxEvents. Zero means protocol.MaxEvents.
	Events int
	// Modes is the edge-selection mode per channel. Empty means every
	// channel captures any edge.
	Modes []EdgeMode
	// E2ETime is the largest expected spacing between two events in
	// seconds. It drives the prescaler choice; zero selects the finest
	// prescaler.
	E2ETime float64
	// Timeout bounds blocking waits for this capture. Zero means one
	// second.
	Timeout time.Duration
}

// LogicAnalyzer owns the instrument's single capture resource. It is
// not safe for concurrent use; callers serialize access.
type LogicAnalyzer struct {
	ch    packet.Channel
	state stateType

	// programmed capture, valid from configure until the next configure
	channels     []port.DigitalInput
	modes        []EdgeMode
	events       int
	prescalerIdx int
	timeout      time.Duration

	trigger Trigger

	// initial holds the input levels latched at the trigger instant,
	// read back with the sample data.
	initial [port.NumInputs]bool
}

// New returns a LogicAnalyzer talking over the given command channel.
func New(ch packet.Channel) *LogicAnalyzer {
	return &LogicAnalyzer{ch: ch}
}

// ConfigureTrigger sets the reference edge that starts the next
// captures.
func (la *LogicAnalyzer) ConfigureTrigger(channel string, direction port.EventType) error {
	input, err := port.Lookup(channel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var code byte
	switch direction {
	case port.RisingEdge:
		code = protocol.TriggerRising
	case port.FallingEdge:
		code = protocol.TriggerFalling
	default:
		return fmt.Errorf("%w: trigger direction must be a rising or falling edge, got %v",
			ErrInvalidArgument, direction)
	}

	if err := la.ch.Send(protocol.OpConfigureTrigger, []byte{byte(input), code}); err != nil {
		return err
	}

	la.trigger = Trigger{Channel: channel, Direction: direction, Enabled: true}
	return nil
}

// Capture runs a complete blocking capture and returns one timestamp
// sequence per requested channel, in microseconds relative to the
// trigger edge.
func (la *LogicAnalyzer) Capture(cfg CaptureConfig) ([][]float64, error) {
	if err := la.StartCapture(cfg); err != nil {
		return nil, err
	}
	return la.FetchData()
}

// StartCapture programs and arms a capture without waiting for it.
// Observe it with GetProgress and collect it with FetchData or Stop.
func (la *LogicAnalyzer) StartCapture(cfg CaptureConfig) error {
	if la.state == running {
		return ErrHardwareBusy
	}

	if err := la.configure(cfg); err != nil {
		return err
	}

	if err := la.ch.Send(protocol.OpArmCapture, nil); err != nil {
		return err
	}
	la.state = running

	debug.DebugLog.Printf("capture armed: %d channels, %d events, prescaler %d",
		len(la.channels), la.events, Prescalers[la.prescalerIdx])
	return nil
}

// configure validates the request and programs the capture hardware.
// All validation happens before any command is sent.
func (la *LogicAnalyzer) configure(cfg CaptureConfig) error {
	if cfg.Events == 0 {
		cfg.Events = protocol.MaxEvents
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = make([]EdgeMode, len(cfg.Channels))
	}

	if len(cfg.Channels) < 1 || len(cfg.Channels) > port.NumInputs {
		return fmt.Errorf("%w: channel count must be 1-%d, got %d",
			ErrInvalidArgument, port.NumInputs, len(cfg.Channels))
	}
	if len(cfg.Modes) != len(cfg.Channels) {
		return fmt.Errorf("%w: %d modes for %d channels",
			ErrInvalidArgument, len(cfg.Modes), len(cfg.Channels))
	}
	if cfg.Events < 1 || cfg.Events > protocol.MaxEvents {
		return fmt.Errorf("%w: events must be 1-%d, got %d",
			ErrInvalidArgument, protocol.MaxEvents, cfg.Events)
	}

	channels := make([]port.DigitalInput, len(cfg.Channels))
	for i, name := range cfg.Channels {
		input, err := port.Lookup(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		channels[i] = input
	}

	codes := make([]byte, len(cfg.Modes))
	for i, m := range cfg.Modes {
		code, _, err := m.encode()
		if err != nil {
			return err
		}
		codes[i] = code
	}

	prescalerIdx := 0
	if cfg.E2ETime > 0 {
		var err error
		if prescalerIdx, err = selectPrescaler(cfg.E2ETime * 1e6); err != nil {
			return err
		}
	}

	payload := make([]byte, 0, 4+2*len(channels))
	payload = append(payload, byte(len(channels)), byte(cfg.Events), byte(cfg.Events>>8))
	for i := range channels {
		payload = append(payload, byte(channels[i]), codes[i])
	}
	payload = append(payload, byte(prescalerIdx))

	if err := la.ch.Send(protocol.OpConfigureCapture, payload); err != nil {
		return err
	}

	la.channels = channels
	la.modes = append(la.modes[:0], cfg.Modes...)
	la.events = cfg.Events
	la.prescalerIdx = prescalerIdx
	la.timeout = cfg.Timeout
	la.state = configured
	return nil
}

// GetProgress returns the number of events captured so far on the
// reference channel. The progress register stays readable after Stop,
// so the count reached by a truncated capture can be inspected.
func (la *LogicAnalyzer) GetProgress() (int, error) {
	if err := la.ch.Send(protocol.OpCaptureProgress, nil); err != nil {
		return 0, err
	}
	n, err := la.ch.ReceiveScalar(2)
	return int(n), err
}

// FetchData waits for the running capture to complete, then decodes and
// returns the captured timestamps. On timeout the capture is left
// running; it can still be collected later or aborted with Stop.
func (la *LogicAnalyzer) FetchData() ([][]float64, error) {
	if la.state != running {
		return nil, fmt.Errorf("%w: no capture in progress", ErrInvalidArgument)
	}

	err := waitFor(la.timeout, pollInterval, func() (bool, error) {
		n, err := la.GetProgress()
		if err != nil {
			return false, err
		}
		debug.TraceLog.Printf("capture progress: %d of %d", n, la.events)
		return n >= la.events, nil
	})
	if err != nil {
		return nil, err
	}

	return la.fetch(la.events)
}

// Stop aborts the running capture and returns the events recorded up to
// that instant, truncated to the shortest channel.
func (la *LogicAnalyzer) Stop() ([][]float64, error) {
	if la.state != running {
		return nil, fmt.Errorf("%w: no capture in progress", ErrInvalidArgument)
	}

	if err := la.ch.Send(protocol.OpStopCapture, nil); err != nil {
		return nil, err
	}

	count := -1
	for range la.channels {
		n, err := la.ch.ReceiveScalar(2)
		if err != nil {
			return nil, err
		}
		if count < 0 || int(n) < count {
			count = int(n)
		}
	}

	debug.DebugLog.Printf("capture stopped after %d events", count)
	return la.fetch(count)
}

// fetch reads count raw samples per channel plus the latched initial
// states, converts ticks to microseconds and releases the session.
func (la *LogicAnalyzer) fetch(count int) ([][]float64, error) {
	if err := la.ch.Send(protocol.OpInitialStates, nil); err != nil {
		return nil, err
	}
	mask, err := la.ch.ReceiveScalar(1)
	if err != nil {
		return nil, err
	}
	for i := range la.initial {
		la.initial[i] = mask>>i&1 == 1
	}

	tick := TickUs(la.prescalerIdx)
	data := make([][]float64, len(la.channels))

	for i, input := range la.channels {
		payload := []byte{byte(input), byte(count), byte(count >> 8)}
		if err := la.ch.Send(protocol.OpFetchSamples, payload); err != nil {
			return nil, err
		}

		raw, err := la.ch.Receive(4 * count)
		if err != nil {
			return nil, err
		}

		// The firmware accumulates the 16 bit capture timer into 32 bit
		// cumulative tick counts, one per qualifying edge.
		timestamps := make([]float64, count)
		for j := range timestamps {
			timestamps[j] = float64(binary.LittleEndian.Uint32(raw[4*j:])) * tick
		}
		data[i] = timestamps
	}

	la.state = idle
	return data, nil
}

// waitFor polls done until it reports true, fails, or timeout elapses.
// A timeout does not touch the hardware session: an externally observed
// capture keeps running and stays collectable.
func waitFor(timeout, interval time.Duration, done func() (bool, error)) error {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		time.Sleep(interval)
	}
}
