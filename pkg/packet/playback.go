package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrScriptExhausted = errors.New("playback script exhausted")
	ErrScriptMismatch  = errors.New("command does not match recorded traffic")
)

// Exchange is one recorded command together with its response data.
type Exchange struct {
	Opcode   byte
	Payload  []byte
	Response []byte
}

// Playback replays recorded instrument traffic. It implements Channel
// and fails when the commands it receives diverge from the script.
// Used to run driver tests without hardware attached.
type Playback struct {
	script  []Exchange
	pos     int
	pending []byte
}

func NewPlayback(script []Exchange) *Playback {
	return &Playback{script: script}
}

func (p *Playback) Send(opcode byte, payload []byte) error {
	if p.pos >= len(p.script) {
		return fmt.Errorf("%w: command 0x%02x", ErrScriptExhausted, opcode)
	}

	e := p.script[p.pos]
	p.pos++

	if e.Opcode != opcode {
		return fmt.Errorf("%w: got 0x%02x, recorded 0x%02x", ErrScriptMismatch, opcode, e.Opcode)
	}
	if e.Payload != nil && !bytes.Equal(e.Payload, payload) {
		return fmt.Errorf("%w: payload of command 0x%02x", ErrScriptMismatch, opcode)
	}

	p.pending = e.Response
	return nil
}

func (p *Playback) Receive(n int) ([]byte, error) {
	if n > len(p.pending) {
		return nil, fmt.Errorf("%w: want %d bytes, %d recorded", ErrShortResponse, n, len(p.pending))
	}
	b := p.pending[:n]
	p.pending = p.pending[n:]
	return b, nil
}

func (p *Playback) ReceiveScalar(width int) (uint32, error) {
	if width != 1 && width != 2 && width != 4 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	b, err := p.Receive(width)
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

// Done reports whether the whole script has been consumed.
func (p *Playback) Done() error {
	if p.pos != len(p.script) {
		return fmt.Errorf("%d of %d recorded exchanges not replayed", len(p.script)-p.pos, len(p.script))
	}
	return nil
}

// Recorder wraps a live Channel and records the traffic passing through
// it. The recorded exchanges can be fed back into a Playback.
type Recorder struct {
	Channel
	Log []Exchange
}

func NewRecorder(ch Channel) *Recorder {
	return &Recorder{Channel: ch}
}

func (r *Recorder) Send(opcode byte, payload []byte) error {
	if err := r.Channel.Send(opcode, payload); err != nil {
		return err
	}
	r.Log = append(r.Log, Exchange{Opcode: opcode, Payload: append([]byte(nil), payload...)})
	return nil
}

func (r *Recorder) Receive(n int) ([]byte, error) {
	b, err := r.Channel.Receive(n)
	if err != nil {
		return nil, err
	}
	r.record(b)
	return b, nil
}

func (r *Recorder) ReceiveScalar(width int) (uint32, error) {
	v, err := r.Channel.ReceiveScalar(width)
	if err != nil {
		return 0, err
	}

	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	r.record(b[:width])
	return v, nil
}

func (r *Recorder) record(b []byte) {
	if len(r.Log) == 0 {
		return
	}
	last := &r.Log[len(r.Log)-1]
	last.Response = append(last.Response, b...)
}
