package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wavicles/pslab-fossasia/pkg/protocol"
)

// duplex is an in-memory stand-in for the serial port: reads are served
// from a preloaded buffer, writes are collected for inspection.
type duplex struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (d *duplex) Read(p []byte) (int, error)  { return d.in.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.out.Write(p) }
func (d *duplex) Close() error                { return nil }

func TestSendFraming(t *testing.T) {
	d := &duplex{}
	d.in.WriteByte(protocol.Ack)
	h := Connect(d)

	if err := h.Send(protocol.OpConfigureTrigger, []byte{0x02, 0x03}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []byte{
		protocol.Header,
		protocol.OpConfigureTrigger,
		0x02, 0x00, // payload length
		0x02, 0x03, // payload
		0x01 ^ 0x02 ^ 0x00 ^ 0x02 ^ 0x03, // checksum
	}
	if !bytes.Equal(d.out.Bytes(), want) {
		t.Errorf("frame = % x, want % x", d.out.Bytes(), want)
	}
}

func TestSendNack(t *testing.T) {
	d := &duplex{}
	d.in.WriteByte(0xff)
	h := Connect(d)

	if err := h.Send(protocol.OpArmCapture, nil); !errors.Is(err, ErrNack) {
		t.Errorf("got %v, want ErrNack", err)
	}
}

func TestReceiveShort(t *testing.T) {
	d := &duplex{}
	d.in.Write([]byte{0x01, 0x02})
	h := Connect(d)

	if _, err := h.Receive(4); !errors.Is(err, ErrShortResponse) {
		t.Errorf("got %v, want ErrShortResponse", err)
	}
}

func TestReceiveScalar(t *testing.T) {
	d := &duplex{}
	d.in.Write([]byte{0x2a, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12})
	h := Connect(d)

	for _, tc := range []struct {
		width int
		want  uint32
	}{
		{1, 0x2a},
		{2, 0x1234},
		{4, 0x12345678},
	} {
		v, err := h.ReceiveScalar(tc.width)
		if err != nil {
			t.Fatalf("ReceiveScalar(%d): %v", tc.width, err)
		}
		if v != tc.want {
			t.Errorf("ReceiveScalar(%d) = 0x%x, want 0x%x", tc.width, v, tc.want)
		}
	}

	if _, err := h.ReceiveScalar(3); !errors.Is(err, ErrInvalidWidth) {
		t.Errorf("got %v, want ErrInvalidWidth", err)
	}
}

func TestPlayback(t *testing.T) {
	p := NewPlayback([]Exchange{
		{Opcode: protocol.OpGetStates, Response: []byte{0x0f}},
		{Opcode: protocol.OpCaptureProgress, Response: []byte{0xf4, 0x01}},
	})

	if err := p.Send(protocol.OpGetStates, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if v, err := p.ReceiveScalar(1); err != nil || v != 0x0f {
		t.Fatalf("ReceiveScalar = %v, %v, want 0x0f", v, err)
	}

	if err := p.Send(protocol.OpCaptureProgress, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if v, err := p.ReceiveScalar(2); err != nil || v != 500 {
		t.Fatalf("ReceiveScalar = %v, %v, want 500", v, err)
	}

	if err := p.Done(); err != nil {
		t.Errorf("Done: %v", err)
	}
	if err := p.Send(protocol.OpGetStates, nil); !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("got %v, want ErrScriptExhausted", err)
	}
}

func TestPlaybackMismatch(t *testing.T) {
	p := NewPlayback([]Exchange{
		{Opcode: protocol.OpGetStates, Payload: []byte{}, Response: []byte{0x0f}},
	})

	if err := p.Send(protocol.OpArmCapture, nil); !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("got %v, want ErrScriptMismatch", err)
	}
}

func TestRecorderBuildsReplayableScript(t *testing.T) {
	live := NewPlayback([]Exchange{
		{Opcode: protocol.OpGetStates, Response: []byte{0x05}},
	})
	rec := NewRecorder(live)

	if err := rec.Send(protocol.OpGetStates, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := rec.ReceiveScalar(1); err != nil {
		t.Fatalf("ReceiveScalar: %v", err)
	}

	replay := NewPlayback(rec.Log)
	if err := replay.Send(protocol.OpGetStates, nil); err != nil {
		t.Fatalf("replayed Send: %v", err)
	}
	v, err := replay.ReceiveScalar(1)
	if err != nil || v != 0x05 {
		t.Fatalf("replayed ReceiveScalar = %v, %v, want 0x05", v, err)
	}
	if err := replay.Done(); err != nil {
		t.Errorf("Done: %v", err)
	}
}
