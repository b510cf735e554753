// Package packet is the command/response transport to the instrument firmware.
//
// The instrument is a USB CDC serial device. Every exchange is initiated by
// the host: a command frame is written, the device acknowledges it with a
// single ACK byte, and any response data is read afterwards with Receive or
// ReceiveScalar. The protocol is half duplex; there is no unsolicited traffic.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/womat/debug"
	"go.bug.st/serial"

	"github.com/wavicles/pslab-fossasia/pkg/protocol"
)

var (
	ErrNack          = errors.New("device rejected command")
	ErrShortResponse = errors.New("short response from device")
	ErrInvalidWidth  = errors.New("invalid scalar width")
)

// Channel is the synchronous command/response boundary used by the
// instrument drivers. Implementations are not safe for concurrent use;
// callers serialize access.
type Channel interface {
	// Send writes one command frame and waits for the device ACK.
	Send(opcode byte, payload []byte) error
	// Receive reads exactly n response bytes.
	Receive(n int) ([]byte, error)
	// ReceiveScalar reads a little-endian unsigned integer of width 1, 2
	// or 4 bytes.
	ReceiveScalar(width int) (uint32, error)
}

// Handler drives the serial connection to the instrument.
type Handler struct {
	rw io.ReadWriteCloser
}

// Open connects to the instrument on the given serial device.
func Open(device string, baud int) (*Handler, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("can't open %q: %w", device, err)
	}

	debug.InfoLog.Printf("connected to instrument on %s", device)
	return &Handler{rw: p}, nil
}

// Connect wraps an already opened connection. Used for testing the
// framing against an in-memory pipe.
func Connect(rw io.ReadWriteCloser) *Handler {
	return &Handler{rw: rw}
}

// Send writes one command frame and waits for the device ACK.
// The frame is header, opcode, little-endian u16 payload length, payload
// and an XOR checksum over everything after the header.
func (h *Handler) Send(opcode byte, payload []byte) error {
	frame := make([]byte, 0, len(payload)+5)
	frame = append(frame, protocol.Header, opcode, byte(len(payload)), byte(len(payload)>>8))
	frame = append(frame, payload...)

	var sum byte
	for _, b := range frame[1:] {
		sum ^= b
	}
	frame = append(frame, sum)

	if _, err := h.rw.Write(frame); err != nil {
		return fmt.Errorf("sending command 0x%02x: %w", opcode, err)
	}

	ack := make([]byte, 1)
	if _, err := io.ReadFull(h.rw, ack); err != nil {
		return fmt.Errorf("reading ack for command 0x%02x: %w", opcode, err)
	}
	if ack[0] != protocol.Ack {
		debug.ErrorLog.Printf("command 0x%02x not acknowledged (0x%02x)", opcode, ack[0])
		return fmt.Errorf("%w: command 0x%02x", ErrNack, opcode)
	}

	return nil
}

// Receive reads exactly n response bytes.
func (h *Handler) Receive(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(h.rw, b); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: want %d bytes: %v", ErrShortResponse, n, err)
		}
		return nil, err
	}
	return b, nil
}

// ReceiveScalar reads a little-endian unsigned integer of 1, 2 or 4 bytes.
func (h *Handler) ReceiveScalar(width int) (uint32, error) {
	if width != 1 && width != 2 && width != 4 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	b, err := h.Receive(width)
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

// Close the connection to the instrument.
func (h *Handler) Close() error {
	return h.rw.Close()
}
