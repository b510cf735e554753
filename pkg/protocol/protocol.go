// Package protocol defines the command set shared between the host and
// the logic-analyzer firmware.
package protocol

// Command opcodes. Every command is a single opcode byte followed by a
// command-specific payload; the device acknowledges each command before
// sending any response data.
const (
	// OpConfigureTrigger sets the reference edge that starts a capture:
	// payload [input, direction code].
	OpConfigureTrigger byte = 0x01
	// OpConfigureCapture programs a capture: payload
	// [count, events u16, (input, mode code) per channel, prescaler index].
	OpConfigureCapture byte = 0x02
	// OpArmCapture starts the programmed capture. No payload.
	OpArmCapture byte = 0x03
	// OpCaptureProgress reads the number of events captured so far on the
	// reference channel. Response: u16.
	OpCaptureProgress byte = 0x04
	// OpStopCapture aborts a running capture. Response: one u16 event
	// count per configured channel.
	OpStopCapture byte = 0x05
	// OpFetchSamples reads captured samples: payload [channel, count u16].
	// Response: count little-endian u32 cumulative tick values.
	OpFetchSamples byte = 0x06
	// OpInitialStates reads the input levels latched at the trigger
	// instant. Response: one bitmask byte, bit n = IDn+1.
	OpInitialStates byte = 0x07
	// OpGetStates reads the instantaneous input levels. Response: one
	// bitmask byte.
	OpGetStates byte = 0x08
	// OpStartCounter resets and starts the free-running edge counter on
	// one input: payload [input].
	OpStartCounter byte = 0x09
	// OpReadCounter reads the edge counter. Response: u32.
	OpReadCounter byte = 0x0A
)

// Trigger direction codes for OpConfigureTrigger.
const (
	TriggerDisabled byte = 0x00
	TriggerFalling  byte = 0x02
	TriggerRising   byte = 0x03
)

const (
	// Header starts every command frame.
	Header byte = 0xAD
	// Ack is sent by the device after every accepted command.
	Ack byte = 0x01

	// MaxSamples is the size of the capture sample buffer.
	MaxSamples = 10000
	// MaxEvents is the per-channel event capacity. The buffer is split
	// into four fixed regions, one per input, regardless of how many
	// inputs a capture uses.
	MaxEvents = MaxSamples / 4
)
