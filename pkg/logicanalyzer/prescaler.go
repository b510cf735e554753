package logicanalyzer

import "fmt"

const (
	// ClockRate is the frequency of the capture timer source in Hz.
	ClockRate = 64e6
	// RegisterWidth is the width of the capture timer register in bits.
	RegisterWidth = 16
)

// Prescalers is the ordered table of timer prescalers supported by the
// hardware. A finer prescaler gives better resolution but saturates the
// timer register sooner.
var Prescalers = []int{1, 8, 64, 256}

// SelectPrescaler returns the index of the first prescaler in table
// whose maximum representable span covers spanUs microseconds, i.e. the
// finest prescaler that still fits the requested window into a timer
// register of widthBits bits at clockRate Hz.
func SelectPrescaler(spanUs float64, widthBits int, clockRate float64, table []int) (int, error) {
	maxTicks := float64(uint64(1)<<widthBits - 1)

	for i, p := range table {
		maxSpan := maxTicks * float64(p) / clockRate * 1e6
		if spanUs <= maxSpan {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: event spacing of %.0f µs exceeds the coarsest prescaler range",
		ErrTimingUnattainable, spanUs)
}

// selectPrescaler applies SelectPrescaler to the instrument's timer.
func selectPrescaler(spanUs float64) (int, error) {
	return SelectPrescaler(spanUs, RegisterWidth, ClockRate, Prescalers)
}

// TickUs returns the timer resolution in microseconds for the prescaler
// at the given table index.
func TickUs(index int) float64 {
	return float64(Prescalers[index]) / ClockRate * 1e6
}
