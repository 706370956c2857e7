// Package portio defines the single-byte x86 port I/O primitive the kernel
// drivers are written against.
package portio

// Port performs atomic single-byte IN/OUT operations on an I/O port address.
// On real hardware this is the `in`/`out` instruction pair; in this
// repository it is usually the emulated I/O bus.
type Port interface {
	InB(port uint16) uint8
	OutB(port uint16, value uint8)
}

// Write is one OUT operation, as captured by Recorder.
type Write struct {
	Port  uint16
	Value uint8
}

// Recorder wraps a Port and keeps every OUT in order. A nil inner Port
// answers every IN with 0xFF, like a floating ISA bus.
type Recorder struct {
	Inner  Port
	Writes []Write
}

func (r *Recorder) InB(port uint16) uint8 {
	if r.Inner == nil {
		return 0xFF
	}
	return r.Inner.InB(port)
}

func (r *Recorder) OutB(port uint16, value uint8) {
	r.Writes = append(r.Writes, Write{Port: port, Value: value})
	if r.Inner != nil {
		r.Inner.OutB(port, value)
	}
}

// WritesTo returns the values written to a single port, oldest first.
func (r *Recorder) WritesTo(port uint16) []uint8 {
	var vals []uint8
	for _, w := range r.Writes {
		if w.Port == port {
			vals = append(vals, w.Value)
		}
	}
	return vals
}

// Reset forgets recorded writes.
func (r *Recorder) Reset() {
	r.Writes = nil
}
