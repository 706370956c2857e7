package scancode

import (
	"log"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
)

// Left and right shift, as single byte table indexes.
const (
	leftShiftIndex  = 0x2A
	rightShiftIndex = 0x36
)

// Decoder turns a stream of set 1 bytes into key events. It keeps the
// current state between calls, so a scan code may arrive one byte per
// interrupt. A Decoder is not safe for concurrent use.
type Decoder struct {
	state  State
	keys   *keyTables
	errors uint64
	debug  bool
}

// NewDecoder returns a decoder in the start state with every key released.
func NewDecoder() *Decoder {
	return &Decoder{keys: newKeyTables()}
}

// SetDebug turns on logging of every completed scan code.
func (d *Decoder) SetDebug(on bool) { d.debug = on }

// Advance feeds one byte. It returns ok=false while a scan code is
// incomplete. A completed scan code or a decode error returns an event and
// puts the decoder back in the start state.
func (d *Decoder) Advance(b byte) (ev Event, ok bool) {
	d.state = next(d.state, b)

	switch {
	case d.state == ErrorState:
		d.errors++
		if d.debug {
			log.Printf("Scancode: byte 0x%02x matched no rule, dropped", b)
		}
		d.state = Start
		return Event{Code: Error, Polarity: Released}, true
	case !d.state.IsFinal():
		return Event{}, false
	}

	final := d.state
	d.state = Start

	length := final.Length()
	idx, found := ScanCodeToIndex(b, length)
	if !found {
		assert.Failf("no %d-byte index for 0x%02x in state %v", length, b, final)
		return Event{Code: Error}, true
	}
	e := &d.keys.family(length)[idx]

	switch final {
	case Final1Press, Final2Press, Final4Press:
		e.Pressed = true
		ev = Event{Code: e.Key, Polarity: Pressed}
	case Final1Release, Final2Release:
		e.Pressed = false
		ev = Event{Code: Ignore, Polarity: Released}
	case Final4Release:
		e.Pressed = false
		ev = Event{Code: e.Key, Polarity: Released}
	case Final6Press:
		// No break code exists for pause.
		e.Pressed = false
		ev = Event{Code: e.Key, Polarity: Pressed}
	}
	if d.debug {
		log.Printf("Scancode: %v -> %v", final, ev)
	}
	return ev, true
}

// Reset abandons any partial scan code. Key state is kept.
func (d *Decoder) Reset() { d.state = Start }

func (d *Decoder) State() State { return d.state }

// Errors is the number of bytes dropped because they matched no rule.
func (d *Decoder) Errors() uint64 { return d.errors }

// IsPressed reports whether the key with code k is held down.
func (d *Decoder) IsPressed(k KeyCode) bool {
	if k.IsSentinel() {
		return false
	}
	for _, n := range []int{1, 2, 4, 6} {
		for _, e := range d.keys.family(n) {
			if e.Key == k && e.Pressed {
				return true
			}
		}
	}
	return false
}

// Shifted reports whether either shift key is held down.
func (d *Decoder) Shifted() bool {
	return d.keys.one[leftShiftIndex].Pressed || d.keys.one[rightShiftIndex].Pressed
}

// KeyCodeToASCII resolves k against the shifted or unshifted layout,
// depending on the live shift state.
func (d *Decoder) KeyCodeToASCII(k KeyCode) byte {
	return KeyCodeToASCII(k, d.Shifted())
}
