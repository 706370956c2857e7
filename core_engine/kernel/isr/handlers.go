package isr

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/portio"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/ps2"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/scancode"
)

// Display consumes decoded characters.
type Display interface {
	Display(ch, attr byte)
}

// Acknowledger sends end of interrupt for a vector.
type Acknowledger interface {
	EndOfInterrupt(vector uint8)
}

// DefaultAttr is light grey on black.
const DefaultAttr byte = 0x07

// KeyboardStats counts what the keyboard handler has seen.
type KeyboardStats struct {
	Bytes     uint64
	Presses   uint64
	Displayed uint64
	Errors    uint64
}

// Keyboard is the IRQ1 service routine.
type Keyboard struct {
	port    portio.Port
	eoi     Acknowledger
	display Display
	attr    byte

	mu    sync.Mutex // guards dec and stats
	dec   *scancode.Decoder
	stats KeyboardStats

	// OnEvent, if set, sees every completed scan code. It runs with the
	// decoder lock held and must not call back into the handler.
	OnEvent func(ev scancode.Event)
}

func NewKeyboard(port portio.Port, eoi Acknowledger, display Display, dec *scancode.Decoder) *Keyboard {
	return &Keyboard{port: port, eoi: eoi, display: display, dec: dec, attr: DefaultAttr}
}

// SetAttr changes the attribute passed to the display.
func (k *Keyboard) SetAttr(attr byte) { k.attr = attr }

// Handle reads one byte from the controller, acknowledges the interrupt and
// feeds the decoder. Completed key presses are echoed to the display.
func (k *Keyboard) Handle(f Frame) {
	b := k.port.InB(ps2.DataPort)
	k.eoi.EndOfInterrupt(f.Vector)

	if ch := k.decode(b); ch != scancode.Placeholder {
		k.display.Display(ch, k.attr)
	}
}

// decode advances the decoder by one byte and returns the character to
// echo, or Placeholder.
func (k *Keyboard) decode(b byte) byte {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.stats.Bytes++
	ev, ok := k.dec.Advance(b)
	if !ok {
		return scancode.Placeholder
	}
	ch := scancode.Placeholder
	switch {
	case ev.IsError():
		k.stats.Errors++
	case ev.Printable():
		k.stats.Presses++
		ch = k.dec.KeyCodeToASCII(ev.Code)
	}
	if k.OnEvent != nil {
		k.OnEvent(ev)
	}
	if ch != scancode.Placeholder {
		k.stats.Displayed++
	}
	return ch
}

// Stats returns a copy of the handler's counters.
func (k *Keyboard) Stats() KeyboardStats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stats
}

// Shifted reports the decoder's shift state.
func (k *Keyboard) Shifted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dec.Shifted()
}

// Timer is the IRQ0 stub: it counts ticks.
type Timer struct {
	eoi   Acknowledger
	ticks atomic.Uint64
}

func NewTimer(eoi Acknowledger) *Timer { return &Timer{eoi: eoi} }

func (t *Timer) Handle(f Frame) {
	t.eoi.EndOfInterrupt(f.Vector)
	t.ticks.Add(1)
}

func (t *Timer) Ticks() uint64 { return t.ticks.Load() }

var exceptionNames = [...]string{
	0:  "divide error",
	1:  "debug",
	2:  "non-maskable interrupt",
	3:  "breakpoint",
	4:  "overflow",
	5:  "bound range exceeded",
	6:  "invalid opcode",
	7:  "device not available",
	8:  "double fault",
	9:  "coprocessor segment overrun",
	10: "invalid TSS",
	11: "segment not present",
	12: "stack-segment fault",
	13: "general protection",
	14: "page fault",
	15: "reserved",
	16: "x87 floating-point",
	17: "alignment check",
	18: "machine check",
	19: "SIMD floating-point",
	20: "virtualization",
	21: "control protection",
}

// ExceptionName returns the mnemonic description of CPU exception v.
func ExceptionName(v uint8) string {
	if int(v) < len(exceptionNames) {
		return exceptionNames[v]
	}
	return fmt.Sprintf("vector %d", v)
}

// Exception is the handler for CPU exceptions: none are recoverable here.
var Exception = HandlerFunc(func(f Frame) {
	log.Printf("ISR: exception %d (%s), error code %#x", f.Vector, ExceptionName(f.Vector), f.ErrorCode)
	assert.Failf("unhandled exception %d (%s)", f.Vector, ExceptionName(f.Vector))
})
