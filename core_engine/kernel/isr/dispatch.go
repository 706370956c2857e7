// Package isr maps interrupt vectors to their service routines.
//
// Each vector has a fixed-size entry stub at StubBase + vector*StubSize; the
// IDT points at the stubs, and the CPU maps a gate's offset back to a vector
// with VectorAt before calling Dispatch.
package isr

import (
	"log"
	"sort"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/idt"
)

// Stub layout.
const (
	StubBase uint32 = 0x00100000
	StubSize uint32 = 16
)

// Vectors wired in this kernel.
const (
	TimerVector    uint8 = 32
	KeyboardVector uint8 = 33
)

// Frame is what a stub hands its handler.
type Frame struct {
	Vector    uint8
	ErrorCode uint32
}

// Handler services one interrupt.
type Handler interface {
	Handle(f Frame)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(f Frame)

func (fn HandlerFunc) Handle(f Frame) { fn(f) }

// EntryAddress is the address of vector v's stub.
func EntryAddress(v uint8) uint32 {
	return StubBase + uint32(v)*StubSize
}

// VectorAt returns the vector whose stub starts at addr.
func VectorAt(addr uint32) (uint8, bool) {
	if addr < StubBase || (addr-StubBase)%StubSize != 0 {
		return 0, false
	}
	v := (addr - StubBase) / StubSize
	if v > 0xFF {
		return 0, false
	}
	return uint8(v), true
}

// Dispatcher is the vector to handler table.
type Dispatcher struct {
	handlers map[uint8]Handler
	counts   map[uint8]uint64
	Debug    bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[uint8]Handler),
		counts:   make(map[uint8]uint64),
	}
}

// Register installs h for vector v. Registering twice or a nil handler halts.
func (d *Dispatcher) Register(v uint8, h Handler) {
	assert.That(h != nil, "handler != nil")
	if _, dup := d.handlers[v]; dup {
		assert.Failf("vector %d registered twice", v)
		return
	}
	d.handlers[v] = h
}

// Entries returns an IDT entry for every registered vector, in vector order.
func (d *Dispatcher) Entries() []idt.Entry {
	vs := make([]int, 0, len(d.handlers))
	for v := range d.handlers {
		vs = append(vs, int(v))
	}
	sort.Ints(vs)
	es := make([]idt.Entry, len(vs))
	for i, v := range vs {
		es[i] = idt.Entry{Vector: v, Address: EntryAddress(uint8(v))}
	}
	return es
}

// Dispatch runs the handler for f.Vector. No path in this kernel raises an
// unregistered vector, so one arriving halts.
func (d *Dispatcher) Dispatch(f Frame) {
	h, ok := d.handlers[f.Vector]
	if !ok {
		assert.Failf("interrupt on vector %d with no handler", f.Vector)
		return
	}
	d.counts[f.Vector]++
	if d.Debug {
		log.Printf("ISR: vector %d", f.Vector)
	}
	h.Handle(f)
}

// Count returns how many times vector v was dispatched.
func (d *Dispatcher) Count(v uint8) uint64 { return d.counts[v] }
