package idt

import (
	"encoding/binary"
	"log"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
)

// Vectors covers the exceptions 0-21 and the two remapped IRQs 32 and 33.
const Vectors = 34

// KernelCodeSelector is the flat ring 0 code segment in the GDT.
const KernelCodeSelector uint16 = 0x08

// Limit is the IDTR limit for a full table.
const Limit = Vectors*GateSize - 1

// Reserved reports whether the architecture reserves vector v; reserved
// vectors get a zero, not-present gate.
func Reserved(v int) bool {
	return v == 15 || (v >= 22 && v <= 31)
}

// Entry binds a vector to its handler entry point.
type Entry struct {
	Vector  int
	Address uint32
}

// Table is a built IDT.
type Table struct {
	Gates [Vectors]Gate
}

// Build packs a gate for every entry. Every vector that is not reserved must
// be given exactly once with a non-zero address; anything else halts.
func Build(entries []Entry) *Table {
	t := &Table{}
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.Vector < 0 || e.Vector >= Vectors {
			assert.Failf("vector %d outside IDT", e.Vector)
			continue
		}
		if Reserved(e.Vector) {
			assert.Failf("vector %d is reserved", e.Vector)
			continue
		}
		if seen[e.Vector] {
			assert.Failf("vector %d given twice", e.Vector)
			continue
		}
		assert.That(e.Address != 0, "handler address != 0")
		seen[e.Vector] = true
		t.Gates[e.Vector] = NewInterruptGate(e.Address, KernelCodeSelector, 0, Size32)
	}
	for v := 0; v < Vectors; v++ {
		if !Reserved(v) && !seen[v] {
			assert.Failf("vector %d has no handler", v)
		}
	}
	return t
}

// Bytes returns the table's memory image.
func (t *Table) Bytes() []byte {
	b := make([]byte, 0, Vectors*GateSize)
	for _, g := range t.Gates {
		b = append(b, g[:]...)
	}
	return b
}

// Register is the 6-byte operand of lidt.
type Register struct {
	Limit uint16
	Base  uint32
}

// Bytes returns the lidt operand image.
func (r Register) Bytes() []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint16(b[0:2], r.Limit)
	binary.LittleEndian.PutUint32(b[2:6], r.Base)
	return b
}

// CPU is what loading a table needs from the processor.
type CPU interface {
	// WritePhys copies data to physical memory at addr.
	WritePhys(addr uint32, data []byte) error
	// LoadIDTAndEnable is lidt followed by sti.
	LoadIDTAndEnable(r Register)
}

// InterruptController is the PIC as seen by Load.
type InterruptController interface {
	Initialized() bool
}

// Load copies the table to base and loads it, enabling interrupts. The PIC
// must already be programmed.
func (t *Table) Load(cpu CPU, base uint32, pic InterruptController) error {
	assert.That(pic != nil && pic.Initialized(), "pic initialized before idt load")
	if err := cpu.WritePhys(base, t.Bytes()); err != nil {
		return err
	}
	r := Register{Limit: Limit, Base: base}
	log.Printf("IDT: loading %d gates at %#x, limit %#x", Vectors, base, r.Limit)
	cpu.LoadIDTAndEnable(r)
	return nil
}
