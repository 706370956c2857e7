// Package idt builds the protected mode interrupt descriptor table.
//
// Gates are packed with explicit shifts and masks so the byte layout does not
// depend on struct layout:
//
//	bytes 0-1  offset 15..0
//	bytes 2-3  segment selector
//	byte  4    reserved, zero
//	byte  5    type 110b (bits 2..0), D (bit 3), 0 (bit 4), DPL (bits 6..5), P (bit 7)
//	bytes 6-7  offset 31..16
package idt

import (
	"encoding/binary"
	"fmt"
)

// GateSize is the size in bytes of one descriptor.
const GateSize = 8

// Size selects a 16- or 32-bit gate (the D bit).
type Size uint8

const (
	Size16 Size = 0
	Size32 Size = 1
)

const (
	interruptGateTag = 0x6 // 110b; D=1 makes it 0xE, a 32-bit interrupt gate
	typeMask         = 0x07
	sizeShift        = 3
	dplShift         = 5
	presentBit       = 1 << 7
)

// Gate is one packed 8-byte descriptor. The zero Gate is not present.
type Gate [GateSize]byte

// NewInterruptGate packs a present interrupt gate.
func NewInterruptGate(offset uint32, selector uint16, dpl uint8, size Size) Gate {
	var g Gate
	binary.LittleEndian.PutUint16(g[0:2], uint16(offset))
	binary.LittleEndian.PutUint16(g[2:4], selector)
	g[4] = 0
	g[5] = interruptGateTag | byte(size&1)<<sizeShift | (dpl&0x3)<<dplShift | presentBit
	binary.LittleEndian.PutUint16(g[6:8], uint16(offset>>16))
	return g
}

// ParseGate reads a gate from its memory image.
func ParseGate(b []byte) (Gate, error) {
	var g Gate
	if len(b) < GateSize {
		return g, fmt.Errorf("idt: gate needs %d bytes, got %d", GateSize, len(b))
	}
	copy(g[:], b)
	return g, nil
}

func (g Gate) Offset() uint32 {
	return uint32(binary.LittleEndian.Uint16(g[0:2])) | uint32(binary.LittleEndian.Uint16(g[6:8]))<<16
}

func (g Gate) Selector() uint16 { return binary.LittleEndian.Uint16(g[2:4]) }
func (g Gate) Present() bool    { return g[5]&presentBit != 0 }
func (g Gate) DPL() uint8       { return g[5] >> dplShift & 0x3 }
func (g Gate) Size() Size       { return Size(g[5] >> sizeShift & 1) }

// IsInterruptGate reports whether the type field is an interrupt gate, as
// opposed to a trap or task gate.
func (g Gate) IsInterruptGate() bool {
	return g[5]&typeMask == interruptGateTag && g[5]&(1<<4) == 0
}

// Bytes returns the gate's memory image.
func (g Gate) Bytes() []byte {
	b := g
	return b[:]
}

func (g Gate) String() string {
	if !g.Present() {
		return "not present"
	}
	return fmt.Sprintf("offset=%#08x sel=%#04x dpl=%d size=%d", g.Offset(), g.Selector(), g.DPL(), 16<<g.Size())
}
