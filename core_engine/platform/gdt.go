package platform

import (
	"encoding/binary"
	"fmt"
)

// DescriptorSize is the size of one GDT entry.
const DescriptorSize = 8

// Access bytes and flags for flat 32-bit segments.
const (
	AccessCode uint8 = 0x9A // present, DPL0, code, execute/read
	AccessData uint8 = 0x92 // present, DPL0, data, read/write

	FlagsFlat32 uint8 = 0xC0 // 4KiB granularity, 32-bit

	accessPresent uint8 = 0x80
	accessSegment uint8 = 0x10 // S: code or data rather than system
	accessCode    uint8 = 0x08
)

// Selectors of the flat GDT.
const (
	NullSelector uint16 = 0x00
	CodeSelector uint16 = 0x08
	DataSelector uint16 = 0x10
)

// Descriptor is a segment descriptor in its in-memory byte order:
// bytes 0-1 limit 0:15, 2-3 base 0:15, 4 base 16:23, 5 access,
// 6 limit 16:19 in the low nibble and flags in the high nibble, 7 base 24:31.
type Descriptor [DescriptorSize]byte

// NewDescriptor packs a descriptor. limit is 20 bits; only the high nibble of
// flags (G, D/B, L, AVL) is used.
func NewDescriptor(base, limit uint32, access, flags uint8) Descriptor {
	var d Descriptor
	binary.LittleEndian.PutUint16(d[0:2], uint16(limit))
	binary.LittleEndian.PutUint16(d[2:4], uint16(base))
	d[4] = uint8(base >> 16)
	d[5] = access
	d[6] = uint8(limit>>16)&0x0F | flags&0xF0
	d[7] = uint8(base >> 24)
	return d
}

func ParseDescriptor(b []byte) (Descriptor, error) {
	var d Descriptor
	if len(b) < DescriptorSize {
		return d, fmt.Errorf("platform: descriptor needs %d bytes, got %d", DescriptorSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

func (d Descriptor) Base() uint32 {
	return uint32(binary.LittleEndian.Uint16(d[2:4])) | uint32(d[4])<<16 | uint32(d[7])<<24
}

// Limit returns the raw 20-bit limit field.
func (d Descriptor) Limit() uint32 {
	return uint32(binary.LittleEndian.Uint16(d[0:2])) | uint32(d[6]&0x0F)<<16
}

func (d Descriptor) Access() uint8 { return d[5] }
func (d Descriptor) Flags() uint8  { return d[6] & 0xF0 }
func (d Descriptor) Present() bool { return d[5]&accessPresent != 0 }
func (d Descriptor) DPL() uint8    { return d[5] >> 5 & 0x3 }

// IsCode reports whether d is a code segment.
func (d Descriptor) IsCode() bool {
	return d[5]&accessSegment != 0 && d[5]&accessCode != 0
}

func (d Descriptor) String() string {
	return fmt.Sprintf("base=0x%08x limit=0x%05x access=0x%02x flags=0x%x", d.Base(), d.Limit(), d.Access(), d.Flags()>>4)
}

// FlatGDT returns the null, code and data descriptors of a flat 4GiB
// protected-mode layout, in selector order.
func FlatGDT() []Descriptor {
	return []Descriptor{
		NewDescriptor(0, 0, 0, 0),
		NewDescriptor(0, 0xFFFFF, AccessCode, FlagsFlat32),
		NewDescriptor(0, 0xFFFFF, AccessData, FlagsFlat32),
	}
}

// GDTBytes lays descriptors out back to back.
func GDTBytes(ds []Descriptor) []byte {
	out := make([]byte, 0, len(ds)*DescriptorSize)
	for _, d := range ds {
		out = append(out, d[:]...)
	}
	return out
}

// GDTLimit is the GDTR limit for n descriptors.
func GDTLimit(n int) uint16 { return uint16(n*DescriptorSize - 1) }
