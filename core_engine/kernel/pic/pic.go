// Package pic programs a cascaded pair of 8259A interrupt controllers.
package pic

import (
	"log"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/portio"
)

// I/O ports.
const (
	MasterCommand uint16 = 0x20
	MasterData    uint16 = 0x21
	SlaveCommand  uint16 = 0xA0
	SlaveData     uint16 = 0xA1
)

// Default vector bases: IRQ 0-7 at 32-39, IRQ 8-15 at 40-47.
const (
	MasterBase uint8 = 0x20
	SlaveBase  uint8 = 0x28
)

// EOI is the non-specific end of interrupt command.
const EOI uint8 = 0x20

// CascadeIRQ is the master input the slave is wired to.
const CascadeIRQ = 2

// Masks written after initialization: only the keyboard (IRQ1) is enabled.
const (
	InitialMasterMask uint8 = 0xFD
	InitialSlaveMask  uint8 = 0xFF
)

// ICW1 bits.
const (
	icw1ICW4      = 1 << 0 // ICW4 follows
	icw1Single    = 1 << 1 // no cascade
	icw1Interval4 = 1 << 2
	icw1Level     = 1 << 3 // level triggered
	icw1Init      = 1 << 4
)

// ICW4 bits.
const (
	icw4Mode8086   = 1 << 0
	icw4AutoEOI    = 1 << 1
	icw4BufMaster  = 1 << 2
	icw4Buffered   = 1 << 3
	icw4NestedMode = 1 << 4
)

// ICW1 returns initialization word 1: edge triggered, cascaded, ICW4 needed.
func ICW1() uint8 {
	return (icw1Init | icw1ICW4) &^ (icw1Single | icw1Interval4 | icw1Level)
}

// ICW2 returns the vector base. The low 3 bits carry the IRQ number, so base
// must be a multiple of 8.
func ICW2(base uint8) uint8 {
	assert.That(base&0x07 == 0, "vector base % 8 == 0")
	return base
}

// ICW3Master returns the bitmask of master inputs that have a slave.
func ICW3Master(irq uint8) uint8 { return 1 << (irq & 0x07) }

// ICW3Slave returns the slave's cascade identity: the master input number.
func ICW3Slave(irq uint8) uint8 { return irq & 0x07 }

// ICW4 returns 8086 mode, manual EOI, unbuffered, not fully nested.
func ICW4() uint8 {
	return icw4Mode8086 &^ (icw4AutoEOI | icw4BufMaster | icw4Buffered | icw4NestedMode)
}

// Driver owns the PIC pair.
type Driver struct {
	port        portio.Port
	masterBase  uint8
	slaveBase   uint8
	initialized bool
	Debug       bool
}

func NewDriver(port portio.Port) *Driver {
	return &Driver{port: port}
}

// Initialize sends ICW1-4 to both chips, interleaved master then slave, and
// writes the initial masks.
func (d *Driver) Initialize(masterBase, slaveBase uint8) {
	icw2m, icw2s := ICW2(masterBase), ICW2(slaveBase)

	d.port.OutB(MasterCommand, ICW1())
	d.port.OutB(SlaveCommand, ICW1())
	d.port.OutB(MasterData, icw2m)
	d.port.OutB(SlaveData, icw2s)
	d.port.OutB(MasterData, ICW3Master(CascadeIRQ))
	d.port.OutB(SlaveData, ICW3Slave(CascadeIRQ))
	d.port.OutB(MasterData, ICW4())
	d.port.OutB(SlaveData, ICW4())

	d.port.OutB(MasterData, InitialMasterMask)
	d.port.OutB(SlaveData, InitialSlaveMask)

	d.masterBase, d.slaveBase = masterBase, slaveBase
	d.initialized = true
	log.Printf("PIC: remapped master to %#x, slave to %#x", masterBase, slaveBase)
}

func (d *Driver) Initialized() bool { return d.initialized }

// OwnsVector reports which chip, if any, raises vector.
func (d *Driver) OwnsVector(vector uint8) (master, slave bool) {
	master = vector >= d.masterBase && vector < d.masterBase+8
	slave = vector >= d.slaveBase && vector < d.slaveBase+8
	return master, slave
}

// EndOfInterrupt acknowledges vector. Slave vectors need an EOI on both chips,
// slave first.
func (d *Driver) EndOfInterrupt(vector uint8) {
	assert.That(d.initialized, "pic initialized")
	master, slave := d.OwnsVector(vector)
	switch {
	case slave:
		d.port.OutB(SlaveCommand, EOI)
		d.port.OutB(MasterCommand, EOI)
	case master:
		d.port.OutB(MasterCommand, EOI)
	default:
		assert.Failf("EOI for vector %d not owned by the PIC", vector)
		return
	}
	if d.Debug {
		log.Printf("PIC: EOI vector %d", vector)
	}
}

// SetMask writes the interrupt mask registers (1 = masked).
func (d *Driver) SetMask(master, slave uint8) {
	d.port.OutB(MasterData, master)
	d.port.OutB(SlaveData, slave)
}

// Masks reads back the interrupt mask registers.
func (d *Driver) Masks() (master, slave uint8) {
	return d.port.InB(MasterData), d.port.InB(SlaveData)
}

// Bases returns the vector bases set by Initialize.
func (d *Driver) Bases() (master, slave uint8) { return d.masterBase, d.slaveBase }
