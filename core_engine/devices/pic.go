package devices

import (
	"fmt"
	"sync"
)

// PICController represents a single 8259A PIC (Master or Slave).
type PICController struct {
	isMaster bool
	offset   uint8 // vector base from ICW2
	imr      uint8 // interrupt mask register
	irr      uint8 // interrupt request register
	isr      uint8 // in-service register
	cascade  uint8 // ICW3

	icwCount  int // next ICW expected (1-3), 0 when initialized
	modeFlags byte // ICW1
	icw4      byte
	autoEOI   bool

	readRegSelect byte // 0 = IRR, 1 = ISR on a command port read
}

// PICDevice manages a pair of Master and Slave 8259A PICs.
type PICDevice struct {
	master PICController
	slave  PICController
	lock   sync.Mutex
}

// NewPICDevice creates a PIC pair in its power-on state: everything masked.
func NewPICDevice() *PICDevice {
	p := &PICDevice{
		master: PICController{isMaster: true, imr: 0xFF, modeFlags: PIC_ICW1_IC4},
		slave:  PICController{imr: 0xFF, modeFlags: PIC_ICW1_IC4},
	}
	return p
}

// HandleIO processes I/O operations for the PIC device.
func (p *PICDevice) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if size != 1 {
		return fmt.Errorf("PICDevice: I/O size %d not supported for port 0x%x", size, port)
	}

	var pc *PICController
	switch port {
	case PIC_MASTER_CMD_PORT, PIC_MASTER_DATA_PORT:
		pc = &p.master
	case PIC_SLAVE_CMD_PORT, PIC_SLAVE_DATA_PORT:
		pc = &p.slave
	default:
		return fmt.Errorf("PICDevice: Unhandled I/O to port 0x%x, direction %d", port, direction)
	}
	isCmd := port == PIC_MASTER_CMD_PORT || port == PIC_SLAVE_CMD_PORT

	if direction == IODirectionIn {
		if isCmd {
			data[0] = pc.readSelectedRegister()
		} else {
			data[0] = pc.imr
		}
		return nil
	}
	if isCmd {
		pc.writeCommandPort(data[0])
	} else {
		pc.writeDataPort(data[0])
	}
	return nil
}

func (pc *PICController) writeCommandPort(val byte) {
	if val&PIC_ICW1_INIT != 0 {
		pc.icwCount = 1
		pc.imr = 0x00
		pc.irr = 0x00
		pc.isr = 0x00
		pc.readRegSelect = 0
		pc.autoEOI = false
		pc.icw4 = 0
		pc.modeFlags = val & (PIC_ICW1_LTIM | PIC_ICW1_SNGL | PIC_ICW1_IC4)
		return
	}
	if val&0x18 == PIC_OCW3_OCW3_ID {
		pc.processOCW3(val)
	} else {
		pc.processOCW2(val)
	}
}

// writeDataPort takes ICW2-4 during initialization and the mask (OCW1)
// afterwards.
func (pc *PICController) writeDataPort(val byte) {
	switch pc.icwCount {
	case 0:
		pc.imr = val
	case 1:
		pc.offset = val &^ 0x07
		switch {
		case pc.modeFlags&PIC_ICW1_SNGL == 0:
			pc.icwCount = 2
		case pc.modeFlags&PIC_ICW1_IC4 != 0:
			pc.icwCount = 3
		default:
			pc.icwCount = 0
		}
	case 2:
		pc.cascade = val
		if pc.modeFlags&PIC_ICW1_IC4 != 0 {
			pc.icwCount = 3
		} else {
			pc.icwCount = 0
		}
	case 3:
		pc.icw4 = val
		pc.autoEOI = val&PIC_ICW4_AEOI != 0
		pc.icwCount = 0
	}
}

func (pc *PICController) readSelectedRegister() byte {
	if pc.readRegSelect == 0 {
		return pc.irr
	}
	return pc.isr
}

// processOCW2 handles end of interrupt. A non-specific EOI clears the
// highest priority in-service bit on this chip only; the slave needs its own.
func (pc *PICController) processOCW2(val byte) {
	if val&PIC_OCW2_EOI_CMD == 0 {
		return
	}
	if val&PIC_OCW2_SL_CMD != 0 {
		pc.isr &^= 1 << (val & PIC_OCW2_LEVEL)
		return
	}
	for i := uint8(0); i < 8; i++ {
		if pc.isr&(1<<i) != 0 {
			pc.isr &^= 1 << i
			return
		}
	}
}

func (pc *PICController) processOCW3(val byte) {
	if val&PIC_OCW3_POLL_CMD != 0 {
		return
	}
	if val&PIC_OCW3_RR_CMD != 0 {
		pc.readRegSelect = val & PIC_OCW3_RIS_CMD
	}
}

// pending returns the highest priority request that is unmasked and not
// blocked by an equal or higher priority interrupt in service.
func (pc *PICController) pending() (uint8, bool) {
	if pc.icwCount != 0 {
		return 0, false
	}
	req := pc.irr &^ pc.imr
	for i := uint8(0); i < 8; i++ {
		if pc.isr&(1<<i) != 0 {
			return 0, false
		}
		if req&(1<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}

// RaiseIRQ latches an edge on irqLine (0-15). The request is held in the
// IRR even while masked, as on real hardware.
func (p *PICDevice) RaiseIRQ(irqLine uint8) {
	p.lock.Lock()
	defer p.lock.Unlock()

	switch {
	case irqLine < 8:
		p.master.irr |= 1 << irqLine
	case irqLine < 16:
		p.slave.irr |= 1 << (irqLine - 8)
	}
	p.updateCascadeLocked()
}

// updateCascadeLocked drives master IRQ2 from the slave's output.
func (p *PICDevice) updateCascadeLocked() {
	if _, ok := p.slave.pending(); ok {
		p.master.irr |= 1 << PIC_MASTER_SLAVE_IRQ
	} else {
		p.master.irr &^= 1 << PIC_MASTER_SLAVE_IRQ
	}
}

// HasPendingInterrupts reports whether the INTR line to the CPU is asserted.
func (p *PICDevice) HasPendingInterrupts() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.updateCascadeLocked()
	_, ok := p.master.pending()
	return ok
}

// GetInterruptVector runs the interrupt acknowledge cycle: it moves the
// winning request from IRR to ISR and returns its vector. ok is false when
// nothing is pending.
func (p *PICDevice) GetInterruptVector() (vector uint8, ok bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.updateCascadeLocked()
	irq, ok := p.master.pending()
	if !ok {
		return 0, false
	}
	if irq != PIC_MASTER_SLAVE_IRQ {
		p.master.acknowledge(irq)
		return p.master.offset + irq, true
	}

	sirq, _ := p.slave.pending()
	p.slave.acknowledge(sirq)
	p.master.acknowledge(PIC_MASTER_SLAVE_IRQ)
	p.updateCascadeLocked()
	return p.slave.offset + sirq, true
}

func (pc *PICController) acknowledge(irq uint8) {
	pc.irr &^= 1 << irq
	if !pc.autoEOI {
		pc.isr |= 1 << irq
	}
}

// PICState is a snapshot of one chip, for inspection.
type PICState struct {
	Offset      uint8
	IMR         uint8
	IRR         uint8
	ISR         uint8
	Cascade     uint8
	Initialized bool
}

func (pc *PICController) state() PICState {
	return PICState{
		Offset:      pc.offset,
		IMR:         pc.imr,
		IRR:         pc.irr,
		ISR:         pc.isr,
		Cascade:     pc.cascade,
		Initialized: pc.icwCount == 0,
	}
}

// State returns snapshots of the master and slave.
func (p *PICDevice) State() (master, slave PICState) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.master.state(), p.slave.state()
}
