package core_engine

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/idt"
	"github.com/darbinreyes/os-from-scratch/core_engine/platform"
)

// Interrupt delivery faults. On hardware most of these would escalate to a
// double fault; here Deliver reports them.
var (
	ErrInterruptsDisabled = errors.New("cpu: interrupts disabled")
	ErrNoIDT              = errors.New("cpu: no IDT loaded")
	ErrBeyondLimit        = errors.New("cpu: vector beyond IDT limit")
	ErrGateNotPresent     = errors.New("cpu: gate not present")
	ErrNotInterruptGate   = errors.New("cpu: not a 32-bit interrupt gate")
	ErrBadSelector        = errors.New("cpu: gate selector is not a present code segment")
	ErrNoEntryPoint       = errors.New("cpu: gate offset is not an interrupt entry point")
)

// InterruptEntry is the kernel as the CPU sees it: something that can tell
// which vector's entry point lives at an address, and the common code every
// entry point jumps to.
type InterruptEntry interface {
	VectorAt(addr uint32) (uint8, bool)
	HandleInterrupt(vector uint8, errorCode uint32)
}

// CPU models the interrupt side of a 32-bit protected-mode processor: the
// IDTR and GDTR, the IF flag, and delivery of external interrupts through
// the gates in guest memory.
type CPU struct {
	mem *platform.GuestMemory

	mu        sync.Mutex
	gdtr      idt.Register
	idtr      idt.Register
	idtLoaded bool
	ifFlag    bool
	entry     InterruptEntry
	delivered uint64

	Debug bool
}

func NewCPU(mem *platform.GuestMemory) *CPU {
	return &CPU{mem: mem}
}

// SetEntry installs the code interrupt gates lead to.
func (c *CPU) SetEntry(e InterruptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = e
}

// WritePhys copies data to guest physical memory.
func (c *CPU) WritePhys(addr uint32, data []byte) error {
	return c.mem.Write(addr, data)
}

// LoadGDT is lgdt.
func (c *CPU) LoadGDT(r idt.Register) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gdtr = r
}

// LoadIDTAndEnable is lidt followed by sti.
func (c *CPU) LoadIDTAndEnable(r idt.Register) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idtr = r
	c.idtLoaded = true
	c.ifFlag = true
	if c.Debug {
		log.Printf("CPU: IDTR base=0x%x limit=0x%x, interrupts enabled", r.Base, r.Limit)
	}
}

// DisableInterrupts is cli.
func (c *CPU) DisableInterrupts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ifFlag = false
}

// InterruptsEnabled reports the IF flag.
func (c *CPU) InterruptsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ifFlag
}

// IDTR returns the loaded IDT register, if any.
func (c *CPU) IDTR() (idt.Register, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idtr, c.idtLoaded
}

// Delivered counts interrupts that reached the kernel.
func (c *CPU) Delivered() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}

// Deliver takes an external interrupt on vector. IF must be set. The gate is
// read from guest memory and checked the way the processor would check it;
// IF stays clear while the handler runs and is restored on return.
func (c *CPU) Deliver(vector uint8) error {
	c.mu.Lock()
	if !c.ifFlag {
		c.mu.Unlock()
		return ErrInterruptsDisabled
	}
	entry, vectorAddr, err := c.gateTargetLocked(vector)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("vector %d: %w", vector, err)
	}
	c.ifFlag = false
	c.delivered++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.ifFlag = true
		c.mu.Unlock()
	}()
	if c.Debug {
		log.Printf("CPU: vector %d -> 0x%08x", vector, vectorAddr)
	}
	entry.HandleInterrupt(vector, 0)
	return nil
}

// Interrupt is the int instruction: it goes through the same gate checks as
// Deliver but ignores IF.
func (c *CPU) Interrupt(vector uint8) error {
	c.mu.Lock()
	entry, _, err := c.gateTargetLocked(vector)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("int %d: %w", vector, err)
	}
	entry.HandleInterrupt(vector, 0)
	return nil
}

func (c *CPU) gateTargetLocked(vector uint8) (InterruptEntry, uint32, error) {
	if !c.idtLoaded {
		return nil, 0, ErrNoIDT
	}
	off := uint32(vector) * idt.GateSize
	if off+idt.GateSize-1 > uint32(c.idtr.Limit) {
		return nil, 0, ErrBeyondLimit
	}
	raw, err := c.mem.Read(c.idtr.Base+off, idt.GateSize)
	if err != nil {
		return nil, 0, err
	}
	g, err := idt.ParseGate(raw)
	if err != nil {
		return nil, 0, err
	}
	if !g.Present() {
		return nil, 0, ErrGateNotPresent
	}
	if !g.IsInterruptGate() || g.Size() != idt.Size32 {
		return nil, 0, ErrNotInterruptGate
	}
	if err := c.checkCodeSelectorLocked(g.Selector()); err != nil {
		return nil, 0, err
	}
	if c.entry == nil {
		return nil, 0, ErrNoEntryPoint
	}
	v, ok := c.entry.VectorAt(g.Offset())
	if !ok || v != vector {
		return nil, 0, fmt.Errorf("offset 0x%08x: %w", g.Offset(), ErrNoEntryPoint)
	}
	return c.entry, g.Offset(), nil
}

func (c *CPU) checkCodeSelectorLocked(sel uint16) error {
	index := uint32(sel >> 3)
	if sel&0x7 != 0 || index == 0 {
		return fmt.Errorf("selector 0x%x: %w", sel, ErrBadSelector)
	}
	end := index*platform.DescriptorSize + platform.DescriptorSize - 1
	if end > uint32(c.gdtr.Limit) {
		return fmt.Errorf("selector 0x%x beyond GDT limit 0x%x: %w", sel, c.gdtr.Limit, ErrBadSelector)
	}
	raw, err := c.mem.Read(c.gdtr.Base+index*platform.DescriptorSize, platform.DescriptorSize)
	if err != nil {
		return err
	}
	d, err := platform.ParseDescriptor(raw)
	if err != nil {
		return err
	}
	if !d.Present() || !d.IsCode() {
		return fmt.Errorf("selector 0x%x (%v): %w", sel, d, ErrBadSelector)
	}
	return nil
}
