// Package core_engine is a small software PC for the keyboard kernel: guest
// memory, an I/O bus with a PIC pair, PIT, 8042 keyboard controller and
// UART, and a CPU that delivers the PIC's interrupts through the kernel's
// IDT.
package core_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/darbinreyes/os-from-scratch/core_engine/devices"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/console"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/idt"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/isr"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/ps2"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/scancode"
	"github.com/darbinreyes/os-from-scratch/core_engine/platform"
)

var (
	ErrNotBooted = errors.New("machine: not booted")
	ErrStopped   = errors.New("machine: stopped")
)

// Config describes the machine and how its kernel is brought up.
type Config struct {
	MemorySize uint64
	GDTBase    uint32
	IDTBase    uint32
	MasterBase uint8
	SlaveBase  uint8
	PollCount  int
	// TickInterval is how often Run advances the PIT and looks for
	// interrupts.
	TickInterval time.Duration
	// TimerHz starts the kernel timer at this rate. Zero leaves IRQ0 masked.
	TimerHz int
	// SerialOut receives everything the kernel writes to COM1.
	SerialOut io.Writer
	// Display, if set, receives typed characters in place of COM1.
	Display isr.Display
	// Attr is the attribute the keyboard handler echoes with.
	Attr  byte
	Debug bool
}

func DefaultConfig() Config {
	return Config{
		MemorySize:   2 * 1024 * 1024,
		GDTBase:      0x500,
		IDTBase:      0x1000,
		MasterBase:   0x20,
		SlaveBase:    0x28,
		PollCount:    ps2.DefaultPollCount,
		TickInterval: time.Millisecond,
		SerialOut:    os.Stdout,
		Attr:         isr.DefaultAttr,
	}
}

// Machine owns the emulated hardware and the kernel running on it.
type Machine struct {
	cfg Config

	memory   *platform.GuestMemory
	cpu      *CPU
	ioBus    *devices.IOBus
	pic      *devices.PICDevice
	pit      *devices.PITDevice
	keyboard *devices.KeyboardDevice
	serial   *devices.SerialPortDevice
	display  *console.SerialDisplay
	kernel   *kernel.Kernel

	mu       sync.Mutex
	booted   bool
	closed   bool
	halt     *assert.Halt
	stopChan chan struct{}
	stopOnce sync.Once
	running  sync.WaitGroup // Run loops in flight; Close waits on it
}

// NewMachine maps guest memory, wires the devices to the bus, installs a
// flat GDT and builds the kernel. The kernel does not run until Boot.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.SerialOut == nil {
		cfg.SerialOut = io.Discard
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Millisecond
	}
	mem, err := platform.NewGuestMemory(cfg.MemorySize)
	if err != nil {
		return nil, err
	}
	mem.Debug = cfg.Debug

	ioBus := devices.NewIOBus()
	pic := devices.NewPICDevice()
	pit := devices.NewPITDevice(pic)
	keyboard := devices.NewKeyboardDevice(pic)
	serial := devices.NewSerialPortDevice(cfg.SerialOut, pic)
	ioBus.Debug = cfg.Debug
	pit.Debug = cfg.Debug
	keyboard.Debug = cfg.Debug
	serial.Debug = cfg.Debug

	ioBus.RegisterDevice(devices.PIC_MASTER_CMD_PORT, devices.PIC_MASTER_DATA_PORT, pic)
	ioBus.RegisterDevice(devices.PIC_SLAVE_CMD_PORT, devices.PIC_SLAVE_DATA_PORT, pic)
	ioBus.RegisterDevice(devices.PIT_PORT_COUNTER0, devices.PIT_PORT_COMMAND, pit)
	ioBus.RegisterDevice(devices.KEYBOARD_PORT_DATA, devices.KEYBOARD_PORT_DATA, keyboard)
	ioBus.RegisterDevice(devices.KEYBOARD_PORT_STATUS, devices.KEYBOARD_PORT_STATUS, keyboard)
	ioBus.RegisterDevice(devices.COM1_PORT_BASE, devices.COM1_PORT_END, serial)

	cpu := NewCPU(mem)
	cpu.Debug = cfg.Debug
	gdt := platform.FlatGDT()
	if err := mem.Write(cfg.GDTBase, platform.GDTBytes(gdt)); err != nil {
		mem.Close()
		return nil, fmt.Errorf("machine: writing GDT: %w", err)
	}
	cpu.LoadGDT(idt.Register{Limit: platform.GDTLimit(len(gdt)), Base: cfg.GDTBase})

	display := console.NewSerialDisplay(ioBus, console.COM1)
	var echo isr.Display = display
	if cfg.Display != nil {
		echo = cfg.Display
	}
	kcfg := kernel.DefaultConfig()
	kcfg.MasterBase = cfg.MasterBase
	kcfg.SlaveBase = cfg.SlaveBase
	kcfg.IDTBase = cfg.IDTBase
	kcfg.PollCount = cfg.PollCount
	kcfg.TimerDivisor = kernel.DivisorForHz(cfg.TimerHz)
	if cfg.Attr != 0 {
		kcfg.Attr = cfg.Attr
	}
	kcfg.Debug = cfg.Debug
	k := kernel.New(ioBus, echo, kcfg)
	cpu.SetEntry(k)

	m := &Machine{
		cfg:      cfg,
		memory:   mem,
		cpu:      cpu,
		ioBus:    ioBus,
		pic:      pic,
		pit:      pit,
		keyboard: keyboard,
		serial:   serial,
		display:  display,
		kernel:   k,
		stopChan: make(chan struct{}),
	}
	if cfg.Debug {
		log.Printf("Machine: %d bytes of guest memory, GDT at 0x%x, IDT at 0x%x", cfg.MemorySize, cfg.GDTBase, cfg.IDTBase)
	}
	return m, nil
}

// Boot runs kernel initialization. An assertion failure during bring-up is
// returned as an error wrapping the *assert.Halt.
func (m *Machine) Boot() (err error) {
	defer m.recoverHalt(&err)

	m.display.Init()
	if err := m.kernel.Init(m.cpu); err != nil {
		return err
	}
	m.mu.Lock()
	m.booted = true
	m.mu.Unlock()
	log.Printf("Machine: booted")
	return nil
}

func (m *Machine) recoverHalt(err *error) {
	h := assert.Recover(recover())
	if h == nil {
		return
	}
	m.mu.Lock()
	m.halt = h
	m.mu.Unlock()
	m.cpu.DisableInterrupts()
	log.Printf("Machine: CPU halted: %v", h)
	*err = fmt.Errorf("machine: halted: %w", h)
}

// Halted returns the assertion that stopped the CPU, if any.
func (m *Machine) Halted() *assert.Halt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halt
}

func (m *Machine) checkRunnable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrStopped
	case m.halt != nil:
		return fmt.Errorf("machine: halted: %w", m.halt)
	case !m.booted:
		return ErrNotBooted
	}
	return nil
}

// Step delivers every interrupt the PIC has pending and returns how many
// reached the kernel. A gate the CPU refuses halts the machine.
func (m *Machine) Step() (n int, err error) {
	if err := m.checkRunnable(); err != nil {
		return 0, err
	}
	defer m.recoverHalt(&err)

	for m.cpu.InterruptsEnabled() && m.pic.HasPendingInterrupts() {
		vector, ok := m.pic.GetInterruptVector()
		if !ok {
			break
		}
		if err := m.cpu.Deliver(vector); err != nil {
			// The request is already in service and will never see an EOI,
			// so nothing at or below its priority can be delivered again.
			assert.Failf("delivering vector %d: %v", vector, err)
		}
		n++
	}
	return n, nil
}

// Interrupt executes a software interrupt on vector.
func (m *Machine) Interrupt(vector uint8) (err error) {
	if err := m.checkRunnable(); err != nil {
		return err
	}
	defer m.recoverHalt(&err)
	return m.cpu.Interrupt(vector)
}

// Run advances the PIT and delivers interrupts every TickInterval until ctx
// is done, Stop is called or the CPU halts.
func (m *Machine) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStopped
	}
	m.running.Add(1)
	m.mu.Unlock()
	defer m.running.Done()

	if err := m.checkRunnable(); err != nil {
		return err
	}
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	clocks := uint32(int64(devices.PIT_FREQUENCY_HZ) * int64(m.cfg.TickInterval) / int64(time.Second))

	if m.cfg.Debug {
		log.Printf("Machine: run loop started, %d PIT clocks per tick", clocks)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopChan:
			return ErrStopped
		case <-ticker.C:
			m.pit.Tick(clocks)
			if _, err := m.Step(); err != nil {
				return err
			}
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		if m.cfg.Debug {
			log.Println("Machine: stopping")
		}
		close(m.stopChan)
	})
}

// Close stops the machine, waits for Run to return and releases guest
// memory.
func (m *Machine) Close() error {
	m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.running.Wait()
	return m.memory.Close()
}

// TypeScanCodes hands raw set 1 bytes to the keyboard. It returns how many
// the controller accepted.
func (m *Machine) TypeScanCodes(codes []byte) int {
	return m.keyboard.TypeScanCodes(codes)
}

// TypeString types s on the keyboard, shifting where needed. Characters the
// layout cannot produce are skipped.
func (m *Machine) TypeString(s string) int {
	return m.keyboard.TypeScanCodes(scancode.EncodeString(s))
}

func (m *Machine) CPU() *CPU                         { return m.cpu }
func (m *Machine) Kernel() *kernel.Kernel            { return m.kernel }
func (m *Machine) PIC() *devices.PICDevice           { return m.pic }
func (m *Machine) PIT() *devices.PITDevice           { return m.pit }
func (m *Machine) Keyboard() *devices.KeyboardDevice { return m.keyboard }
func (m *Machine) Serial() *devices.SerialPortDevice { return m.serial }
func (m *Machine) Memory() *platform.GuestMemory     { return m.memory }
