// Package kernel wires the keyboard input path together: it owns the scan
// code decoder, the PIC driver, the vector table and the IDT, and brings them
// up in an order that never lets an interrupt reach an invalid descriptor.
package kernel

import (
	"fmt"
	"log"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/idt"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/isr"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/pic"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/portio"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/ps2"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/scancode"
)

// Config controls kernel bring-up.
type Config struct {
	MasterBase uint8
	SlaveBase  uint8
	IDTBase    uint32
	Attr       byte
	PollCount  int
	// TimerDivisor, when non-zero, starts PIT counter 0 with this reload
	// value and unmasks IRQ0.
	TimerDivisor uint16
	// SetupController runs the 8042 and keyboard self tests and turns on
	// IRQ1 before the PIC is programmed.
	SetupController bool
	Debug           bool
}

func DefaultConfig() Config {
	return Config{
		MasterBase:      pic.MasterBase,
		SlaveBase:       pic.SlaveBase,
		IDTBase:         0x00001000,
		Attr:            isr.DefaultAttr,
		PollCount:       ps2.DefaultPollCount,
		SetupController: true,
	}
}

// Kernel is the single owner of all interrupt-path state.
type Kernel struct {
	cfg Config

	port       portio.Port
	pic        *pic.Driver
	dispatcher *isr.Dispatcher
	decoder    *scancode.Decoder
	keyboard   *isr.Keyboard
	timer      *isr.Timer
	ps2        *ps2.Controller
	ps2kbd     *ps2.Keyboard
	table      *idt.Table
}

// New builds a kernel talking to hardware through port and echoing typed
// characters to display. Nothing touches the hardware until Init.
func New(port portio.Port, display isr.Display, cfg Config) *Kernel {
	k := &Kernel{
		cfg:        cfg,
		port:       port,
		pic:        pic.NewDriver(port),
		dispatcher: isr.NewDispatcher(),
		decoder:    scancode.NewDecoder(),
	}
	k.pic.Debug = cfg.Debug
	k.dispatcher.Debug = cfg.Debug
	k.decoder.SetDebug(cfg.Debug)

	k.keyboard = isr.NewKeyboard(port, k.pic, display, k.decoder)
	k.keyboard.SetAttr(cfg.Attr)
	k.timer = isr.NewTimer(k.pic)
	k.ps2 = ps2.NewController(port, cfg.PollCount)
	k.ps2kbd = ps2.NewKeyboard(k.ps2)

	for v := 0; v < idt.Vectors; v++ {
		if !idt.Reserved(v) && v < int(isr.TimerVector) {
			k.dispatcher.Register(uint8(v), isr.Exception)
		}
	}
	k.dispatcher.Register(isr.TimerVector, k.timer)
	k.dispatcher.Register(isr.KeyboardVector, k.keyboard)
	return k
}

// Init brings the interrupt path up: keyboard controller, then PIC, then the
// IDT load that enables interrupts.
func (k *Kernel) Init(cpu idt.CPU) error {
	if k.cfg.SetupController {
		if err := k.setupController(); err != nil {
			return fmt.Errorf("kernel: keyboard controller: %w", err)
		}
	}
	k.pic.Initialize(k.cfg.MasterBase, k.cfg.SlaveBase)
	if k.cfg.TimerDivisor != 0 {
		k.startTimer(k.cfg.TimerDivisor)
	}

	k.table = idt.Build(k.dispatcher.Entries())
	if err := k.table.Load(cpu, k.cfg.IDTBase, k.pic); err != nil {
		return fmt.Errorf("kernel: load idt: %w", err)
	}
	log.Printf("Kernel: interrupts enabled, keyboard on vector %d", isr.KeyboardVector)
	return nil
}

// setupController follows the usual 8042 bring-up: quiesce, self test,
// configure, reset the keyboard, then let IRQ1 through.
func (k *Kernel) setupController() error {
	if err := k.ps2.DisablePort(); err != nil {
		return err
	}
	k.ps2.Flush()

	cfg, err := k.ps2.ReadConfig()
	if err != nil {
		return err
	}
	cfg &^= ps2.ConfigPort1Interrupt
	if err := k.ps2.WriteConfig(cfg); err != nil {
		return err
	}
	if err := k.ps2.SelfTest(); err != nil {
		return err
	}
	if err := k.ps2.InterfaceTest(); err != nil {
		return err
	}
	if err := k.ps2.EnablePort(); err != nil {
		return err
	}
	if err := k.ps2kbd.Reset(); err != nil {
		return err
	}
	if err := k.ps2kbd.EnableScanning(); err != nil {
		return err
	}
	cfg |= ps2.ConfigPort1Interrupt | ps2.ConfigPort1Translation
	cfg &^= ps2.ConfigPort1ClockOff
	if err := k.ps2.WriteConfig(cfg); err != nil {
		return err
	}
	if k.cfg.Debug {
		log.Printf("Kernel: 8042 config 0x%02x", cfg)
	}
	return nil
}

// HandleInterrupt is the common interrupt entry: every stub lands here.
func (k *Kernel) HandleInterrupt(vector uint8, errorCode uint32) {
	k.dispatcher.Dispatch(isr.Frame{Vector: vector, ErrorCode: errorCode})
}

// VectorAt maps a gate offset to the vector whose stub lives there.
func (k *Kernel) VectorAt(addr uint32) (uint8, bool) { return isr.VectorAt(addr) }

func (k *Kernel) PIC() *pic.Driver            { return k.pic }
func (k *Kernel) Dispatcher() *isr.Dispatcher { return k.dispatcher }
func (k *Kernel) Keyboard() *isr.Keyboard     { return k.keyboard }
func (k *Kernel) Timer() *isr.Timer           { return k.timer }
func (k *Kernel) PS2() *ps2.Keyboard          { return k.ps2kbd }
func (k *Kernel) IDT() *idt.Table             { return k.table }
