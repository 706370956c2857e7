package core_engine_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/darbinreyes/os-from-scratch/core_engine"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/idt"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/isr"
)

// syncBuffer is a bytes.Buffer safe to read while the run loop writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newMachine(t *testing.T, cfg core_engine.Config) (*core_engine.Machine, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	cfg.SerialOut = out
	m, err := core_engine.NewMachine(cfg)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, out
}

func bootedMachine(t *testing.T) (*core_engine.Machine, *syncBuffer) {
	t.Helper()
	m, out := newMachine(t, core_engine.DefaultConfig())
	if err := m.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return m, out
}

func TestTypingEchoesToSerial(t *testing.T) {
	m, out := bootedMachine(t)

	n := m.TypeString("Hi!")
	if n != 10 {
		t.Fatalf("keyboard took %d bytes, want 10", n)
	}
	delivered, err := m.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if delivered != 10 || m.CPU().Delivered() != 10 {
		t.Errorf("delivered %d (cpu %d), want 10", delivered, m.CPU().Delivered())
	}
	if out.String() != "Hi!" {
		t.Fatalf("serial output %q, want %q", out.String(), "Hi!")
	}
	if !m.CPU().InterruptsEnabled() {
		t.Error("IF left clear after handlers returned")
	}
	st := m.Kernel().Keyboard().Stats()
	if st.Presses != 5 || st.Displayed != 3 || st.Errors != 0 {
		t.Errorf("keyboard stats %+v", st)
	}
}

func TestBootState(t *testing.T) {
	m, _ := bootedMachine(t)

	r, ok := m.CPU().IDTR()
	if !ok || r.Base != 0x1000 || r.Limit != idt.Limit {
		t.Fatalf("IDTR %+v loaded %t", r, ok)
	}
	raw, err := m.Memory().Read(r.Base+33*idt.GateSize, idt.GateSize)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := idt.ParseGate(raw)
	if g.Offset() != isr.EntryAddress(33) || g.Selector() != 0x08 || !g.Present() {
		t.Errorf("gate 33 in memory: %v", g)
	}
	master, slave := m.PIC().State()
	if master.Offset != 0x20 || slave.Offset != 0x28 || master.IMR != 0xFD || slave.IMR != 0xFF {
		t.Errorf("PIC master %+v slave %+v", master, slave)
	}
}

func TestNotBooted(t *testing.T) {
	m, _ := newMachine(t, core_engine.DefaultConfig())
	if _, err := m.Step(); !errors.Is(err, core_engine.ErrNotBooted) {
		t.Errorf("Step before Boot: %v", err)
	}
	if err := m.Run(context.Background()); !errors.Is(err, core_engine.ErrNotBooted) {
		t.Errorf("Run before Boot: %v", err)
	}
}

func TestRunLoopWithTimer(t *testing.T) {
	cfg := core_engine.DefaultConfig()
	cfg.TimerHz = 1000
	m, out := newMachine(t, cfg)
	if err := m.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	m.TypeString("ok\n")
	deadline := time.Now().Add(5 * time.Second)
	for (out.String() != "ok\n" || m.Kernel().Timer().Ticks() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
	if out.String() != "ok\n" {
		t.Errorf("serial output %q", out.String())
	}
	if m.Kernel().Timer().Ticks() == 0 {
		t.Error("timer never ticked")
	}
}

func TestStopEndsRun(t *testing.T) {
	m, _ := bootedMachine(t)
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	m.Stop()
	m.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, core_engine.ErrStopped) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// MockDisplay records what the keyboard handler echoes.
type MockDisplay struct {
	mu    sync.Mutex
	Chars []byte
	Attrs []byte
}

func (d *MockDisplay) Display(ch, attr byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Chars = append(d.Chars, ch)
	d.Attrs = append(d.Attrs, attr)
}

func TestDisplayAndAttrOverride(t *testing.T) {
	disp := &MockDisplay{}
	cfg := core_engine.DefaultConfig()
	cfg.Display = disp
	cfg.Attr = 0x0E
	m, out := newMachine(t, cfg)
	if err := m.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	m.TypeString("ab")
	if _, err := m.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if string(disp.Chars) != "ab" || !reflect.DeepEqual(disp.Attrs, []byte{0x0E, 0x0E}) {
		t.Errorf("display got %q attrs % x", disp.Chars, disp.Attrs)
	}
	if out.String() != "" {
		t.Errorf("serial output %q with a display configured", out.String())
	}
}

func TestCloseWhileRunning(t *testing.T) {
	cfg := core_engine.DefaultConfig()
	cfg.TimerHz = 1000
	cfg.TickInterval = 50 * time.Microsecond
	m, _ := newMachine(t, cfg)
	if err := m.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	m.TypeString("close")
	time.Sleep(20 * time.Millisecond)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, core_engine.ErrStopped) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	if m.Memory().Size() != 0 {
		t.Error("guest memory still mapped")
	}
	if err := m.Run(context.Background()); !errors.Is(err, core_engine.ErrStopped) {
		t.Errorf("Run after Close: %v", err)
	}
	if h := m.Halted(); h != nil {
		t.Errorf("halted during Close: %v", h)
	}
}

func TestBadGateHaltsMachine(t *testing.T) {
	m, out := bootedMachine(t)
	bad := idt.NewInterruptGate(isr.EntryAddress(33), 0x10, 0, idt.Size32)
	if err := m.CPU().WritePhys(0x1000+33*idt.GateSize, bad.Bytes()); err != nil {
		t.Fatal(err)
	}

	m.TypeString("a")
	_, err := m.Step()
	var h *assert.Halt
	if !errors.As(err, &h) {
		t.Fatalf("Step returned %v, want a halt", err)
	}
	if !strings.Contains(h.Expression, "vector 33") {
		t.Errorf("halt diagnostic %q", h.Expression)
	}
	if m.Halted() == nil || m.CPU().InterruptsEnabled() {
		t.Error("machine still running after a refused gate")
	}
	if _, err := m.Step(); !errors.As(err, &h) {
		t.Errorf("Step after halt: %v", err)
	}
	if out.String() != "" {
		t.Errorf("serial output %q", out.String())
	}
}

func TestExceptionHaltsMachine(t *testing.T) {
	m, _ := bootedMachine(t)

	err := m.Interrupt(13)
	var h *assert.Halt
	if !errors.As(err, &h) {
		t.Fatalf("int 13 returned %v, want a halt", err)
	}
	if !strings.Contains(h.Expression, "general protection") {
		t.Errorf("halt diagnostic %q", h.Expression)
	}
	if m.Halted() == nil || m.CPU().InterruptsEnabled() {
		t.Error("machine still running after halt")
	}
	m.TypeString("a")
	if _, err := m.Step(); !errors.As(err, &h) {
		t.Errorf("Step after halt: %v", err)
	}
}

func TestCPUDeliveryChecks(t *testing.T) {
	m, _ := bootedMachine(t)
	cpu := m.CPU()
	base := uint32(0x1000)

	if err := cpu.Interrupt(15); !errors.Is(err, core_engine.ErrGateNotPresent) {
		t.Errorf("reserved vector: %v", err)
	}
	if err := cpu.Deliver(40); !errors.Is(err, core_engine.ErrBeyondLimit) {
		t.Errorf("vector past limit: %v", err)
	}

	tests := []struct {
		name string
		gate idt.Gate
		want error
	}{
		{"data selector", idt.NewInterruptGate(isr.EntryAddress(33), 0x10, 0, idt.Size32), core_engine.ErrBadSelector},
		{"selector past GDT", idt.NewInterruptGate(isr.EntryAddress(33), 0x18, 0, idt.Size32), core_engine.ErrBadSelector},
		{"null selector", idt.NewInterruptGate(isr.EntryAddress(33), 0x00, 0, idt.Size32), core_engine.ErrBadSelector},
		{"16-bit gate", idt.NewInterruptGate(isr.EntryAddress(33), 0x08, 0, idt.Size16), core_engine.ErrNotInterruptGate},
		{"wrong stub", idt.NewInterruptGate(isr.EntryAddress(32), 0x08, 0, idt.Size32), core_engine.ErrNoEntryPoint},
		{"not a stub", idt.NewInterruptGate(0x2000, 0x08, 0, idt.Size32), core_engine.ErrNoEntryPoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cpu.WritePhys(base+33*idt.GateSize, tt.gate.Bytes()); err != nil {
				t.Fatal(err)
			}
			if err := cpu.Deliver(33); !errors.Is(err, tt.want) {
				t.Errorf("Deliver(33) = %v, want %v", err, tt.want)
			}
			if !cpu.InterruptsEnabled() {
				t.Error("failed delivery cleared IF")
			}
		})
	}
}

func TestCPUBeforeIDT(t *testing.T) {
	m, _ := newMachine(t, core_engine.DefaultConfig())
	if err := m.CPU().Deliver(33); !errors.Is(err, core_engine.ErrInterruptsDisabled) {
		t.Errorf("Deliver with IF clear: %v", err)
	}
	if err := m.CPU().Interrupt(33); !errors.Is(err, core_engine.ErrNoIDT) {
		t.Errorf("Interrupt with no IDT: %v", err)
	}
}
