package devices_test

import (
	"testing"

	"github.com/darbinreyes/os-from-scratch/core_engine/devices"
)

func TestPITRateGenerator(t *testing.T) {
	irq := &MockInterruptRaiser{}
	p := devices.NewPITDevice(irq)

	if p.Tick(1 << 20) != 0 {
		t.Fatal("unprogrammed counter fired")
	}

	writePort(t, p, devices.PIT_PORT_COMMAND, 0x34) // counter 0, LOHI, mode 2
	writePort(t, p, devices.PIT_PORT_COUNTER0, 0xE8)
	if p.Tick(5000) != 0 {
		t.Fatal("fired with only the low byte loaded")
	}
	writePort(t, p, devices.PIT_PORT_COUNTER0, 0x03) // 1000

	if n := p.Tick(2500); n != 2 {
		t.Fatalf("Tick(2500) fired %d times, want 2", n)
	}
	if n := p.Tick(500); n != 1 {
		t.Fatalf("Tick(500) fired %d times, want 1", n)
	}
	if got := irq.GetRaisedIRQs(); len(got) != 3 || got[0] != devices.TIMER_IRQ {
		t.Errorf("raised %v", got)
	}
	if p.Fired() != 3 {
		t.Errorf("Fired() = %d", p.Fired())
	}

	p.Tick(250)
	writePort(t, p, devices.PIT_PORT_COMMAND, 0x00) // latch counter 0
	p.Tick(100)
	lo := readPort(t, p, devices.PIT_PORT_COUNTER0)
	hi := readPort(t, p, devices.PIT_PORT_COUNTER0)
	if v := uint16(hi)<<8 | uint16(lo); v != 750 {
		t.Errorf("latched count %d, want 750", v)
	}
}

func TestPITOneShot(t *testing.T) {
	irq := &MockInterruptRaiser{}
	p := devices.NewPITDevice(irq)

	writePort(t, p, devices.PIT_PORT_COMMAND, 0x30) // counter 0, LOHI, mode 0
	writePort(t, p, devices.PIT_PORT_COUNTER0, 10)
	writePort(t, p, devices.PIT_PORT_COUNTER0, 0)

	for i, want := range []int{0, 1, 0} {
		if n := p.Tick(5 + uint32(i)*100); n != want {
			t.Errorf("tick %d fired %d, want %d", i, n, want)
		}
	}
}

func TestPITOtherCounters(t *testing.T) {
	irq := &MockInterruptRaiser{}
	p := devices.NewPITDevice(irq)

	writePort(t, p, devices.PIT_PORT_COMMAND, 0xB6) // counter 2, LOHI, mode 3
	writePort(t, p, devices.PIT_PORT_COUNTER2, 0x10)
	writePort(t, p, devices.PIT_PORT_COUNTER2, 0x00)
	if p.Tick(1000) != 0 || len(irq.GetRaisedIRQs()) != 0 {
		t.Error("counter 2 raised IRQ0")
	}
	if err := p.HandleIO(devices.PIT_PORT_COMMAND, devices.IODirectionIn, 1, make([]byte, 1)); err == nil {
		t.Error("command port read accepted")
	}
}
