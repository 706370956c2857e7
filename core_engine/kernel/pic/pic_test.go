package pic_test

import (
	"reflect"
	"testing"

	"github.com/darbinreyes/os-from-scratch/core_engine/devices"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/assert"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/pic"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/portio"
)

func catch(f func()) (h *assert.Halt) {
	defer func() { h = assert.Recover(recover()) }()
	f()
	return nil
}

func TestInitializeSequence(t *testing.T) {
	rec := &portio.Recorder{}
	d := pic.NewDriver(rec)
	d.Initialize(pic.MasterBase, pic.SlaveBase)

	want := []portio.Write{
		{Port: 0x20, Value: 0x11},
		{Port: 0xA0, Value: 0x11},
		{Port: 0x21, Value: 0x20},
		{Port: 0xA1, Value: 0x28},
		{Port: 0x21, Value: 0x04},
		{Port: 0xA1, Value: 0x02},
		{Port: 0x21, Value: 0x01},
		{Port: 0xA1, Value: 0x01},
		{Port: 0x21, Value: 0xFD},
		{Port: 0xA1, Value: 0xFF},
	}
	if !reflect.DeepEqual(rec.Writes, want) {
		t.Fatalf("writes:\n got %v\nwant %v", rec.Writes, want)
	}
	if !d.Initialized() {
		t.Error("Initialized() = false")
	}
}

func TestInitializeRejectsUnalignedBase(t *testing.T) {
	rec := &portio.Recorder{}
	d := pic.NewDriver(rec)
	if h := catch(func() { d.Initialize(0x21, 0x28) }); h == nil {
		t.Fatal("expected halt")
	}
	if len(rec.Writes) != 0 || d.Initialized() {
		t.Errorf("driver touched hardware: %v", rec.Writes)
	}
}

func TestICWBuilders(t *testing.T) {
	if pic.ICW1() != 0x11 || pic.ICW4() != 0x01 {
		t.Errorf("ICW1 %#x ICW4 %#x", pic.ICW1(), pic.ICW4())
	}
	if pic.ICW3Master(2) != 0x04 || pic.ICW3Slave(2) != 0x02 {
		t.Errorf("ICW3 %#x/%#x", pic.ICW3Master(2), pic.ICW3Slave(2))
	}
}

func TestEndOfInterrupt(t *testing.T) {
	tests := []struct {
		vector uint8
		want   []portio.Write
	}{
		{0x20, []portio.Write{{Port: 0x20, Value: 0x20}}},
		{0x21, []portio.Write{{Port: 0x20, Value: 0x20}}},
		{0x27, []portio.Write{{Port: 0x20, Value: 0x20}}},
		{0x28, []portio.Write{{Port: 0xA0, Value: 0x20}, {Port: 0x20, Value: 0x20}}},
		{0x2F, []portio.Write{{Port: 0xA0, Value: 0x20}, {Port: 0x20, Value: 0x20}}},
	}
	rec := &portio.Recorder{}
	d := pic.NewDriver(rec)
	d.Initialize(pic.MasterBase, pic.SlaveBase)
	for _, tt := range tests {
		rec.Reset()
		d.EndOfInterrupt(tt.vector)
		if !reflect.DeepEqual(rec.Writes, tt.want) {
			t.Errorf("EOI %#x: got %v, want %v", tt.vector, rec.Writes, tt.want)
		}
	}
}

func TestEndOfInterruptForeignVectorHalts(t *testing.T) {
	rec := &portio.Recorder{}
	d := pic.NewDriver(rec)
	d.Initialize(pic.MasterBase, pic.SlaveBase)
	for _, v := range []uint8{0x00, 0x1F, 0x30, 0xFF} {
		rec.Reset()
		if h := catch(func() { d.EndOfInterrupt(v) }); h == nil {
			t.Errorf("vector %#x: expected halt", v)
		}
		if len(rec.Writes) != 0 {
			t.Errorf("vector %#x: wrote %v", v, rec.Writes)
		}
	}
}

// The driver, run against the emulated 8259A pair, must leave it remapped
// and masked, and IRQ1 must arrive as vector 33.
func TestDriverAgainstEmulatedPIC(t *testing.T) {
	bus := devices.NewIOBus()
	dev := devices.NewPICDevice()
	bus.RegisterDevice(devices.PIC_MASTER_CMD_PORT, devices.PIC_MASTER_DATA_PORT, dev)
	bus.RegisterDevice(devices.PIC_SLAVE_CMD_PORT, devices.PIC_SLAVE_DATA_PORT, dev)

	d := pic.NewDriver(bus)
	d.Initialize(pic.MasterBase, pic.SlaveBase)

	m, s := dev.State()
	if m.Offset != 0x20 || s.Offset != 0x28 || !m.Initialized || !s.Initialized {
		t.Fatalf("state master %+v slave %+v", m, s)
	}
	if mm, sm := d.Masks(); mm != 0xFD || sm != 0xFF {
		t.Fatalf("masks %#x/%#x", mm, sm)
	}

	dev.RaiseIRQ(devices.TIMER_IRQ) // masked
	dev.RaiseIRQ(devices.KEYBOARD_IRQ)
	v, ok := dev.GetInterruptVector()
	if !ok || v != 33 {
		t.Fatalf("vector = %d %t, want 33", v, ok)
	}
	if dev.HasPendingInterrupts() {
		t.Fatal("pending with IRQ1 in service and IRQ0 masked")
	}

	dev.RaiseIRQ(devices.KEYBOARD_IRQ)
	if dev.HasPendingInterrupts() {
		t.Fatal("IRQ1 delivered again before EOI")
	}
	d.EndOfInterrupt(v)
	if v, ok := dev.GetInterruptVector(); !ok || v != 33 {
		t.Fatalf("after EOI vector = %d %t, want 33", v, ok)
	}
}

func TestSlaveEOIOverEmulatedPIC(t *testing.T) {
	bus := devices.NewIOBus()
	dev := devices.NewPICDevice()
	bus.RegisterDevice(devices.PIC_MASTER_CMD_PORT, devices.PIC_MASTER_DATA_PORT, dev)
	bus.RegisterDevice(devices.PIC_SLAVE_CMD_PORT, devices.PIC_SLAVE_DATA_PORT, dev)

	d := pic.NewDriver(bus)
	d.Initialize(pic.MasterBase, pic.SlaveBase)
	d.SetMask(0xF9, 0xFE) // IRQ1, cascade, IRQ8

	dev.RaiseIRQ(8)
	v, ok := dev.GetInterruptVector()
	if !ok || v != 0x28 {
		t.Fatalf("vector = %#x %t, want 0x28", v, ok)
	}
	d.EndOfInterrupt(v)
	m, s := dev.State()
	if m.ISR != 0 || s.ISR != 0 {
		t.Fatalf("ISR after EOI master %#x slave %#x", m.ISR, s.ISR)
	}
}
