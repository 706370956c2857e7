package platform_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/darbinreyes/os-from-scratch/core_engine/platform"
)

func TestGuestMemory(t *testing.T) {
	m, err := platform.NewGuestMemory(64 * 1024)
	if err != nil {
		t.Fatalf("NewGuestMemory: %v", err)
	}
	defer m.Close()

	if m.Size() != 64*1024 {
		t.Errorf("Size() = %d", m.Size())
	}
	if err := m.Write(0x1000, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(0x0FFF, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, []byte{0, 1, 2, 3, 0}) {
		t.Errorf("Read = % x", got)
	}

	if err := m.Write(0xFFFF, []byte{1, 2}); !errors.Is(err, platform.ErrOutOfRange) {
		t.Errorf("write past the end: %v", err)
	}
	if _, err := m.Read(0xFFFFFFFF, 2); !errors.Is(err, platform.ErrOutOfRange) {
		t.Errorf("read wrapping 4GiB: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := m.Read(0, 1); err == nil {
		t.Error("read after Close succeeded")
	}
}

func TestGuestMemoryCloseWhileReading(t *testing.T) {
	m, err := platform.NewGuestMemory(64 * 1024)
	if err != nil {
		t.Fatalf("NewGuestMemory: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if _, err := m.Read(0x100, 8); err != nil {
					return
				}
				m.Write(0x200, []byte{byte(j)})
			}
		}()
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
	if m.Size() != 0 {
		t.Errorf("Size() = %d after Close", m.Size())
	}
}

func TestGuestMemoryRejectsZeroSize(t *testing.T) {
	if _, err := platform.NewGuestMemory(0); err == nil {
		t.Fatal("zero-sized memory accepted")
	}
}

func TestDescriptorLayout(t *testing.T) {
	d := platform.NewDescriptor(0x12345678, 0xABCDE, platform.AccessCode, platform.FlagsFlat32)
	want := platform.Descriptor{0xDE, 0xBC, 0x78, 0x56, 0x34, 0x9A, 0xCA, 0x12}
	if d != want {
		t.Fatalf("descriptor % x, want % x", d[:], want[:])
	}
	if d.Base() != 0x12345678 || d.Limit() != 0xABCDE || d.Flags() != 0xC0 {
		t.Errorf("fields %v", d)
	}
	if !d.Present() || !d.IsCode() || d.DPL() != 0 {
		t.Errorf("present %t code %t dpl %d", d.Present(), d.IsCode(), d.DPL())
	}

	p, err := platform.ParseDescriptor(d[:])
	if err != nil || p != d {
		t.Errorf("ParseDescriptor = %v, %v", p, err)
	}
	if _, err := platform.ParseDescriptor(d[:4]); err == nil {
		t.Error("short descriptor accepted")
	}
}

func TestFlatGDT(t *testing.T) {
	gdt := platform.FlatGDT()
	if len(gdt) != 3 {
		t.Fatalf("%d descriptors", len(gdt))
	}
	if gdt[0].Present() {
		t.Error("null descriptor present")
	}
	code := gdt[platform.CodeSelector>>3]
	data := gdt[platform.DataSelector>>3]
	if !code.IsCode() || data.IsCode() || !data.Present() {
		t.Errorf("code %v data %v", code, data)
	}

	b := platform.GDTBytes(gdt)
	if len(b) != 24 || platform.GDTLimit(len(gdt)) != 23 {
		t.Fatalf("GDT %d bytes limit %d", len(b), platform.GDTLimit(len(gdt)))
	}
	if !reflect.DeepEqual(b[8:16], []byte{0xFF, 0xFF, 0x00, 0x00, 0x00, 0x9A, 0xCF, 0x00}) {
		t.Errorf("code descriptor % x", b[8:16])
	}
}
