// Package platform holds the host side of the software machine: guest
// physical memory and the segment descriptors the CPU checks gates against.
package platform

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sys/unix"
)

var ErrOutOfRange = errors.New("platform: guest address out of range")

// GuestMemory is a flat physical address space backed by an anonymous host
// mapping.
type GuestMemory struct {
	mu    sync.RWMutex // Close takes it exclusively
	mem   []byte
	Debug bool
}

// NewGuestMemory maps size bytes of zeroed guest memory.
func NewGuestMemory(size uint64) (*GuestMemory, error) {
	if size == 0 || size > 1<<32 {
		return nil, fmt.Errorf("platform: guest memory size %d not in (0, 4GiB]", size)
	}
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("platform: failed to mmap guest memory: %w", err)
	}
	return &GuestMemory{mem: mem}, nil
}

// Size returns the mapped size in bytes, or 0 after Close.
func (m *GuestMemory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.mem))
}

func (m *GuestMemory) check(addr uint32, n int) error {
	if m.mem == nil {
		return errors.New("platform: guest memory closed")
	}
	if uint64(addr)+uint64(n) > uint64(len(m.mem)) {
		return fmt.Errorf("0x%x+%d: %w", addr, n, ErrOutOfRange)
	}
	return nil
}

// Read copies n bytes starting at addr.
func (m *GuestMemory) Read(addr uint32, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.mem[addr:])
	return out, nil
}

// Write copies data to addr.
func (m *GuestMemory) Write(addr uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(addr, len(data)); err != nil {
		return err
	}
	copy(m.mem[addr:], data)
	if m.Debug {
		log.Printf("GuestMemory: wrote %d bytes at 0x%x", len(data), addr)
	}
	return nil
}

// Close unmaps the memory. Calling it again is a no-op.
func (m *GuestMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	if err != nil {
		return fmt.Errorf("platform: munmap guest memory: %w", err)
	}
	return nil
}
