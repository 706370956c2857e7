// Package devices emulates the PC hardware the kernel talks to: a pair of
// 8259A PICs, an 8042 keyboard controller with a keyboard behind it, and a
// 16550A UART, all reached through an IOBus.
package devices

import (
	"fmt"
	"log"
	"sync"
)

// PioDevice defines the interface for a port I/O device.
type PioDevice interface {
	HandleIO(port uint16, direction uint8, size uint8, data []byte) error
}

// InterruptRaiser is how devices signal the PIC.
type InterruptRaiser interface {
	RaiseIRQ(irqLine uint8)
}

// IOBus manages port I/O access to registered devices.
type IOBus struct {
	mu        sync.RWMutex
	ports     map[uint16]PioDevice
	unhandled map[uint16]int
	Debug     bool
}

// NewIOBus creates and initializes a new IOBus.
func NewIOBus() *IOBus {
	return &IOBus{
		ports:     make(map[uint16]PioDevice),
		unhandled: make(map[uint16]int),
	}
}

// RegisterDevice registers a device to handle I/O for ports startPort
// through endPort inclusive.
func (bus *IOBus) RegisterDevice(startPort, endPort uint16, device PioDevice) {
	if device == nil {
		log.Printf("IOBus: Warning: Attempted to register a nil device for ports 0x%x-0x%x", startPort, endPort)
		return
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for port := startPort; port <= endPort; port++ {
		if existing, ok := bus.ports[port]; ok {
			log.Printf("IOBus: Warning: Port 0x%x already registered to %T. Overwriting with %T.", port, existing, device)
		}
		bus.ports[port] = device
		if port == 0xFFFF {
			break
		}
	}
}

// HandleIO routes an I/O operation to the appropriate registered device.
func (bus *IOBus) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	bus.mu.RLock()
	device, ok := bus.ports[port]
	bus.mu.RUnlock()
	if !ok {
		bus.mu.Lock()
		bus.unhandled[port]++
		first := bus.unhandled[port] == 1
		bus.mu.Unlock()
		if first {
			log.Printf("IOBus: Unhandled I/O on port 0x%x", port)
		}
		return fmt.Errorf("IOBus: Unhandled I/O to port 0x%x", port)
	}
	return device.HandleIO(port, direction, size, data)
}

// InB reads one byte. An unhandled port floats high and reads 0xFF.
func (bus *IOBus) InB(port uint16) uint8 {
	data := []byte{0xFF}
	if err := bus.HandleIO(port, IODirectionIn, 1, data); err != nil {
		if bus.Debug {
			log.Printf("IOBus: IN 0x%x: %v", port, err)
		}
		return 0xFF
	}
	if bus.Debug {
		log.Printf("IOBus: IN 0x%x -> 0x%02x", port, data[0])
	}
	return data[0]
}

// OutB writes one byte. Writes to unhandled ports are dropped.
func (bus *IOBus) OutB(port uint16, value uint8) {
	if bus.Debug {
		log.Printf("IOBus: OUT 0x%x <- 0x%02x", port, value)
	}
	if err := bus.HandleIO(port, IODirectionOut, 1, []byte{value}); err != nil && bus.Debug {
		log.Printf("IOBus: OUT 0x%x: %v", port, err)
	}
}

// Unhandled returns how many accesses hit port with no device behind it.
func (bus *IOBus) Unhandled(port uint16) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return bus.unhandled[port]
}
