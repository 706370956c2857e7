package devices

import (
	"fmt"
	"log"
	"sync"
)

// PITDevice implements the parts of an 8254 Programmable Interval Timer the
// kernel uses. All three counters accept programming, but only counter 0 is
// wired to an IRQ line. Time does not pass on its own: the machine advances
// the input clock with Tick.
type PITDevice struct {
	irqRaiser InterruptRaiser
	lock      sync.Mutex

	counters [3]pitCounter
	fired    uint64
	Debug    bool
}

type pitCounter struct {
	reload  uint16
	elapsed uint32 // input clocks since the last reload or terminal count
	mode    byte
	rwMode  byte
	bcd     bool
	armed   bool // a full reload value has been written

	writeMSB bool // LOHI: next write is the high byte
	readMSB  bool // LOHI: next read is the high byte
	latched  bool
	latch    uint16
}

// period returns the reload value in input clocks. Zero counts as 65536.
func (c *pitCounter) period() uint32 {
	if c.reload == 0 {
		return 1 << 16
	}
	return uint32(c.reload)
}

// current is the value a read of the counter would see.
func (c *pitCounter) current() uint16 {
	if !c.armed {
		return c.reload
	}
	return uint16(c.period() - c.elapsed%c.period())
}

// NewPITDevice creates a PIT whose counter 0 raises interrupts through
// irqRaiser. Counters power up unprogrammed.
func NewPITDevice(irqRaiser InterruptRaiser) *PITDevice {
	p := &PITDevice{irqRaiser: irqRaiser}
	for i := range p.counters {
		p.counters[i].mode = PIT_MODE_SQUARE
		p.counters[i].rwMode = PIT_RW_LOHI
	}
	return p
}

// HandleIO processes I/O operations for the PIT.
func (p *PITDevice) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if size != 1 {
		return fmt.Errorf("PITDevice: I/O size %d not supported for port 0x%x. Only 1-byte supported", size, port)
	}

	switch port {
	case PIT_PORT_COUNTER0, PIT_PORT_COUNTER1, PIT_PORT_COUNTER2:
		c := &p.counters[port-PIT_PORT_COUNTER0]
		if direction == IODirectionOut {
			c.write(data[0])
		} else {
			data[0] = c.read()
		}
	case PIT_PORT_COMMAND:
		if direction != IODirectionOut {
			return fmt.Errorf("PITDevice: read from command port 0x%x", port)
		}
		p.writeCommandLocked(data[0])
	default:
		return fmt.Errorf("PITDevice: Unhandled I/O to port 0x%x, direction %d", port, direction)
	}
	return nil
}

func (c *pitCounter) write(val byte) {
	switch c.rwMode {
	case PIT_RW_LSB:
		c.reload = uint16(val)
	case PIT_RW_MSB:
		c.reload = uint16(val) << 8
	case PIT_RW_LOHI:
		if !c.writeMSB {
			c.reload = c.reload&0xFF00 | uint16(val)
			c.writeMSB = true
			c.armed = false
			return
		}
		c.reload = c.reload&0x00FF | uint16(val)<<8
		c.writeMSB = false
	}
	c.elapsed = 0
	c.armed = true
}

func (c *pitCounter) read() byte {
	v := c.current()
	if c.latched {
		v = c.latch
	}
	var b byte
	switch c.rwMode {
	case PIT_RW_LSB:
		b = byte(v)
		c.latched = false
	case PIT_RW_MSB:
		b = byte(v >> 8)
		c.latched = false
	default:
		if !c.readMSB {
			b = byte(v)
			c.readMSB = true
		} else {
			b = byte(v >> 8)
			c.readMSB = false
			c.latched = false
		}
	}
	return b
}

func (p *PITDevice) writeCommandLocked(val byte) {
	sel := (val >> 6) & 0x3
	rw := (val >> 4) & 0x3
	mode := (val >> 1) & 0x7
	if mode > 5 {
		mode -= 4 // 110b and 111b alias modes 2 and 3
	}

	if sel == PIT_READBACK_SELECT {
		if p.Debug {
			log.Printf("PITDevice: ignoring read-back command 0x%02x", val)
		}
		return
	}
	c := &p.counters[sel]
	if rw == PIT_RW_LATCH {
		if !c.latched {
			c.latch = c.current()
			c.latched = true
			c.readMSB = false
		}
		return
	}
	c.rwMode = rw
	c.mode = mode
	c.bcd = val&0x1 != 0
	c.armed = false
	c.writeMSB = false
	c.readMSB = false
	c.latched = false
	if p.Debug {
		log.Printf("PITDevice: counter %d mode %d rw %d bcd %t", sel, mode, rw, c.bcd)
	}
}

// Tick advances the input clock by clocks cycles and raises IRQ0 once for
// every terminal count counter 0 reaches. Mode 0 fires once and stops; the
// periodic modes reload. It returns the number of interrupts raised.
func (p *PITDevice) Tick(clocks uint32) int {
	p.lock.Lock()
	defer p.lock.Unlock()

	c := &p.counters[0]
	if !c.armed {
		return 0
	}
	n := 0
	switch c.mode {
	case PIT_MODE_INTERRUPT:
		before := c.elapsed
		c.elapsed += clocks
		if before < c.period() && c.elapsed >= c.period() {
			n = 1
		}
	case PIT_MODE_RATE, PIT_MODE_SQUARE:
		total := uint64(c.elapsed) + uint64(clocks)
		n = int(total / uint64(c.period()))
		c.elapsed = uint32(total % uint64(c.period()))
	default:
		c.elapsed += clocks
	}
	for i := 0; i < n && p.irqRaiser != nil; i++ {
		p.irqRaiser.RaiseIRQ(TIMER_IRQ)
	}
	p.fired += uint64(n)
	return n
}

// Fired counts the interrupts counter 0 has raised.
func (p *PITDevice) Fired() uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.fired
}
