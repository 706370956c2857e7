// Package console provides displays for decoded keyboard characters.
package console

import (
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/portio"
)

// COM1 registers.
const (
	COM1 uint16 = 0x3F8

	regData     = 0
	regIER      = 1
	regFCR      = 2
	regLCR      = 3
	regMCR      = 4
	regLSR      = 5
	lsrTHRE     = 0x20
	lcrDLAB     = 0x80
	lcr8N1      = 0x03
	fcrEnable   = 0xC7 // enable and clear FIFOs, 14 byte threshold
	mcrDTRRTS   = 0x0B
	divisor9600 = 12
)

// DefaultSpin bounds the wait for the transmitter before a byte is dropped.
const DefaultSpin = 1 << 16

// SerialDisplay writes characters to a 16550 UART. The attribute is dropped:
// a serial line has no colour.
type SerialDisplay struct {
	port    portio.Port
	base    uint16
	spin    int
	dropped int
}

func NewSerialDisplay(port portio.Port, base uint16) *SerialDisplay {
	return &SerialDisplay{port: port, base: base, spin: DefaultSpin}
}

// Init programs 9600 baud 8N1 with FIFOs on and interrupts off.
func (s *SerialDisplay) Init() {
	s.port.OutB(s.base+regIER, 0x00)
	s.port.OutB(s.base+regLCR, lcrDLAB)
	s.port.OutB(s.base+regData, divisor9600&0xFF)
	s.port.OutB(s.base+regIER, divisor9600>>8)
	s.port.OutB(s.base+regLCR, lcr8N1)
	s.port.OutB(s.base+regFCR, fcrEnable)
	s.port.OutB(s.base+regMCR, mcrDTRRTS)
}

func (s *SerialDisplay) Display(ch, attr byte) {
	for i := 0; i < s.spin; i++ {
		if s.port.InB(s.base+regLSR)&lsrTHRE != 0 {
			s.port.OutB(s.base+regData, ch)
			return
		}
	}
	s.dropped++
}

// Dropped counts characters lost because the transmitter never emptied.
func (s *SerialDisplay) Dropped() int { return s.dropped }

// WriterDisplay writes characters to an io.Writer. A display built with
// NewColorDisplay renders the attribute as ANSI colour.
type WriterDisplay struct {
	mu     sync.Mutex
	w      io.Writer
	colors map[byte]*color.Color // nil for plain output
	force  bool
}

func NewWriterDisplay(w io.Writer) *WriterDisplay {
	return &WriterDisplay{w: w}
}

// NewColorDisplay colours each character by its attribute. Escapes are only
// written when color decides the terminal supports them, unless EnableColor
// is called.
func NewColorDisplay(w io.Writer) *WriterDisplay {
	return &WriterDisplay{w: w, colors: map[byte]*color.Color{}}
}

// EnableColor writes escapes even when stdout is not a terminal.
func (d *WriterDisplay) EnableColor() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.force = true
	if d.colors != nil {
		d.colors = map[byte]*color.Color{}
	}
}

func (d *WriterDisplay) Display(ch, attr byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.colors == nil {
		d.w.Write([]byte{ch})
		return
	}
	d.colorFor(attr).Fprint(d.w, string([]byte{ch}))
}

func (d *WriterDisplay) colorFor(attr byte) *color.Color {
	c, ok := d.colors[attr]
	if !ok {
		c = color.New(AttrColor(attr)...)
		if d.force {
			c.EnableColor()
		}
		d.colors[attr] = c
	}
	return c
}

// VGA colour numbers 0-7 in ANSI terms. Brown shows as yellow.
var (
	vgaFg   = [8]color.Attribute{color.FgBlack, color.FgBlue, color.FgGreen, color.FgCyan, color.FgRed, color.FgMagenta, color.FgYellow, color.FgWhite}
	vgaFgHi = [8]color.Attribute{color.FgHiBlack, color.FgHiBlue, color.FgHiGreen, color.FgHiCyan, color.FgHiRed, color.FgHiMagenta, color.FgHiYellow, color.FgHiWhite}
	vgaBg   = [8]color.Attribute{color.BgBlack, color.BgBlue, color.BgGreen, color.BgCyan, color.BgRed, color.BgMagenta, color.BgYellow, color.BgWhite}
)

// AttrColor translates a VGA text attribute: bits 0-2 foreground, bit 3
// bright, bits 4-6 background, bit 7 blink. A black background is left to
// the terminal.
func AttrColor(attr byte) []color.Attribute {
	fg := vgaFg[attr&0x07]
	if attr&0x08 != 0 {
		fg = vgaFgHi[attr&0x07]
	}
	out := []color.Attribute{fg}
	if bg := (attr >> 4) & 0x07; bg != 0 {
		out = append(out, vgaBg[bg])
	}
	if attr&0x80 != 0 {
		out = append(out, color.BlinkSlow)
	}
	return out
}
