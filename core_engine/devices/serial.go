package devices

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// SerialPortDevice implements the transmit side of a 16550A UART. Bytes the
// guest writes to THR go straight to the output writer, so THR always reads
// as empty.
type SerialPortDevice struct {
	outputWriter io.Writer
	irqRaiser    InterruptRaiser
	lock         sync.Mutex

	dll byte
	dlh byte
	ier byte
	fcr byte
	lcr byte
	mcr byte
	scr byte

	threPending bool // THR empty interrupt not yet read from IIR
	written     int
	Debug       bool
}

// NewSerialPortDevice creates a UART writing to writer and raising its
// interrupt through irqRaiser (which may be nil).
func NewSerialPortDevice(writer io.Writer, irqRaiser InterruptRaiser) *SerialPortDevice {
	return &SerialPortDevice{
		outputWriter: writer,
		irqRaiser:    irqRaiser,
		dll:          0x0C, // 9600 baud
	}
}

// HandleIO processes I/O operations for the serial port.
func (s *SerialPortDevice) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if size != 1 {
		return fmt.Errorf("SerialPortDevice: I/O size %d not supported for port 0x%x. Only 1-byte supported", size, port)
	}
	if port < COM1_PORT_BASE || port > COM1_PORT_END {
		return fmt.Errorf("SerialPortDevice: port 0x%x outside COM1", port)
	}
	offset := port - COM1_PORT_BASE
	dlab := s.lcr&LCR_DLAB != 0

	if direction == IODirectionOut {
		val := data[0]
		switch {
		case offset == RHR_THR_DLL && dlab:
			s.dll = val
		case offset == RHR_THR_DLL:
			return s.transmitLocked(val)
		case offset == IER_DLH && dlab:
			s.dlh = val
		case offset == IER_DLH:
			s.ier = val & 0x0F
		case offset == IIR_FCR:
			s.fcr = val
		case offset == LCR:
			s.lcr = val
		case offset == MCR:
			s.mcr = val
		case offset == SCR:
			s.scr = val
		default:
			return fmt.Errorf("SerialPortDevice: Unhandled OUT to port 0x%x, value 0x%x", port, val)
		}
		if s.Debug {
			log.Printf("SerialPortDevice: OUT offset %d <- 0x%02x", offset, val)
		}
		return nil
	}

	var val byte
	switch {
	case offset == RHR_THR_DLL && dlab:
		val = s.dll
	case offset == RHR_THR_DLL:
		val = 0 // no receive path
	case offset == IER_DLH && dlab:
		val = s.dlh
	case offset == IER_DLH:
		val = s.ier
	case offset == IIR_FCR:
		val = IIR_NO_INT_PENDING
		if s.threPending {
			val = IIR_THRE
			s.threPending = false
		}
	case offset == LCR:
		val = s.lcr
	case offset == MCR:
		val = s.mcr
	case offset == LSR:
		val = LSR_THRE | LSR_TEMT
	case offset == MSR:
		val = 0
	case offset == SCR:
		val = s.scr
	}
	data[0] = val
	return nil
}

func (s *SerialPortDevice) transmitLocked(b byte) error {
	if _, err := s.outputWriter.Write([]byte{b}); err != nil {
		return fmt.Errorf("SerialPortDevice: writing output: %w", err)
	}
	s.written++
	if s.ier&IER_THRE_ENABLE != 0 {
		s.threPending = true
		if s.irqRaiser != nil {
			s.irqRaiser.RaiseIRQ(SERIAL_IRQ)
		}
	}
	return nil
}

// Written returns how many bytes the guest has transmitted.
func (s *SerialPortDevice) Written() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.written
}
