// Package ps2 talks to the 8042 PS/2 controller and the keyboard behind it
// by polling the status register. The interrupt path does not use it; it
// serves configuration and the legacy byte-wise keyboard access path.
package ps2

import (
	"errors"
	"fmt"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/portio"
)

// Controller I/O ports.
const (
	DataPort    uint16 = 0x60
	StatusPort  uint16 = 0x64 // read
	CommandPort uint16 = 0x64 // write
)

// DefaultPollCount is how many status reads a send or receive makes before
// giving up.
const DefaultPollCount = 1 << 20

// Controller commands written to CommandPort.
const (
	CmdReadConfig     byte = 0x20
	CmdWriteConfig    byte = 0x60
	CmdSelfTest       byte = 0xAA // responds 0x55 on success, 0xFC on failure
	CmdInterfaceTest  byte = 0xAB // responds 0x00 on success
	CmdDisablePort    byte = 0xAD
	CmdEnablePort     byte = 0xAE
	CmdReadOutputPort byte = 0xD0
	CmdPulseReset     byte = 0xFE // pulses output line 0 low: system reset
)

const (
	selfTestPassed      byte = 0x55
	interfaceTestPassed byte = 0x00
)

// Configuration byte bits.
const (
	ConfigPort1Interrupt   byte = 1 << 0
	ConfigSystemFlag       byte = 1 << 2
	ConfigPort1ClockOff    byte = 1 << 4
	ConfigPort1Translation byte = 1 << 6
)

var (
	// ErrTimeout is returned when the controller buffer did not change state
	// within the poll budget. The caller may retry.
	ErrTimeout = errors.New("ps2: controller timeout")
	// ErrSelfTest is returned when a controller self test or interface test
	// reports failure.
	ErrSelfTest = errors.New("ps2: controller test failed")
)

// Status is the controller status register (port 0x64).
type Status uint8

const (
	StatusOutputFull Status = 1 << iota
	StatusInputFull
	StatusSystemFlag
	StatusCommandData
	StatusInhibited
	StatusTxTimeout
	StatusRxTimeout
	StatusParityError
)

// OutputFull reports data waiting in the output buffer (readable at 0x60).
func (s Status) OutputFull() bool { return s&StatusOutputFull != 0 }

// InputFull reports the controller has not yet consumed the last write.
func (s Status) InputFull() bool { return s&StatusInputFull != 0 }

func (s Status) SystemFlag() bool  { return s&StatusSystemFlag != 0 }
func (s Status) CommandData() bool { return s&StatusCommandData != 0 }
func (s Status) Inhibited() bool   { return s&StatusInhibited != 0 }
func (s Status) TxTimeout() bool   { return s&StatusTxTimeout != 0 }
func (s Status) RxTimeout() bool   { return s&StatusRxTimeout != 0 }
func (s Status) ParityError() bool { return s&StatusParityError != 0 }

func (s Status) String() string {
	return fmt.Sprintf("obf=%t ibf=%t sys=%t cmd=%t inh=%t txto=%t rxto=%t par=%t",
		s.OutputFull(), s.InputFull(), s.SystemFlag(), s.CommandData(),
		s.Inhibited(), s.TxTimeout(), s.RxTimeout(), s.ParityError())
}

// Controller drives an 8042-compatible PS/2 controller.
type Controller struct {
	port      portio.Port
	pollCount int
}

// NewController returns a controller using port for I/O. A pollCount of 0
// selects DefaultPollCount.
func NewController(port portio.Port, pollCount int) *Controller {
	if pollCount <= 0 {
		pollCount = DefaultPollCount
	}
	return &Controller{port: port, pollCount: pollCount}
}

// Status reads the status register.
func (c *Controller) Status() Status {
	return Status(c.port.InB(StatusPort))
}

// SendByte waits for the input buffer to drain and writes b to the data
// port.
func (c *Controller) SendByte(b byte) error {
	if err := c.waitInputEmpty(); err != nil {
		return fmt.Errorf("send 0x%02x: %w", b, err)
	}
	c.port.OutB(DataPort, b)
	return nil
}

// ReceiveByte waits for the output buffer to fill and reads the data port.
func (c *Controller) ReceiveByte() (byte, error) {
	for i := 0; i < c.pollCount; i++ {
		if c.Status().OutputFull() {
			return c.port.InB(DataPort), nil
		}
	}
	return 0, fmt.Errorf("receive: %w", ErrTimeout)
}

// SendCommand writes a controller command to the command register.
func (c *Controller) SendCommand(cmd byte) error {
	if err := c.waitInputEmpty(); err != nil {
		return fmt.Errorf("command 0x%02x: %w", cmd, err)
	}
	c.port.OutB(CommandPort, cmd)
	return nil
}

func (c *Controller) waitInputEmpty() error {
	for i := 0; i < c.pollCount; i++ {
		if !c.Status().InputFull() {
			return nil
		}
	}
	return ErrTimeout
}

func (c *Controller) query(cmd byte) (byte, error) {
	if err := c.SendCommand(cmd); err != nil {
		return 0, err
	}
	return c.ReceiveByte()
}

// ReadConfig returns the controller configuration byte.
func (c *Controller) ReadConfig() (byte, error) {
	return c.query(CmdReadConfig)
}

// WriteConfig replaces the controller configuration byte.
func (c *Controller) WriteConfig(cfg byte) error {
	if err := c.SendCommand(CmdWriteConfig); err != nil {
		return err
	}
	return c.SendByte(cfg)
}

// SelfTest runs the controller self test.
func (c *Controller) SelfTest() error {
	r, err := c.query(CmdSelfTest)
	if err != nil {
		return err
	}
	if r != selfTestPassed {
		return fmt.Errorf("self test returned 0x%02x: %w", r, ErrSelfTest)
	}
	return nil
}

// InterfaceTest tests the first PS/2 port.
func (c *Controller) InterfaceTest() error {
	r, err := c.query(CmdInterfaceTest)
	if err != nil {
		return err
	}
	if r != interfaceTestPassed {
		return fmt.Errorf("interface test returned 0x%02x: %w", r, ErrSelfTest)
	}
	return nil
}

// DisablePort stops the keyboard clock line.
func (c *Controller) DisablePort() error { return c.SendCommand(CmdDisablePort) }

// EnablePort restarts the keyboard clock line.
func (c *Controller) EnablePort() error { return c.SendCommand(CmdEnablePort) }

// ReadOutputPort returns the controller output port.
func (c *Controller) ReadOutputPort() (byte, error) {
	return c.query(CmdReadOutputPort)
}

// Flush discards any bytes sitting in the output buffer and returns how many
// were dropped.
func (c *Controller) Flush() int {
	n := 0
	for c.Status().OutputFull() && n < 16 {
		c.port.InB(DataPort)
		n++
	}
	return n
}
