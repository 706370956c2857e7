package ps2

import (
	"errors"
	"fmt"
)

// Keyboard device commands, sent through the controller data port.
const (
	KbdSetLEDs        byte = 0xED
	KbdEcho           byte = 0xEE
	KbdScanCodeSet    byte = 0xF0 // data byte 0 = get, 1..3 = set
	KbdIdentify       byte = 0xF2
	KbdEnableScanning byte = 0xF4
	KbdDisableScan    byte = 0xF5
	KbdSetDefaults    byte = 0xF6
	KbdReset          byte = 0xFF
)

// Keyboard responses.
const (
	RespSelfTestPassed byte = 0xAA
	RespEcho           byte = 0xEE
	RespAck            byte = 0xFA
	RespResend         byte = 0xFE
)

// LED bits for SetLEDs.
const (
	LEDScrollLock byte = 1 << 0
	LEDNumLock    byte = 1 << 1
	LEDCapsLock   byte = 1 << 2
)

// MaxResend bounds how many times a command is repeated after RESEND.
const MaxResend = 3

var (
	// ErrResend means the keyboard kept asking for a resend.
	ErrResend = errors.New("ps2: keyboard requested resend too many times")
	// ErrUnexpectedResponse means the keyboard answered with neither ACK nor
	// RESEND.
	ErrUnexpectedResponse = errors.New("ps2: unexpected keyboard response")
)

// Keyboard issues commands to the PS/2 keyboard on the controller's first
// port.
type Keyboard struct {
	ctlr *Controller
}

func NewKeyboard(ctlr *Controller) *Keyboard {
	return &Keyboard{ctlr: ctlr}
}

// command sends cmd and waits for ACK, repeating on RESEND.
func (k *Keyboard) command(cmd byte) error {
	for attempt := 0; attempt <= MaxResend; attempt++ {
		if err := k.ctlr.SendByte(cmd); err != nil {
			return err
		}
		r, err := k.ctlr.ReceiveByte()
		if err != nil {
			return fmt.Errorf("keyboard command 0x%02x: %w", cmd, err)
		}
		switch r {
		case RespAck:
			return nil
		case RespResend:
			continue
		default:
			return fmt.Errorf("keyboard command 0x%02x got 0x%02x: %w", cmd, r, ErrUnexpectedResponse)
		}
	}
	return fmt.Errorf("keyboard command 0x%02x: %w", cmd, ErrResend)
}

func (k *Keyboard) commandWithData(cmd, data byte) error {
	if err := k.command(cmd); err != nil {
		return err
	}
	return k.command(data)
}

// SetLEDs sets the lock LEDs from a mask of LED* bits.
func (k *Keyboard) SetLEDs(mask byte) error {
	return k.commandWithData(KbdSetLEDs, mask&(LEDScrollLock|LEDNumLock|LEDCapsLock))
}

// Echo checks that the keyboard is alive.
func (k *Keyboard) Echo() error {
	if err := k.ctlr.SendByte(KbdEcho); err != nil {
		return err
	}
	r, err := k.ctlr.ReceiveByte()
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	if r != RespEcho {
		return fmt.Errorf("echo got 0x%02x: %w", r, ErrUnexpectedResponse)
	}
	return nil
}

// ScanCodeSet returns the scan code set the keyboard reports. With
// controller translation on, set 2 arrives at the host as set 1.
func (k *Keyboard) ScanCodeSet() (byte, error) {
	if err := k.commandWithData(KbdScanCodeSet, 0x00); err != nil {
		return 0, err
	}
	return k.ctlr.ReceiveByte()
}

// Identify returns the keyboard's identification bytes (0, 1 or 2 of them).
// An MF2 keyboard behind a translating controller answers 0xAB 0x41.
func (k *Keyboard) Identify() ([]byte, error) {
	if err := k.command(KbdIdentify); err != nil {
		return nil, err
	}
	var id []byte
	for len(id) < 2 {
		b, err := k.ctlr.ReceiveByte()
		if errors.Is(err, ErrTimeout) {
			break
		}
		if err != nil {
			return nil, err
		}
		id = append(id, b)
	}
	return id, nil
}

func (k *Keyboard) EnableScanning() error  { return k.command(KbdEnableScanning) }
func (k *Keyboard) DisableScanning() error { return k.command(KbdDisableScan) }
func (k *Keyboard) SetDefaults() error     { return k.command(KbdSetDefaults) }

// Reset resets the keyboard and checks its self test result.
func (k *Keyboard) Reset() error {
	if err := k.command(KbdReset); err != nil {
		return err
	}
	r, err := k.ctlr.ReceiveByte()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if r != RespSelfTestPassed {
		return fmt.Errorf("reset self test got 0x%02x: %w", r, ErrUnexpectedResponse)
	}
	return nil
}

// ReadScanCode polls for one scan code byte. It is the interrupt-free way to
// read the keyboard and returns ErrTimeout when no key arrives in time.
func (k *Keyboard) ReadScanCode() (byte, error) {
	return k.ctlr.ReceiveByte()
}
