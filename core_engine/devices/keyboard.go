package devices

import (
	"fmt"
	"log"
	"sync"
)

// KeyboardDevice emulates an 8042 keyboard controller with an MF2 keyboard
// on its first port. Controller replies, keyboard replies and scan codes all
// share one output FIFO that the guest drains through port 0x60. IRQ1 is
// raised each time a byte reaches the head of the FIFO while the config
// byte enables it.
type KeyboardDevice struct {
	lock sync.Mutex
	irq  InterruptRaiser

	output []byte

	// Controller state.
	config       byte
	expectConfig bool
	lastWasCmd   bool
	resetPulses  int

	// Keyboard state.
	scanning    bool
	scanSet     byte
	leds        byte
	pendingCmd  byte // keyboard command waiting for its data byte
	resendsLeft int  // replies to answer with RESEND, for fault injection

	Debug bool
}

// NewKeyboardDevice returns a controller in its power-on state: translation
// on, interrupts off, keyboard scanning.
func NewKeyboardDevice(irq InterruptRaiser) *KeyboardDevice {
	return &KeyboardDevice{
		irq:      irq,
		config:   KBD_CONFIG_SYS | KBD_CONFIG_TRANSLATION,
		scanning: true,
		scanSet:  2,
	}
}

// HandleIO processes I/O operations for the keyboard controller.
func (k *KeyboardDevice) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	k.lock.Lock()
	defer k.lock.Unlock()

	if size != 1 {
		return fmt.Errorf("KeyboardDevice: I/O size %d not supported for port 0x%x. Only 1-byte supported", size, port)
	}

	switch {
	case port == KEYBOARD_PORT_STATUS && direction == IODirectionIn:
		data[0] = k.statusLocked()
	case port == KEYBOARD_PORT_DATA && direction == IODirectionIn:
		data[0] = k.readDataLocked()
	case port == KEYBOARD_PORT_STATUS:
		k.lastWasCmd = true
		k.handleCommandLocked(data[0])
	case port == KEYBOARD_PORT_DATA:
		k.lastWasCmd = false
		k.handleDataWriteLocked(data[0])
	default:
		return fmt.Errorf("KeyboardDevice: Unhandled I/O on port 0x%x", port)
	}
	return nil
}

func (k *KeyboardDevice) statusLocked() byte {
	var s byte
	if len(k.output) > 0 {
		s |= KBD_STATUS_OBF
	}
	s |= k.config & KBD_CONFIG_SYS
	if k.lastWasCmd {
		s |= KBD_STATUS_CMD_DATA
	}
	return s
}

func (k *KeyboardDevice) readDataLocked() byte {
	if len(k.output) == 0 {
		return 0x00
	}
	b := k.output[0]
	k.output = k.output[1:]
	if len(k.output) > 0 {
		k.raiseLocked()
	}
	return b
}

func (k *KeyboardDevice) queueLocked(bs ...byte) {
	wasEmpty := len(k.output) == 0
	k.output = append(k.output, bs...)
	if wasEmpty && len(bs) > 0 {
		k.raiseLocked()
	}
}

func (k *KeyboardDevice) raiseLocked() {
	if k.irq != nil && k.config&KBD_CONFIG_INT1 != 0 {
		k.irq.RaiseIRQ(KEYBOARD_IRQ)
	}
}

func (k *KeyboardDevice) handleCommandLocked(cmd byte) {
	if k.Debug {
		log.Printf("KeyboardDevice: controller command 0x%02x", cmd)
	}
	switch cmd {
	case KBD_CTRL_READ_CONFIG:
		k.queueLocked(k.config)
	case KBD_CTRL_WRITE_CONFIG:
		k.expectConfig = true
	case KBD_CTRL_SELF_TEST:
		k.queueLocked(0x55)
	case KBD_CTRL_TEST_PORT1:
		k.queueLocked(0x00)
	case KBD_CTRL_DISABLE_KBD:
		k.config |= KBD_CONFIG_CLOCK1_OFF
	case KBD_CTRL_ENABLE_KBD:
		k.config &^= KBD_CONFIG_CLOCK1_OFF
	case KBD_CTRL_READ_OUTPUT:
		k.queueLocked(0x03) // reset line high, A20 on
	case KBD_CTRL_PULSE_RESET:
		k.resetPulses++
		log.Printf("KeyboardDevice: guest pulsed the reset line")
	default:
		if k.Debug {
			log.Printf("KeyboardDevice: ignoring controller command 0x%02x", cmd)
		}
	}
}

func (k *KeyboardDevice) handleDataWriteLocked(b byte) {
	if k.expectConfig {
		k.expectConfig = false
		k.config = b
		return
	}
	k.keyboardCommandLocked(b)
}

// keyboardCommandLocked is the keyboard's side of a byte written to 0x60.
func (k *KeyboardDevice) keyboardCommandLocked(b byte) {
	if k.Debug {
		log.Printf("KeyboardDevice: keyboard byte 0x%02x", b)
	}
	if k.resendsLeft > 0 {
		k.resendsLeft--
		k.queueLocked(KBD_RESP_RESEND)
		return
	}

	if cmd := k.pendingCmd; cmd != 0 {
		k.pendingCmd = 0
		switch cmd {
		case KBD_CMD_SET_LEDS:
			k.leds = b & 0x07
			k.queueLocked(KBD_RESP_ACK)
		case KBD_CMD_SCANCODE_SET:
			switch {
			case b == 0:
				k.queueLocked(KBD_RESP_ACK, k.scanSet)
			case b <= 3:
				k.scanSet = b
				k.queueLocked(KBD_RESP_ACK)
			default:
				k.queueLocked(KBD_RESP_RESEND)
			}
		case KBD_CMD_TYPEMATIC:
			k.queueLocked(KBD_RESP_ACK)
		}
		return
	}

	switch b {
	case KBD_CMD_SET_LEDS, KBD_CMD_SCANCODE_SET, KBD_CMD_TYPEMATIC:
		k.pendingCmd = b
		k.queueLocked(KBD_RESP_ACK)
	case KBD_CMD_ECHO:
		k.queueLocked(KBD_RESP_ECHO)
	case KBD_CMD_IDENTIFY:
		k.queueLocked(KBD_RESP_ACK, 0xAB, 0x41) // MF2, translated
	case KBD_CMD_ENABLE:
		k.scanning = true
		k.queueLocked(KBD_RESP_ACK)
	case KBD_CMD_DISABLE:
		k.scanning = false
		k.queueLocked(KBD_RESP_ACK)
	case KBD_CMD_DEFAULTS:
		k.scanSet = 2
		k.queueLocked(KBD_RESP_ACK)
	case KBD_CMD_RESET:
		k.scanning = true
		k.scanSet = 2
		k.leds = 0
		k.queueLocked(KBD_RESP_ACK, KBD_RESP_TEST_PASS)
	default:
		k.queueLocked(KBD_RESP_RESEND)
	}
}

// TypeScanCodes queues set 1 bytes as if the keyboard had sent them through
// the translating controller. Nothing is queued while scanning is disabled
// or the port clock is off; the return value is how many bytes were taken.
func (k *KeyboardDevice) TypeScanCodes(codes []byte) int {
	k.lock.Lock()
	defer k.lock.Unlock()
	if !k.scanning || k.config&KBD_CONFIG_CLOCK1_OFF != 0 {
		return 0
	}
	k.queueLocked(codes...)
	return len(codes)
}

// InjectResends makes the keyboard answer the next n bytes with RESEND.
func (k *KeyboardDevice) InjectResends(n int) {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.resendsLeft = n
}

// Pending returns how many bytes wait in the output FIFO.
func (k *KeyboardDevice) Pending() int {
	k.lock.Lock()
	defer k.lock.Unlock()
	return len(k.output)
}

// Config returns the controller configuration byte.
func (k *KeyboardDevice) Config() byte {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.config
}

// LEDs returns the lock LED mask last set by the guest.
func (k *KeyboardDevice) LEDs() byte {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.leds
}

// ResetPulses counts controller system reset requests.
func (k *KeyboardDevice) ResetPulses() int {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.resetPulses
}
