package devices

// I/O directions as seen by HandleIO.
const (
	IODirectionIn  uint8 = 0 // read from device
	IODirectionOut uint8 = 1 // write to device
)

// 8259A PIC I/O port addresses.
const (
	PIC_MASTER_CMD_PORT  uint16 = 0x20
	PIC_MASTER_DATA_PORT uint16 = 0x21
	PIC_SLAVE_CMD_PORT   uint16 = 0xA0
	PIC_SLAVE_DATA_PORT  uint16 = 0xA1
)

// IRQ lines.
const (
	TIMER_IRQ            uint8 = 0
	KEYBOARD_IRQ         uint8 = 1
	PIC_MASTER_SLAVE_IRQ uint8 = 2 // master input wired to the slave
	SERIAL_IRQ           uint8 = 4 // COM1
)

// ICW1 bits.
const (
	PIC_ICW1_IC4  byte = 0x01 // ICW4 follows
	PIC_ICW1_SNGL byte = 0x02 // single, no ICW3
	PIC_ICW1_ADI  byte = 0x04
	PIC_ICW1_LTIM byte = 0x08 // level triggered
	PIC_ICW1_INIT byte = 0x10
)

// ICW4 bits.
const (
	PIC_ICW4_UPM  byte = 0x01 // 8086 mode
	PIC_ICW4_AEOI byte = 0x02
	PIC_ICW4_MS   byte = 0x04
	PIC_ICW4_BUF  byte = 0x08
	PIC_ICW4_SFNM byte = 0x10
)

// OCW2 bits.
const (
	PIC_OCW2_LEVEL   byte = 0x07
	PIC_OCW2_EOI_CMD byte = 0x20
	PIC_OCW2_SL_CMD  byte = 0x40 // specific
	PIC_OCW2_R_CMD   byte = 0x80
)

// OCW3 bits.
const (
	PIC_OCW3_RIS_CMD  byte = 0x01 // read ISR rather than IRR
	PIC_OCW3_RR_CMD   byte = 0x02
	PIC_OCW3_POLL_CMD byte = 0x04
	PIC_OCW3_OCW3_ID  byte = 0x08
)

// 8042 keyboard controller ports.
const (
	KEYBOARD_PORT_DATA   uint16 = 0x60
	KEYBOARD_PORT_STATUS uint16 = 0x64 // read: status, write: command
)

// 8042 status register bits.
const (
	KBD_STATUS_OBF      byte = 0x01
	KBD_STATUS_IBF      byte = 0x02
	KBD_STATUS_SYS      byte = 0x04
	KBD_STATUS_CMD_DATA byte = 0x08 // last write went to the command port
)

// 8042 controller commands.
const (
	KBD_CTRL_READ_CONFIG  byte = 0x20
	KBD_CTRL_WRITE_CONFIG byte = 0x60
	KBD_CTRL_SELF_TEST    byte = 0xAA
	KBD_CTRL_TEST_PORT1   byte = 0xAB
	KBD_CTRL_DISABLE_KBD  byte = 0xAD
	KBD_CTRL_ENABLE_KBD   byte = 0xAE
	KBD_CTRL_READ_OUTPUT  byte = 0xD0
	KBD_CTRL_PULSE_RESET  byte = 0xFE
)

// 8042 configuration byte bits.
const (
	KBD_CONFIG_INT1        byte = 0x01
	KBD_CONFIG_SYS         byte = 0x04
	KBD_CONFIG_CLOCK1_OFF  byte = 0x10
	KBD_CONFIG_TRANSLATION byte = 0x40
)

// PS/2 keyboard commands and responses.
const (
	KBD_CMD_SET_LEDS     byte = 0xED
	KBD_CMD_ECHO         byte = 0xEE
	KBD_CMD_SCANCODE_SET byte = 0xF0
	KBD_CMD_IDENTIFY     byte = 0xF2
	KBD_CMD_TYPEMATIC    byte = 0xF3
	KBD_CMD_ENABLE       byte = 0xF4
	KBD_CMD_DISABLE      byte = 0xF5
	KBD_CMD_DEFAULTS     byte = 0xF6
	KBD_CMD_RESEND       byte = 0xFE
	KBD_CMD_RESET        byte = 0xFF

	KBD_RESP_TEST_PASS byte = 0xAA
	KBD_RESP_ECHO      byte = 0xEE
	KBD_RESP_ACK       byte = 0xFA
	KBD_RESP_RESEND    byte = 0xFE
)

// Serial port (16550A) constants.
const (
	COM1_PORT_BASE uint16 = 0x3F8
	COM1_PORT_END  uint16 = 0x3FF

	// Register offsets from the base port.
	RHR_THR_DLL uint16 = 0 // RHR (R), THR (W), DLL (DLAB=1)
	IER_DLH     uint16 = 1
	IIR_FCR     uint16 = 2
	LCR         uint16 = 3
	MCR         uint16 = 4
	LSR         uint16 = 5
	MSR         uint16 = 6
	SCR         uint16 = 7
)

const LCR_DLAB byte = 0x80

// Line Status Register bits.
const (
	LSR_DR   byte = 0x01
	LSR_THRE byte = 0x20 // transmit holding register empty
	LSR_TEMT byte = 0x40
)

// Interrupt Identification Register values.
const (
	IIR_NO_INT_PENDING byte = 0x01
	IIR_THRE           byte = 0x02
)

const IER_THRE_ENABLE byte = 0x02

// 8254 PIT ports and control word fields.
const (
	PIT_PORT_COUNTER0 uint16 = 0x40
	PIT_PORT_COUNTER1 uint16 = 0x41
	PIT_PORT_COUNTER2 uint16 = 0x42
	PIT_PORT_COMMAND  uint16 = 0x43

	PIT_RW_LATCH byte = 0x0
	PIT_RW_LSB   byte = 0x1
	PIT_RW_MSB   byte = 0x2
	PIT_RW_LOHI  byte = 0x3

	PIT_MODE_INTERRUPT  byte = 0 // interrupt on terminal count
	PIT_MODE_RATE       byte = 2
	PIT_MODE_SQUARE     byte = 3
	PIT_READBACK_SELECT byte = 0x3

	PIT_FREQUENCY_HZ = 1193182
)
