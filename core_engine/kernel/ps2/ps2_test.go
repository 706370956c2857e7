package ps2_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/ps2"
)

// MockPort is a scripted 8042. Every write is recorded, and Reply decides
// which bytes the write queues in the output buffer.
type MockPort struct {
	Reply     func(port uint16, b byte) []byte
	Output    []byte
	Writes    [][2]uint16
	StuckFull bool // input buffer never drains
}

func (m *MockPort) InB(port uint16) uint8 {
	switch port {
	case ps2.StatusPort:
		var s ps2.Status
		if len(m.Output) > 0 {
			s |= ps2.StatusOutputFull
		}
		if m.StuckFull {
			s |= ps2.StatusInputFull
		}
		return uint8(s)
	case ps2.DataPort:
		if len(m.Output) == 0 {
			return 0
		}
		b := m.Output[0]
		m.Output = m.Output[1:]
		return b
	}
	return 0xFF
}

func (m *MockPort) OutB(port uint16, b uint8) {
	m.Writes = append(m.Writes, [2]uint16{port, uint16(b)})
	if m.Reply != nil {
		m.Output = append(m.Output, m.Reply(port, b)...)
	}
}

func TestReceiveTimesOut(t *testing.T) {
	c := ps2.NewController(&MockPort{}, 100)
	if _, err := c.ReceiveByte(); !errors.Is(err, ps2.ErrTimeout) {
		t.Fatalf("ReceiveByte err = %v, want ErrTimeout", err)
	}
}

func TestSendTimesOutWhenInputStaysFull(t *testing.T) {
	m := &MockPort{StuckFull: true}
	c := ps2.NewController(m, 100)
	if err := c.SendByte(0xF4); !errors.Is(err, ps2.ErrTimeout) {
		t.Fatalf("SendByte err = %v, want ErrTimeout", err)
	}
	if err := c.SendCommand(ps2.CmdSelfTest); !errors.Is(err, ps2.ErrTimeout) {
		t.Fatalf("SendCommand err = %v, want ErrTimeout", err)
	}
	if len(m.Writes) != 0 {
		t.Errorf("writes went out while input buffer full: %v", m.Writes)
	}
}

func TestControllerSelfTest(t *testing.T) {
	reply := byte(0x55)
	m := &MockPort{Reply: func(port uint16, b byte) []byte {
		if port == ps2.CommandPort && b == ps2.CmdSelfTest {
			return []byte{reply}
		}
		return nil
	}}
	c := ps2.NewController(m, 100)
	if err := c.SelfTest(); err != nil {
		t.Fatalf("SelfTest: %v", err)
	}
	reply = 0xFC
	if err := c.SelfTest(); !errors.Is(err, ps2.ErrSelfTest) {
		t.Fatalf("SelfTest err = %v, want ErrSelfTest", err)
	}
}

func TestConfigReadWrite(t *testing.T) {
	cfg := byte(0x45)
	m := &MockPort{}
	var pendingWrite bool
	m.Reply = func(port uint16, b byte) []byte {
		switch {
		case port == ps2.CommandPort && b == ps2.CmdReadConfig:
			return []byte{cfg}
		case port == ps2.CommandPort && b == ps2.CmdWriteConfig:
			pendingWrite = true
		case port == ps2.DataPort && pendingWrite:
			cfg, pendingWrite = b, false
		}
		return nil
	}
	c := ps2.NewController(m, 100)

	got, err := c.ReadConfig()
	if err != nil || got != 0x45 {
		t.Fatalf("ReadConfig = 0x%02x, %v", got, err)
	}
	if err := c.WriteConfig(got &^ ps2.ConfigPort1Interrupt); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if cfg != 0x44 {
		t.Errorf("config = 0x%02x, want 0x44", cfg)
	}
	want := [][2]uint16{
		{uint16(ps2.CommandPort), uint16(ps2.CmdReadConfig)},
		{uint16(ps2.CommandPort), uint16(ps2.CmdWriteConfig)},
		{uint16(ps2.DataPort), 0x44},
	}
	if !reflect.DeepEqual(m.Writes, want) {
		t.Errorf("writes = %v, want %v", m.Writes, want)
	}
}

func TestFlush(t *testing.T) {
	m := &MockPort{Output: []byte{1, 2, 3}}
	if n := ps2.NewController(m, 10).Flush(); n != 3 {
		t.Fatalf("Flush = %d, want 3", n)
	}
}

func TestStatusBits(t *testing.T) {
	s := ps2.Status(0x81)
	if !s.OutputFull() || s.InputFull() || !s.ParityError() || s.RxTimeout() {
		t.Fatalf("decode of 0x81 wrong: %v", s)
	}
	if ps2.StatusParityError != 0x80 || ps2.StatusCommandData != 0x08 {
		t.Fatal("status bit positions moved")
	}
}

func TestKeyboardResendRetriesThenFails(t *testing.T) {
	m := &MockPort{Reply: func(port uint16, b byte) []byte {
		return []byte{ps2.RespResend}
	}}
	kbd := ps2.NewKeyboard(ps2.NewController(m, 100))
	if err := kbd.EnableScanning(); !errors.Is(err, ps2.ErrResend) {
		t.Fatalf("EnableScanning err = %v, want ErrResend", err)
	}
	if len(m.Writes) != ps2.MaxResend+1 {
		t.Errorf("sent %d times, want %d", len(m.Writes), ps2.MaxResend+1)
	}
}

func TestKeyboardResendThenAck(t *testing.T) {
	n := 0
	m := &MockPort{Reply: func(port uint16, b byte) []byte {
		n++
		if n == 1 {
			return []byte{ps2.RespResend}
		}
		return []byte{ps2.RespAck}
	}}
	kbd := ps2.NewKeyboard(ps2.NewController(m, 100))
	if err := kbd.SetLEDs(ps2.LEDCapsLock | 0xF0); err != nil {
		t.Fatalf("SetLEDs: %v", err)
	}
	want := [][2]uint16{
		{uint16(ps2.DataPort), uint16(ps2.KbdSetLEDs)},
		{uint16(ps2.DataPort), uint16(ps2.KbdSetLEDs)},
		{uint16(ps2.DataPort), uint16(ps2.LEDCapsLock)},
	}
	if !reflect.DeepEqual(m.Writes, want) {
		t.Errorf("writes = %v, want %v", m.Writes, want)
	}
}

func TestKeyboardUnexpectedResponse(t *testing.T) {
	m := &MockPort{Reply: func(uint16, byte) []byte { return []byte{0x00} }}
	kbd := ps2.NewKeyboard(ps2.NewController(m, 100))
	if err := kbd.SetDefaults(); !errors.Is(err, ps2.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestKeyboardResetAndIdentify(t *testing.T) {
	m := &MockPort{Reply: func(port uint16, b byte) []byte {
		switch b {
		case ps2.KbdReset:
			return []byte{ps2.RespAck, ps2.RespSelfTestPassed}
		case ps2.KbdIdentify:
			return []byte{ps2.RespAck, 0xAB, 0x41}
		case ps2.KbdEcho:
			return []byte{ps2.RespEcho}
		}
		return []byte{ps2.RespAck}
	}}
	kbd := ps2.NewKeyboard(ps2.NewController(m, 100))
	if err := kbd.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	id, err := kbd.Identify()
	if err != nil || !reflect.DeepEqual(id, []byte{0xAB, 0x41}) {
		t.Fatalf("Identify = % x, %v", id, err)
	}
	if err := kbd.Echo(); err != nil {
		t.Fatalf("Echo: %v", err)
	}
}

func TestIdentifyWithNoBytes(t *testing.T) {
	m := &MockPort{Reply: func(uint16, byte) []byte { return []byte{ps2.RespAck} }}
	kbd := ps2.NewKeyboard(ps2.NewController(m, 50))
	id, err := kbd.Identify()
	if err != nil || len(id) != 0 {
		t.Fatalf("Identify = % x, %v; want empty, nil", id, err)
	}
}

func TestReadScanCode(t *testing.T) {
	m := &MockPort{Output: []byte{0x1E}}
	kbd := ps2.NewKeyboard(ps2.NewController(m, 10))
	b, err := kbd.ReadScanCode()
	if err != nil || b != 0x1E {
		t.Fatalf("ReadScanCode = 0x%02x, %v", b, err)
	}
	if _, err := kbd.ReadScanCode(); !errors.Is(err, ps2.ErrTimeout) {
		t.Fatalf("empty buffer err = %v, want ErrTimeout", err)
	}
}
