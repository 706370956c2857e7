package kernel

import (
	"log"

	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/isr"
)

// 8254 counter 0 programming.
const (
	pitCounter0 uint16 = 0x40
	pitCommand  uint16 = 0x43

	// counter 0, lobyte/hibyte, mode 2 (rate generator), binary
	pitRateGenerator uint8 = 0x34

	// PITFrequency is the 8254 input clock in Hz.
	PITFrequency = 1193182
)

// DivisorForHz returns the counter 0 reload value closest to hz. Results
// are clamped to the 16-bit range, where 0 stands for 65536.
func DivisorForHz(hz int) uint16 {
	if hz <= 0 {
		return 0
	}
	d := (PITFrequency + hz/2) / hz
	switch {
	case d >= 1<<16:
		return 0
	case d < 1:
		return 1
	}
	return uint16(d)
}

// startTimer loads counter 0 and lets IRQ0 through the master PIC.
func (k *Kernel) startTimer(divisor uint16) {
	k.port.OutB(pitCommand, pitRateGenerator)
	k.port.OutB(pitCounter0, uint8(divisor))
	k.port.OutB(pitCounter0, uint8(divisor>>8))

	master, slave := k.pic.Masks()
	k.pic.SetMask(master&^0x01, slave)
	log.Printf("Kernel: timer on vector %d, divisor %d", isr.TimerVector, divisor)
}
