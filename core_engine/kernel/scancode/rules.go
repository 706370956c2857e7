package scancode

import "fmt"

// State is the decoder's position within a scan code.
type State uint8

const (
	Start State = iota
	ErrorState

	// Intermediate states, named after the bytes consumed so far.
	StateE0
	StateE0_2A
	StateE0_2A_E0
	StateE0_B7
	StateE0_B7_E0
	StateE1
	StateE1_1D
	StateE1_1D_45
	StateE1_1D_45_E1
	StateE1_1D_45_E1_9D

	// Final states, one per family and polarity.
	Final1Press
	Final1Release
	Final2Press
	Final2Release
	Final4Press
	Final4Release
	Final6Press
)

var stateNames = [...]string{
	Start:               "start",
	ErrorState:          "error",
	StateE0:             "E0",
	StateE0_2A:          "E0 2A",
	StateE0_2A_E0:       "E0 2A E0",
	StateE0_B7:          "E0 B7",
	StateE0_B7_E0:       "E0 B7 E0",
	StateE1:             "E1",
	StateE1_1D:          "E1 1D",
	StateE1_1D_45:       "E1 1D 45",
	StateE1_1D_45_E1:    "E1 1D 45 E1",
	StateE1_1D_45_E1_9D: "E1 1D 45 E1 9D",
	Final1Press:         "final 1-byte press",
	Final1Release:       "final 1-byte release",
	Final2Press:         "final 2-byte press",
	Final2Release:       "final 2-byte release",
	Final4Press:         "final 4-byte press",
	Final4Release:       "final 4-byte release",
	Final6Press:         "final 6-byte press",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// IsFinal reports whether s completes a scan code.
func (s State) IsFinal() bool { return s >= Final1Press && s <= Final6Press }

// Length is the scan code length a final state completes, or 0.
func (s State) Length() int {
	switch s {
	case Final1Press, Final1Release:
		return 1
	case Final2Press, Final2Release:
		return 2
	case Final4Press, Final4Release:
		return 4
	case Final6Press:
		return 6
	}
	return 0
}

// Polarity of a final state. Pause only has a press.
func (s State) Polarity() Polarity {
	switch s {
	case Final1Press, Final2Press, Final4Press, Final6Press:
		return Pressed
	}
	return Released
}

// rule moves from State to Next when the input byte is in [Lo, Hi].
type rule struct {
	State  State
	Lo, Hi byte
	Next   State
}

// rules is searched top to bottom and the first match wins. The ranges
// overlap: 0x2A and 0xB7 after E0 are also generic second bytes, so the
// print screen rules must stay ahead of the 2-byte ranges.
var rules = [...]rule{
	{Start, 0x01, 0x58, Final1Press},
	{Start, 0x81, 0xD8, Final1Release},
	{Start, 0xE0, 0xE0, StateE0},
	{Start, 0xE1, 0xE1, StateE1},

	{StateE0, 0x2A, 0x2A, StateE0_2A},
	{StateE0_2A, 0xE0, 0xE0, StateE0_2A_E0},
	{StateE0_2A_E0, 0x37, 0x37, Final4Press},

	{StateE0, 0xB7, 0xB7, StateE0_B7},
	{StateE0_B7, 0xE0, 0xE0, StateE0_B7_E0},
	{StateE0_B7_E0, 0xAA, 0xAA, Final4Release},

	{StateE0, 0x10, 0x6D, Final2Press},
	{StateE0, 0x90, 0xED, Final2Release},

	{StateE1, 0x1D, 0x1D, StateE1_1D},
	{StateE1_1D, 0x45, 0x45, StateE1_1D_45},
	{StateE1_1D_45, 0xE1, 0xE1, StateE1_1D_45_E1},
	{StateE1_1D_45_E1, 0x9D, 0x9D, StateE1_1D_45_E1_9D},
	{StateE1_1D_45_E1_9D, 0xC5, 0xC5, Final6Press},
}

// next returns the state reached from s on input b.
func next(s State, b byte) State {
	for _, r := range rules {
		if r.State == s && b >= r.Lo && b <= r.Hi {
			return r.Next
		}
	}
	return ErrorState
}

// ScanCodeToIndex returns the table index for the last byte b of a scan code
// of the given length. ok is false when b cannot end a scan code of that
// length.
func ScanCodeToIndex(b byte, length int) (index int, ok bool) {
	switch length {
	case 1:
		if b >= 0x01 && b <= 0x58 {
			return int(b), true
		}
		if b >= 0x81 && b <= 0xD8 {
			return int(b & 0x7F), true
		}
	case 2:
		if m := b & 0x7F; m >= 0x10 && m <= 0x6D {
			return int(m) - 0x10, true
		}
	case 4:
		if b == 0x37 || b == 0xAA {
			return 0, true
		}
	case 6:
		if b == 0xC5 {
			return 0, true
		}
	}
	return 0, false
}
