// Package scancode decodes PS/2 scan code set 1 into key codes and
// characters.
//
// A key code names a physical key by its position on a 6-row logical
// keyboard grid: the row lives in the top 3 bits and the column in the low 5.
// Scan codes are 1, 2, 4 or 6 bytes long and the encoding is not prefix
// free, so decoding is driven by an ordered rule list (see rules.go).
package scancode

import "fmt"

// KeyCode is a physical key position, row<<5 | column.
type KeyCode uint8

// Grid dimensions. Rows are jagged; see asciiTable.
const (
	Rows    = 6
	MaxCols = 21
)

// Sentinel key codes. Their row is 7, so they can never index a table row.
const (
	Ignore       KeyCode = 0xFC // key released: tracked, not echoed
	Error        KeyCode = 0xFD // byte sequence matched no rule
	Todo         KeyCode = 0xFE // valid set 1 scan code with no key on this layout
	NotAScanCode KeyCode = 0xFF // not defined in scan code set 1
)

// FromRowCol builds a key code.
func FromRowCol(row, col uint8) KeyCode {
	return KeyCode((row&0x07)<<5 | col&0x1F)
}

func (k KeyCode) Row() uint8 { return uint8(k) >> 5 }
func (k KeyCode) Col() uint8 { return uint8(k) & 0x1F }

// IsSentinel reports whether k is outside the grid and must not be looked up.
func (k KeyCode) IsSentinel() bool {
	return k.Row() >= Rows || k.Col() >= MaxCols
}

func (k KeyCode) String() string {
	switch k {
	case Ignore:
		return "ignore"
	case Error:
		return "error"
	case Todo:
		return "todo"
	case NotAScanCode:
		return "not-a-scan-code"
	}
	return fmt.Sprintf("r%dc%d", k.Row(), k.Col())
}

// Named keys the rest of the kernel cares about.
var (
	KeyEscape      = FromRowCol(0, 0)
	KeyPrintScreen = FromRowCol(0, 14) // F13 on the reference layout
	KeyScrollLock  = FromRowCol(0, 15) // F14
	KeyInsert      = FromRowCol(0, 16) // F15
	KeyPause       = FromRowCol(0, 17) // F16
	KeyBackspace   = FromRowCol(1, 13)
	KeyTab         = FromRowCol(2, 0)
	KeyCapsLock    = FromRowCol(3, 0)
	KeyEnter       = FromRowCol(3, 12)
	KeyLeftShift   = FromRowCol(4, 0)
	KeyRightShift  = FromRowCol(4, 11)
	KeyCursorUp    = FromRowCol(4, 12)
	KeySpace       = FromRowCol(5, 3)
	KeyCursorLeft  = FromRowCol(5, 7)
	KeyCursorDown  = FromRowCol(5, 8)
	KeyCursorRight = FromRowCol(5, 9)
)

// Polarity is the press/release state of a key. The zero value is
// Released, matching a freshly initialized key-state table.
type Polarity uint8

const (
	Released Polarity = 0
	Pressed  Polarity = 1
)

func (p Polarity) String() string {
	if p == Pressed {
		return "pressed"
	}
	return "released"
}

// Event is a completed scan code.
type Event struct {
	Code     KeyCode
	Polarity Polarity
}

// IsError reports whether the event reports a decode error.
func (e Event) IsError() bool { return e.Code == Error }

// Printable reports whether the event should be echoed: a press of a key on
// the grid.
func (e Event) Printable() bool {
	return e.Polarity == Pressed && !e.Code.IsSentinel()
}

func (e Event) String() string {
	return fmt.Sprintf("%v %v", e.Code, e.Polarity)
}
