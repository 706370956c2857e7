package scancode

// entry pairs a key code with its live press flag. A press and a release of
// the same key share one entry.
type entry struct {
	Key     KeyCode
	Pressed bool
}

func rc(row, col uint8) KeyCode { return FromRowCol(row, col) }

// table1 maps a single byte scan code (release bit cleared) to a key code.
var table1 = [...]KeyCode{
	0x00: NotAScanCode,
	0x01: rc(0, 0), // ESC
	0x02: rc(1, 1), 0x03: rc(1, 2), 0x04: rc(1, 3), 0x05: rc(1, 4), 0x06: rc(1, 5),
	0x07: rc(1, 6), 0x08: rc(1, 7), 0x09: rc(1, 8), 0x0A: rc(1, 9), 0x0B: rc(1, 10),
	0x0C: rc(1, 11), // -
	0x0D: rc(1, 12), // =
	0x0E: rc(1, 13), // backspace
	0x0F: rc(2, 0),  // tab
	0x10: rc(2, 1), 0x11: rc(2, 2), 0x12: rc(2, 3), 0x13: rc(2, 4), 0x14: rc(2, 5),
	0x15: rc(2, 6), 0x16: rc(2, 7), 0x17: rc(2, 8), 0x18: rc(2, 9), 0x19: rc(2, 10),
	0x1A: rc(2, 11), // [
	0x1B: rc(2, 12), // ]
	0x1C: rc(3, 12), // enter
	0x1D: rc(5, 0),  // left ctrl
	0x1E: rc(3, 1), 0x1F: rc(3, 2), 0x20: rc(3, 3), 0x21: rc(3, 4), 0x22: rc(3, 5),
	0x23: rc(3, 6), 0x24: rc(3, 7), 0x25: rc(3, 8), 0x26: rc(3, 9),
	0x27: rc(3, 10), // ;
	0x28: rc(3, 11), // '
	0x29: rc(1, 0),  // `
	0x2A: rc(4, 0),  // left shift
	0x2B: rc(2, 13), // backslash
	0x2C: rc(4, 1), 0x2D: rc(4, 2), 0x2E: rc(4, 3), 0x2F: rc(4, 4), 0x30: rc(4, 5),
	0x31: rc(4, 6), 0x32: rc(4, 7),
	0x33: rc(4, 8),  // ,
	0x34: rc(4, 9),  // .
	0x35: rc(4, 10), // /
	0x36: rc(4, 11), // right shift
	0x37: rc(1, 20), // keypad *
	0x38: rc(5, 1),  // left alt
	0x39: rc(5, 3),  // space
	0x3A: rc(3, 0),  // caps lock
	0x3B: rc(0, 1), 0x3C: rc(0, 2), 0x3D: rc(0, 3), 0x3E: rc(0, 4), 0x3F: rc(0, 5),
	0x40: rc(0, 6), 0x41: rc(0, 7), 0x42: rc(0, 8), 0x43: rc(0, 9), 0x44: rc(0, 10),
	0x45: rc(1, 17), // num lock, clear on the reference layout
	0x46: rc(0, 15), // scroll lock, F14
	0x47: rc(2, 17), 0x48: rc(2, 18), 0x49: rc(2, 19), // keypad 7 8 9
	0x4A: rc(2, 20), // keypad -
	0x4B: rc(3, 13), 0x4C: rc(3, 14), 0x4D: rc(3, 15), // keypad 4 5 6
	0x4E: rc(3, 16), // keypad +
	0x4F: rc(4, 13), 0x50: rc(4, 14), 0x51: rc(4, 15), // keypad 1 2 3
	0x52: rc(5, 10), // keypad 0
	0x53: rc(5, 11), // keypad .
	0x54: NotAScanCode,
	0x55: NotAScanCode,
	0x56: NotAScanCode,
	0x57: rc(0, 11), // F11
	0x58: rc(0, 12), // F12
}

// table2 maps the second byte of an E0-prefixed scan code, minus 0x10, to a
// key code. Most of set 1's E0 page is unassigned.
var table2 = func() [0x5E]KeyCode {
	var t [0x5E]KeyCode
	for i := range t {
		t[i] = NotAScanCode
	}
	set := func(b byte, k KeyCode) { t[b-0x10] = k }

	for _, b := range []byte{
		0x10, 0x19, 0x20, 0x21, 0x22, 0x24, 0x2E, 0x30, 0x32, // media
		0x5D, 0x5E, 0x5F, 0x63, // apps, ACPI
		0x65, 0x66, 0x67, 0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, // browser
	} {
		set(b, Todo)
	}
	set(0x1C, rc(5, 12)) // keypad enter
	set(0x1D, rc(5, 6))  // right ctrl
	set(0x35, rc(1, 19)) // keypad /
	set(0x38, rc(5, 5))  // right alt
	set(0x47, rc(1, 15)) // home
	set(0x48, rc(4, 12)) // cursor up
	set(0x49, rc(1, 16)) // page up
	set(0x4B, rc(5, 7))  // cursor left
	set(0x4D, rc(5, 9))  // cursor right
	set(0x4F, rc(2, 15)) // end
	set(0x50, rc(5, 8))  // cursor down
	set(0x51, rc(2, 16)) // page down
	set(0x52, rc(0, 16)) // insert, F15
	set(0x53, rc(2, 14)) // delete
	set(0x5B, rc(5, 2))  // left GUI, left command
	set(0x5C, rc(5, 4))  // right GUI, right command
	return t
}()

// Print screen (4 bytes) and pause (6 bytes) are singleton families.
var (
	table4 = [1]KeyCode{KeyPrintScreen}
	table6 = [1]KeyCode{KeyPause}
)

// keyTables is one decoder's mutable copy of the scan code tables.
type keyTables struct {
	one  [len(table1)]entry
	two  [len(table2)]entry
	four [1]entry
	six  [1]entry
}

func newKeyTables() *keyTables {
	t := &keyTables{}
	for i, k := range table1 {
		t.one[i].Key = k
	}
	for i, k := range table2 {
		t.two[i].Key = k
	}
	t.four[0].Key = table4[0]
	t.six[0].Key = table6[0]
	return t
}

// family returns the entries for a scan code length.
func (t *keyTables) family(length int) []entry {
	switch length {
	case 1:
		return t.one[:]
	case 2:
		return t.two[:]
	case 4:
		return t.four[:]
	case 6:
		return t.six[:]
	}
	return nil
}

// Table1 returns the key code for single byte scan code b, ignoring the
// release bit.
func Table1(b byte) KeyCode {
	i := int(b & 0x7F)
	if i >= len(table1) {
		return NotAScanCode
	}
	return table1[i]
}

// Table2 returns the key code for the E0-prefixed scan code whose second
// byte is b, ignoring the release bit.
func Table2(b byte) KeyCode {
	i := int(b&0x7F) - 0x10
	if i < 0 || i >= len(table2) {
		return NotAScanCode
	}
	return table2[i]
}
