package scancode

// Glyphs returned for keys that do not produce a character.
const (
	Placeholder byte = 0x00 // key exists but is not printable
	Fallback    byte = 0xFE // row or column outside the layout
)

const np = Placeholder

// asciiTable and shiftASCIITable follow the physical layout of an Apple
// A1243 keyboard. Rows are 21, 21, 21, 17, 16 and 13 keys wide.
var asciiTable = [Rows][]byte{
	// ESC F1..F12 EJECT F13..F19
	{np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np},
	{'`', '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '-', '=', '\b', np, np, np, np, '=', '/', '*'},
	{'\t', 'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', 'o', 'p', '[', ']', '\\', np, np, np, '7', '8', '9', '-'},
	{np, 'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', '\'', '\n', '4', '5', '6', '+'},
	{np, 'z', 'x', 'c', 'v', 'b', 'n', 'm', ',', '.', '/', np, np, '1', '2', '3'},
	{np, np, np, ' ', np, np, np, np, np, np, '0', '.', '\n'},
}

var shiftASCIITable = [Rows][]byte{
	{np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np, np},
	{'~', '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '_', '+', '\b', np, np, np, np, '=', '/', '*'},
	{'\t', 'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I', 'O', 'P', '{', '}', '|', np, np, np, '7', '8', '9', '-'},
	{np, 'A', 'S', 'D', 'F', 'G', 'H', 'J', 'K', 'L', ':', '"', '\n', '4', '5', '6', '+'},
	{np, 'Z', 'X', 'C', 'V', 'B', 'N', 'M', '<', '>', '?', np, np, '1', '2', '3'},
	{np, np, np, ' ', np, np, np, np, np, np, '0', '.', '\n'},
}

// KeyCodeToASCII returns the character for key k. Keys off the layout get
// Fallback; keys with no character get Placeholder.
func KeyCodeToASCII(k KeyCode, shifted bool) byte {
	t := &asciiTable
	if shifted {
		t = &shiftASCIITable
	}
	row, col := int(k.Row()), int(k.Col())
	if row >= len(t) || col >= len(t[row]) {
		return Fallback
	}
	return t[row][col]
}
