package scancode

// Encode returns the set 1 bytes a keyboard sends when ch is typed: the make
// and break codes of its key, wrapped in left shift make/break when the
// character needs shift. It returns nil for characters with no key.
func Encode(ch byte) []byte {
	if ch == Placeholder || ch == Fallback {
		return nil
	}
	if sc, ok := findScanCode(ch, false); ok {
		return []byte{sc, sc | 0x80}
	}
	if sc, ok := findScanCode(ch, true); ok {
		return []byte{leftShiftIndex, sc, sc | 0x80, leftShiftIndex | 0x80}
	}
	return nil
}

// EncodeString concatenates Encode for every byte of s, skipping bytes with
// no key.
func EncodeString(s string) []byte {
	var out []byte
	for i := 0; i < len(s); i++ {
		out = append(out, Encode(s[i])...)
	}
	return out
}

// findScanCode returns the lowest single byte scan code producing ch.
func findScanCode(ch byte, shifted bool) (byte, bool) {
	for sc := 0x01; sc < len(table1); sc++ {
		k := table1[sc]
		if k.IsSentinel() {
			continue
		}
		if KeyCodeToASCII(k, shifted) == ch {
			return byte(sc), true
		}
	}
	return 0, false
}
