package obf

import "unicode/utf16"

// Wide encodes s as UTF-16, expanding runes past the BMP into surrogate
// pairs. Invalid UTF-8 bytes become U+FFFD, as with a range over s.
//
// As a marker, obf.Wide("lit") is transcoded at build time into a
// []uint16 literal; it is not obfuscated.
func Wide(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// WideLen returns len(Wide(s)) without allocating.
func WideLen(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
