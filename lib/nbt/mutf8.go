package nbt

import (
	"unicode/utf16"
	"unicode/utf8"
)

// decodeMUTF8 converts Java's modified UTF-8 to a Go string.
// It differs from UTF-8 in two ways: U+0000 is encoded as C0 80 and
// supplementary characters are written as two 3-byte surrogates.
// Invalid sequences become U+FFFD.
func decodeMUTF8(b []byte) string {
	plain := true
	for _, c := range b {
		if c == 0xc0 || c == 0xed {
			plain = false
			break
		}
	}
	if plain && utf8.Valid(b) {
		return string(b)
	}
	ret := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			ret = append(ret, rune(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(b) && b[i+1]&0xc0 == 0x80:
			ret = append(ret, rune(c&0x1f)<<6|rune(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(b) && b[i+1]&0xc0 == 0x80 && b[i+2]&0xc0 == 0x80:
			r := rune(c&0x0f)<<12 | rune(b[i+1]&0x3f)<<6 | rune(b[i+2]&0x3f)
			i += 3
			if utf16.IsSurrogate(r) && r < 0xdc00 && i+2 < len(b) && b[i] == 0xed && b[i+1]&0xf0 == 0xb0 {
				lo := rune(b[i]&0x0f)<<12 | rune(b[i+1]&0x3f)<<6 | rune(b[i+2]&0x3f)
				if p := utf16.DecodeRune(r, lo); p != utf8.RuneError {
					ret = append(ret, p)
					i += 3
					continue
				}
			}
			if utf16.IsSurrogate(r) {
				r = utf8.RuneError
			}
			ret = append(ret, r)
		default:
			ret = append(ret, utf8.RuneError)
			i++
		}
	}
	return string(ret)
}
