// Package unistring gives a UTF-16 code unit view over Go strings.
//
// Script strings are stored as Go strings. Length, ordering and index
// arithmetic, however, are defined in UTF-16 code units, which is what
// this package computes without materializing the UTF-16 form for ASCII
// input.
//
// A code unit that is an unpaired surrogate has no UTF-8 form. It is kept
// in its generalized UTF-8 (WTF-8) encoding, the three bytes 0xED 0xA0-0xBF
// 0x80-0xBF, so that such strings survive a round trip through this
// package. Go code that exports these strings sees invalid UTF-8 at those
// positions.
package unistring

import (
	"unicode/utf16"
	"unicode/utf8"
)

// IsASCII reports whether s contains only 7-bit characters, in which case
// byte offsets and code unit offsets coincide.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Surrogate returns the unpaired surrogate encoded at s[i:], if any.
func Surrogate(s string, i int) (uint16, bool) {
	if i+2 < len(s) && s[i] == 0xED && s[i+1] >= 0xA0 && s[i+1] <= 0xBF && s[i+2] >= 0x80 && s[i+2] <= 0xBF {
		return 0xD000 | uint16(s[i+1]&0x3F)<<6 | uint16(s[i+2]&0x3F), true
	}
	return 0, false
}

// decode returns the character or surrogate code unit at s[i:] and its
// width in bytes.
func decode(s string, i int) (rune, int) {
	if u, ok := Surrogate(s, i); ok {
		return rune(u), 3
	}
	return utf8.DecodeRuneInString(s[i:])
}

// Length returns the number of UTF-16 code units in s.
func Length(s string) int {
	if IsASCII(s) {
		return len(s)
	}
	n := 0
	for i := 0; i < len(s); {
		c, w := decode(s, i)
		if c > 0xFFFF {
			n += 2
		} else {
			n++
		}
		i += w
	}
	return n
}

// CodeUnits returns the UTF-16 encoding of s.
func CodeUnits(s string) []uint16 {
	b := make([]uint16, 0, len(s))
	for i := 0; i < len(s); {
		c, w := decode(s, i)
		if c <= 0xFFFF {
			b = append(b, uint16(c))
		} else {
			first, second := utf16.EncodeRune(c)
			b = append(b, uint16(first), uint16(second))
		}
		i += w
	}
	return b
}

// FromUTF16 decodes b into a Go string. Unpaired surrogates are kept in
// their WTF-8 form.
func FromUTF16(b []uint16) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		buf := make([]byte, len(b))
		for i, c := range b {
			buf[i] = byte(c)
		}
		return string(buf)
	}
	buf := make([]byte, 0, len(b)*3)
	for i := 0; i < len(b); i++ {
		c := rune(b[i])
		switch {
		case utf16.IsSurrogate(c) && c < 0xDC00 && i+1 < len(b) && b[i+1] >= 0xDC00 && b[i+1] <= 0xDFFF:
			buf = utf8.AppendRune(buf, utf16.DecodeRune(c, rune(b[i+1])))
			i++
		case utf16.IsSurrogate(c):
			buf = append(buf, 0xE0|byte(c>>12), 0x80|byte(c>>6)&0x3F, 0x80|byte(c)&0x3F)
		default:
			buf = utf8.AppendRune(buf, c)
		}
	}
	return string(buf)
}

// Compare orders a and b by UTF-16 code units, the ordering used by the
// relational operators and the default sort comparator. It differs from
// Go's byte order only when characters outside the BMP meet characters in
// U+E000..U+FFFF.
func Compare(a, b string) int {
	if IsASCII(a) && IsASCII(b) {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	ua, ub := CodeUnits(a), CodeUnits(b)
	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}

// Substring returns the code units [start, end) of s.
func Substring(s string, start, end int) string {
	if IsASCII(s) {
		return s[start:end]
	}
	return FromUTF16(CodeUnits(s)[start:end])
}
