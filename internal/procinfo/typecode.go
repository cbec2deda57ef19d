package procinfo

import "strings"

// TypeCode is a classic Mac OS four-character code (OSType), stored big-endian.
type TypeCode uint32

// Well-known process type codes.
var (
	TypeApplication = FourCC("APPL")
	TypeXPC         = FourCC("XPC!")
)

// FourCC packs the first four bytes of s into a TypeCode, padding with spaces.
func FourCC(s string) TypeCode {
	var b [4]byte
	for i := range b {
		b[i] = ' '
		if i < len(s) {
			b[i] = s[i]
		}
	}
	return TypeCode(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// String returns the four characters of the code.
func (t TypeCode) String() string {
	return string([]byte{byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)})
}

// Quoted returns the code the way the file-type APIs print it: 'XPC!'.
func (t TypeCode) Quoted() string {
	return "'" + t.String() + "'"
}

// mentionsXPC reports whether the printable code looks XPC-related.
func (t TypeCode) mentionsXPC() bool {
	return strings.Contains(t.String(), "XPC")
}
