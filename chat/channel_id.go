package chat

import (
	"strconv"
	"unicode/utf16"
)

// ChannelIDPrefix prefixes every direct-message channel id.
const ChannelIDPrefix = "match_"

// ChannelID derives the direct-message channel id for two users. The pair is
// sorted by UTF-16 code units first, so both participants resolve to the same
// channel.
//
// The id is the absolute value of a 32-bit polynomial hash (h*31 + c over the
// UTF-16 code units of "a_b") in base 36. It must stay byte-compatible with
// ids issued by existing clients.
func ChannelID(userA, userB string) string {
	a, b := utf16.Encode([]rune(userA)), utf16.Encode([]rune(userB))
	if utf16Less(b, a) {
		a, b = b, a
	}

	var h int32
	units := append(append(a, '_'), b...)
	for _, c := range units {
		h = h*31 + int32(c)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return ChannelIDPrefix + strconv.FormatInt(abs, 36)
}

// utf16Less orders code unit sequences lexicographically. It differs from
// byte order for characters above U+FFFF, whose surrogates sort below
// U+E000..U+FFFF.
func utf16Less(a, b []uint16) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
