package chat

import (
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
)

func TestChannelIDIsOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"8f14e45f-ceea-467f-a0e6-2f4a3b1c9d10", "c9f0f895-fb98-4b2e-9c4a-7d2b1e3f5a60"},
		{"", "x"},
		{"same", "same"},
		{"Đức", "ngọc"},
	}
	for _, p := range pairs {
		t.Run(p[0]+"/"+p[1], func(t *testing.T) {
			assert.Equal(t, ChannelID(p[0], p[1]), ChannelID(p[1], p[0]))
			assert.True(t, strings.HasPrefix(ChannelID(p[0], p[1]), ChannelIDPrefix))
		})
	}
}

func TestChannelIDKnownValues(t *testing.T) {
	assert.Equal(t, "match_r7625y", ChannelID("alice", "bob"))
	assert.Equal(t, "match_619yae", ChannelID(
		"c9f0f895-fb98-4b2e-9c4a-7d2b1e3f5a60",
		"8f14e45f-ceea-467f-a0e6-2f4a3b1c9d10",
	))
}

func TestChannelIDDistinguishesPairs(t *testing.T) {
	assert.NotEqual(t, ChannelID("alice", "bob"), ChannelID("alice", "carol"))
}

func TestChannelIDSortsByUTF16CodeUnits(t *testing.T) {
	// U+FF21 sorts after U+1F600 in UTF-16 but before it in UTF-8
	const fullwidthA, grinning = "\uff21", "\U0001F600"
	assert.Equal(t, "match_s6ev5x", ChannelID(fullwidthA, grinning))
	assert.Equal(t, "match_s6ev5x", ChannelID(grinning, fullwidthA))
}

func TestUTF16Less(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"alice", "bob", true},
		{"bob", "alice", false},
		{"al", "alice", true},
		{"same", "same", false},
		{"", "x", true},
		{"\U0001F600", "\uff21", true},
		{"\uff21", "\U0001F600", false},
	}
	for _, tt := range tests {
		got := utf16Less(utf16.Encode([]rune(tt.a)), utf16.Encode([]rune(tt.b)))
		assert.Equal(t, tt.want, got, "%q < %q", tt.a, tt.b)
	}
}
