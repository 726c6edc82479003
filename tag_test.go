package transport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTag_Roundtrip(t *testing.T) {
	cases := []struct {
		userTag uint32
		rank    int32
	}{
		{0, 0},
		{1, 1},
		{999, 0},
		{math.MaxUint32, 1},
		{42, 7},
	}
	for _, c := range cases {
		wire := EncodeTag(c.userTag, c.rank)
		gotTag, gotRank := DecodeTag(wire)
		require.Equal(t, c.userTag, gotTag)
		require.Equal(t, uint32(c.rank), gotRank)
	}
}

func TestEncodeTag_Uniqueness(t *testing.T) {
	// P1: distinct (user_tag, sender_rank) pairs produce distinct wire tags.
	seen := make(map[uint64]struct{})
	for tag := uint32(0); tag < 8; tag++ {
		for rank := int32(0); rank < 8; rank++ {
			wire := EncodeTag(tag, rank)
			_, dup := seen[wire]
			require.False(t, dup)
			seen[wire] = struct{}{}
		}
	}
}

func TestMaskFor(t *testing.T) {
	require.Equal(t, TagSenderMaskAny, maskFor(AnySource))
	require.Equal(t, TagSenderMaskExact, maskFor(0))
	require.Equal(t, TagSenderMaskExact, maskFor(3))
}
