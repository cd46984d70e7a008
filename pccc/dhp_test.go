package pccc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapDHPRoundTrip(t *testing.T) {
	route := RouteDHP{DestLink: 1, DestNode: 12, SrcLink: 1, SrcNode: 0}
	frame := []byte{0x0F, 0x00, 0x01, 0x00, 0x67}
	wrapped := WrapDHP(route, frame)

	got, rest, err := UnwrapDHP(wrapped)
	require.NoError(t, err)
	require.Equal(t, route, got)
	require.Equal(t, frame, rest)
}

func TestUnwrapDHPTruncated(t *testing.T) {
	_, _, err := UnwrapDHP([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestTNSGeneratorIncrementsAndSkipsZero(t *testing.T) {
	g := &TNSGenerator{next: 0xFFFF}
	first := g.Next()
	require.Equal(t, uint16(0xFFFF), first)
	second := g.Next()
	require.Equal(t, uint16(1), second)
}

func TestNewTNSGeneratorStartsAtOne(t *testing.T) {
	g := NewTNSGenerator()
	require.Equal(t, uint16(1), g.Next())
	require.Equal(t, uint16(2), g.Next())
}
