package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoutePathEmptyUsesGenericRouter(t *testing.T) {
	r, err := ParseRoutePath("")
	require.NoError(t, err)
	require.Equal(t, GenericRouterPath, r.Encoded)
}

func TestParseRoutePathBackplaneSlot(t *testing.T) {
	r, err := ParseRoutePath("1,0")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x01, 0x01, 0x00}, r.Encoded)
}

func TestParseRoutePathSingleHop(t *testing.T) {
	r, err := ParseRoutePath("0")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x00}, r.Encoded)
}

func TestParseRoutePathExtendedIPv4Hop(t *testing.T) {
	r, err := ParseRoutePath("18,192.168.1.10")
	require.NoError(t, err)
	require.Equal(t, byte(0x1F), r.Encoded[0])
	require.Equal(t, byte(18), r.Encoded[1])
	require.Equal(t, byte(len("192.168.1.10")), r.Encoded[3])
	require.Equal(t, 0, len(r.Encoded)%2)
}

func TestParseRoutePathDHPHop(t *testing.T) {
	r, err := ParseRoutePath("1,0,A:1:2")
	require.NoError(t, err)
	require.True(t, r.IsDHP)
	require.Equal(t, byte(1), r.DHPPort)
	require.Equal(t, byte(1), r.DHPSrc)
	require.Equal(t, byte(2), r.DHPDest)
	require.Contains(t, string(r.Encoded), string([]byte{0x20, 0xA6, 0x24, 0x01, 0x2C, 0x01}))
}

func TestParseRoutePathDHPMustBeFinalHop(t *testing.T) {
	_, err := ParseRoutePath("A:1:2,1,0")
	require.Error(t, err)
}

func TestParseRoutePathOutOfRangeHop(t *testing.T) {
	_, err := ParseRoutePath("99")
	require.Error(t, err)
}

func TestParseRoutePathInvalidHop(t *testing.T) {
	_, err := ParseRoutePath("abc")
	require.Error(t, err)
}
