package eip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEipEncapBytesLayout(t *testing.T) {
	m := EipEncap{
		command:       RegisterSession,
		length:        4,
		sessionHandle: 0x11223344,
		status:        0,
		context:       [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		options:       0,
		data:          []byte{1, 0, 0, 0},
	}
	b := m.Bytes()
	require.Len(t, b, 24+4)
	require.Equal(t, byte(0x65), b[0])
	require.Equal(t, byte(0x00), b[1])
	require.Equal(t, byte(0x44), b[4]) // sessionHandle low byte, little-endian
	require.Equal(t, []byte{1, 0, 0, 0}, b[24:])
}

func TestEipCommandDataRoundTrip(t *testing.T) {
	r := EipCommandData{interfaceHandle: 0, timeout: 5, packet: []byte{0xAA, 0xBB}}
	b := r.Bytes()

	parsed, err := ParseEipCommandData(b)
	require.NoError(t, err)
	require.Equal(t, r.interfaceHandle, parsed.interfaceHandle)
	require.Equal(t, r.timeout, parsed.timeout)
	require.Equal(t, r.packet, parsed.packet)
}

func TestParseEipCommandDataTooShort(t *testing.T) {
	_, err := ParseEipCommandData([]byte{1, 2, 3})
	require.Error(t, err)
}
