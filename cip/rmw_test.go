package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleBitMasksSetBit(t *testing.T) {
	or, and, err := SingleBitMasks(4, 9, true)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x02, 0x00, 0x00}, or)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, and)
}

func TestSingleBitMasksClearBit(t *testing.T) {
	or, and, err := SingleBitMasks(4, 9, false)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, or)
	require.Equal(t, []byte{0xFF, 0xFD, 0xFF, 0xFF}, and)
}

func TestSingleBitMasksOutOfRange(t *testing.T) {
	_, _, err := SingleBitMasks(1, 8, true)
	require.Error(t, err)
}

func TestBuildReadModifyWriteRequest(t *testing.T) {
	or, and, err := SingleBitMasks(1, 0, true)
	require.NoError(t, err)

	req, err := BuildReadModifyWriteRequest(or, and)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x00}, req[:2])
	require.Equal(t, or, req[2:3])
	require.Equal(t, and, req[3:4])
}

func TestBuildReadModifyWriteRequestMaskMismatch(t *testing.T) {
	_, err := BuildReadModifyWriteRequest([]byte{0x01}, []byte{0x01, 0x02})
	require.Error(t, err)
}

func TestBuildReadModifyWriteRequestBadMaskWidth(t *testing.T) {
	_, err := BuildReadModifyWriteRequest([]byte{0x01, 0x02, 0x03}, []byte{0x01, 0x02, 0x03})
	require.Error(t, err)
}
