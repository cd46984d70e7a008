package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildExecutePCCCRequest(t *testing.T) {
	frame := []byte{0x0F, 0x00, 0x01, 0x00, 0x67, 0x00, 0x00, 'N', '7', ':', '0'}
	req, err := BuildExecutePCCCRequest(0x1337, 42, frame)
	require.NoError(t, err)
	require.Equal(t, SvcExecutePCCC, req[0])
	require.Contains(t, string(req), "N7:0")
}

func TestBuildExecutePCCCRequestEmptyFrame(t *testing.T) {
	_, err := BuildExecutePCCCRequest(0x1337, 42, nil)
	require.Error(t, err)
}

func TestParseExecutePCCCResponseSuccess(t *testing.T) {
	raw := []byte{0xCB, 0x00, 0x00, 0x00, 0x10, 0x00, 0x22, 0x33}
	data, err := ParseExecutePCCCResponse(raw)
	require.NoError(t, err)
	require.Equal(t, []byte{0x10, 0x00, 0x22, 0x33}, data)
}

func TestParseExecutePCCCResponseError(t *testing.T) {
	raw := []byte{0xCB, 0x00, 0x08, 0x00}
	_, err := ParseExecutePCCCResponse(raw)
	require.Error(t, err)
}
