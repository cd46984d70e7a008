package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponseNoExtendedStatus(t *testing.T) {
	raw := []byte{0xCC, 0x00, 0x00, 0x00, 0xDE, 0xAD, 0xBE, 0xEF}
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, byte(0xCC), resp.ReplyService)
	require.Equal(t, byte(0x00), resp.GeneralStatus)
	require.Empty(t, resp.AdditionalStatus)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, resp.Data)
}

func TestParseResponseWithExtendedStatus(t *testing.T) {
	raw := []byte{0xCC, 0x00, 0x01, 0x01, 0x09, 0x01, 0xFF}
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), resp.GeneralStatus)
	require.Equal(t, []uint16{0x0109}, resp.AdditionalStatus)
	require.Equal(t, []byte{0xFF}, resp.Data)
}

func TestParseResponseTooShort(t *testing.T) {
	_, err := ParseResponse([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestRequestMarshal(t *testing.T) {
	path, _ := EPath().Symbol("MyInt").Build()
	req := Request{Service: 0x4C, Path: EPath_t(path), Data: []byte{0x01, 0x00}}
	b := req.Marshal()
	require.Equal(t, byte(0x4C), b[0])
	require.Equal(t, path.WordLen(), b[1])
}
