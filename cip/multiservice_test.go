package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultipleServiceRoundTrip(t *testing.T) {
	path1, _ := EPath().Symbol("DINT1").Build()
	path2, _ := EPath().Symbol("DINT2").Build()

	req, err := BuildMultipleServiceRequest([]MultiServiceRequest{
		{Service: 0x4C, Path: path1, Data: []byte{0x01, 0x00}},
		{Service: 0x4C, Path: path2, Data: []byte{0x01, 0x00}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, req)

	// Build a synthetic reply mirroring the request's shape: 2 services,
	// each replying with 4 bytes of data and no extended status.
	reply := make([]byte, 0)
	reply = append(reply, 0x02, 0x00) // service count
	off1 := uint16(2 + 2*2)
	svc1 := []byte{0xCC, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}
	off2 := off1 + uint16(len(svc1))
	reply = append(reply, byte(off1), byte(off1>>8), byte(off2), byte(off2>>8))
	reply = append(reply, svc1...)
	svc2 := []byte{0xCC, 0x00, 0x00, 0x00, 0x11, 0x22, 0x33, 0x44}
	reply = append(reply, svc2...)

	responses, err := ParseMultipleServiceResponse(reply)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, responses[0].Data)
	require.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, responses[1].Data)
}

func TestBuildMultipleServiceRequestEmpty(t *testing.T) {
	_, err := BuildMultipleServiceRequest(nil)
	require.Error(t, err)
}

func TestParseMultipleServiceResponseTooShort(t *testing.T) {
	_, err := ParseMultipleServiceResponse([]byte{0x01})
	require.Error(t, err)
}

func TestParseMultipleServiceResponseZeroServices(t *testing.T) {
	responses, err := ParseMultipleServiceResponse([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.Nil(t, responses)
}
