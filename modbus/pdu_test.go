package modbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackCoilsRoundTrip(t *testing.T) {
	values := []bool{true, false, true, true, false, false, false, true, true}
	packed := PackCoils(values)
	require.Len(t, packed, 2)
	got := UnpackCoils(packed, len(values))
	require.Equal(t, values, got)
}

func TestWriteSingleCoilRequestEncodesOnOff(t *testing.T) {
	on := WriteSingleCoilRequest(3, true)
	require.Equal(t, []byte{0x00, 0x03, 0xFF, 0x00}, on)
	off := WriteSingleCoilRequest(3, false)
	require.Equal(t, []byte{0x00, 0x03, 0x00, 0x00}, off)
}

func TestWriteMultipleRegistersRequestRoundTrip(t *testing.T) {
	data, err := WriteMultipleRegistersRequest(10, []uint16{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, byte(6), data[4])

	// Construct a matching read-response to confirm decode symmetry.
	resp := append([]byte{6}, data[5:]...)
	regs, err := DecodeRegistersResponse(resp)
	require.NoError(t, err)
	require.Equal(t, []uint16{1, 2, 3}, regs)
}

func TestWriteMultipleRegistersRequestRejectsTooMany(t *testing.T) {
	_, err := WriteMultipleRegistersRequest(0, make([]uint16, 124))
	require.Error(t, err)
}

func TestWriteMultipleCoilsRequestRoundTrip(t *testing.T) {
	values := []bool{true, false, true}
	data, err := WriteMultipleCoilsRequest(0, values)
	require.NoError(t, err)
	require.Equal(t, byte(1), data[4])

	resp := append([]byte{1}, data[5:]...)
	got, err := DecodeCoilsResponse(resp, len(values))
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestWriteMultipleCoilsRequestRejectsEmpty(t *testing.T) {
	_, err := WriteMultipleCoilsRequest(0, nil)
	require.Error(t, err)
}

func TestDecodeRegistersResponseTruncated(t *testing.T) {
	_, err := DecodeRegistersResponse([]byte{4, 0x00})
	require.Error(t, err)
}

func TestDecodeCoilsResponseWrongByteCount(t *testing.T) {
	_, err := DecodeCoilsResponse([]byte{2, 0x01, 0x00}, 3)
	require.Error(t, err)
}

func TestReadHoldingRegistersRequestShape(t *testing.T) {
	data := ReadHoldingRegistersRequest(100, 10)
	require.Equal(t, []byte{0x00, 0x64, 0x00, 0x0A}, data)
}
