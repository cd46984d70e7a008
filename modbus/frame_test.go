package modbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestADUEncodeDecodeRoundTrip(t *testing.T) {
	a := ADU{TransactionID: 7, UnitID: 1, Function: FcReadHoldingRegisters, Data: []byte{0x00, 0x00, 0x00, 0x0A}}
	buf, err := a.Encode()
	require.NoError(t, err)
	require.Len(t, buf, MBAPHeaderSize+1+len(a.Data))

	got, err := DecodeADU(buf)
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestADUEncodeRejectsOversizedPDU(t *testing.T) {
	a := ADU{TransactionID: 1, UnitID: 1, Function: FcWriteMultipleRegisters, Data: make([]byte, MaxPDUSize)}
	_, err := a.Encode()
	require.Error(t, err)
}

func TestDecodeADURejectsWrongProtocolID(t *testing.T) {
	buf, err := ADU{Function: FcReadCoils, Data: []byte{0, 0, 0, 1}}.Encode()
	require.NoError(t, err)
	buf[2] = 0x01 // corrupt protocol ID
	_, err = DecodeADU(buf)
	require.Error(t, err)
}

func TestDecodeADUTruncated(t *testing.T) {
	_, err := DecodeADU([]byte{0x00, 0x01})
	require.Error(t, err)
}

func TestADUIsExceptionAndExceptionCode(t *testing.T) {
	a := ADU{Function: FcReadCoils | ExceptionBit, Data: []byte{byte(ExcIllegalDataAddress)}}
	require.True(t, a.IsException())
	require.Equal(t, ExcIllegalDataAddress, a.Exception())
	err := a.AsError()
	require.Error(t, err)
	require.Contains(t, err.Error(), "illegal data address")
}

func TestADUAsErrorNilOnSuccess(t *testing.T) {
	a := ADU{Function: FcReadCoils, Data: []byte{0x01, 0xFF}}
	require.Nil(t, a.AsError())
}

func TestFunctionCodeString(t *testing.T) {
	require.Equal(t, "ReadHoldingRegisters", FcReadHoldingRegisters.String())
	require.Contains(t, FunctionCode(0x99).String(), "0x99")
}

func TestTransactionIDGeneratorWraps(t *testing.T) {
	g := &TransactionIDGenerator{next: 0xFFFF}
	require.Equal(t, uint16(0xFFFF), g.Next())
	require.Equal(t, uint16(0), g.Next())
}
