package cip

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSequenceIncrements(t *testing.T) {
	c := &Connection{}
	require.Equal(t, uint16(1), c.NextSequence())
	require.Equal(t, uint16(2), c.NextSequence())
}

func TestWrapUnwrapConnectedRoundTrip(t *testing.T) {
	c := &Connection{}
	payload := []byte{0x4C, 0x02, 0x20, 0x6B, 0x24, 0x01}
	wrapped := c.WrapConnected(payload)

	seq, got, err := c.UnwrapConnected(wrapped)
	require.NoError(t, err)
	require.Equal(t, uint16(1), seq)
	require.Equal(t, payload, got)
}

func TestUnwrapConnectedTooShort(t *testing.T) {
	c := &Connection{}
	_, _, err := c.UnwrapConnected([]byte{0x01})
	require.Error(t, err)
}

func TestBuildForwardOpenRequestUsesConfiguredVendorAndSerial(t *testing.T) {
	cfg := DefaultForwardOpenConfig()
	cfg.VendorID = 0xBEEF
	cfg.OriginatorSerial = 0xCAFEBABE
	cfg.ConnectionPath = []byte{0x20, 0x6B, 0x24, 0x01}

	req, connSerial, err := BuildForwardOpenRequest(cfg)
	require.NoError(t, err)
	require.Equal(t, SvcForwardOpenLarge, req[0])
	require.NotZero(t, connSerial)

	// Vendor ID is at a fixed offset past the two connection IDs and the
	// connection serial number.
	vendorOff := 2 + 4 + 1 + 1 + 4 + 4 + 2
	gotVendor := binary.LittleEndian.Uint16(req[vendorOff : vendorOff+2])
	require.Equal(t, cfg.VendorID, gotVendor)

	gotSerial := binary.LittleEndian.Uint32(req[vendorOff+2 : vendorOff+6])
	require.Equal(t, cfg.OriginatorSerial, gotSerial)
}

func TestBuildForwardOpenRequestSmallUsesLegacyService(t *testing.T) {
	cfg := DefaultForwardOpenConfig()
	cfg.ConnectionPath = []byte{0x20, 0x6B, 0x24, 0x01}

	req, _, err := BuildForwardOpenRequestSmall(cfg)
	require.NoError(t, err)
	require.Equal(t, SvcForwardOpen, req[0])
}

func TestParseForwardOpenResponseRoundTrip(t *testing.T) {
	data := make([]byte, 0, 26)
	data = binary.LittleEndian.AppendUint32(data, 0x11111111)
	data = binary.LittleEndian.AppendUint32(data, 0x22222222)
	data = binary.LittleEndian.AppendUint16(data, 0x3333)
	data = binary.LittleEndian.AppendUint16(data, 0x4444)
	data = binary.LittleEndian.AppendUint32(data, 0x55555555)
	data = binary.LittleEndian.AppendUint32(data, 0x66666666)
	data = binary.LittleEndian.AppendUint32(data, 0x77777777)
	data = append(data, 0x00, 0x00) // application reply size, reserved

	resp, err := ParseForwardOpenResponse(data)
	require.NoError(t, err)
	require.Equal(t, uint32(0x11111111), resp.OTConnectionID)
	require.Equal(t, uint32(0x22222222), resp.TOConnectionID)
	require.Equal(t, uint16(0x3333), resp.ConnectionSerial)
}

func TestParseForwardOpenResponseTooShort(t *testing.T) {
	_, err := ParseForwardOpenResponse([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestBuildForwardCloseRequest(t *testing.T) {
	conn := &Connection{SerialNumber: 0x1234, VendorID: 0xBEEF, OrigSerial: 42}
	req, err := BuildForwardCloseRequest(conn, []byte{0x20, 0x6B, 0x24, 0x01})
	require.NoError(t, err)
	require.Equal(t, SvcForwardClose, req[0])
}

func TestBuildForwardCloseRequestNilConnection(t *testing.T) {
	_, err := BuildForwardCloseRequest(nil, nil)
	require.Error(t, err)
}
