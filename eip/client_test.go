package eip

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer reads one encap request off conn and writes back resp.
func fakeServer(t *testing.T, conn net.Conn, respSession uint32, respStatus uint32, respData []byte) {
	t.Helper()
	header := make([]byte, 24)
	_, err := conn.Read(header)
	require.NoError(t, err)
	length := binary.LittleEndian.Uint16(header[2:4])
	if length > 0 {
		payload := make([]byte, length)
		_, err := conn.Read(payload)
		require.NoError(t, err)
	}

	resp := EipEncap{
		command:       binary.LittleEndian.Uint16(header[:2]),
		length:        uint16(len(respData)),
		sessionHandle: respSession,
		status:        respStatus,
		data:          respData,
	}
	_, err = conn.Write(resp.Bytes())
	require.NoError(t, err)
}

func TestRegisterSessionSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	e := &EipClient{conn: client, timeout: time.Second}

	go fakeServer(t, server, 0xCAFEBABE, 0, []byte{1, 0, 0, 0})

	session, err := e.registerSession()
	require.NoError(t, err)
	require.Equal(t, uint32(0xCAFEBABE), session)
}

func TestRegisterSessionRejectedByController(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	e := &EipClient{conn: client, timeout: time.Second}

	go fakeServer(t, server, 0, 0x01, nil)

	_, err := e.registerSession()
	require.Error(t, err)
}

func TestRegisterSessionNotConnected(t *testing.T) {
	e := &EipClient{}
	_, err := e.registerSession()
	require.Error(t, err)
}

func TestSendRRDataRequiresSession(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	e := &EipClient{conn: client, timeout: time.Second}
	_, err := e.SendRRData(EipCommonPacket{})
	require.Error(t, err)
}

func TestGetAddrAndTimeoutOnNilClient(t *testing.T) {
	var e *EipClient
	require.Equal(t, "", e.GetAddr())
	require.Equal(t, time.Duration(0), e.GetTimeout())
	require.False(t, e.IsConnected())
}
