package session

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plctag/config"
	"plctag/eip"
)

const (
	cmdRegisterSession uint16 = 0x65
	cmdSendRRData      uint16 = 0x6F
)

// encapBytes builds a raw EtherNet/IP encapsulation frame, since EipEncap's
// fields are unexported and this test lives outside the eip package.
func encapBytes(command uint16, session, status uint32, data []byte) []byte {
	buf := make([]byte, 0, 24+len(data))
	buf = binary.LittleEndian.AppendUint16(buf, command)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(data)))
	buf = binary.LittleEndian.AppendUint32(buf, session)
	buf = binary.LittleEndian.AppendUint32(buf, status)
	buf = append(buf, make([]byte, 8)...) // sender context
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = append(buf, data...)
	return buf
}

func readEncapFrame(t *testing.T, conn net.Conn) (command uint16, data []byte) {
	t.Helper()
	header := make([]byte, 24)
	_, err := readFull(conn, header)
	require.NoError(t, err)
	length := binary.LittleEndian.Uint16(header[2:4])
	payload := make([]byte, length)
	if length > 0 {
		_, err = readFull(conn, payload)
		require.NoError(t, err)
	}
	return binary.LittleEndian.Uint16(header[0:2]), payload
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// forwardOpenReplyData builds a fake 26-byte Forward Open success payload.
func forwardOpenReplyData() []byte {
	buf := make([]byte, 26)
	binary.LittleEndian.PutUint32(buf[0:4], 0x1111) // O->T connection id
	binary.LittleEndian.PutUint32(buf[4:8], 0x2222) // T->O connection id
	binary.LittleEndian.PutUint16(buf[8:10], 0x3333)
	binary.LittleEndian.PutUint16(buf[10:12], 0x0001)
	binary.LittleEndian.PutUint32(buf[12:16], 0x4444)
	binary.LittleEndian.PutUint32(buf[16:20], 1000)
	binary.LittleEndian.PutUint32(buf[20:24], 1000)
	return buf
}

// fakePLC accepts connections on ln and answers RegisterSession, then
// either closes (unconnected) or answers one Forward Open with success,
// according to connected.
func fakePLC(t *testing.T, ln net.Listener, connected bool) {
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	cmd, _ := readEncapFrame(t, conn)
	require.Equal(t, cmdRegisterSession, cmd)
	_, err = conn.Write(encapBytes(cmdRegisterSession, 0xABCD1234, 0, []byte{1, 0, 0, 0}))
	require.NoError(t, err)

	if !connected {
		return
	}

	cmd, payload := readEncapFrame(t, conn)
	require.Equal(t, cmdSendRRData, cmd)

	cpf, err := eip.ParseEipCommonPacket(payload[6:])
	require.NoError(t, err)
	require.Len(t, cpf.Items, 2)

	reqService := cpf.Items[1].Data[0]
	replyService := reqService | 0x80

	replyCip := append([]byte{replyService, 0x00, 0x00, 0x00}, forwardOpenReplyData()...)
	replyCpf := eip.EipCommonPacket{
		Items: []eip.EipCommonPacketItem{
			{TypeId: eip.CpfAddressNullId, Length: 0, Data: nil},
			{TypeId: eip.CpfUnconnectedMessageId, Length: uint16(len(replyCip)), Data: replyCip},
		},
	}
	rrdata := append(make([]byte, 6), replyCpf.Bytes()...)
	_, err = conn.Write(encapBytes(cmdSendRRData, 0xABCD1234, 0, rrdata))
	require.NoError(t, err)
}

func testConfig(t *testing.T, addr string, connected bool) *config.Config {
	t.Helper()
	return &config.Config{
		Protocol:        config.ProtocolABEIP,
		Family:          config.FamilyLogix,
		Gateway:         addr,
		UseConnectedMsg: connected,
	}
}

func TestSessionConnectUnconnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		fakePLC(t, ln, false)
		close(done)
	}()

	cfg := testConfig(t, ln.Addr().String(), false)
	s := New(cfg)
	require.NoError(t, s.Connect())
	require.Equal(t, StateIdle, s.State())
	require.True(t, s.IsConnected())
	require.Nil(t, s.Connection())

	<-done
}

func TestSessionConnectForwardOpenSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		fakePLC(t, ln, true)
		close(done)
	}()

	cfg := testConfig(t, ln.Addr().String(), true)
	s := New(cfg)
	require.NoError(t, s.Connect())
	require.Equal(t, StateIdle, s.State())

	conn := s.Connection()
	require.NotNil(t, conn)
	require.Equal(t, uint32(0x1111), conn.OTConnID)
	require.Equal(t, uint32(0x2222), conn.TOConnID)

	<-done
}

func TestSessionConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listening now

	cfg := testConfig(t, addr, false)
	s := New(cfg)
	err = s.Connect()
	require.Error(t, err)
	require.Equal(t, StateWaitRetry, s.State())
}

func TestSessionAcquireHonorsRetryBackoff(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1", false)
	s := New(cfg)
	s.mu.Lock()
	s.state = StateWaitRetry
	s.retryAfter = time.Now().Add(time.Hour)
	s.mu.Unlock()

	err := s.Acquire()
	require.Error(t, err)
}

func TestSessionMaybeAutoDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		fakePLC(t, ln, false)
		close(done)
	}()

	cfg := testConfig(t, ln.Addr().String(), false)
	s := New(cfg)
	require.NoError(t, s.Connect())
	<-done

	s.mu.Lock()
	s.lastActivity = time.Now().Add(-(DisconnectTimeout + time.Second))
	s.mu.Unlock()

	s.MaybeAutoDisconnect()
	require.Equal(t, StateWaitReconnect, s.State())
}

func TestRoutePathFromConfig(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1", false)
	cfg.Path = "1,0"
	s := New(cfg)
	route, err := s.RoutePath()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x01, 0x01, 0x00}, route.Encoded)
}
