package scheduler

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plctag/cip"
	"plctag/config"
	"plctag/eip"
	"plctag/session"
)

const (
	cmdRegisterSession uint16 = 0x65
	cmdSendRRData      uint16 = 0x6F
)

func encapBytes(command uint16, sessionHandle, status uint32, data []byte) []byte {
	buf := make([]byte, 0, 24+len(data))
	buf = binary.LittleEndian.AppendUint16(buf, command)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(data)))
	buf = binary.LittleEndian.AppendUint32(buf, sessionHandle)
	buf = binary.LittleEndian.AppendUint32(buf, status)
	buf = append(buf, make([]byte, 8)...)
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

func unconnectedReplyFrame(sessionHandle uint32, cipReply []byte) []byte {
	cpf := eip.EipCommonPacket{
		Items: []eip.EipCommonPacketItem{
			{TypeId: eip.CpfAddressNullId, Length: 0, Data: nil},
			{TypeId: eip.CpfUnconnectedMessageId, Length: uint16(len(cipReply)), Data: cipReply},
		},
	}
	rrdata := append(make([]byte, 6), cpf.Bytes()...)
	return encapBytes(cmdSendRRData, sessionHandle, 0, rrdata)
}

func buildMultiReplyBody(entries [][]byte) []byte {
	headerSize := 2 + len(entries)*2
	offsets := make([]uint16, len(entries))
	cur := uint16(headerSize)
	for i, e := range entries {
		offsets[i] = cur
		cur += uint16(len(e))
	}

	out := make([]byte, 0, cur)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(entries)))
	for _, o := range offsets {
		out = binary.LittleEndian.AppendUint16(out, o)
	}
	for _, e := range entries {
		out = append(out, e...)
	}
	return out
}

func subReply(service, status byte, data []byte) []byte {
	return append([]byte{service, 0x00, status, 0x00}, data...)
}

func testConfig(addr string) *config.Config {
	return &config.Config{
		Protocol: config.ProtocolABEIP,
		Family:   config.FamilyLogix,
		Gateway:  addr,
	}
}

// acceptAndRegister accepts one connection and answers RegisterSession,
// returning the connection for the test to keep driving.
func acceptAndRegister(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := ln.Accept()
	require.NoError(t, err)

	cmd, _ := readEncapFrame(t, conn)
	require.Equal(t, cmdRegisterSession, cmd)
	_, err = conn.Write(encapBytes(cmdRegisterSession, 0xABCD1234, 0, []byte{1, 0, 0, 0}))
	require.NoError(t, err)
	return conn
}

func TestSchedulerSingleRequestRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn := acceptAndRegister(t, ln)
		defer conn.Close()

		cmd, payload := readEncapFrame(t, conn)
		require.Equal(t, cmdSendRRData, cmd)

		cpf, err := eip.ParseEipCommonPacket(payload[6:])
		require.NoError(t, err)
		require.Len(t, cpf.Items, 2)

		reqCip := cpf.Items[1].Data
		require.Equal(t, byte(0x4C), reqCip[0]) // echoes the request's service byte

		reply := subReply(0xCC, cip.GeneralStatusSuccess, []byte{0x01, 0x02, 0x03})
		_, err = conn.Write(unconnectedReplyFrame(0xABCD1234, reply))
		require.NoError(t, err)
	}()

	sess := session.New(testConfig(ln.Addr().String()))
	sched := New(sess)
	defer sched.Close()

	path, err := cip.EPath().Class(0x01).Instance(1).Build()
	require.NoError(t, err)
	req := NewRequest(0x4C, path, []byte{0x01, 0x00}, false)
	sched.Submit(req)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := req.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, res.Data)

	<-done
}

func TestSchedulerPacksMultipleRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn := acceptAndRegister(t, ln)
		defer conn.Close()

		cmd, payload := readEncapFrame(t, conn)
		require.Equal(t, cmdSendRRData, cmd)

		cpf, err := eip.ParseEipCommonPacket(payload[6:])
		require.NoError(t, err)
		require.Len(t, cpf.Items, 2)

		reqCip := cpf.Items[1].Data
		require.Equal(t, cip.SvcMultipleServicePacket, reqCip[0])

		body := buildMultiReplyBody([][]byte{
			subReply(0xCC, cip.GeneralStatusSuccess, []byte{0x01}),
			subReply(0xCC, cip.GeneralStatusSuccess, []byte{0x02}),
			subReply(0xCC, cip.GeneralStatusSuccess, []byte{0x03}),
		})
		reply := append([]byte{cip.SvcMultipleServicePacket | 0x80, 0x00, 0x00, 0x00}, body...)
		_, err = conn.Write(unconnectedReplyFrame(0xABCD1234, reply))
		require.NoError(t, err)
	}()

	sess := session.New(testConfig(ln.Addr().String()))
	sched := New(sess)
	defer sched.Close()

	path, err := cip.EPath().Class(0x01).Instance(1).Build()
	require.NoError(t, err)

	reqs := make([]*Request, 3)
	for i := range reqs {
		reqs[i] = NewRequest(0x4C, path, []byte{0x01, 0x00}, true)
		sched.Submit(reqs[i])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i, r := range reqs {
		res, err := r.Wait(ctx)
		require.NoError(t, err)
		require.NoError(t, res.Err)
		require.Equal(t, []byte{byte(i + 1)}, res.Data)
	}

	<-done
}

func TestSchedulerEmbeddedServiceErrorStillDeliversGoodMembers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn := acceptAndRegister(t, ln)
		defer conn.Close()

		_, payload := readEncapFrame(t, conn)
		cpf, err := eip.ParseEipCommonPacket(payload[6:])
		require.NoError(t, err)

		body := buildMultiReplyBody([][]byte{
			subReply(0xCC, cip.GeneralStatusSuccess, []byte{0x01}),
			subReply(0xCC, cip.GeneralStatusObjectDoesNotExist, nil),
		})
		reply := append([]byte{cip.SvcMultipleServicePacket | 0x80, 0x00, cip.GeneralStatusEmbeddedServiceError, 0x00}, body...)
		_, err = conn.Write(unconnectedReplyFrame(0xABCD1234, reply))
		require.NoError(t, err)
		_ = cpf
	}()

	sess := session.New(testConfig(ln.Addr().String()))
	sched := New(sess)
	defer sched.Close()

	path, err := cip.EPath().Class(0x01).Instance(1).Build()
	require.NoError(t, err)

	r1 := NewRequest(0x4C, path, []byte{0x01, 0x00}, true)
	r2 := NewRequest(0x4C, path, []byte{0x01, 0x00}, true)
	sched.Submit(r1)
	sched.Submit(r2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res1, err := r1.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, res1.Err)
	require.Equal(t, []byte{0x01}, res1.Data)

	res2, err := r2.Wait(ctx)
	require.NoError(t, err)
	require.Error(t, res2.Err)

	<-done
}

func TestSchedulerAbortPurgesQueuedRequest(t *testing.T) {
	cfg := testConfig("127.0.0.1:1")
	sess := session.New(cfg)
	s := &Scheduler{sess: sess}

	path, err := cip.EPath().Class(0x01).Instance(1).Build()
	require.NoError(t, err)

	kept := NewRequest(0x4C, path, nil, true)
	aborted := NewRequest(0x4C, path, nil, true)
	aborted.Abort()
	tail := NewRequest(0x4C, path, nil, true)

	s.queue = []*Request{kept, aborted, tail}

	batch, ok := s.nextBatch()
	require.True(t, ok)
	require.Equal(t, []*Request{kept, tail}, batch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := aborted.Wait(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrAborted)
}

func TestSchedulerSubmitAfterCloseFailsImmediately(t *testing.T) {
	sess := session.New(testConfig("127.0.0.1:1"))
	sched := New(sess)
	sched.Close()

	path, err := cip.EPath().Class(0x01).Instance(1).Build()
	require.NoError(t, err)
	req := NewRequest(0x4C, path, nil, false)
	sched.Submit(req)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := req.Wait(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrAborted)
}
