package plctag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"plctag/config"
	"plctag/internal/logging"
	"plctag/modbus"
)

// modbusRegType is the Modbus data table the tag addresses, parsed from
// the tag name's two-letter prefix.
type modbusRegType int

const (
	regCoil modbusRegType = iota
	regDiscreteInput
	regHoldingRegister
	regInputRegister
)

func (rt modbusRegType) readOnly() bool {
	return rt == regDiscreteInput || rt == regInputRegister
}

func (rt modbusRegType) isBit() bool {
	return rt == regCoil || rt == regDiscreteInput
}

// modbusMaxFragmentBytes is the per-request/response byte cap a Modbus
// read/write is fragmented against: 246 request bytes, 250 response
// bytes; 246 is the tighter of the two and keeps both sides under cap.
const modbusMaxFragmentBytes = 246

// modbusBackend has its own TCP transport: Modbus/TCP has no EIP
// encapsulation, session handshake, or CIP connected path, so it never
// touches the session/scheduler pair the CIP and PCCC backends share.
// Grounded on eip.EipClient's dial/transact shape (net.Dialer with
// timeout, write deadline then read deadline around one transaction),
// generalized from the 24-byte encap header to the 7-byte MBAP header.
type modbusBackend struct {
	host   string
	port   uint16
	unitID byte

	regType modbusRegType
	base    uint16

	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	tid  modbus.TransactionIDGenerator
}

func newModbusBackend(cfg *config.Config) (Backend, error) {
	regType, base, err := parseModbusName(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedName, err)
	}
	unitID := byte(1)
	if cfg.Path != "" {
		if n, err := strconv.Atoi(cfg.Path); err == nil && n >= 0 && n <= 255 {
			unitID = byte(n)
		}
	}
	return &modbusBackend{
		host:    modbusHost(cfg.Gateway),
		port:    modbusPort(cfg),
		unitID:  unitID,
		regType: regType,
		base:    base,
		timeout: 5 * time.Second,
	}, nil
}

// parseModbusName parses a Modbus tag name of the form <prefix><base>,
// prefix one of co (coil), di (discrete_input), hr (holding_register),
// ir (input_register), e.g. "hr10" for holding register base 10.
func parseModbusName(name string) (modbusRegType, uint16, error) {
	var rt modbusRegType
	var rest string
	switch {
	case strings.HasPrefix(name, "co"):
		rt, rest = regCoil, name[2:]
	case strings.HasPrefix(name, "di"):
		rt, rest = regDiscreteInput, name[2:]
	case strings.HasPrefix(name, "hr"):
		rt, rest = regHoldingRegister, name[2:]
	case strings.HasPrefix(name, "ir"):
		rt, rest = regInputRegister, name[2:]
	default:
		return 0, 0, fmt.Errorf("modbus: unrecognized register prefix in %q (want co/di/hr/ir)", name)
	}
	base, err := strconv.ParseUint(rest, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("modbus: invalid base register %q: %w", rest, err)
	}
	return rt, uint16(base), nil
}

func modbusHost(gateway string) string {
	if i := strings.LastIndex(gateway, ":"); i >= 0 {
		if _, err := strconv.Atoi(gateway[i+1:]); err == nil {
			return gateway[:i]
		}
	}
	return gateway
}

func modbusPort(cfg *config.Config) uint16 {
	if i := strings.LastIndex(cfg.Gateway, ":"); i >= 0 {
		if p, err := strconv.Atoi(cfg.Gateway[i+1:]); err == nil {
			return uint16(p)
		}
	}
	return uint16(cfg.DefaultPort())
}

func (b *modbusBackend) ensureConn() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(b.host, strconv.Itoa(int(b.port)))
	logging.Debugf("modbus", "dialing %s", addr)
	d := net.Dialer{Timeout: b.timeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("modbus: dial %s: %w", addr, err)
	}
	b.conn = conn
	return nil
}

func (b *modbusBackend) closeConnLocked() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// transact sends one ADU and reads back its reply, closing the
// connection on any transport error so the next call redials.
func (b *modbusBackend) transact(fc modbus.FunctionCode, data []byte) (modbus.ADU, error) {
	if err := b.ensureConn(); err != nil {
		return modbus.ADU{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tid := b.tid.Next()
	req := modbus.ADU{TransactionID: tid, UnitID: b.unitID, Function: fc, Data: data}
	wire, err := req.Encode()
	if err != nil {
		return modbus.ADU{}, err
	}

	_ = b.conn.SetWriteDeadline(time.Now().Add(b.timeout))
	if _, err := b.conn.Write(wire); err != nil {
		b.closeConnLocked()
		return modbus.ADU{}, fmt.Errorf("modbus: write: %w", err)
	}

	_ = b.conn.SetReadDeadline(time.Now().Add(b.timeout))
	header := make([]byte, modbus.MBAPHeaderSize)
	if _, err := io.ReadFull(b.conn, header); err != nil {
		b.closeConnLocked()
		return modbus.ADU{}, fmt.Errorf("modbus: read header: %w", err)
	}
	length := binary.BigEndian.Uint16(header[4:6])
	if length < 2 {
		b.closeConnLocked()
		return modbus.ADU{}, fmt.Errorf("modbus: reply length %d too small", length)
	}
	rest := make([]byte, length-1)
	if _, err := io.ReadFull(b.conn, rest); err != nil {
		b.closeConnLocked()
		return modbus.ADU{}, fmt.Errorf("modbus: read body: %w", err)
	}

	resp, err := modbus.DecodeADU(append(header, rest...))
	if err != nil {
		return modbus.ADU{}, err
	}
	if resp.TransactionID != tid {
		return modbus.ADU{}, fmt.Errorf("modbus: transaction id mismatch: sent %d got %d", tid, resp.TransactionID)
	}
	if err := resp.AsError(); err != nil {
		return resp, err
	}
	return resp, nil
}

func (b *modbusBackend) Read(t *Tag) error {
	t.apiMu.Lock()
	elemCount := t.elemCount
	t.apiMu.Unlock()
	if elemCount < 1 {
		elemCount = 1
	}

	if b.regType.isBit() {
		return b.readBits(t, elemCount)
	}
	return b.readRegisters(t, elemCount)
}

func (b *modbusBackend) readBits(t *Tag, count int) error {
	const maxBitsPerChunk = modbusMaxFragmentBytes * 8
	bits := make([]bool, 0, count)
	fc := modbus.FcReadCoils
	if b.regType == regDiscreteInput {
		fc = modbus.FcReadDiscreteInputs
	}
	offset := 0
	for offset < count {
		chunk := count - offset
		if chunk > maxBitsPerChunk {
			chunk = maxBitsPerChunk
		}
		resp, err := b.transact(fc, modbus.ReadCoilsRequest(b.base+uint16(offset), uint16(chunk)))
		if err != nil {
			return classifyModbusErr(err)
		}
		vals, err := modbus.DecodeCoilsResponse(resp.Data, chunk)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRemote, err)
		}
		bits = append(bits, vals...)
		offset += chunk
	}

	packed := modbus.PackCoils(bits)
	t.apiMu.Lock()
	mismatch := len(t.data) != len(packed)
	t.apiMu.Unlock()
	if mismatch {
		t.setElemShape(1, len(packed))
	}
	t.apiMu.Lock()
	copy(t.data, packed)
	t.apiMu.Unlock()
	return nil
}

func (b *modbusBackend) readRegisters(t *Tag, count int) error {
	const maxRegsPerChunk = modbusMaxFragmentBytes / 2
	regs := make([]uint16, 0, count)
	fc := modbus.FcReadHoldingRegisters
	if b.regType == regInputRegister {
		fc = modbus.FcReadInputRegisters
	}
	offset := 0
	for offset < count {
		chunk := count - offset
		if chunk > maxRegsPerChunk {
			chunk = maxRegsPerChunk
		}
		resp, err := b.transact(fc, modbus.ReadHoldingRegistersRequest(b.base+uint16(offset), uint16(chunk)))
		if err != nil {
			return classifyModbusErr(err)
		}
		vals, err := modbus.DecodeRegistersResponse(resp.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRemote, err)
		}
		regs = append(regs, vals...)
		offset += chunk
	}

	t.apiMu.Lock()
	mismatch := t.elemSize != 2 || t.elemCount != len(regs)
	t.apiMu.Unlock()
	if mismatch {
		t.setElemShape(2, len(regs))
	}
	t.apiMu.Lock()
	for i, v := range regs {
		binary.BigEndian.PutUint16(t.data[i*2:], v)
	}
	t.apiMu.Unlock()
	return nil
}

func (b *modbusBackend) Write(t *Tag) error {
	if b.regType.readOnly() {
		return fmt.Errorf("%w: %s is a read-only Modbus table", ErrReadOnly, modbusRegTypeName(b.regType))
	}

	t.apiMu.Lock()
	data := append([]byte(nil), t.data...)
	elemCount := t.elemCount
	t.apiMu.Unlock()

	if b.regType == regCoil {
		return b.writeCoils(data, elemCount)
	}
	return b.writeRegisters(data)
}

func (b *modbusBackend) writeCoils(packed []byte, count int) error {
	if count < 1 {
		count = len(packed) * 8
	}
	bits := modbus.UnpackCoils(packed, count)
	const maxBitsPerChunk = 1968
	offset := 0
	for offset < len(bits) {
		end := offset + maxBitsPerChunk
		if end > len(bits) {
			end = len(bits)
		}
		body, err := modbus.WriteMultipleCoilsRequest(b.base+uint16(offset), bits[offset:end])
		if err != nil {
			return err
		}
		if _, err := b.transact(modbus.FcWriteMultipleCoils, body); err != nil {
			return classifyModbusErr(err)
		}
		offset = end
	}
	return nil
}

func (b *modbusBackend) writeRegisters(data []byte) error {
	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	const maxRegsPerChunk = modbusMaxFragmentBytes / 2
	offset := 0
	for offset < len(regs) {
		end := offset + maxRegsPerChunk
		if end > len(regs) {
			end = len(regs)
		}
		body, err := modbus.WriteMultipleRegistersRequest(b.base+uint16(offset), regs[offset:end])
		if err != nil {
			return err
		}
		if _, err := b.transact(modbus.FcWriteMultipleRegisters, body); err != nil {
			return classifyModbusErr(err)
		}
		offset = end
	}
	return nil
}

// Abort closes the connection so the next request redials. It takes
// b.mu, which transact holds for a whole transaction, so it waits for a
// transaction in progress to finish or reach its deadline rather than
// interrupting it.
func (b *modbusBackend) Abort(t *Tag) error {
	b.mu.Lock()
	b.closeConnLocked()
	b.mu.Unlock()
	return nil
}

func (b *modbusBackend) Status(t *Tag) OperationState {
	b.mu.Lock()
	connected := b.conn != nil
	b.mu.Unlock()
	if !connected {
		return StatusTransportError
	}
	return StatusOK
}

// Tickler has nothing backend-specific to do; Modbus fragmentation
// happens synchronously inside Read/Write rather than across tickler
// ticks, since Modbus/TCP gives no partial-transfer continuation signal
// the way CIP Read Tag Fragmented does.
func (b *modbusBackend) Tickler(t *Tag) {}

// WakePLC issues a cheap single-element read as a keepalive.
func (b *modbusBackend) WakePLC(t *Tag) error {
	if b.regType.isBit() {
		return b.readBits(t, 1)
	}
	return b.readRegisters(t, 1)
}

func (b *modbusBackend) GetIntAttrib(t *Tag, name string, defVal int) int {
	switch name {
	case "elem_size":
		return t.ElemSize()
	case "elem_count":
		return t.ElemCount()
	case "unit_id":
		return int(b.unitID)
	default:
		return defVal
	}
}

func (b *modbusBackend) SetIntAttrib(t *Tag, name string, value int) error {
	return fmt.Errorf("%w: attribute %q is read-only on a modbus tag", ErrUnsupportedOp, name)
}

func modbusRegTypeName(rt modbusRegType) string {
	switch rt {
	case regCoil:
		return "coil"
	case regDiscreteInput:
		return "discrete_input"
	case regHoldingRegister:
		return "holding_register"
	case regInputRegister:
		return "input_register"
	default:
		return "unknown"
	}
}

// classifyModbusErr maps a Modbus exception response to the sentinel
// bucket matching the library's status taxonomy, falling back to a
// transport-timeout bucket for anything that isn't an exception (dial
// failure, deadline, short read).
func classifyModbusErr(err error) error {
	var exc *modbus.ExceptionError
	if errors.As(err, &exc) {
		switch exc.Code {
		case modbus.ExcIllegalFunction:
			return fmt.Errorf("%w: %v", ErrUnsupportedOp, err)
		case modbus.ExcIllegalDataAddress:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case modbus.ExcIllegalDataValue:
			return fmt.Errorf("%w: %v", ErrMalformedName, err)
		case modbus.ExcAcknowledge, modbus.ExcSlaveDeviceBusy:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		default:
			return fmt.Errorf("%w: %v", ErrRemote, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTimeout, err)
}
