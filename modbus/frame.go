// Package modbus implements Modbus/TCP framing: the MBAP header, a
// function-code subset (coil/register read and write), and exception
// responses.
package modbus

import (
	"encoding/binary"
	"fmt"
)

// MBAPHeaderSize is the fixed MBAP header size: transaction ID, protocol
// ID, length, unit ID.
const MBAPHeaderSize = 7

// MaxPDUSize is the Modbus/TCP PDU cap: the function code byte plus the
// request/response data, 300 bytes in all.
const MaxPDUSize = 300

// MaxInFlight is the maximum number of outstanding unanswered Modbus/TCP
// requests allowed per connection.
const MaxInFlight = 16

// FunctionCode is a Modbus function code byte.
type FunctionCode uint8

const (
	FcReadCoils              FunctionCode = 0x01
	FcReadDiscreteInputs     FunctionCode = 0x02
	FcReadHoldingRegisters   FunctionCode = 0x03
	FcReadInputRegisters     FunctionCode = 0x04
	FcWriteSingleCoil        FunctionCode = 0x05
	FcWriteSingleRegister    FunctionCode = 0x06
	FcWriteMultipleCoils     FunctionCode = 0x0F
	FcWriteMultipleRegisters FunctionCode = 0x10
)

// ExceptionBit marks a reply function code as an exception response.
const ExceptionBit FunctionCode = 0x80

func (fc FunctionCode) String() string {
	switch fc &^ ExceptionBit {
	case FcReadCoils:
		return "ReadCoils"
	case FcReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case FcReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FcReadInputRegisters:
		return "ReadInputRegisters"
	case FcWriteSingleCoil:
		return "WriteSingleCoil"
	case FcWriteSingleRegister:
		return "WriteSingleRegister"
	case FcWriteMultipleCoils:
		return "WriteMultipleCoils"
	case FcWriteMultipleRegisters:
		return "WriteMultipleRegisters"
	default:
		return fmt.Sprintf("FunctionCode(0x%02X)", uint8(fc))
	}
}

// ExceptionCode is a Modbus exception code carried in the single data
// byte of an exception response.
type ExceptionCode uint8

const (
	ExcIllegalFunction    ExceptionCode = 0x01
	ExcIllegalDataAddress ExceptionCode = 0x02
	ExcIllegalDataValue   ExceptionCode = 0x03
	ExcSlaveDeviceFailure ExceptionCode = 0x04
	ExcAcknowledge        ExceptionCode = 0x05
	ExcSlaveDeviceBusy    ExceptionCode = 0x06
	ExcGatewayPathUnavail ExceptionCode = 0x0A
	ExcGatewayTargetFail  ExceptionCode = 0x0B
)

var exceptionMessages = map[ExceptionCode]string{
	ExcIllegalFunction:    "illegal function",
	ExcIllegalDataAddress: "illegal data address",
	ExcIllegalDataValue:   "illegal data value",
	ExcSlaveDeviceFailure: "slave device failure",
	ExcAcknowledge:        "acknowledge",
	ExcSlaveDeviceBusy:    "slave device busy",
	ExcGatewayPathUnavail: "gateway path unavailable",
	ExcGatewayTargetFail:  "gateway target device failed to respond",
}

// ExceptionError wraps a Modbus exception response.
type ExceptionError struct {
	Function FunctionCode
	Code     ExceptionCode
}

func (e *ExceptionError) Error() string {
	msg, ok := exceptionMessages[e.Code]
	if !ok {
		msg = "unknown exception"
	}
	return fmt.Sprintf("modbus: %s exception 0x%02X: %s", (e.Function &^ ExceptionBit).String(), uint8(e.Code), msg)
}

// ADU is a complete Modbus/TCP frame: MBAP header plus PDU.
type ADU struct {
	TransactionID uint16
	UnitID        uint8
	Function      FunctionCode
	Data          []byte
}

// IsException reports whether the function code's high bit is set.
func (a ADU) IsException() bool { return a.Function&ExceptionBit != 0 }

// Exception extracts the exception code from an exception ADU. Callers
// should check IsException first.
func (a ADU) Exception() ExceptionCode {
	if len(a.Data) < 1 {
		return 0
	}
	return ExceptionCode(a.Data[0])
}

// Encode serializes an ADU to its wire bytes: MBAP header (transaction
// ID, protocol ID 0x0000, length, unit ID) followed by the function
// code and data.
func (a ADU) Encode() ([]byte, error) {
	pduLen := 1 + len(a.Data)
	if pduLen > MaxPDUSize {
		return nil, fmt.Errorf("modbus: PDU of %d bytes exceeds %d-byte cap", pduLen, MaxPDUSize)
	}
	buf := make([]byte, MBAPHeaderSize, MBAPHeaderSize+pduLen)
	binary.BigEndian.PutUint16(buf[0:2], a.TransactionID)
	binary.BigEndian.PutUint16(buf[2:4], 0x0000)
	binary.BigEndian.PutUint16(buf[4:6], uint16(1+pduLen)) // unit ID + PDU
	buf[6] = a.UnitID
	buf = append(buf, byte(a.Function))
	buf = append(buf, a.Data...)
	return buf, nil
}

// DecodeADU parses a complete Modbus/TCP frame from raw.
func DecodeADU(raw []byte) (ADU, error) {
	if len(raw) < MBAPHeaderSize+1 {
		return ADU{}, fmt.Errorf("modbus: frame too short: %d bytes", len(raw))
	}
	transactionID := binary.BigEndian.Uint16(raw[0:2])
	protocolID := binary.BigEndian.Uint16(raw[2:4])
	length := binary.BigEndian.Uint16(raw[4:6])
	unitID := raw[6]
	if protocolID != 0x0000 {
		return ADU{}, fmt.Errorf("modbus: unexpected protocol ID 0x%04X", protocolID)
	}
	if length < 2 {
		return ADU{}, fmt.Errorf("modbus: length field %d too small", length)
	}
	pduEnd := MBAPHeaderSize + int(length) - 1 // length includes unit ID
	if pduEnd > len(raw) {
		return ADU{}, fmt.Errorf("modbus: frame declares %d bytes, have %d", pduEnd, len(raw))
	}
	return ADU{
		TransactionID: transactionID,
		UnitID:        unitID,
		Function:      FunctionCode(raw[MBAPHeaderSize]),
		Data:          append([]byte(nil), raw[MBAPHeaderSize+1:pduEnd]...),
	}, nil
}

// AsError returns an *ExceptionError if the ADU is an exception
// response, nil otherwise.
func (a ADU) AsError() error {
	if !a.IsException() {
		return nil
	}
	return &ExceptionError{Function: a.Function, Code: a.Exception()}
}
