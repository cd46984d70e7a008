package modbus

import (
	"encoding/binary"
	"fmt"
)

// addrQuantity builds the 4-byte starting-address/quantity payload
// shared by every Modbus read request and the multi-write headers.
func addrQuantity(addr, qty uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], addr)
	binary.BigEndian.PutUint16(buf[2:4], qty)
	return buf
}

// ReadCoilsRequest builds the FC 0x01 request data.
func ReadCoilsRequest(startAddr, quantity uint16) []byte { return addrQuantity(startAddr, quantity) }

// ReadDiscreteInputsRequest builds the FC 0x02 request data.
func ReadDiscreteInputsRequest(startAddr, quantity uint16) []byte {
	return addrQuantity(startAddr, quantity)
}

// ReadHoldingRegistersRequest builds the FC 0x03 request data.
func ReadHoldingRegistersRequest(startAddr, quantity uint16) []byte {
	return addrQuantity(startAddr, quantity)
}

// ReadInputRegistersRequest builds the FC 0x04 request data.
func ReadInputRegistersRequest(startAddr, quantity uint16) []byte {
	return addrQuantity(startAddr, quantity)
}

// WriteSingleCoilRequest builds the FC 0x05 request data. The wire
// value for ON is 0xFF00, for OFF 0x0000.
func WriteSingleCoilRequest(addr uint16, on bool) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], addr)
	if on {
		buf[2] = 0xFF
	}
	return buf
}

// WriteSingleRegisterRequest builds the FC 0x06 request data.
func WriteSingleRegisterRequest(addr, value uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], addr)
	binary.BigEndian.PutUint16(buf[2:4], value)
	return buf
}

// PackCoils packs quantity boolean coil values into a byte slice,
// little-bit-endian (coil N in bit N%8 of byte N/8), per the Modbus
// coil-array convention.
func PackCoils(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// UnpackCoils unpacks a packed coil byte slice into quantity booleans.
func UnpackCoils(data []byte, quantity int) []bool {
	out := make([]bool, quantity)
	for i := range out {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}

// WriteMultipleCoilsRequest builds the FC 0x0F request data.
func WriteMultipleCoilsRequest(startAddr uint16, values []bool) ([]byte, error) {
	if len(values) == 0 || len(values) > 1968 {
		return nil, fmt.Errorf("modbus: coil quantity %d out of range 1-1968", len(values))
	}
	packed := PackCoils(values)
	buf := make([]byte, 0, 5+len(packed))
	buf = append(buf, addrQuantity(startAddr, uint16(len(values)))...)
	buf = append(buf, byte(len(packed)))
	buf = append(buf, packed...)
	return buf, nil
}

// WriteMultipleRegistersRequest builds the FC 0x10 request data.
func WriteMultipleRegistersRequest(startAddr uint16, values []uint16) ([]byte, error) {
	if len(values) == 0 || len(values) > 123 {
		return nil, fmt.Errorf("modbus: register quantity %d out of range 1-123", len(values))
	}
	buf := make([]byte, 0, 5+len(values)*2)
	buf = append(buf, addrQuantity(startAddr, uint16(len(values)))...)
	buf = append(buf, byte(len(values)*2))
	for _, v := range values {
		word := make([]byte, 2)
		binary.BigEndian.PutUint16(word, v)
		buf = append(buf, word...)
	}
	return buf, nil
}

// DecodeRegistersResponse parses a read-holding/input-registers
// response data field (byte count, then big-endian uint16 words) into
// a slice of register values.
func DecodeRegistersResponse(data []byte) ([]uint16, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("modbus: empty registers response")
	}
	byteCount := int(data[0])
	if len(data) < 1+byteCount {
		return nil, fmt.Errorf("modbus: registers response declares %d bytes, have %d", byteCount, len(data)-1)
	}
	if byteCount%2 != 0 {
		return nil, fmt.Errorf("modbus: odd byte count %d in registers response", byteCount)
	}
	regs := make([]uint16, byteCount/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[1+i*2 : 3+i*2])
	}
	return regs, nil
}

// DecodeCoilsResponse parses a read-coils/discrete-inputs response data
// field (byte count, then packed coil bytes) into quantity booleans.
func DecodeCoilsResponse(data []byte, quantity int) ([]bool, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("modbus: empty coils response")
	}
	byteCount := int(data[0])
	want := (quantity + 7) / 8
	if byteCount != want || len(data) < 1+byteCount {
		return nil, fmt.Errorf("modbus: coils response byte count %d, expected %d", byteCount, want)
	}
	return UnpackCoils(data[1:1+byteCount], quantity), nil
}
