package cip

import (
	"encoding/binary"
	"fmt"
)

// CIP Execute PCCC service: wraps a legacy PCCC command frame inside a CIP
// request so it can ride EIP unconnected or connected messaging to a
// PLC-5/SLC/MicroLogix or a ControlLogix running in PCCC-compatibility
// mode.
const SvcExecutePCCC byte = 0x4B

// PCCC object class/instance that Execute PCCC requests target.
const (
	ClassPCCC    byte = 0x67
	InstancePCCC byte = 0x01
)

// PCCCObjectPath returns the PCCC object's class/instance path that an
// Execute PCCC request targets.
func PCCCObjectPath() (EPath_t, error) {
	path, err := EPath().Class(ClassPCCC).Instance(InstancePCCC).Build()
	if err != nil {
		return nil, fmt.Errorf("cip: building PCCC object path: %w", err)
	}
	return path, nil
}

// BuildExecutePCCCBody builds an Execute PCCC (0x4B) request body: the
// requestor ID block followed by the raw PCCC frame. It does not include
// the service byte or path prefix — callers sending through a request
// scheduler supply those separately; BuildExecutePCCCRequest is for
// callers that need the complete wire request in one slice.
func BuildExecutePCCCBody(vendorID uint16, vendorSerial uint32, pcccFrame []byte) ([]byte, error) {
	if len(pcccFrame) == 0 {
		return nil, fmt.Errorf("cip: empty PCCC frame")
	}
	// Requestor ID: length byte (always 7: 2 vendor + 4 serial + 1 reserved
	// byte), vendor ID, serial, then the reserved byte.
	out := make([]byte, 0, 7+len(pcccFrame))
	out = append(out, 0x07)
	out = binary.LittleEndian.AppendUint16(out, vendorID)
	out = binary.LittleEndian.AppendUint32(out, vendorSerial)
	out = append(out, 0x00) // reserved
	out = append(out, pcccFrame...)
	return out, nil
}

// BuildExecutePCCCRequest wraps a raw PCCC command frame in a complete
// CIP Execute PCCC (0x4B) request, service byte and path included, for
// callers (e.g. Unconnected Send) that need one self-contained slice
// rather than a scheduler.Request's separate service/path/data fields.
func BuildExecutePCCCRequest(vendorID uint16, vendorSerial uint32, pcccFrame []byte) ([]byte, error) {
	body, err := BuildExecutePCCCBody(vendorID, vendorSerial, pcccFrame)
	if err != nil {
		return nil, err
	}
	path, err := PCCCObjectPath()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2+len(path)+len(body))
	out = append(out, SvcExecutePCCC)
	out = append(out, path.WordLen())
	out = append(out, path...)
	out = append(out, body...)
	return out, nil
}

// ParseExecutePCCCResponse strips the CIP message-router envelope from an
// Execute PCCC reply and returns the embedded PCCC frame bytes, after
// translating a nonzero general status through TranslateStatus.
func ParseExecutePCCCResponse(raw []byte) ([]byte, error) {
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	return InterpretExecutePCCCReply(resp.GeneralStatus, resp.AdditionalStatus, resp.Data)
}

// InterpretExecutePCCCReply is ParseExecutePCCCResponse's counterpart for
// a caller (typically a request scheduler) that has already split the
// reply into a status pair and data, rather than holding the raw CIP
// reply bytes.
func InterpretExecutePCCCReply(generalStatus byte, extended []uint16, data []byte) ([]byte, error) {
	if err := TranslateStatus(generalStatus, extended); err != nil {
		return nil, err
	}
	return data, nil
}
