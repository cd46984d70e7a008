package pccc

import (
	"encoding/binary"
	"fmt"
)

// Frame is a decoded PCCC command/reply frame: CMD, STS, TNS and an
// optional FNC byte (present when CMD is CmdExtended), followed by the
// command-specific data.
type Frame struct {
	Cmd  Command
	Sts  byte
	Tns  uint16
	Fnc  FunctionCode
	Data []byte
}

// EncodeFrame serializes a Frame to its wire bytes: CMD, STS, TNS
// (little-endian), [FNC], Data.
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, 0, 5+len(f.Data))
	buf = append(buf, byte(f.Cmd), f.Sts)
	buf = binary.LittleEndian.AppendUint16(buf, f.Tns)
	if f.Cmd.HasFunctionCode() {
		buf = append(buf, byte(f.Fnc))
	}
	buf = append(buf, f.Data...)
	return buf
}

// DecodeFrame parses a PCCC wire frame into a Frame.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 4 {
		return Frame{}, fmt.Errorf("pccc: frame too short: %d bytes", len(raw))
	}
	f := Frame{
		Cmd: Command(raw[0]),
		Sts: raw[1],
		Tns: binary.LittleEndian.Uint16(raw[2:4]),
	}
	rest := raw[4:]
	if f.Cmd.HasFunctionCode() {
		if len(rest) < 1 {
			return Frame{}, fmt.Errorf("pccc: extended command missing FNC byte")
		}
		f.Fnc = FunctionCode(rest[0])
		rest = rest[1:]
	}
	f.Data = rest
	return f, nil
}

// IsError reports whether the frame's STS byte signals a controller
// error (non-zero, ignoring the extended-STS-follows bit 0x10).
func (f Frame) IsError() bool {
	return f.Sts&0x0F != 0
}

// EncodePLC5Address encodes an address for the PLC-5 typed-read/write
// commands: a leading levels byte (2 for file/element, 3 when a
// sub-element is present) followed by each component as a PCCC
// variable-length word.
func EncodePLC5Address(addr Address) []byte {
	levels := byte(2)
	if addr.HasSub {
		levels = 3
	}
	buf := []byte{levels}
	buf = encodeVarWord(buf, addr.FileNumber)
	buf = encodeVarWord(buf, addr.Element)
	if addr.HasSub {
		buf = encodeVarWord(buf, uint16(addr.SubElement))
	}
	return buf
}

// DecodePLC5Address parses an address encoded by EncodePLC5Address,
// returning the number of bytes consumed.
func DecodePLC5Address(data []byte, ft FileType) (Address, int, error) {
	if len(data) < 1 {
		return Address{}, 0, fmt.Errorf("pccc: truncated PLC-5 address")
	}
	levels := data[0]
	pos := 1
	fileNumber, n, err := decodeVarWord(data[pos:])
	if err != nil {
		return Address{}, 0, fmt.Errorf("pccc: address file number: %w", err)
	}
	pos += n
	element, n, err := decodeVarWord(data[pos:])
	if err != nil {
		return Address{}, 0, fmt.Errorf("pccc: address element: %w", err)
	}
	pos += n

	addr := Address{FileType: ft, FileNumber: fileNumber, Element: element}
	if levels >= 3 {
		sub, n, err := decodeVarWord(data[pos:])
		if err != nil {
			return Address{}, 0, fmt.Errorf("pccc: address sub-element: %w", err)
		}
		pos += n
		addr.SubElement = uint8(sub)
		addr.HasSub = true
	}
	return addr, pos, nil
}

// EncodeSLCAddress encodes an address for the SLC/MicroLogix protected
// typed logical commands: file number, file type byte, element, and
// (when includeSub) sub-element, each a PCCC variable-length word
// except the file type byte which is always a single byte.
func EncodeSLCAddress(addr Address, includeSub bool) []byte {
	var buf []byte
	buf = encodeVarWord(buf, addr.FileNumber)
	buf = append(buf, byte(addr.FileType))
	buf = encodeVarWord(buf, addr.Element)
	if includeSub {
		buf = encodeVarWord(buf, uint16(addr.SubElement))
	}
	return buf
}

// DecodeSLCAddress parses an address encoded by EncodeSLCAddress.
func DecodeSLCAddress(data []byte, includeSub bool) (Address, int, error) {
	fileNumber, n, err := decodeVarWord(data)
	if err != nil {
		return Address{}, 0, fmt.Errorf("pccc: address file number: %w", err)
	}
	pos := n
	if len(data) < pos+1 {
		return Address{}, 0, fmt.Errorf("pccc: truncated SLC address file type")
	}
	ft := FileType(data[pos])
	pos++
	element, n, err := decodeVarWord(data[pos:])
	if err != nil {
		return Address{}, 0, fmt.Errorf("pccc: address element: %w", err)
	}
	pos += n
	addr := Address{FileType: ft, FileNumber: fileNumber, Element: element}
	if includeSub {
		sub, n, err := decodeVarWord(data[pos:])
		if err != nil {
			return Address{}, 0, fmt.Errorf("pccc: address sub-element: %w", err)
		}
		pos += n
		addr.SubElement = uint8(sub)
		addr.HasSub = true
	}
	return addr, pos, nil
}

// BuildPLC5TypedReadRequest builds a CmdExtended/FncTypedRead frame that
// reads byteCount bytes starting at addr.
func BuildPLC5TypedReadRequest(tns uint16, addr Address, byteCount byte) []byte {
	data := append([]byte{byteCount}, EncodePLC5Address(addr)...)
	return EncodeFrame(Frame{Cmd: CmdExtended, Tns: tns, Fnc: FncTypedRead, Data: data})
}

// BuildPLC5TypedWriteRequest builds a CmdExtended/FncTypedWrite frame
// that writes value to addr.
func BuildPLC5TypedWriteRequest(tns uint16, addr Address, value []byte) []byte {
	data := append([]byte{byte(len(value))}, EncodePLC5Address(addr)...)
	data = append(data, value...)
	return EncodeFrame(Frame{Cmd: CmdExtended, Tns: tns, Fnc: FncTypedWrite, Data: data})
}

// BuildSLCProtectedTypedReadRequest builds a CmdExtended/
// FncProtectedTypedLogicalRead frame (the SLC/MicroLogix 3-address-field
// typed read).
func BuildSLCProtectedTypedReadRequest(tns uint16, addr Address, byteCount byte) []byte {
	data := append([]byte{byteCount}, EncodeSLCAddress(addr, false)...)
	return EncodeFrame(Frame{Cmd: CmdExtended, Tns: tns, Fnc: FncProtectedTypedLogicalRead, Data: data})
}

// BuildSLCProtectedTypedWriteRequest builds a CmdExtended/
// FncProtectedTypedLogicalWrite frame.
func BuildSLCProtectedTypedWriteRequest(tns uint16, addr Address, value []byte) []byte {
	data := append([]byte{byte(len(value))}, EncodeSLCAddress(addr, false)...)
	data = append(data, value...)
	return EncodeFrame(Frame{Cmd: CmdExtended, Tns: tns, Fnc: FncProtectedTypedLogicalWrite, Data: data})
}

// BuildSLCProtectedTypedWriteMaskRequest builds a CmdExtended/
// FncProtectedTypedLogicalWriteMask frame for masked (single-bit or
// sub-word) writes.
func BuildSLCProtectedTypedWriteMaskRequest(tns uint16, addr Address, orMask, andMask []byte) ([]byte, error) {
	if len(orMask) != len(andMask) {
		return nil, fmt.Errorf("pccc: mask length mismatch: or=%d and=%d", len(orMask), len(andMask))
	}
	data := append([]byte{byte(len(orMask))}, EncodeSLCAddress(addr, false)...)
	data = append(data, andMask...)
	data = append(data, orMask...)
	return EncodeFrame(Frame{Cmd: CmdExtended, Tns: tns, Fnc: FncProtectedTypedLogicalWriteMask, Data: data}), nil
}

// ParseTypedReadResponse extracts the read data from a typed-read reply
// frame, returning an error built from the STS byte if the controller
// reported one.
func ParseTypedReadResponse(f Frame) ([]byte, error) {
	if f.IsError() {
		return nil, StatusError(f.Sts)
	}
	return f.Data, nil
}

// ParseWriteResponse checks a typed-write reply frame's STS byte.
func ParseWriteResponse(f Frame) error {
	if f.IsError() {
		return StatusError(f.Sts)
	}
	return nil
}
