package cip

import (
	"encoding/binary"
	"fmt"
)

// Logix tag access services. 0x52/0x53 for the fragmented read/write
// pair matches standard CIP usage; 0x55 is Get Instance Attribute List,
// used for tag listing rather than fragmented reads, so it is not
// reused here.
const (
	SvcReadTag            byte = 0x4C
	SvcWriteTag           byte = 0x4D
	SvcReadTagFragmented  byte = 0x52
	SvcWriteTagFragmented byte = 0x53
)

// BuildReadTagRequest builds a Read Tag (0x4C) request body: the element
// count to read, as a little-endian word. The tag's symbolic EPath is not
// part of the body; the caller builds it separately (e.g. via
// EPath().Symbol(name)).
func BuildReadTagRequest(elementCount uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, elementCount)
}

// ReadTagReply is a parsed, status-checked Read Tag or Read Tag
// Fragmented response.
type ReadTagReply struct {
	DataType        uint16
	Data            []byte
	PartialTransfer bool
}

// ParseReadTagResponse parses a Read Tag (0x4C) reply: a status-checked
// CIP response whose data begins with a 2-byte CIP data type code
// followed by the element data.
func ParseReadTagResponse(raw []byte) (*ReadTagReply, error) {
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	return InterpretReadTagReply(resp.GeneralStatus, resp.AdditionalStatus, resp.Data)
}

// InterpretReadTagReply builds a ReadTagReply from an already-demuxed
// (general status, extended status, data) triple, the shape a request
// scheduler hands back once it has stripped the reply service byte and
// parsed the status header itself. Shared by ParseReadTagResponse (for
// callers holding a raw CIP reply) and callers consuming a
// scheduler.Result directly.
func InterpretReadTagReply(generalStatus byte, extended []uint16, data []byte) (*ReadTagReply, error) {
	partial := generalStatus == GeneralStatusPartialTransfer
	if generalStatus != GeneralStatusSuccess && !partial {
		return nil, TranslateStatus(generalStatus, extended)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("cip: read tag reply missing data type: %d bytes", len(data))
	}
	return &ReadTagReply{
		DataType:        binary.LittleEndian.Uint16(data),
		Data:            data[2:],
		PartialTransfer: partial,
	}, nil
}

// BuildWriteTagRequest builds a Write Tag (0x4D) request body: the CIP
// data type code, the element count, and the raw element data.
func BuildWriteTagRequest(dataType uint16, elementCount uint16, data []byte) []byte {
	out := make([]byte, 0, 4+len(data))
	out = binary.LittleEndian.AppendUint16(out, dataType)
	out = binary.LittleEndian.AppendUint16(out, elementCount)
	out = append(out, data...)
	return out
}

// ParseWriteTagResponse parses a Write Tag (0x4D) reply, which carries no
// data beyond the status header.
func ParseWriteTagResponse(raw []byte) error {
	resp, err := ParseResponse(raw)
	if err != nil {
		return err
	}
	return TranslateStatus(resp.GeneralStatus, resp.AdditionalStatus)
}

// BytesToExtStatus reassembles the little-endian uint16 extended status
// words a request scheduler packs into a flat byte slice, the inverse of
// the encoding scheduler.Result.ExtStatus carries.
func BytesToExtStatus(b []byte) []uint16 {
	if len(b) == 0 {
		return nil
	}
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return out
}

// BuildReadTagFragmentedRequest builds a Read Tag Fragmented (0x52)
// request body: element count, then a byte offset into the tag's
// element data to resume from.
func BuildReadTagFragmentedRequest(elementCount uint16, byteOffset uint32) []byte {
	out := make([]byte, 0, 6)
	out = binary.LittleEndian.AppendUint16(out, elementCount)
	out = binary.LittleEndian.AppendUint32(out, byteOffset)
	return out
}

// ParseReadTagFragmentedResponse parses a Read Tag Fragmented reply. Its
// body layout matches a plain Read Tag reply (data type word then data);
// PartialTransfer is set when more fragments remain to be read.
func ParseReadTagFragmentedResponse(raw []byte) (*ReadTagReply, error) {
	return ParseReadTagResponse(raw)
}

// BuildWriteTagFragmentedRequest builds a Write Tag Fragmented (0x53)
// request body for one fragment: data type, element count, byte offset,
// then this fragment's slice of the element data.
func BuildWriteTagFragmentedRequest(dataType uint16, elementCount uint16, byteOffset uint32, fragment []byte) []byte {
	out := make([]byte, 0, 8+len(fragment))
	out = binary.LittleEndian.AppendUint16(out, dataType)
	out = binary.LittleEndian.AppendUint16(out, elementCount)
	out = binary.LittleEndian.AppendUint32(out, byteOffset)
	out = append(out, fragment...)
	return out
}

// ParseWriteTagFragmentedResponse parses a Write Tag Fragmented reply.
// PartialTransfer indicates the device accepted this fragment and
// expects more; a plain success indicates this was the final fragment.
func ParseWriteTagFragmentedResponse(raw []byte) (partialTransfer bool, err error) {
	resp, err := ParseResponse(raw)
	if err != nil {
		return false, err
	}
	return InterpretWriteTagFragmentedStatus(resp.GeneralStatus, resp.AdditionalStatus)
}

// InterpretWriteTagFragmentedStatus is InterpretReadTagReply's write-side
// counterpart: given an already-demuxed status pair, reports whether the
// device expects more fragments.
func InterpretWriteTagFragmentedStatus(generalStatus byte, extended []uint16) (partialTransfer bool, err error) {
	if generalStatus == GeneralStatusPartialTransfer {
		return true, nil
	}
	return false, TranslateStatus(generalStatus, extended)
}
