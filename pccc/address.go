package pccc

import (
	"fmt"
	"strconv"
	"strings"
)

var prefixToFileType = map[string]FileType{
	"BT": FileTypeBlockTransfer,
	"BD": FileTypeBCD,
	"MG": FileTypeMessage,
	"PD": FileTypePID,
	"SC": FileTypeSFC,
	"ST": FileTypeString,
	"A":  FileTypeASCII,
	"B":  FileTypeBit,
	"C":  FileTypeCounter,
	"F":  FileTypeFloat,
	"I":  FileTypeInput,
	"L":  FileTypeLong,
	"N":  FileTypeInteger,
	"O":  FileTypeOutput,
	"R":  FileTypeControl,
	"S":  FileTypeStatus,
	"T":  FileTypeTimer,
}

// longestPrefixes lists the type letters ordered longest-first so that
// two-character mnemonics (BT, BD, MG, PD, SC, ST) are tried before their
// single-character collisions (B, S, T).
var longestPrefixes = []string{"BT", "BD", "MG", "PD", "SC", "ST", "A", "B", "C", "F", "I", "L", "N", "O", "R", "S", "T"}

var namedSubElement = map[FileType]map[string]SubElement{
	FileTypeTimer: {
		"CONTROL": SubTimerControl,
		"PRE":     SubTimerPRE,
		"ACC":     SubTimerACC,
	},
	FileTypeCounter: {
		"CONTROL": SubCounterControl,
		"PRE":     SubCounterPRE,
		"ACC":     SubCounterACC,
	},
	FileTypeControl: {
		"CONTROL": SubControlControl,
		"LEN":     SubControlLEN,
		"POS":     SubControlPOS,
	},
}

// ParseAddress parses a PCCC data table address of the form
// <TypeLetter><File>:<Element>[.<Sub>][/<Bit>], e.g. "N7:12", "B3:4/7",
// "T4:0.ACC", "F8:3". File number defaults to 0 when omitted
// (e.g. "S:1" addresses the status file).
func ParseAddress(s string) (Address, error) {
	raw := s
	rest := s

	var bitNumber int8 = -1
	hasBit := false
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		bitStr := rest[idx+1:]
		rest = rest[:idx]
		n, err := strconv.Atoi(bitStr)
		if err != nil {
			return Address{}, fmt.Errorf("pccc: invalid bit selector %q in %q: %w", bitStr, raw, err)
		}
		bitNumber = int8(n)
		hasBit = true
	}

	ft, ftLen, err := matchFileType(rest)
	if err != nil {
		return Address{}, fmt.Errorf("pccc: %w in %q", err, raw)
	}
	rest = rest[ftLen:]

	colonIdx := strings.IndexByte(rest, ':')
	if colonIdx < 0 {
		return Address{}, fmt.Errorf("pccc: missing ':' in address %q", raw)
	}
	fileNumStr := rest[:colonIdx]
	rest = rest[colonIdx+1:]

	var fileNumber uint16
	if fileNumStr != "" {
		n, err := strconv.ParseUint(fileNumStr, 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("pccc: invalid file number %q in %q: %w", fileNumStr, raw, err)
		}
		fileNumber = uint16(n)
	} else {
		fileNumber = defaultFileNumber(ft)
	}

	elementStr := rest
	var subElement uint8
	hasSub := false
	if dotIdx := strings.IndexByte(rest, '.'); dotIdx >= 0 {
		elementStr = rest[:dotIdx]
		subStr := rest[dotIdx+1:]
		if sub, ok := namedSubElement[ft][strings.ToUpper(subStr)]; ok {
			subElement = uint8(sub)
		} else {
			n, err := strconv.ParseUint(subStr, 10, 8)
			if err != nil {
				return Address{}, fmt.Errorf("pccc: invalid sub-element %q in %q: %w", subStr, raw, err)
			}
			subElement = uint8(n)
		}
		hasSub = true
	}

	element, err := strconv.ParseUint(elementStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("pccc: invalid element %q in %q: %w", elementStr, raw, err)
	}

	addr := Address{
		FileType:   ft,
		FileNumber: fileNumber,
		Element:    uint16(element),
		SubElement: subElement,
		HasSub:     hasSub,
		BitNumber:  bitNumber,
		HasBit:     hasBit,
		Raw:        raw,
	}
	if err := addr.Validate(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

func matchFileType(s string) (FileType, int, error) {
	upper := strings.ToUpper(s)
	for _, prefix := range longestPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return prefixToFileType[prefix], len(prefix), nil
		}
	}
	return 0, 0, fmt.Errorf("unrecognized file type letter")
}

// defaultFileNumber returns the conventional file number for addresses
// that omit it, e.g. "S:1" for status, "O:0" for output.
func defaultFileNumber(ft FileType) uint16 {
	switch ft {
	case FileTypeOutput, FileTypeInput, FileTypeStatus:
		return 0
	default:
		return 0
	}
}

// String renders an address back to its canonical form.
func (a Address) String() string {
	var b strings.Builder
	b.WriteString(a.FileType.String())
	b.WriteString(strconv.Itoa(int(a.FileNumber)))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(int(a.Element)))
	if a.HasSub {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(int(a.SubElement)))
	}
	if a.HasBit {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(int(a.BitNumber)))
	}
	return b.String()
}
