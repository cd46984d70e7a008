package pccc

import "fmt"

// encodeVarWord appends a PCCC variable-length word: a single byte when
// the value fits in 0-254, otherwise a 0xFF marker followed by the full
// value as a little-endian uint16.
func encodeVarWord(buf []byte, v uint16) []byte {
	if v <= 254 {
		return append(buf, byte(v))
	}
	return append(buf, 0xFF, byte(v), byte(v>>8))
}

// decodeVarWord reads a PCCC variable-length word starting at data[0],
// returning the value and the number of bytes consumed.
func decodeVarWord(data []byte) (uint16, int, error) {
	if len(data) < 1 {
		return 0, 0, fmt.Errorf("pccc: truncated variable-length word")
	}
	if data[0] != 0xFF {
		return uint16(data[0]), 1, nil
	}
	if len(data) < 3 {
		return 0, 0, fmt.Errorf("pccc: truncated extended variable-length word")
	}
	return uint16(data[1]) | uint16(data[2])<<8, 3, nil
}
