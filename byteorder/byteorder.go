// Package byteorder implements configurable numeric and string byte-
// order descriptors: permutation arrays that say, for each destination
// byte of a scalar, which source byte it comes from, plus a companion
// string-shape descriptor for PLC string types (counted, zero-
// terminated, byte-swapped PLC-5 strings, and so on).
//
// No pack example encodes configurable PLC byte order; this package is
// written in the encode/decode-over-byte-slice style used throughout
// this module's wire codec.
package byteorder

import "fmt"

// Order is a byte-order descriptor for scalar and string encodings.
type Order struct {
	Perm2 [2]int
	Perm4 [4]int
	Perm8 [8]int

	Str StringShape
}

// StringShape describes how a PLC encodes its string type on the wire.
type StringShape struct {
	IsDefined        bool
	IsCounted        bool
	IsFixedLength    bool
	IsZeroTerminated bool
	IsByteSwapped    bool // odd/even char swap, PLC-5 strings
	CountWordBytes   int  // 0, 1, 2, 4
	MaxCapacity      int
	TotalLength      int
	PadBytes         int
}

func identityPerm2() [2]int { return [2]int{0, 1} }
func identityPerm4() [4]int { return [4]int{0, 1, 2, 3} }
func identityPerm8() [8]int { return [8]int{0, 1, 2, 3, 4, 5, 6, 7} }

// LittleEndian is the wire order for EIP/CIP/PCCC: identity permutation,
// source byte i feeds destination byte i.
var LittleEndian = Order{Perm2: identityPerm2(), Perm4: identityPerm4(), Perm8: identityPerm8()}

// BigEndian is the wire order for Modbus MBAP/PDU fields.
var BigEndian = Order{
	Perm2: [2]int{1, 0},
	Perm4: [4]int{3, 2, 1, 0},
	Perm8: [8]int{7, 6, 5, 4, 3, 2, 1, 0},
}

// Logix is the default descriptor for ControlLogix/CompactLogix tags:
// little-endian scalars, 82-char counted+padded strings.
var Logix = Order{
	Perm2: identityPerm2(), Perm4: identityPerm4(), Perm8: identityPerm8(),
	Str: StringShape{IsDefined: true, IsCounted: true, CountWordBytes: 4, MaxCapacity: 82, TotalLength: 88},
}

// PLC5 is the default descriptor for PLC-5 controllers: little-endian
// 16-bit and 8-byte values, but every 4-byte value (float or integer)
// has its words swapped ({2,3,0,1}), and strings carry a 2-byte count
// and are byte-swapped (odd/even char swap).
var PLC5 = Order{
	Perm2: identityPerm2(), Perm4: [4]int{2, 3, 0, 1}, Perm8: identityPerm8(),
	Str: StringShape{IsDefined: true, IsCounted: true, IsByteSwapped: true, CountWordBytes: 2, MaxCapacity: 82, TotalLength: 84},
}

// OmronNJNX is the default descriptor for Omron NJ/NX over CIP:
// little-endian scalars, zero-terminated counted strings.
var OmronNJNX = Order{
	Perm2: identityPerm2(), Perm4: identityPerm4(), Perm8: identityPerm8(),
	Str: StringShape{IsDefined: true, IsCounted: true, IsZeroTerminated: true, CountWordBytes: 2, MaxCapacity: 255, TotalLength: 257},
}

// System is the host-native descriptor used for in-process system tags.
var System = LittleEndian

// validatePerm checks that perm is a bijection of {0..n-1}.
func validatePerm(perm []int) error {
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) {
			return fmt.Errorf("byteorder: permutation index %d out of range for width %d", p, len(perm))
		}
		if seen[p] {
			return fmt.Errorf("byteorder: permutation is not a bijection, %d repeated", p)
		}
		seen[p] = true
	}
	return nil
}

// ParsePerm parses a permutation string like "3210" (one decimal digit per
// source-byte position) into a permutation slice, validating it is a
// bijection of {0..len(s)-1}.
func ParsePerm(s string) ([]int, error) {
	perm := make([]int, len(s))
	for i, c := range s {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("byteorder: invalid permutation character %q", c)
		}
		perm[i] = int(c - '0')
	}
	if err := validatePerm(perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// swap rearranges src into a new slice of the same length using perm:
// out[d] = src[perm[d]].
func swap(src []byte, perm []int) []byte {
	out := make([]byte, len(perm))
	for d, s := range perm {
		out[d] = src[s]
	}
	return out
}

// EncodeU16/DecodeU16 etc. apply the descriptor's permutation to convert
// between host-native little-endian bytes and wire bytes. Encode and
// Decode are each other's inverse for any valid (bijective) permutation,
// which is what makes a write-then-read round trip reproduce a value
// bit-for-bit regardless of the configured byte order.

func (o Order) EncodeU16(v uint16) []byte {
	native := []byte{byte(v), byte(v >> 8)}
	return swap(native, o.Perm2[:])
}

func (o Order) DecodeU16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("byteorder: need 2 bytes, got %d", len(b))
	}
	native := invSwap(b[:2], o.Perm2[:])
	return uint16(native[0]) | uint16(native[1])<<8, nil
}

func (o Order) EncodeU32(v uint32) []byte {
	native := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return swap(native, o.Perm4[:])
}

func (o Order) DecodeU32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("byteorder: need 4 bytes, got %d", len(b))
	}
	native := invSwap(b[:4], o.Perm4[:])
	return uint32(native[0]) | uint32(native[1])<<8 | uint32(native[2])<<16 | uint32(native[3])<<24, nil
}

func (o Order) EncodeU64(v uint64) []byte {
	native := make([]byte, 8)
	for i := 0; i < 8; i++ {
		native[i] = byte(v >> (8 * i))
	}
	return swap(native, o.Perm8[:])
}

func (o Order) DecodeU64(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("byteorder: need 8 bytes, got %d", len(b))
	}
	native := invSwap(b[:8], o.Perm8[:])
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(native[i]) << (8 * i)
	}
	return v, nil
}

// invSwap inverts swap: given out (wire bytes) and perm, recovers src
// (native bytes) such that out[d] = src[perm[d]].
func invSwap(out []byte, perm []int) []byte {
	src := make([]byte, len(perm))
	for d, s := range perm {
		src[s] = out[d]
	}
	return src
}
