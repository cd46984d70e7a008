package plctag

import (
	"math"

	"plctag/config"
)

// ExportValue decodes a tag's buffer into a JSON-friendly Go value for
// consumers (bridges, opserver) that don't want to reimplement the
// per-family element-type story themselves. Single-element tags decode
// to a scalar; multi-element tags decode to a slice. A tag whose
// ElemType was never declared (the common case for families that report
// their own wire type) falls back to a plain signed integer of its
// discovered element width, since that is the only thing ExportValue
// can infer without re-deriving CIP type codes the backend already
// consumed.
func (t *Tag) ExportValue() (value any, typeName string) {
	t.apiMu.Lock()
	data := append([]byte(nil), t.data...)
	elemSize := t.elemSize
	elemCount := t.elemCount
	elemType := t.cfg.ElemType
	order := t.order
	t.apiMu.Unlock()

	if elemCount <= 1 || elemType == config.ElemString || elemType == config.ElemShortStr {
		v, name := decodeElem(order, data, 0, elemSize, elemType)
		return v, name
	}

	out := make([]any, 0, elemCount)
	var name string
	for i := 0; i < elemCount; i++ {
		v, n := decodeElem(order, data, i*elemSize, elemSize, elemType)
		out = append(out, v)
		name = n
	}
	return out, name
}

func decodeElem(order orderDecoder, data []byte, off, width int, elemType config.ElemType) (any, string) {
	switch elemType {
	case config.ElemBool:
		return off < len(data) && data[off] != 0, "BOOL"
	case config.ElemSInt:
		return decodeInt(data, off, 1, true), "SINT"
	case config.ElemUSInt:
		return decodeInt(data, off, 1, false), "USINT"
	case config.ElemInt:
		return decodeInt(data, off, 2, true), "INT"
	case config.ElemUInt:
		return decodeInt(data, off, 2, false), "UINT"
	case config.ElemDInt:
		return decodeInt(data, off, 4, true), "DINT"
	case config.ElemUDInt:
		return decodeInt(data, off, 4, false), "UDINT"
	case config.ElemLInt:
		return decodeInt(data, off, 8, true), "LINT"
	case config.ElemULInt:
		return decodeInt(data, off, 8, false), "ULINT"
	case config.ElemReal:
		bits, _ := order.DecodeU32(sliceAt(data, off, 4))
		return math.Float32frombits(uint32(bits)), "REAL"
	case config.ElemLReal:
		bits, _ := order.DecodeU64(sliceAt(data, off, 8))
		return math.Float64frombits(bits), "LREAL"
	case config.ElemString, config.ElemShortStr:
		return decodeString(data, off), "STRING"
	default:
		return decodeInt(data, off, width, true), "RAW"
	}
}

// orderDecoder is the subset of byteorder.Order ExportValue needs,
// named here so decodeElem doesn't have to import the concrete type
// just to call two methods.
type orderDecoder interface {
	DecodeU32([]byte) (uint32, error)
	DecodeU64([]byte) (uint64, error)
}

func sliceAt(data []byte, off, width int) []byte {
	if off < 0 || off+width > len(data) {
		return make([]byte, width)
	}
	return data[off : off+width]
}

// decodeInt reads a little-endian-already-normalized (the tag's byte-
// order descriptor has already been applied by the backend writing
// t.data) integer of the given width, signed or unsigned.
func decodeInt(data []byte, off, width int, signed bool) int64 {
	b := sliceAt(data, off, width)
	var u uint64
	for i := width - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	if !signed {
		return int64(u)
	}
	switch width {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

// decodeString reads a counted string the way the teacher's simplest
// string tags are laid out on the wire after byte-order normalization:
// a 2-byte length prefix followed by the characters, since this
// exported path only needs something JSON-displayable, not a
// byte-exact round trip (backends already own exact string codec
// behavior for Read/Write).
func decodeString(data []byte, off int) string {
	if off+2 > len(data) {
		return ""
	}
	n := int(data[off]) | int(data[off+1])<<8
	start := off + 2
	if start+n > len(data) {
		n = len(data) - start
	}
	if n < 0 {
		return ""
	}
	return string(data[start : start+n])
}
