package byteorder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLittleEndianRoundTrip(t *testing.T) {
	o := LittleEndian
	for _, v := range []uint16{0, 1, 0x1234, 0xFFFF} {
		enc := o.EncodeU16(v)
		dec, err := o.DecodeU16(enc)
		require.NoError(t, err)
		require.Equal(t, v, dec)
	}
}

func TestBigEndianMatchesModbusWire(t *testing.T) {
	enc := BigEndian.EncodeU16(0x000A)
	require.Equal(t, []byte{0x00, 0x0A}, enc)
}

func TestPLC5FloatOrderRoundTrip(t *testing.T) {
	o := PLC5
	v := uint32(0xAABBCCDD)
	enc := o.EncodeU32(v)
	dec, err := o.DecodeU32(enc)
	require.NoError(t, err)
	require.Equal(t, v, dec)
}

func TestU64RoundTrip(t *testing.T) {
	o := LittleEndian
	v := uint64(0x0123456789ABCDEF)
	dec, err := o.DecodeU64(o.EncodeU64(v))
	require.NoError(t, err)
	require.Equal(t, v, dec)
}

func TestParsePermValidBijection(t *testing.T) {
	perm, err := ParsePerm("3210")
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 1, 0}, perm)
}

func TestParsePermRejectsDuplicate(t *testing.T) {
	_, err := ParsePerm("3211")
	require.Error(t, err)
}

func TestParsePermRejectsOutOfRange(t *testing.T) {
	_, err := ParsePerm("3214")
	require.Error(t, err)
}

func TestArbitraryPermutationRoundTrip(t *testing.T) {
	perm, err := ParsePerm("2301")
	require.NoError(t, err)
	var o Order
	copy(o.Perm4[:], perm)
	for _, v := range []uint32{0, 1, 0xDEADBEEF, 0x11223344} {
		dec, err := o.DecodeU32(o.EncodeU32(v))
		require.NoError(t, err)
		require.Equal(t, v, dec)
	}
}

func TestDecodeU16ShortBuffer(t *testing.T) {
	_, err := LittleEndian.DecodeU16([]byte{0x01})
	require.Error(t, err)
}
