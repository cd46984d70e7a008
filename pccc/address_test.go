package pccc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddressInteger(t *testing.T) {
	a, err := ParseAddress("N7:12")
	require.NoError(t, err)
	require.Equal(t, FileTypeInteger, a.FileType)
	require.Equal(t, uint16(7), a.FileNumber)
	require.Equal(t, uint16(12), a.Element)
	require.False(t, a.HasSub)
	require.False(t, a.HasBit)
}

func TestParseAddressBitSelector(t *testing.T) {
	a, err := ParseAddress("B3:4/7")
	require.NoError(t, err)
	require.Equal(t, FileTypeBit, a.FileType)
	require.Equal(t, uint16(3), a.FileNumber)
	require.Equal(t, uint16(4), a.Element)
	require.True(t, a.HasBit)
	require.Equal(t, int8(7), a.BitNumber)
}

func TestParseAddressNamedSubElement(t *testing.T) {
	a, err := ParseAddress("T4:0.ACC")
	require.NoError(t, err)
	require.Equal(t, FileTypeTimer, a.FileType)
	require.True(t, a.HasSub)
	require.Equal(t, uint8(SubTimerACC), a.SubElement)
}

func TestParseAddressNumericSubElement(t *testing.T) {
	a, err := ParseAddress("R2:1.2")
	require.NoError(t, err)
	require.Equal(t, FileTypeControl, a.FileType)
	require.Equal(t, uint8(2), a.SubElement)
}

func TestParseAddressTwoLetterPrefix(t *testing.T) {
	a, err := ParseAddress("ST9:0")
	require.NoError(t, err)
	require.Equal(t, FileTypeString, a.FileType)
}

func TestParseAddressDefaultFileNumber(t *testing.T) {
	a, err := ParseAddress("S:1")
	require.NoError(t, err)
	require.Equal(t, FileTypeStatus, a.FileType)
	require.Equal(t, uint16(0), a.FileNumber)
	require.Equal(t, uint16(1), a.Element)
}

func TestParseAddressBitOnWideElementRejected(t *testing.T) {
	_, err := ParseAddress("F8:3/1")
	require.Error(t, err)
}

func TestParseAddressUnknownTypeLetter(t *testing.T) {
	_, err := ParseAddress("Z7:0")
	require.Error(t, err)
}

func TestParseAddressMissingColon(t *testing.T) {
	_, err := ParseAddress("N712")
	require.Error(t, err)
}

func TestAddressStringRoundTrip(t *testing.T) {
	a, err := ParseAddress("N7:12")
	require.NoError(t, err)
	require.Equal(t, "N7:12", a.String())

	b, err := ParseAddress("T4:0.ACC")
	require.NoError(t, err)
	require.Equal(t, "T4:0.2", b.String())
}
