package pccc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileTypeByteSize(t *testing.T) {
	require.Equal(t, 2, FileTypeInteger.ByteSize())
	require.Equal(t, 4, FileTypeFloat.ByteSize())
	require.Equal(t, 6, FileTypeTimer.ByteSize())
	require.Equal(t, 84, FileTypeString.ByteSize())
}

func TestFileTypeStringMnemonics(t *testing.T) {
	require.Equal(t, "N", FileTypeInteger.String())
	require.Equal(t, "ST", FileTypeString.String())
	require.Equal(t, "BT", FileTypeBlockTransfer.String())
}

func TestCommandHasFunctionCode(t *testing.T) {
	require.True(t, CmdExtended.HasFunctionCode())
	require.False(t, CmdProtectedRead.HasFunctionCode())
}

func TestAddressValidateBitOutOfRange(t *testing.T) {
	a := Address{FileType: FileTypeInteger, HasBit: true, BitNumber: 20}
	require.Error(t, a.Validate())
}

func TestAddressValidateOK(t *testing.T) {
	a := Address{FileType: FileTypeInteger, HasBit: true, BitNumber: 3}
	require.NoError(t, a.Validate())
}
