package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymbolPathBasic(t *testing.T) {
	path, err := EPath().Symbol("MyInt").Build()
	require.NoError(t, err)
	require.Equal(t, []byte{0x91, 0x05, 'M', 'y', 'I', 'n', 't', 0x00}, []byte(path))
	require.Equal(t, byte(len(path)/2), path.WordLen())
}

func TestSymbolPathWithArrayIndex(t *testing.T) {
	path, err := EPath().Symbol("MyArray[5]").Build()
	require.NoError(t, err)
	// symbolic "MyArray" then an 8-bit member segment for index 5.
	require.Equal(t, byte(0x91), path[0])
	require.Contains(t, string(path), "MyArray")
	require.Equal(t, byte(0x28), path[len(path)-2])
	require.Equal(t, byte(5), path[len(path)-1])
}

func TestSymbolPathDottedMembers(t *testing.T) {
	path, err := EPath().Symbol("Program:MainProgram.Tag1").Build()
	require.NoError(t, err)
	require.Contains(t, string(path), "Program:MainProgram")
	require.Contains(t, string(path), "Tag1")
}

func TestClassInstanceAttributePath(t *testing.T) {
	path, err := EPath().Class(0x6B).Instance(0x01).Attribute(0x01).Build()
	require.NoError(t, err)
	require.Equal(t, 0, len(path)%2)
	require.Equal(t, byte(len(path)/2), path.WordLen())
}

func TestInstance16RequiresPadByte(t *testing.T) {
	path, err := EPath().Instance16(0x1234).Build()
	require.NoError(t, err)
	// segment byte, pad byte, 2 value bytes = 4
	require.Len(t, path, 4)
	require.Equal(t, byte(0x00), path[1])
}

func TestEmptySymbolRejected(t *testing.T) {
	_, err := EPath().Symbol("").Build()
	require.Error(t, err)
}

func TestSymbolPathRejectsNonNumericIndex(t *testing.T) {
	_, err := EPath().Symbol("MyArray[abc]").Build()
	require.Error(t, err)
}

func TestSymbolPathRejectsUnterminatedIndex(t *testing.T) {
	_, err := EPath().Symbol("MyArray[5").Build()
	require.Error(t, err)
}

func TestSymbolPathRejectsEmptyIndex(t *testing.T) {
	_, err := EPath().Symbol("MyArray[]").Build()
	require.Error(t, err)
}

func TestMemberSegmentWidthSelection(t *testing.T) {
	small, err := memberSegment(5)
	require.NoError(t, err)
	require.Equal(t, EPath_t{0x28, 5}, small)

	mid, err := memberSegment(300)
	require.NoError(t, err)
	require.Equal(t, byte(0x29), mid[0])

	big, err := memberSegment(100000)
	require.NoError(t, err)
	require.Equal(t, byte(0x2A), big[0])
}
