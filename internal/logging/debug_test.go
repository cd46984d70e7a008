package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugLoggerFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewDebugLogger(path)
	require.NoError(t, err)

	l.SetFilter("cip")
	l.Log("cip", "forward open sent")
	l.Log("modbus", "should be filtered out")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	require.Contains(t, out, "forward open sent")
	require.NotContains(t, out, "should be filtered out")
}

func TestDebugLoggerHexDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewDebugLogger(path)
	require.NoError(t, err)

	l.TX("eip", []byte{0x65, 0x00, 0x04, 0x00})
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	require.True(t, strings.Contains(out, "TX (4 bytes)"))
	require.True(t, strings.Contains(out, "65 00 04 00"))
}

func TestKnownProtocolsIsCopy(t *testing.T) {
	a := KnownProtocols()
	a[0] = "mutated"
	b := KnownProtocols()
	require.NotEqual(t, a[0], b[0])
}
