package pccc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusErrorKnownCode(t *testing.T) {
	err := StatusError(StsProcessorInRun)
	require.Contains(t, err.Error(), "program mode")
}

func TestStatusErrorUnknownCode(t *testing.T) {
	err := StatusError(0x7F)
	require.Contains(t, err.Error(), "0x7F")
}
