package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranslateStatusSuccess(t *testing.T) {
	require.NoError(t, TranslateStatus(GeneralStatusSuccess, nil))
}

func TestTranslateStatusDuplicateConnection(t *testing.T) {
	err := TranslateStatus(GeneralStatusConnectionFailure, []uint16{ExtStatusDuplicateConnection})
	require.Error(t, err)
	cerr, ok := err.(*CipError)
	require.True(t, ok)
	require.True(t, cerr.IsDuplicateConnection())
	require.False(t, cerr.IsInvalidConnectionSize())
}

func TestTranslateStatusInvalidConnectionSizeCarriesHint(t *testing.T) {
	err := TranslateStatus(GeneralStatusConnectionFailure, []uint16{ExtStatusInvalidConnSize, 504})
	cerr, ok := err.(*CipError)
	require.True(t, ok)
	require.True(t, cerr.IsInvalidConnectionSize())
	require.NotNil(t, cerr.SupportedSize)
	require.Equal(t, uint16(504), *cerr.SupportedSize)
}

func TestTranslateStatusUnsupportedService(t *testing.T) {
	err := TranslateStatus(GeneralStatusServiceNotSupported, nil)
	cerr, ok := err.(*CipError)
	require.True(t, ok)
	require.True(t, cerr.IsUnsupportedService())
}

func TestTranslateStatusUnknownCodeStillErrors(t *testing.T) {
	err := TranslateStatus(0x7F, nil)
	require.Error(t, err)
}

func TestCipErrorMessageFormat(t *testing.T) {
	err := TranslateStatus(GeneralStatusPathDestinationError, nil)
	require.Contains(t, err.Error(), "path destination")
}
