package eip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommonPacketRoundTrip(t *testing.T) {
	cp := EipCommonPacket{Items: []EipCommonPacketItem{
		{TypeId: CpfAddressNullId, Length: 0, Data: nil},
		{TypeId: CpfUnconnectedMessageId, Length: 2, Data: []byte{0x01, 0x02}},
	}}

	b := cp.Bytes()
	parsed, err := ParseEipCommonPacket(b)
	require.NoError(t, err)
	require.Len(t, parsed.Items, 2)
	require.Equal(t, CpfAddressNullId, parsed.Items[0].TypeId)
	require.Equal(t, CpfUnconnectedMessageId, parsed.Items[1].TypeId)
	require.Equal(t, []byte{0x01, 0x02}, parsed.Items[1].Data)
}

func TestParseEipCommonPacketTruncated(t *testing.T) {
	_, err := ParseEipCommonPacket([]byte{0x01, 0x00})
	require.Error(t, err)
}

func TestParseEipCommonPacketEmpty(t *testing.T) {
	parsed, err := ParseEipCommonPacket([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.Len(t, parsed.Items, 0)
}
