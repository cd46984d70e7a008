package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromAttributesLogixDefaults(t *testing.T) {
	cfg, err := FromAttributes(AttributeMap{
		"gateway": "10.0.0.5",
		"path":    "1,0",
		"name":    "MyInt",
	})
	require.NoError(t, err)
	require.Equal(t, ProtocolABEIP, cfg.Protocol)
	require.Equal(t, FamilyLogix, cfg.Family)
	require.Equal(t, uint16(1), cfg.ElemCount)
	require.True(t, cfg.AllowPacking)
	require.True(t, cfg.ShareSession)
	require.Equal(t, 44818, cfg.DefaultPort())
}

func TestFromAttributesModbus(t *testing.T) {
	cfg, err := FromAttributes(AttributeMap{
		"protocol":   "modbus_tcp",
		"gateway":    "10.0.0.6",
		"path":       "1",
		"name":       "hr10",
		"elem_count": "4",
	})
	require.NoError(t, err)
	require.Equal(t, ProtocolModbusTCP, cfg.Protocol)
	require.False(t, cfg.AllowPacking)
	require.Equal(t, 502, cfg.DefaultPort())
	require.Equal(t, uint16(4), cfg.ElemCount)
}

func TestFromAttributesPLC5RequiresElemCount(t *testing.T) {
	_, err := FromAttributes(AttributeMap{
		"plc":     "plc5",
		"gateway": "192.168.1.10",
		"name":    "N7:0",
	})
	require.ErrorContains(t, err, "elem_count")
}

func TestFromAttributesMissingGateway(t *testing.T) {
	_, err := FromAttributes(AttributeMap{"name": "Foo"})
	require.Error(t, err)
}

func TestFromAttributesMissingName(t *testing.T) {
	_, err := FromAttributes(AttributeMap{"gateway": "10.0.0.1"})
	require.Error(t, err)
}

func TestFromAttributesConnectionGroupRange(t *testing.T) {
	_, err := FromAttributes(AttributeMap{
		"gateway":             "10.0.0.1",
		"name":                "Foo",
		"connection_group_id": "99999",
	})
	require.ErrorContains(t, err, "connection_group_id")
}

func TestFromAttributesMaxRequestsClamped(t *testing.T) {
	cfg, err := FromAttributes(AttributeMap{
		"protocol":               "modbus_tcp",
		"gateway":                "10.0.0.1",
		"name":                   "hr0",
		"max_requests_in_flight": "99",
	})
	require.NoError(t, err)
	require.Equal(t, 16, cfg.MaxRequestsInFlight)
}

func TestFromAttributesCaseInsensitiveKeys(t *testing.T) {
	cfg, err := FromAttributes(AttributeMap{
		"GATEWAY": "10.0.0.1",
		"Name":    "Foo",
		"PLC":     "plc5",
		"ELEM_COUNT": "2",
	})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", cfg.Gateway)
	require.Equal(t, FamilyPLC5, cfg.Family)
}

func TestStringConfigOverrides(t *testing.T) {
	cfg, err := FromAttributes(AttributeMap{
		"gateway":                "10.0.0.1",
		"name":                   "Foo",
		"str_is_counted":         "1",
		"str_count_word_bytes":   "2",
		"str_max_capacity":       "82",
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.ByteOrder.IsCounted)
	require.True(t, *cfg.ByteOrder.IsCounted)
	require.Equal(t, 2, *cfg.ByteOrder.CountWordBytes)
	require.Equal(t, 82, *cfg.ByteOrder.MaxCapacity)
}

func TestStringConfigInvalidCountWordBytes(t *testing.T) {
	_, err := FromAttributes(AttributeMap{
		"gateway":              "10.0.0.1",
		"name":                 "Foo",
		"str_count_word_bytes": "3",
	})
	require.ErrorContains(t, err, "str_count_word_bytes")
}
