// Package config turns an already-tokenized attribute map (the result of
// parsing a libplctag-style "key=value&key=value" string, which is out of
// scope for this package) into validated, typed configuration for a
// single PLC identity.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol selects the wire-protocol family for a tag's session.
type Protocol string

const (
	ProtocolABEIP     Protocol = "ab_eip"
	ProtocolModbusTCP Protocol = "modbus_tcp"
)

// PLCFamily selects the controller personality within a Protocol.
type PLCFamily string

const (
	FamilyPLC5      PLCFamily = "plc5"
	FamilySLC       PLCFamily = "slc"
	FamilyMLGX      PLCFamily = "mlgx"
	FamilyLogix     PLCFamily = "lgx"
	FamilyMicro800  PLCFamily = "micro800"
	FamilyOmronNJNX PLCFamily = "omron-njnx"
	FamilyLogixPCCC PLCFamily = "lgx-pccc"
)

// UsesPCCC reports whether this family speaks PCCC (natively or wrapped
// in CIP Execute PCCC) rather than native CIP symbolic tags.
func (f PLCFamily) UsesPCCC() bool {
	switch f {
	case FamilyPLC5, FamilySLC, FamilyMLGX, FamilyLogixPCCC:
		return true
	default:
		return false
	}
}

// RequiresConnected reports whether this family needs a CIP connected
// (ForwardOpen) path rather than unconnected messaging by default.
func (f PLCFamily) RequiresConnected() bool {
	switch f {
	case FamilyPLC5, FamilySLC, FamilyMLGX:
		return true
	default:
		return false
	}
}

// DefaultPayloadSize returns the payload guess to seed ForwardOpen
// negotiation with for this family.
func (f PLCFamily) DefaultPayloadSize() uint16 {
	switch f {
	case FamilyPLC5, FamilySLC, FamilyMLGX, FamilyLogixPCCC:
		return 244
	case FamilyOmronNJNX:
		return 4002
	default:
		return 508
	}
}

// ElemType names the scalar/aggregate type hints accepted for families
// that don't report their own tag size over the wire (Micro800, Omron).
type ElemType string

const (
	ElemSInt       ElemType = "sint"
	ElemUSInt      ElemType = "usint"
	ElemInt        ElemType = "int"
	ElemUInt       ElemType = "uint"
	ElemDInt       ElemType = "dint"
	ElemUDInt      ElemType = "udint"
	ElemLInt       ElemType = "lint"
	ElemULInt      ElemType = "ulint"
	ElemReal       ElemType = "real"
	ElemLReal      ElemType = "lreal"
	ElemBool       ElemType = "bool"
	ElemBoolArray  ElemType = "bool array"
	ElemString     ElemType = "string"
	ElemShortStr   ElemType = "short string"
)

// ByteSize returns the on-wire element size for scalar types, or 0 for
// types whose size depends on configuration (strings, bool arrays).
func (t ElemType) ByteSize() int {
	switch t {
	case ElemSInt, ElemUSInt, ElemBool:
		return 1
	case ElemInt, ElemUInt:
		return 2
	case ElemDInt, ElemUDInt, ElemReal:
		return 4
	case ElemLInt, ElemULInt, ElemLReal:
		return 8
	default:
		return 0
	}
}

// AttributeMap is the parsed form of a libplctag-style attribute string:
// case-insensitive keys, string values. Constructing this map from raw
// "key=value&key=value" text is out of scope for this module.
type AttributeMap map[string]string

func (m AttributeMap) get(key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (m AttributeMap) getBool(key string, def bool) (bool, error) {
	v, ok := m.get(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("attribute %s: expected 0/1, got %q", key, v)
	}
	return n != 0, nil
}

func (m AttributeMap) getUint(key string, def uint64) (uint64, error) {
	v, ok := m.get(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("attribute %s: expected unsigned integer, got %q", key, v)
	}
	return n, nil
}

// Config is the fully validated, typed configuration for one tag handle.
type Config struct {
	Protocol Protocol
	Family   PLCFamily

	Gateway string // host[:port]
	Path    string // CIP routing path, may end in a DH+ hop

	Name      string // symbolic tag path or PCCC logical address
	ElemCount uint16
	ElemType  ElemType
	ElemSize  uint16

	UseConnectedMsg    bool
	AllowPacking       bool
	ShareSession       bool
	ConnectionGroupID  uint16
	MaxRequestsInFlight int // Modbus only, 1..16

	ReadCacheMs    uint64
	AutoSyncReadMs uint64
	AutoSyncWriteMs uint64
	AutoDisconnectMs uint64

	ByteOrder StringConfig

	Debug int
}

// StringConfig carries the PLC string-shape overrides
// (str_is_counted, str_count_word_bytes, ...). A zero value means "use the
// family default" — see package byteorder.
type StringConfig struct {
	IsCounted        *bool
	IsFixedLength    *bool
	IsZeroTerminated *bool
	IsByteSwapped    *bool
	CountWordBytes   *int
	MaxCapacity      *int
	TotalLength      *int
	PadBytes         *int
}

// FromAttributes validates an already-tokenized attribute map and returns
// a Config. It never tokenizes a raw "key=value&..." string itself —
// that boundary belongs to an external attribute-string parser.
func FromAttributes(attrs AttributeMap) (*Config, error) {
	cfg := &Config{
		AllowPacking: true,
		ShareSession: true,
	}

	proto, _ := attrs.get("protocol")
	switch Protocol(strings.ToLower(proto)) {
	case "", ProtocolABEIP:
		cfg.Protocol = ProtocolABEIP
	case ProtocolModbusTCP:
		cfg.Protocol = ProtocolModbusTCP
	default:
		return nil, fmt.Errorf("config: unknown protocol %q", proto)
	}

	fam, hasFam := attrs.get("plc")
	if !hasFam {
		fam, hasFam = attrs.get("cpu")
	}
	if hasFam {
		cfg.Family = PLCFamily(strings.ToLower(fam))
	} else if cfg.Protocol == ProtocolABEIP {
		cfg.Family = FamilyLogix
	}

	gw, ok := attrs.get("gateway")
	if !ok || gw == "" {
		return nil, fmt.Errorf("config: gateway is required")
	}
	cfg.Gateway = gw

	cfg.Path, _ = attrs.get("path")
	cfg.Name, _ = attrs.get("name")
	if cfg.Name == "" {
		return nil, fmt.Errorf("config: name is required")
	}

	elemCount, err := attrs.getUint("elem_count", 1)
	if err != nil {
		return nil, err
	}
	if elemCount == 0 || elemCount > 0xFFFF {
		return nil, fmt.Errorf("config: elem_count out of range: %d", elemCount)
	}
	cfg.ElemCount = uint16(elemCount)

	if cfg.Family.UsesPCCC() && !attrsHas(attrs, "elem_count") {
		return nil, fmt.Errorf("config: elem_count is required for PCCC families")
	}

	if et, ok := attrs.get("elem_type"); ok {
		cfg.ElemType = ElemType(strings.ToLower(et))
	}
	elemSize, err := attrs.getUint("elem_size", 0)
	if err != nil {
		return nil, err
	}
	cfg.ElemSize = uint16(elemSize)

	if cfg.UseConnectedMsg, err = attrs.getBool("use_connected_msg", cfg.Family.RequiresConnected()); err != nil {
		return nil, err
	}
	defaultPacking := cfg.Family == FamilyLogix || cfg.Family == FamilyMicro800 || cfg.Family == FamilyLogixPCCC
	if cfg.AllowPacking, err = attrs.getBool("allow_packing", defaultPacking); err != nil {
		return nil, err
	}
	if cfg.ShareSession, err = attrs.getBool("share_session", true); err != nil {
		return nil, err
	}

	grp, err := attrs.getUint("connection_group_id", 0)
	if err != nil {
		return nil, err
	}
	if grp > 32767 {
		return nil, fmt.Errorf("config: connection_group_id out of range: %d", grp)
	}
	cfg.ConnectionGroupID = uint16(grp)

	maxReq, err := attrs.getUint("max_requests_in_flight", 16)
	if err != nil {
		return nil, err
	}
	if maxReq < 1 {
		maxReq = 1
	}
	if maxReq > 16 {
		maxReq = 16
	}
	cfg.MaxRequestsInFlight = int(maxReq)

	if cfg.ReadCacheMs, err = attrs.getUint("read_cache_ms", 0); err != nil {
		return nil, err
	}
	if cfg.AutoSyncReadMs, err = attrs.getUint("auto_sync_read_ms", 0); err != nil {
		return nil, err
	}
	if cfg.AutoSyncWriteMs, err = attrs.getUint("auto_sync_write_ms", 0); err != nil {
		return nil, err
	}
	if cfg.AutoDisconnectMs, err = attrs.getUint("auto_disconnect_ms", 0); err != nil {
		return nil, err
	}

	debug, err := attrs.getUint("debug", 0)
	if err != nil {
		return nil, err
	}
	if debug > 5 {
		return nil, fmt.Errorf("config: debug out of range: %d", debug)
	}
	cfg.Debug = int(debug)

	cfg.ByteOrder, err = stringConfigFromAttributes(attrs)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func attrsHas(attrs AttributeMap, key string) bool {
	_, ok := attrs.get(key)
	return ok
}

func stringConfigFromAttributes(attrs AttributeMap) (StringConfig, error) {
	var sc StringConfig
	boolField := func(key string) (*bool, error) {
		v, ok := attrs.get(key)
		if !ok {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: expected 0/1, got %q", key, v)
		}
		b := n != 0
		return &b, nil
	}
	intField := func(key string) (*int, error) {
		v, ok := attrs.get(key)
		if !ok {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: expected integer, got %q", key, v)
		}
		return &n, nil
	}

	var err error
	if sc.IsCounted, err = boolField("str_is_counted"); err != nil {
		return sc, err
	}
	if sc.IsFixedLength, err = boolField("str_is_fixed_length"); err != nil {
		return sc, err
	}
	if sc.IsZeroTerminated, err = boolField("str_is_zero_terminated"); err != nil {
		return sc, err
	}
	if sc.IsByteSwapped, err = boolField("str_is_byte_swapped"); err != nil {
		return sc, err
	}
	if sc.CountWordBytes, err = intField("str_count_word_bytes"); err != nil {
		return sc, err
	}
	if sc.CountWordBytes != nil {
		switch *sc.CountWordBytes {
		case 0, 1, 2, 4, 8:
		default:
			return sc, fmt.Errorf("attribute str_count_word_bytes: invalid value %d", *sc.CountWordBytes)
		}
	}
	if sc.MaxCapacity, err = intField("str_max_capacity"); err != nil {
		return sc, err
	}
	if sc.TotalLength, err = intField("str_total_length"); err != nil {
		return sc, err
	}
	if sc.PadBytes, err = intField("str_pad_bytes"); err != nil {
		return sc, err
	}
	return sc, nil
}

// DefaultPort returns the TCP port for this configuration's protocol when
// the gateway attribute omits one.
func (c *Config) DefaultPort() int {
	if c.Protocol == ProtocolModbusTCP {
		return 502
	}
	return 44818
}
