package plctag

import (
	"plctag/byteorder"
	"plctag/config"
)

// byteOrderFor picks the family default byte-order descriptor for cfg
// and applies any per-tag StringConfig overrides on top of it.
func byteOrderFor(cfg *config.Config) (byteorder.Order, error) {
	var order byteorder.Order
	switch {
	case cfg.Protocol == config.ProtocolModbusTCP:
		order = byteorder.BigEndian
	case cfg.Family == config.FamilyOmronNJNX:
		order = byteorder.OmronNJNX
	case cfg.Family == config.FamilyPLC5:
		order = byteorder.PLC5
	case cfg.Family == config.FamilySLC, cfg.Family == config.FamilyMLGX:
		order = byteorder.PLC5
	default:
		order = byteorder.Logix
	}
	applyStringOverrides(&order, cfg.ByteOrder)
	return order, nil
}

// applyStringOverrides copies any non-nil fields of sc onto order.Str,
// leaving the family default for anything the caller didn't override.
func applyStringOverrides(order *byteorder.Order, sc config.StringConfig) {
	if sc.IsCounted != nil {
		order.Str.IsCounted = *sc.IsCounted
	}
	if sc.IsFixedLength != nil {
		order.Str.IsFixedLength = *sc.IsFixedLength
	}
	if sc.IsZeroTerminated != nil {
		order.Str.IsZeroTerminated = *sc.IsZeroTerminated
	}
	if sc.IsByteSwapped != nil {
		order.Str.IsByteSwapped = *sc.IsByteSwapped
	}
	if sc.CountWordBytes != nil {
		order.Str.CountWordBytes = *sc.CountWordBytes
	}
	if sc.MaxCapacity != nil {
		order.Str.MaxCapacity = *sc.MaxCapacity
	}
}
