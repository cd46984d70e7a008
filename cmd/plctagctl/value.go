package main

import (
	"fmt"
	"strconv"
	"strings"

	"plctag"
	"plctag/config"
)

// writeScalar parses a form field's text per tag's configured element
// type and writes it into the tag's buffer ahead of a triggered Write.
// Grounded on the same scalar-type story as opserver's importValue, but
// parsing free-form text from a tview.InputField instead of a JSON
// request body.
func writeScalar(tag *plctag.Tag, text string) error {
	text = strings.TrimSpace(text)
	switch tag.ElemTypeHint() {
	case config.ElemBool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return fmt.Errorf("expected true/false for BOOL tag: %w", err)
		}
		return tag.SetBool(0, v)
	case config.ElemReal:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return fmt.Errorf("expected a number for REAL tag: %w", err)
		}
		return tag.SetFloat32(0, float32(v))
	case config.ElemLReal:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("expected a number for LREAL tag: %w", err)
		}
		return tag.SetFloat64(0, v)
	default:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fmt.Errorf("expected an integer: %w", err)
		}
		switch tag.ElemSize() {
		case 1:
			return tag.SetUint8(0, uint8(v))
		case 2:
			return tag.SetUint16(0, uint16(v))
		case 4:
			return tag.SetUint32(0, uint32(v))
		case 8:
			return tag.SetUint64(0, uint64(v))
		default:
			return fmt.Errorf("tag element size %d has no scalar write path", tag.ElemSize())
		}
	}
}
