package opserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"plctag"
	"plctag/config"
)

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// importValue decodes a JSON request value into t's buffer ahead of a
// triggered Write, the inverse of Tag.ExportValue for the scalar types
// a control API needs to accept from an operator. Grounded on the
// *shape* of teacher's mqtt.convertValueForType (JSON value → typed PLC
// write), narrowed to this module's config.ElemType enum and the
// existing Tag.Set* scalar accessors instead of a raw byte buffer.
func importValue(t *plctag.Tag, raw json.RawMessage) error {
	elemType := t.ElemTypeHint()

	switch elemType {
	case config.ElemBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("expected bool for BOOL tag: %w", err)
		}
		return t.SetBool(0, v)
	case config.ElemReal:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("expected number for REAL tag: %w", err)
		}
		return t.SetFloat32(0, float32(v))
	case config.ElemLReal:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("expected number for LREAL tag: %w", err)
		}
		return t.SetFloat64(0, v)
	default:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("expected integer for %s tag: %w", elemType, err)
		}
		switch t.ElemSize() {
		case 1:
			return t.SetUint8(0, uint8(v))
		case 2:
			return t.SetUint16(0, uint16(v))
		case 4:
			return t.SetUint32(0, uint32(v))
		case 8:
			return t.SetUint64(0, uint64(v))
		default:
			return fmt.Errorf("tag element size %d has no scalar write path", t.ElemSize())
		}
	}
}
