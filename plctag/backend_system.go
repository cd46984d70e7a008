package plctag

import (
	"fmt"

	"plctag/internal/logging"
)

// libraryVersion is the version string reported by the
// "system/library/version" tag.
const libraryVersion = "1.0.0"

// systemTagKind distinguishes the handful of in-process system tags;
// none of them touch the wire.
type systemTagKind int

const (
	systemTagVersion systemTagKind = iota
	systemTagDebug
)

// systemBackend implements the "system/library/version" and
// "system/library/debug" tags: no PLC traffic, just process-local
// state. Grounded on the in-process system-tag requirement with no
// teacher equivalent, since teacher never exposes its own debug logger
// state as a tag.
type systemBackend struct {
	kind systemTagKind
}

func newSystemBackend(name string) (Backend, error) {
	switch name {
	case "system/library/version":
		return &systemBackend{kind: systemTagVersion}, nil
	case "system/library/debug":
		return &systemBackend{kind: systemTagDebug}, nil
	default:
		return nil, fmt.Errorf("%w: unknown system tag %q", ErrMalformedName, name)
	}
}

func (b *systemBackend) Read(t *Tag) error {
	switch b.kind {
	case systemTagVersion:
		data := []byte(libraryVersion)
		t.apiMu.Lock()
		mismatch := len(t.data) != len(data)
		t.apiMu.Unlock()
		if mismatch {
			t.setElemShape(1, len(data))
		}
		t.apiMu.Lock()
		copy(t.data, data)
		t.apiMu.Unlock()
	case systemTagDebug:
		t.apiMu.Lock()
		mismatch := len(t.data) != 4
		t.apiMu.Unlock()
		if mismatch {
			t.setElemShape(4, 1)
		}
		var v uint32
		if logging.Global() != nil {
			v = 1
		}
		t.apiMu.Lock()
		t.data[0] = byte(v)
		t.data[1] = byte(v >> 8)
		t.data[2] = byte(v >> 16)
		t.data[3] = byte(v >> 24)
		t.apiMu.Unlock()
	}
	return nil
}

func (b *systemBackend) Write(t *Tag) error {
	if b.kind == systemTagVersion {
		return fmt.Errorf("%w: system/library/version is read-only", ErrReadOnly)
	}
	return fmt.Errorf("%w: system/library/debug cannot be toggled without a log file path, use the library's debug-logger setup instead", ErrUnsupportedOp)
}

func (b *systemBackend) Abort(t *Tag) error { return nil }

func (b *systemBackend) Status(t *Tag) OperationState { return StatusOK }

func (b *systemBackend) Tickler(t *Tag) {}

func (b *systemBackend) WakePLC(t *Tag) error { return nil }

func (b *systemBackend) GetIntAttrib(t *Tag, name string, defVal int) int {
	switch name {
	case "elem_size":
		return t.ElemSize()
	case "elem_count":
		return t.ElemCount()
	default:
		return defVal
	}
}

func (b *systemBackend) SetIntAttrib(t *Tag, name string, value int) error {
	return fmt.Errorf("%w: attribute %q is read-only on a system tag", ErrUnsupportedOp, name)
}
