package plctag

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"plctag/cip"
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// classSymbol is the Logix Symbol Object class Get Instance Attribute
// List (service 0x55) targets to enumerate controller or program tags.
const classSymbol byte = 0x68

const svcGetInstanceAttributeList byte = 0x55

// tagListEntry is one decoded Get Instance Attribute List row:
// attributes 1 (name), 2 (type), 7 (array dimension count), 8 (byte
// size).
type tagListEntry struct {
	InstanceID uint32
	Name       string
	Type       uint16
	ArrayDims  uint32
	ByteCount  uint32
}

// tagListBackend implements "@tags" (controller scope) and
// "PROGRAM:<name>.@tags" (program scope): a paginated Get Instance
// Attribute List walk over the Symbol Object, encoding every row it
// collects into the tag buffer. Grounded on teacher's logix/template.go
// getTemplateAttributes (Get Attribute List request/response shape),
// adapted from the Template Object's per-attribute id/status list to
// Get Instance Attribute List's flatter per-instance value list.
type tagListBackend struct {
	sess  *session.Session
	sched *scheduler.Scheduler

	program string // "" for controller scope

	inFlight *scheduler.Request
}

func newTagListBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	program := ""
	if idx := strings.Index(cfg.Name, ".@tags"); idx > 0 {
		program = cfg.Name[:idx]
	}
	return &tagListBackend{sess: sess, sched: sched, program: program}, nil
}

// Read walks every Get Instance Attribute List page (a PartialTransfer
// general status means more instances remain past the last one
// returned) and encodes the full listing into the tag buffer: for each
// entry, a 4-byte instance id, a 1-byte name length, the name bytes, a
// 2-byte CIP type code, a 4-byte array dimension count, and a 4-byte
// byte size.
func (b *tagListBackend) Read(t *Tag) error {
	if err := b.sess.Acquire(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var buf []byte
	var startInstance uint16
	for {
		pb := cip.EPath()
		if b.program != "" {
			pb = pb.Symbol(b.program)
		}
		path, err := pb.Class(classSymbol).Instance16(startInstance).Build()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPath, err)
		}

		reqData := []byte{0x04, 0x00, 0x01, 0x00, 0x02, 0x00, 0x07, 0x00, 0x08, 0x00}
		req := scheduler.NewRequest(svcGetInstanceAttributeList, path, reqData, false)
		b.inFlight = req
		b.sched.Submit(req)
		res, err := req.Wait(context.Background())
		b.inFlight = nil
		if err != nil {
			return translateRequestErr(err)
		}

		partial := res.Status == cip.GeneralStatusPartialTransfer
		if res.Status != cip.GeneralStatusSuccess && !partial {
			return fmt.Errorf("%w: %v", ErrRemote, cip.TranslateStatus(res.Status, cip.BytesToExtStatus(res.ExtStatus)))
		}

		entries, lastID, err := decodeTagListPage(res.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRemote, err)
		}
		for _, e := range entries {
			buf = appendTagListEntry(buf, e)
		}
		if !partial || len(entries) == 0 {
			break
		}
		startInstance = uint16(lastID + 1)
	}

	t.apiMu.Lock()
	mismatch := len(t.data) != len(buf)
	t.apiMu.Unlock()
	if mismatch {
		t.setElemShape(1, len(buf))
	}
	t.apiMu.Lock()
	copy(t.data, buf)
	t.apiMu.Unlock()
	return nil
}

// decodeTagListPage parses one Get Instance Attribute List reply body:
// a sequence of [instance_id:4][name_len:2][name][type:2][array_dims:4]
// [byte_count:4] entries, one per matched symbol instance.
func decodeTagListPage(data []byte) ([]tagListEntry, uint32, error) {
	var entries []tagListEntry
	var lastID uint32
	pos := 0
	for pos+4 <= len(data) {
		id := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		if pos+2 > len(data) {
			return nil, 0, fmt.Errorf("cip: truncated tag list entry name length")
		}
		nameLen := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if pos+nameLen > len(data) {
			return nil, 0, fmt.Errorf("cip: truncated tag list entry name")
		}
		name := string(data[pos : pos+nameLen])
		pos += nameLen
		if pos+10 > len(data) {
			return nil, 0, fmt.Errorf("cip: truncated tag list entry tail")
		}
		typ := binary.LittleEndian.Uint16(data[pos:])
		pos += 2
		dims := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		size := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		entries = append(entries, tagListEntry{InstanceID: id, Name: name, Type: typ, ArrayDims: dims, ByteCount: size})
		lastID = id
	}
	return entries, lastID, nil
}

func appendTagListEntry(buf []byte, e tagListEntry) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, e.InstanceID)
	buf = append(buf, byte(len(e.Name)))
	buf = append(buf, e.Name...)
	buf = binary.LittleEndian.AppendUint16(buf, e.Type)
	buf = binary.LittleEndian.AppendUint32(buf, e.ArrayDims)
	buf = binary.LittleEndian.AppendUint32(buf, e.ByteCount)
	return buf
}

func (b *tagListBackend) Write(t *Tag) error {
	return fmt.Errorf("%w: tag listing is read-only", ErrReadOnly)
}

func (b *tagListBackend) Abort(t *Tag) error {
	if req := b.inFlight; req != nil {
		req.Abort()
	}
	return nil
}

func (b *tagListBackend) Status(t *Tag) OperationState {
	if !b.sess.IsConnected() {
		return StatusTransportError
	}
	return StatusOK
}

func (b *tagListBackend) Tickler(t *Tag) {}

func (b *tagListBackend) WakePLC(t *Tag) error { return nil }

func (b *tagListBackend) GetIntAttrib(t *Tag, name string, defVal int) int {
	switch name {
	case "elem_size":
		return t.ElemSize()
	case "elem_count":
		return t.ElemCount()
	default:
		return defVal
	}
}

func (b *tagListBackend) SetIntAttrib(t *Tag, name string, value int) error {
	return fmt.Errorf("%w: attribute %q is read-only on a tag-listing tag", ErrUnsupportedOp, name)
}
