package plctag

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"plctag/cip"
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// classTemplate is the Template Object class Get Attribute List targets
// to fetch UDT/AOI structure metadata.
const classTemplate byte = 0x6C

const svcGetAttributeList byte = 0x03

// udtMeta is the subset of Template Object attributes this backend
// exposes: structure size in bytes (attribute 5), member count
// (attribute 2), object definition size in 32-bit words (attribute 4),
// and structure handle (attribute 1). Per-member name/type/offset
// decoding (reading and parsing the template definition bytes, as
// teacher's logix/template.go does) is out of scope here; a caller
// that needs the full member table should use logix-level tooling
// instead of this metadata-only tag.
type udtMeta struct {
	StructureHandle uint16
	MemberCount     uint16
	DefWords        uint32
	StructureSize   uint32
}

// udtBackend implements "@udt/<id>": a read-only tag exposing a UDT
// template's metadata. Grounded on teacher's logix/template.go
// getTemplateAttributes (Get Attribute List service 0x03 against the
// Template Object, attribute set {5,4,3,2,1}).
type udtBackend struct {
	sess  *session.Session
	sched *scheduler.Scheduler

	templateID uint16

	inFlight *scheduler.Request
}

func newUDTBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	idStr := cfg.Name
	if idx := strings.LastIndex(cfg.Name, "/"); idx >= 0 {
		idStr = cfg.Name[idx+1:]
	}
	n, err := strconv.ParseUint(idStr, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: @udt tag name must end in /<template-id>: %v", ErrMalformedName, err)
	}
	return &udtBackend{sess: sess, sched: sched, templateID: uint16(n)}, nil
}

func (b *udtBackend) Read(t *Tag) error {
	if err := b.sess.Acquire(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	pb := cip.EPath().Class(classTemplate)
	if b.templateID <= 0xFF {
		pb = pb.Instance(byte(b.templateID))
	} else {
		pb = pb.Instance16(b.templateID)
	}
	path, err := pb.Build()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPath, err)
	}

	reqData := []byte{
		0x05, 0x00,
		0x05, 0x00,
		0x04, 0x00,
		0x03, 0x00,
		0x02, 0x00,
		0x01, 0x00,
	}
	req := scheduler.NewRequest(svcGetAttributeList, path, reqData, false)
	b.inFlight = req
	b.sched.Submit(req)
	res, err := req.Wait(context.Background())
	b.inFlight = nil
	if err != nil {
		return translateRequestErr(err)
	}
	if err := cip.TranslateStatus(res.Status, cip.BytesToExtStatus(res.ExtStatus)); err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}

	meta, err := decodeUDTMeta(res.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}

	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:], meta.StructureHandle)
	binary.LittleEndian.PutUint16(buf[2:], meta.MemberCount)
	binary.LittleEndian.PutUint32(buf[4:], meta.DefWords)
	binary.LittleEndian.PutUint32(buf[8:], meta.StructureSize)

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

// decodeUDTMeta parses a Get Attribute List reply body: [attr_count:2]
// followed by [attr_id:2][status:2][value] per requested attribute. An
// attribute with a nonzero status carries no value and is skipped.
func decodeUDTMeta(data []byte) (udtMeta, error) {
	var meta udtMeta
	if len(data) < 2 {
		return meta, fmt.Errorf("cip: get attribute list reply too short")
	}
	count := binary.LittleEndian.Uint16(data[0:2])
	pos := 2
	for i := 0; i < int(count) && pos+4 <= len(data); i++ {
		attrID := binary.LittleEndian.Uint16(data[pos:])
		attrStatus := binary.LittleEndian.Uint16(data[pos+2:])
		pos += 4
		size := 2
		if attrID == 4 || attrID == 5 {
			size = 4
		}
		if attrStatus != 0 {
			pos += size
			continue
		}
		if pos+size > len(data) {
			break
		}
		switch attrID {
		case 1:
			meta.StructureHandle = binary.LittleEndian.Uint16(data[pos:])
		case 2:
			meta.MemberCount = binary.LittleEndian.Uint16(data[pos:])
		case 4:
			meta.DefWords = binary.LittleEndian.Uint32(data[pos:])
		case 5:
			meta.StructureSize = binary.LittleEndian.Uint32(data[pos:])
		}
		pos += size
	}
	return meta, nil
}

func (b *udtBackend) Write(t *Tag) error {
	return fmt.Errorf("%w: @udt tags are read-only", ErrReadOnly)
}

func (b *udtBackend) Abort(t *Tag) error {
	if req := b.inFlight; req != nil {
		req.Abort()
	}
	return nil
}

func (b *udtBackend) Status(t *Tag) OperationState {
	if !b.sess.IsConnected() {
		return StatusTransportError
	}
	return StatusOK
}

func (b *udtBackend) Tickler(t *Tag) {}

func (b *udtBackend) WakePLC(t *Tag) error { return nil }

func (b *udtBackend) GetIntAttrib(t *Tag, name string, defVal int) int {
	switch name {
	case "elem_size":
		return t.ElemSize()
	case "elem_count":
		return t.ElemCount()
	case "template_id":
		return int(b.templateID)
	default:
		return defVal
	}
}

func (b *udtBackend) SetIntAttrib(t *Tag, name string, value int) error {
	return fmt.Errorf("%w: attribute %q is read-only on a @udt tag", ErrUnsupportedOp, name)
}
