package plctag

import (
	"context"
	"fmt"

	"plctag/cip"
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// rawBackend implements the "@raw" special tag: an opaque CIP pass-
// through used by tooling that wants to send an arbitrary CIP service
// without a library-level tag abstraction. A client writes a complete
// request (service byte, path word-length byte, path bytes, request
// data) into the tag buffer; Read submits it through the scheduler and
// replaces the buffer with the raw reply (reply service, reserved byte,
// general status, extended status size and words, reply data).
type rawBackend struct {
	sess  *session.Session
	sched *scheduler.Scheduler

	request  []byte
	inFlight *scheduler.Request
}

func newRawBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	return &rawBackend{sess: sess, sched: sched}, nil
}

// Write stages the next request to send; it does not touch the wire.
func (b *rawBackend) Write(t *Tag) error {
	t.apiMu.Lock()
	b.request = append([]byte(nil), t.data...)
	t.apiMu.Unlock()
	return nil
}

// Read submits the last staged request and replaces the tag buffer with
// the raw reply.
func (b *rawBackend) Read(t *Tag) error {
	if len(b.request) < 2 {
		return fmt.Errorf("%w: @raw tag has no pending request, write one first", ErrMalformedName)
	}
	service := b.request[0]
	pathWords := int(b.request[1])
	pathEnd := 2 + pathWords*2
	if pathEnd > len(b.request) {
		return fmt.Errorf("%w: @raw request path truncated", ErrMalformedName)
	}
	path := cip.EPath_t(b.request[2:pathEnd])
	body := append([]byte(nil), b.request[pathEnd:]...)

	if err := b.sess.Acquire(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	req := scheduler.NewRequest(service, path, body, false)
	b.inFlight = req
	b.sched.Submit(req)
	res, err := req.Wait(context.Background())
	b.inFlight = nil
	if err != nil {
		return translateRequestErr(err)
	}

	reply := make([]byte, 0, 4+len(res.ExtStatus)+len(res.Data))
	reply = append(reply, service|0x80, 0x00, res.Status, byte(len(res.ExtStatus)/2))
	reply = append(reply, res.ExtStatus...)
	reply = append(reply, res.Data...)

	t.apiMu.Lock()
	mismatch := len(t.data) != len(reply)
	t.apiMu.Unlock()
	if mismatch {
		t.setElemShape(1, len(reply))
	}
	t.apiMu.Lock()
	copy(t.data, reply)
	t.apiMu.Unlock()
	return nil
}

func (b *rawBackend) Abort(t *Tag) error {
	if req := b.inFlight; req != nil {
		req.Abort()
	}
	return nil
}

func (b *rawBackend) Status(t *Tag) OperationState {
	if !b.sess.IsConnected() {
		return StatusTransportError
	}
	return StatusOK
}

func (b *rawBackend) Tickler(t *Tag) {}

func (b *rawBackend) WakePLC(t *Tag) error { return nil }

func (b *rawBackend) GetIntAttrib(t *Tag, name string, defVal int) int {
	return defVal
}

func (b *rawBackend) SetIntAttrib(t *Tag, name string, value int) error {
	return fmt.Errorf("%w: @raw tags have no int attributes", ErrUnsupportedOp)
}
