package plctag

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"plctag/byteorder"
	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// maxTagID is the 28-bit mask applied to tag ids: dense, never zero.
// A destroyed tag's id is handed out again (Registry.allocID takes freed
// ids before advancing its counter), so ids are not held back until the
// id space wraps.
const maxTagID = 0x0FFFFFFF

// Tag is the reference-counted-in-spirit (Go's GC stands in for the
// refcount; Destroy still gates the synchronous teardown the registry
// and tickler coordinate on) object a client creates, reads, writes,
// and destroys. It holds the raw buffer, the backend, the byte-order
// descriptor, the read cache and auto-sync deadlines, the per-operation
// flags, the two mutexes plus condition variable, and the session
// back-reference.
type Tag struct {
	id uint32

	backend Backend
	order   byteorder.Order

	cfg *config.Config

	sess      *session.Session
	sched     *scheduler.Scheduler
	sessEntry *sessionEntry

	apiMu sync.Mutex
	cond  *sync.Cond
	extMu sync.Mutex // client-visible lock/unlock

	data      []byte
	elemSize  int
	elemCount int

	readCacheExpire time.Time
	readCacheTTL    time.Duration

	autoSyncReadMs  time.Duration
	autoSyncWriteMs time.Duration
	nextReadDeadline  time.Time
	nextWriteDeadline time.Time
	dirty             bool

	readInFlight  bool
	writeInFlight bool
	readComplete  bool
	writeComplete bool

	events eventState

	lastStatus OperationState
	callback   Callback
	userdata   any

	destroyed bool
}

// newTag builds a Tag. It is unexported: callers go through
// Registry.Create, which allocates the id and binds the right backend.
func newTag(id uint32, backend Backend, order byteorder.Order, cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) *Tag {
	t := &Tag{
		id:        id,
		backend:   backend,
		order:     order,
		cfg:       cfg,
		sess:      sess,
		sched:     sched,
		elemSize:  int(cfg.ElemSize),
		elemCount: int(cfg.ElemCount),

		readCacheTTL:    time.Duration(cfg.ReadCacheMs) * time.Millisecond,
		autoSyncReadMs:  time.Duration(cfg.AutoSyncReadMs) * time.Millisecond,
		autoSyncWriteMs: time.Duration(cfg.AutoSyncWriteMs) * time.Millisecond,
	}
	t.cond = sync.NewCond(&t.apiMu)
	if t.elemCount < 1 {
		t.elemCount = 1
	}
	if t.elemSize > 0 {
		t.data = make([]byte, t.elemSize*t.elemCount)
	}
	if t.autoSyncReadMs > 0 {
		jitter := time.Duration(deterministicJitter(id)) % t.autoSyncReadMs
		t.nextReadDeadline = time.Now().Add(jitter)
	}
	t.events.raise(EventCreated, StatusOK)
	return t
}

// deterministicJitter derives a per-tag initial-read jitter from the tag
// id rather than rand(), since this package's callers must not see
// nondeterministic test behavior; uniqueness across tags is all that's
// needed to spread polling load, and the id is already unique.
func deterministicJitter(id uint32) int64 {
	x := uint64(id)*2654435761 + 1
	if x&0x7FFFFFFF == 0 {
		return 1
	}
	return int64(x & 0x7FFFFFFF)
}

// ID returns the tag's dense, non-zero, 28-bit-masked identifier.
func (t *Tag) ID() uint32 { return t.id }

// Name returns the tag's symbolic path or PCCC logical address, as
// configured.
func (t *Tag) Name() string { return t.cfg.Name }

// Gateway returns the host[:port] of the PLC this tag talks to, used by
// consumers (bridges, opserver) as the PLC identity string.
func (t *Tag) Gateway() string { return t.cfg.Gateway }

// SetCallback installs the per-tag event callback and its userdata.
func (t *Tag) SetCallback(cb Callback, userdata any) {
	t.apiMu.Lock()
	t.callback = cb
	t.userdata = userdata
	t.apiMu.Unlock()
}

// Data returns the tag's raw element buffer. Callers must hold Lock/
// Unlock (the external mutex) around any read-modify-write sequence
// that spans more than one call, matching the client-compound-operation
// contract clients are expected to follow.
func (t *Tag) Data() []byte {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.data
}

// Size returns the tag buffer's total byte size (elemSize * elemCount).
func (t *Tag) Size() int {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return len(t.data)
}

// ElemSize and ElemCount report the backend-discovered or config-
// supplied element shape.
func (t *Tag) ElemSize() int {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.elemSize
}

func (t *Tag) ElemCount() int {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.elemCount
}

// ElemTypeHint reports the configured element type, if any was declared
// for this tag. Consumers that need to interpret or produce a scalar
// value (ExportValue, opserver's write path) use this to pick a decode
// path instead of reaching into the tag's config directly.
func (t *Tag) ElemTypeHint() config.ElemType {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.cfg.ElemType
}

// setElemShape lets a backend record the on-wire element size it
// discovered on first read (e.g. CIP's type-prefix byte count), growing
// the data buffer if needed. Called by backends, not clients.
func (t *Tag) setElemShape(elemSize, elemCount int) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	t.elemSize = elemSize
	if elemCount > 0 {
		t.elemCount = elemCount
	}
	want := t.elemSize * t.elemCount
	if len(t.data) != want {
		buf := make([]byte, want)
		copy(buf, t.data)
		t.data = buf
	}
}

// Lock/Unlock are the client-visible external mutex: a second mutex so
// a client can hold a multi-step read-modify-write sequence across
// several API calls without contending with the tag's own internal
// bookkeeping mutex.
func (t *Tag) Lock()   { t.extMu.Lock() }
func (t *Tag) Unlock() { t.extMu.Unlock() }

// Status reports the tag's last operation status, folding in any
// backend-specific condition (e.g. a pending reconnect).
func (t *Tag) Status() OperationState {
	t.apiMu.Lock()
	if t.readInFlight || t.writeInFlight {
		t.apiMu.Unlock()
		return StatusPending
	}
	if t.destroyed {
		t.apiMu.Unlock()
		return StatusDestroyed
	}
	status := t.lastStatus
	t.apiMu.Unlock()
	if status == StatusOK {
		if s := t.backend.Status(t); s != StatusOK {
			return s
		}
	}
	return status
}

// Read performs a synchronous read: a fresh read cache hit short-
// circuits without touching the backend; otherwise it
// raises READ_STARTED, blocks on the backend's (possibly multi-
// fragment) Read, then raises READ_COMPLETED with the resulting status.
// ctx bounds how long Read waits for a concurrent write to vacate the
// tag (invariant: read_in_flight and write_in_flight are mutually
// exclusive) — it does not cancel a read already handed to the backend,
// since the underlying scheduler request has no mid-flight cancel path
// short of Abort.
func (t *Tag) Read(ctx context.Context) error {
	t.apiMu.Lock()
	if t.destroyed {
		t.apiMu.Unlock()
		return ErrDestroyed
	}
	if t.readCacheTTL > 0 && !t.readCacheExpire.IsZero() && time.Now().Before(t.readCacheExpire) {
		t.apiMu.Unlock()
		return nil
	}
	if err := t.waitForInFlightLocked(ctx); err != nil {
		t.apiMu.Unlock()
		return err
	}
	t.readInFlight = true
	t.events.raise(EventReadStarted, StatusPending)
	t.apiMu.Unlock()
	t.dispatchPending()

	err := t.backend.Read(t)

	t.apiMu.Lock()
	t.readInFlight = false
	t.readComplete = true
	status := classifyError(err)
	t.lastStatus = status
	if err == nil && t.readCacheTTL > 0 {
		t.readCacheExpire = time.Now().Add(t.readCacheTTL)
	}
	t.events.raise(EventReadCompleted, status)
	t.cond.Broadcast()
	t.apiMu.Unlock()
	t.dispatchPending()
	return err
}

// Write performs a synchronous write, raising WRITE_STARTED before the
// backend builds its request (so client code that just filled the tag
// buffer is guaranteed to be visible to the backend) and
// WRITE_COMPLETED once the backend returns.
func (t *Tag) Write(ctx context.Context) error {
	t.apiMu.Lock()
	if t.destroyed {
		t.apiMu.Unlock()
		return ErrDestroyed
	}
	if err := t.waitForInFlightLocked(ctx); err != nil {
		t.apiMu.Unlock()
		return err
	}
	t.writeInFlight = true
	t.dirty = false
	t.events.raise(EventWriteStarted, StatusPending)
	t.apiMu.Unlock()
	t.dispatchPending()

	err := t.backend.Write(t)

	t.apiMu.Lock()
	t.writeInFlight = false
	t.writeComplete = true
	status := classifyError(err)
	t.lastStatus = status
	// a cache-served read is now stale regardless of TTL
	t.readCacheExpire = time.Time{}
	t.events.raise(EventWriteCompleted, status)
	t.cond.Broadcast()
	t.apiMu.Unlock()
	t.dispatchPending()
	return err
}

// MarkDirty flags the tag for the tickler's auto-sync write scheduling
// a client that edits the buffer directly (via Lock/Data/Unlock)
// rather than calling Write calls this so a configured
// auto_sync_write_ms still fires.
func (t *Tag) MarkDirty() {
	t.apiMu.Lock()
	t.dirty = true
	t.apiMu.Unlock()
}

// waitForInFlightLocked blocks (apiMu held, released during the wait)
// until neither a read nor a write is in flight, honoring ctx. Callers
// must hold apiMu on entry and exit.
func (t *Tag) waitForInFlightLocked(ctx context.Context) error {
	for t.readInFlight || t.writeInFlight {
		done := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			t.apiMu.Lock()
			close(done)
			t.cond.Broadcast()
			t.apiMu.Unlock()
		})
		t.cond.Wait()
		stop()
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Abort cancels any in-flight read or write: clears the in-flight
// flags, tells the backend to abort its outstanding request, and
// raises ABORTED.
func (t *Tag) Abort() error {
	t.apiMu.Lock()
	wasInFlight := t.readInFlight || t.writeInFlight
	t.readInFlight = false
	t.writeInFlight = false
	t.events.raise(EventAborted, StatusAbort)
	t.cond.Broadcast()
	t.apiMu.Unlock()

	var err error
	if wasInFlight {
		err = t.backend.Abort(t)
	}
	t.dispatchPending()
	return err
}

// destroy marks the tag destroyed, aborts any in-flight operation, and
// raises DESTROYED. Called by Registry.Destroy under the registry's own
// bookkeeping; the tag continues to exist as a Go value (its session
// reference is released by the caller) until this returns.
func (t *Tag) destroy() {
	t.apiMu.Lock()
	if t.destroyed {
		t.apiMu.Unlock()
		return
	}
	wasInFlight := t.readInFlight || t.writeInFlight
	t.readInFlight = false
	t.writeInFlight = false
	t.destroyed = true
	t.events.raise(EventDestroyed, StatusDestroyed)
	t.cond.Broadcast()
	t.apiMu.Unlock()

	if wasInFlight {
		_ = t.backend.Abort(t)
	}
	t.dispatchPending()
}

// dispatchPending drains any events raised since the last dispatch and
// invokes the user callback for each, outside the API mutex: copy
// under lock, then dispatch unlocked, so a re-entrant callback can't
// deadlock.
func (t *Tag) dispatchPending() {
	t.apiMu.Lock()
	events := t.events.drain()
	cb := t.callback
	userdata := t.userdata
	t.apiMu.Unlock()

	if cb == nil {
		return
	}
	for _, e := range events {
		cb(t.id, e.Kind, e.Status, userdata)
	}
}

// --- scalar accessors, byte-order aware ---

func (t *Tag) boundsCheck(offset, width int) error {
	if offset < 0 || width < 0 || offset+width > len(t.data) {
		return fmt.Errorf("%w: offset %d width %d size %d", ErrOutOfBounds, offset, width, len(t.data))
	}
	return nil
}

func (t *Tag) GetUint8(offset int) (uint8, error) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 1); err != nil {
		return 0, err
	}
	return t.data[offset], nil
}

func (t *Tag) SetUint8(offset int, v uint8) error {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 1); err != nil {
		return err
	}
	t.data[offset] = v
	t.dirty = true
	return nil
}

func (t *Tag) GetUint16(offset int) (uint16, error) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 2); err != nil {
		return 0, err
	}
	return t.order.DecodeU16(t.data[offset:])
}

func (t *Tag) SetUint16(offset int, v uint16) error {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 2); err != nil {
		return err
	}
	copy(t.data[offset:], t.order.EncodeU16(v))
	t.dirty = true
	return nil
}

func (t *Tag) GetUint32(offset int) (uint32, error) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 4); err != nil {
		return 0, err
	}
	return t.order.DecodeU32(t.data[offset:])
}

func (t *Tag) SetUint32(offset int, v uint32) error {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 4); err != nil {
		return err
	}
	copy(t.data[offset:], t.order.EncodeU32(v))
	t.dirty = true
	return nil
}

func (t *Tag) GetUint64(offset int) (uint64, error) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 8); err != nil {
		return 0, err
	}
	return t.order.DecodeU64(t.data[offset:])
}

func (t *Tag) SetUint64(offset int, v uint64) error {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := t.boundsCheck(offset, 8); err != nil {
		return err
	}
	copy(t.data[offset:], t.order.EncodeU64(v))
	t.dirty = true
	return nil
}

func (t *Tag) GetFloat32(offset int) (float32, error) {
	bits, err := t.GetUint32(offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (t *Tag) SetFloat32(offset int, v float32) error {
	return t.SetUint32(offset, math.Float32bits(v))
}

func (t *Tag) GetFloat64(offset int) (float64, error) {
	bits, err := t.GetUint64(offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (t *Tag) SetFloat64(offset int, v float64) error {
	return t.SetUint64(offset, math.Float64bits(v))
}

func (t *Tag) GetBool(offset int) (bool, error) {
	v, err := t.GetUint8(offset)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (t *Tag) SetBool(offset int, v bool) error {
	if v {
		return t.SetUint8(offset, 1)
	}
	return t.SetUint8(offset, 0)
}
