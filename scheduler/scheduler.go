// Package scheduler drives one session's outbound request traffic: it
// holds a FIFO vector of pending CIP requests, folds adjacent packable
// ones into a Multiple Service Packet batch up to the negotiated payload
// size, sends the batch, and demultiplexes the reply back to each
// request's waiter.
package scheduler

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"plctag/cip"
	"plctag/eip"
	"plctag/internal/logging"
	"plctag/session"
)

const (
	// maxBatch is the largest number of requests folded into one
	// Multiple Service Packet.
	maxBatch = 16

	minBackoff = 50 * time.Millisecond
	maxBackoff = 5000 * time.Millisecond

	// multiServiceCountSize is the Multiple Service Packet's leading
	// sub-request count field, charged once against the payload budget
	// before any member is packed.
	multiServiceCountSize = 2
	// perMemberOverhead is the offset-table entry a packed member costs
	// in addition to its own service/path/data bytes.
	perMemberOverhead = 2
)

// messageRouterPath addresses the Message Router's own Multiple Service
// Packet service (class 0x02, instance 1).
var messageRouterPath = cip.EPath_t{0x20, 0x02, 0x24, 0x01}

// ErrAborted is delivered to a Request whose Abort was called before it
// was sent, or whose Scheduler was closed while it was still queued.
var ErrAborted = fmt.Errorf("scheduler: request aborted")

// Request is one CIP service call a tag backend wants the scheduler to
// send on its session. Path and Data are the service's own request body
// (everything after the path), exactly what a singleton send would put
// on the wire; the scheduler adds the service byte and path-size prefix.
type Request struct {
	Service      byte
	Path         cip.EPath_t
	Data         []byte
	AllowPacking bool

	aborted atomic.Bool
	done    chan Result
}

// NewRequest builds a Request ready for Scheduler.Submit. The returned
// Request's Wait must be called exactly once to release its result
// channel.
func NewRequest(service byte, path cip.EPath_t, data []byte, allowPacking bool) *Request {
	return &Request{
		Service:      service,
		Path:         path,
		Data:         data,
		AllowPacking: allowPacking,
		done:         make(chan Result, 1),
	}
}

// Abort marks the request as aborted. A request already in flight still
// completes normally; one still sitting in the queue is purged on the
// scheduler's next pass and replies ErrAborted.
func (r *Request) Abort() {
	r.aborted.Store(true)
}

// Wait blocks for the request's result, or returns early if ctx is done.
func (r *Request) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-r.done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Request) deliver(res Result) {
	select {
	case r.done <- res:
	default:
	}
}

// encodedSize is the wire cost of this request's own service+path+data,
// not counting any Multiple Service offset-table entry.
func (r *Request) encodedSize() int {
	return 2 + len(r.Path) + len(r.Data)
}

// bytes encodes this request the same way a standalone singleton send
// would put it on the wire, reusing cip.Request's own service+path+data
// framing rather than re-deriving it here.
func (r *Request) bytes() []byte {
	return cip.Request{Service: r.Service, Path: r.Path, Data: r.Data}.Marshal()
}

// Result is what Wait returns once the scheduler has sent the request
// and (for a batch) demultiplexed its reply.
type Result struct {
	Status    byte
	ExtStatus []byte
	Data      []byte
	Err       error
}

// Scheduler owns one session's FIFO request vector and runs the
// packing/send/demux loop on its own goroutine until Close.
type Scheduler struct {
	sess *session.Session

	mu      sync.Mutex
	queue   []*Request
	closed  bool
	backoff time.Duration

	signal  chan struct{}
	closing chan struct{}

	seq uint64 // session_seq_id, allocated only when a batch is actually sent
}

// New builds a Scheduler bound to sess and starts its drive loop.
func New(sess *session.Session) *Scheduler {
	s := &Scheduler{
		sess:    sess,
		signal:  make(chan struct{}, 1),
		closing: make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues req and wakes the drive loop.
func (s *Scheduler) Submit(req *Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		req.deliver(Result{Err: ErrAborted})
		return
	}
	s.queue = append(s.queue, req)
	s.mu.Unlock()
	s.wake()
}

func (s *Scheduler) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Close stops the drive loop and fails any request still queued.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	close(s.closing)
	for _, r := range pending {
		r.deliver(Result{Err: ErrAborted})
	}
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.closing:
			return
		case <-s.signal:
		}

		for {
			batch, ok := s.nextBatch()
			if !ok {
				break
			}
			s.sendBatch(batch)
		}
	}
}

// nextBatch purges aborted requests, then pops the head of the queue
// plus as many packable, budget-fitting followers as allowed. A
// non-packable head is only ever popped alone.
func (s *Scheduler) nextBatch() ([]*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queue[:0]
	for _, r := range s.queue {
		if r.aborted.Load() {
			r.deliver(Result{Err: ErrAborted})
			continue
		}
		kept = append(kept, r)
	}
	s.queue = kept

	if len(s.queue) == 0 {
		return nil, false
	}

	head := s.queue[0]
	maxPayload := int(s.sess.MaxPayloadSize())
	remaining := maxPayload - multiServiceCountSize - perMemberOverhead - head.encodedSize()

	batch := []*Request{head}
	n := 1
	for head.AllowPacking && n < len(s.queue) && len(batch) < maxBatch {
		next := s.queue[n]
		if !next.AllowPacking {
			break
		}
		cost := perMemberOverhead + next.encodedSize()
		if remaining-cost < 0 {
			break
		}
		remaining -= cost
		batch = append(batch, next)
		n++
	}

	s.queue = s.queue[n:]
	return batch, true
}

func (s *Scheduler) sendBatch(batch []*Request) {
	if err := s.sess.Acquire(); err != nil {
		s.failBatch(batch, err)
		s.growBackoff()
		return
	}

	var reqData []byte
	if len(batch) == 1 {
		reqData = batch[0].bytes()
	} else {
		var err error
		reqData, err = buildMultiRequest(batch)
		if err != nil {
			s.failBatch(batch, err)
			return
		}
	}

	seqID := atomic.AddUint64(&s.seq, 1)

	reply, err := s.transact(reqData)
	if err != nil {
		logging.Debugf("scheduler", "session_seq_id=%d batch=%d send failed: %v", seqID, len(batch), err)
		s.failBatch(batch, err)
		s.growBackoff()
		return
	}
	s.resetBackoff()

	if len(batch) == 1 {
		batch[0].deliver(parseSingleReply(reply))
		return
	}

	s.demuxMultiReply(batch, reply)
}

// transact sends cipData over the session's connected or unconnected
// path (whichever the session is currently using) and returns the raw
// CIP service reply bytes, with any Unconnected Send / connected
// sequence-number envelope already stripped.
func (s *Scheduler) transact(cipData []byte) ([]byte, error) {
	client := s.sess.Client()
	if client == nil {
		return nil, fmt.Errorf("scheduler: session has no active client")
	}

	if conn := s.sess.Connection(); conn != nil {
		wrapped := conn.WrapConnected(cipData)
		req := eip.EipCommonPacket{
			Items: []eip.EipCommonPacketItem{
				{TypeId: eip.CpfAddressConnectionId, Length: 4, Data: binary.LittleEndian.AppendUint32(nil, conn.OTConnID)},
				{TypeId: eip.CpfConnectedTransportPacketId, Length: uint16(len(wrapped)), Data: wrapped},
			},
		}
		resp, err := client.SendUnitDataTransaction(req)
		if err != nil {
			return nil, err
		}
		if len(resp.Items) < 2 {
			return nil, fmt.Errorf("scheduler: expected 2 CPF items in connected reply, got %d", len(resp.Items))
		}
		_, payload, err := conn.UnwrapConnected(resp.Items[1].Data)
		return payload, err
	}

	route, err := s.sess.RoutePath()
	if err != nil {
		return nil, err
	}

	wire := cipData
	if len(route.Encoded) > 0 && !isGenericRouterPath(route.Encoded) {
		wire = cip.WrapUnconnectedSend(cipData, route.Encoded)
	}

	resp, err := client.SendRRData(eip.EipCommonPacket{
		Items: []eip.EipCommonPacketItem{
			{TypeId: eip.CpfAddressNullId, Length: 0, Data: nil},
			{TypeId: eip.CpfUnconnectedMessageId, Length: uint16(len(wire)), Data: wire},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) < 2 {
		return nil, fmt.Errorf("scheduler: expected 2 CPF items in unconnected reply, got %d", len(resp.Items))
	}
	return cip.UnwrapUnconnectedSendReply(resp.Items[1].Data)
}

func isGenericRouterPath(path []byte) bool {
	if len(path) != len(cip.GenericRouterPath) {
		return false
	}
	for i := range path {
		if path[i] != cip.GenericRouterPath[i] {
			return false
		}
	}
	return true
}

func buildMultiRequest(batch []*Request) ([]byte, error) {
	reqs := make([]cip.MultiServiceRequest, len(batch))
	for i, r := range batch {
		reqs[i] = cip.MultiServiceRequest{Service: r.Service, Path: r.Path, Data: r.Data}
	}
	msData, err := cip.BuildMultipleServiceRequest(reqs)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 2+len(messageRouterPath)+len(msData))
	out = append(out, cip.SvcMultipleServicePacket)
	out = append(out, messageRouterPath.WordLen())
	out = append(out, messageRouterPath...)
	out = append(out, msData...)
	return out, nil
}

func parseSingleReply(data []byte) Result {
	if len(data) < 4 {
		return Result{Err: fmt.Errorf("scheduler: reply too short: %d bytes", len(data))}
	}
	status := data[2]
	addlSize := int(data[3])

	var extended []uint16
	if addlSize > 0 && len(data) >= 4+addlSize*2 {
		extended = make([]uint16, addlSize)
		for i := 0; i < addlSize; i++ {
			extended[i] = binary.LittleEndian.Uint16(data[4+i*2:])
		}
	}

	res := Result{Status: status, ExtStatus: extendedToBytes(extended)}
	start := 4 + addlSize*2
	if start <= len(data) {
		res.Data = data[start:]
	}
	if err := cip.TranslateStatus(status, extended); err != nil {
		res.Err = err
	}
	return res
}

func extendedToBytes(extended []uint16) []byte {
	if len(extended) == 0 {
		return nil
	}
	out := make([]byte, len(extended)*2)
	for i, v := range extended {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

// demuxMultiReply parses the outer Multiple Service Packet reply header,
// tolerates a bundled partial-error status (embedded service error), and
// delivers each packed member's own sub-reply positionally by index.
func (s *Scheduler) demuxMultiReply(batch []*Request, data []byte) {
	if len(data) < 4 {
		err := fmt.Errorf("scheduler: multi-service reply too short: %d bytes", len(data))
		s.failBatch(batch, err)
		return
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := int(data[3])

	if replyService != (cip.SvcMultipleServicePacket | 0x80) {
		s.failBatch(batch, fmt.Errorf("scheduler: unexpected multi-service reply service 0x%02x", replyService))
		return
	}
	if status != cip.GeneralStatusSuccess && status != cip.GeneralStatusEmbeddedServiceError {
		s.failBatch(batch, cip.TranslateStatus(status, nil))
		return
	}

	start := 4 + addlStatusSize*2
	if start > len(data) {
		s.failBatch(batch, fmt.Errorf("scheduler: multi-service reply missing body"))
		return
	}

	subs, err := cip.ParseMultipleServiceResponse(data[start:])
	if err != nil {
		s.failBatch(batch, err)
		return
	}

	for i, req := range batch {
		if i >= len(subs) {
			req.deliver(Result{Err: fmt.Errorf("scheduler: no reply for batch member %d", i)})
			continue
		}
		sub := subs[i]
		res := Result{Status: sub.Status, ExtStatus: sub.ExtStatus, Data: sub.Data}
		if sub.Status != cip.GeneralStatusSuccess {
			res.Err = cip.TranslateStatus(sub.Status, nil)
		}
		req.deliver(res)
	}
}

func (s *Scheduler) failBatch(batch []*Request, err error) {
	for _, r := range batch {
		r.deliver(Result{Err: err})
	}
}

func (s *Scheduler) growBackoff() {
	s.mu.Lock()
	if s.backoff == 0 {
		s.backoff = minBackoff
	} else {
		s.backoff *= 2
		if s.backoff > maxBackoff {
			s.backoff = maxBackoff
		}
	}
	wait := jitter(s.backoff)
	s.mu.Unlock()
	time.Sleep(wait)
}

func (s *Scheduler) resetBackoff() {
	s.mu.Lock()
	s.backoff = 0
	s.mu.Unlock()
}

// jitter returns d plus up to 25% random slack, so a fleet of sessions
// backing off together doesn't retry in lockstep.
func jitter(d time.Duration) time.Duration {
	quarter := d / 4
	if quarter <= 0 {
		return d
	}
	return d + time.Duration(pseudoRandom(uint64(time.Now().UnixNano()))%uint64(quarter))
}

// pseudoRandom is a tiny xorshift generator so jitter doesn't need
// math/rand's global lock on every backoff.
func pseudoRandom(seed uint64) uint64 {
	seed ^= seed << 13
	seed ^= seed >> 7
	seed ^= seed << 17
	return seed
}
