package plctag

import (
	"context"
	"sync"
	"time"

	"plctag/session"
)

// ticklerPeriod bounds how long the tickler ever sleeps between passes:
// no tag's auto-sync deadline can be observed later than this after it
// comes due.
const ticklerPeriod = 100 * time.Millisecond

// minTicklerWait keeps a pathological string of already-due deadlines
// from spinning the loop with a zero or negative sleep.
const minTicklerWait = time.Millisecond

// keepaliveIdleThreshold is how long a session must sit idle, with no
// tag of its own due for auto-sync, before the tickler sends a
// WakePLC on its behalf to keep it from auto-disconnecting.
const keepaliveIdleThreshold = session.DisconnectTimeout / 2

// tickOp is what a due tag needs from this pass.
type tickOp int

const (
	tickNone tickOp = iota
	tickWrite
	tickRead
)

// Tickler runs the single background goroutine that drives every tag's
// auto-sync read/write schedule. Grounded on teacher's plcman/manager.go
// PLCWorker.pollLoop/poll: a ticker plus a done-channel select loop,
// generalized from one fixed poll period per PLC connection to an
// independent, possibly-absent auto-sync deadline per tag, and from a
// blocking per-PLC poll to a non-blocking per-tag dispatch so one slow
// tag can't stall every other tag's schedule.
type Tickler struct {
	reg *Registry

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	keepaliveMu sync.Mutex
	lastWake    map[*session.Session]time.Time
}

// NewTickler builds a tickler over reg. Call Start to begin polling.
func NewTickler(reg *Registry) *Tickler {
	return &Tickler{
		reg:      reg,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		lastWake: make(map[*session.Session]time.Time),
	}
}

// Start launches the tickler's background goroutine.
func (tk *Tickler) Start() {
	tk.wg.Add(1)
	go tk.run()
}

// Stop halts the tickler and waits for its goroutine to exit.
func (tk *Tickler) Stop() {
	close(tk.stop)
	tk.wg.Wait()
}

// Wake nudges the tickler to run a pass immediately instead of waiting
// out its current sleep, e.g. right after a new tag is created with an
// auto-sync deadline sooner than anything already scheduled.
func (tk *Tickler) Wake() {
	select {
	case tk.wake <- struct{}{}:
	default:
	}
}

func (tk *Tickler) run() {
	defer tk.wg.Done()
	for {
		next := tk.pass()
		wait := time.Until(next)
		if wait < minTicklerWait {
			wait = minTicklerWait
		}
		if wait > ticklerPeriod {
			wait = ticklerPeriod
		}
		timer := time.NewTimer(wait)
		select {
		case <-tk.stop:
			timer.Stop()
			return
		case <-tk.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pass runs one tickler iteration over every live tag and returns the
// earliest deadline still pending, so run can sleep no longer than that
// (capped at ticklerPeriod either way).
func (tk *Tickler) pass() time.Time {
	now := time.Now()
	next := now.Add(ticklerPeriod)

	tags := tk.reg.Tags()
	sessActive := make(map[*session.Session]bool)

	for _, t := range tags {
		t.backend.Tickler(t)

		op, deadline, ok := t.pollDue(now)
		if !ok {
			continue
		}
		if op != tickNone {
			sessActive[t.sess] = true
			tk.dispatch(t, op)
			continue
		}
		if !deadline.IsZero() && deadline.Before(next) {
			next = deadline
		}
	}

	tk.tendSessions(tags, sessActive, now)
	return next
}

// dispatch runs a due tag's auto-sync operation on its own goroutine so
// a slow or stalled PLC can't hold up the rest of the tag set.
func (tk *Tickler) dispatch(t *Tag, op tickOp) {
	switch op {
	case tickWrite:
		go func() { _ = t.Write(context.Background()) }()
	case tickRead:
		go func() { _ = t.Read(context.Background()) }()
	}
}

// tendSessions disconnects idle sessions past their timeout and sends a
// keepalive through one representative tag per session that went a full
// pass with no due work of its own, so a session with only a slow
// auto-sync period doesn't idle-disconnect between reads.
func (tk *Tickler) tendSessions(tags []*Tag, active map[*session.Session]bool, now time.Time) {
	seen := make(map[*session.Session]*Tag, len(tags))
	for _, t := range tags {
		if _, ok := seen[t.sess]; !ok {
			seen[t.sess] = t
		}
	}

	for sess, rep := range seen {
		sess.MaybeAutoDisconnect()
		if active[sess] || !sess.IsConnected() {
			continue
		}
		if sess.IdleFor() < keepaliveIdleThreshold {
			continue
		}

		tk.keepaliveMu.Lock()
		last := tk.lastWake[sess]
		due := now.Sub(last) >= keepaliveIdleThreshold
		if due {
			tk.lastWake[sess] = now
		}
		tk.keepaliveMu.Unlock()

		if due {
			go func(t *Tag) { _ = t.backend.WakePLC(t) }(rep)
		}
	}
}

// pollDue checks whether t's auto-sync schedule has come due, advancing
// its deadline (period rounding: the next deadline is always period
// multiples ahead of now, never accumulating a backlog from a tickler
// that fell behind) before returning. A dirty tag with a due write takes
// priority over a due read in the same pass, matching the spec's
// write-before-read ordering for a tag that is both dirty and due for
// its periodic read. Returns ok=false if the tag's lock could not be
// acquired without blocking (tk retries next pass) or the tag is
// destroyed.
func (t *Tag) pollDue(now time.Time) (op tickOp, nextDeadline time.Time, ok bool) {
	if !t.apiMu.TryLock() {
		return tickNone, time.Time{}, false
	}
	defer t.apiMu.Unlock()

	if t.destroyed {
		return tickNone, time.Time{}, false
	}
	if t.readInFlight || t.writeInFlight {
		return tickNone, time.Time{}, true
	}

	if t.autoSyncWriteMs > 0 && t.dirty && !t.nextWriteDeadline.After(now) {
		t.nextWriteDeadline = advanceDeadline(t.nextWriteDeadline, t.autoSyncWriteMs, now)
		return tickWrite, time.Time{}, true
	}

	if t.autoSyncReadMs > 0 && !t.nextReadDeadline.After(now) {
		t.nextReadDeadline = advanceDeadline(t.nextReadDeadline, t.autoSyncReadMs, now)
		return tickRead, time.Time{}, true
	}

	var soonest time.Time
	if t.autoSyncWriteMs > 0 && t.dirty {
		soonest = t.nextWriteDeadline
	}
	if t.autoSyncReadMs > 0 && (soonest.IsZero() || t.nextReadDeadline.Before(soonest)) {
		soonest = t.nextReadDeadline
	}
	return tickNone, soonest, true
}

// advanceDeadline rounds a missed deadline forward to the next period
// boundary strictly after now, rather than letting a tickler that fell
// behind fire every missed period back-to-back once it catches up.
func advanceDeadline(deadline time.Time, period time.Duration, now time.Time) time.Time {
	if deadline.After(now) {
		return deadline
	}
	behind := now.Sub(deadline)
	missed := behind/period + 1
	return deadline.Add(missed * period)
}
