package plctag

import (
	"fmt"
	"sync"

	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// sessionEntry is one pooled (session, scheduler) pair plus the tags
// currently referencing it. The entry is torn down once its last tag
// is destroyed.
type sessionEntry struct {
	sess  *session.Session
	sched *scheduler.Scheduler
	refs  int
}

// Registry owns every live Tag and the pool of shared sessions backing
// them. One Registry is enough for a whole process; callers that want
// isolated pools (e.g. tests) construct their own.
type Registry struct {
	mu       sync.Mutex
	tags     map[uint32]*Tag
	sessions map[string]*sessionEntry
	nextID   uint32
	freeIDs  []uint32
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tags:     make(map[uint32]*Tag),
		sessions: make(map[string]*sessionEntry),
		nextID:   1,
	}
}

// sessionKey identifies a shareable session: two configs that produce
// the same key may share one TCP connection and request scheduler.
func sessionKey(cfg *config.Config) string {
	return fmt.Sprintf("%s|%d|%s|%s|%s|%d",
		cfg.Protocol, cfg.ConnectionGroupID, cfg.Gateway, cfg.Path,
		cfg.Family, boolInt(cfg.UseConnectedMsg))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// allocID returns a dense, non-zero, 28-bit-masked id, preferring a
// freed id before extending the counter. Must be called with mu held.
func (r *Registry) allocID() (uint32, error) {
	for len(r.freeIDs) > 0 {
		id := r.freeIDs[len(r.freeIDs)-1]
		r.freeIDs = r.freeIDs[:len(r.freeIDs)-1]
		if _, used := r.tags[id]; !used {
			return id, nil
		}
	}
	for i := 0; i < maxTagID; i++ {
		id := r.nextID & maxTagID
		r.nextID++
		if id == 0 {
			continue
		}
		if _, used := r.tags[id]; !used {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: tag id space exhausted", ErrOutOfSlots)
}

// acquireSession returns the pooled session/scheduler for cfg, creating
// one if none exists yet or if cfg opts out of sharing. Must be called
// with mu held.
func (r *Registry) acquireSession(cfg *config.Config) *sessionEntry {
	if !cfg.ShareSession {
		sess := session.New(cfg)
		return &sessionEntry{sess: sess, sched: scheduler.New(sess), refs: 1}
	}
	key := sessionKey(cfg)
	if e, ok := r.sessions[key]; ok {
		e.refs++
		return e
	}
	sess := session.New(cfg)
	e := &sessionEntry{sess: sess, sched: scheduler.New(sess), refs: 1}
	r.sessions[key] = e
	return e
}

// releaseSession drops one reference to the session backing cfg,
// closing its scheduler once the last tag referencing it is gone. Must
// be called with mu held.
func (r *Registry) releaseSession(cfg *config.Config, e *sessionEntry) {
	e.refs--
	if e.refs > 0 {
		return
	}
	e.sched.Close()
	if cfg.ShareSession {
		delete(r.sessions, sessionKey(cfg))
	}
}

// Create does not validate cfg; callers run it through config.Validate
// first. It allocates a tag id, binds the right protocol
// backend, and registers the tag. The returned Tag is ready for Read/
// Write once its session connects (lazily, on first Acquire).
func (r *Registry) Create(cfg *config.Config) (*Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.allocID()
	if err != nil {
		return nil, err
	}

	entry := r.acquireSession(cfg)
	backend, err := newBackend(cfg, entry.sess, entry.sched)
	if err != nil {
		r.releaseSession(cfg, entry)
		return nil, err
	}

	order, err := byteOrderFor(cfg)
	if err != nil {
		r.releaseSession(cfg, entry)
		return nil, err
	}

	t := newTag(id, backend, order, cfg, entry.sess, entry.sched)
	t.sessEntry = entry
	r.tags[id] = t
	return t, nil
}

// Lookup returns the tag registered under id, or ErrNotFound.
func (r *Registry) Lookup(id uint32) (*Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// Destroy tears down the tag registered under id: raises DESTROYED,
// aborts any in-flight operation, releases its session reference, and
// frees its id for reuse.
func (r *Registry) Destroy(id uint32) error {
	r.mu.Lock()
	t, ok := r.tags[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.tags, id)
	r.freeIDs = append(r.freeIDs, id)
	entry := t.sessEntry
	cfg := t.cfg
	r.mu.Unlock()

	t.destroy()

	r.mu.Lock()
	if entry != nil {
		r.releaseSession(cfg, entry)
	}
	r.mu.Unlock()
	return nil
}

// Tags returns a snapshot of every currently-registered tag, for the
// tickler to iterate without holding the registry lock while it works.
func (r *Registry) Tags() []*Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Tag, 0, len(r.tags))
	for _, t := range r.tags {
		out = append(out, t)
	}
	return out
}

// Sessions returns a snapshot of every distinct session currently
// backing a live tag, for status surfaces (opserver, cmd/plctagctl)
// that report connection state per PLC identity rather than per tag.
func (r *Registry) Sessions() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*session.Session]bool, len(r.sessions))
	out := make([]*session.Session, 0, len(r.sessions))
	for _, t := range r.tags {
		if !seen[t.sess] {
			seen[t.sess] = true
			out = append(out, t.sess)
		}
	}
	return out
}

// Len reports the number of live tags, mainly for tests and metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tags)
}
