package plctag

// Backend is the capability set every tag variant implements, replacing
// a hand-rolled vtable of function pointers with a plain Go interface.
// The registry binds one Backend to each Tag at creation time based on
// the tag's protocol/family.
type Backend interface {
	// Read performs a synchronous, possibly multi-fragment read of the
	// tag's full element range into t's data buffer. Called with no
	// tag lock held; it must take the locks it needs itself (typically
	// none — the backend owns its own wire state, not the tag's).
	Read(t *Tag) error

	// Write performs a synchronous, possibly multi-fragment write of
	// t's data buffer to the device.
	Write(t *Tag) error

	// Abort cancels any in-flight request this backend has outstanding
	// for t, e.g. by calling Abort on a scheduler.Request.
	Abort(t *Tag) error

	// Status reports any backend-specific condition beyond the tag's
	// own in-flight/complete bookkeeping (most backends have none and
	// return StatusOK).
	Status(t *Tag) OperationState

	// Tickler is invoked once per tickler pass for every tag using this
	// backend, after the core's own auto-sync scheduling. Most backends
	// use it only to react to a session reconnect; it must not block.
	Tickler(t *Tag)

	// WakePLC sends a zero-effect keepalive (e.g. a NOP or a cheap
	// single-element read) to keep an idle session from auto-
	// disconnecting when a tag has no auto-sync activity of its own.
	WakePLC(t *Tag) error

	// GetIntAttrib/SetIntAttrib expose backend-specific tunables (e.g.
	// the discovered CIP element size) through the same attribute-style
	// surface the rest of the public API uses for everything else.
	GetIntAttrib(t *Tag, name string, defVal int) int
	SetIntAttrib(t *Tag, name string, value int) error
}
