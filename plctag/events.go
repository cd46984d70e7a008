package plctag

// EventKind is one of the seven fixed tag lifecycle events a callback can
// observe. Grounded on teacher's engine/events.go EventType shape (an
// int enum plus a payload), narrowed here from an open-ended SCADA
// event catalog down to exactly these seven with a fixed dispatch order.
type EventKind int

const (
	EventCreated EventKind = iota
	EventReadStarted
	EventWriteStarted
	EventAborted
	EventReadCompleted
	EventWriteCompleted
	EventDestroyed

	eventKindCount
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "CREATED"
	case EventReadStarted:
		return "READ_STARTED"
	case EventWriteStarted:
		return "WRITE_STARTED"
	case EventAborted:
		return "ABORTED"
	case EventReadCompleted:
		return "READ_COMPLETED"
	case EventWriteCompleted:
		return "WRITE_COMPLETED"
	case EventDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// dispatchOrder is the fixed delivery order within one drain: CREATED,
// READ_STARTED, WRITE_STARTED, ABORTED, READ_COMPLETED, WRITE_COMPLETED,
// DESTROYED.
var dispatchOrder = [eventKindCount]EventKind{
	EventCreated, EventReadStarted, EventWriteStarted, EventAborted,
	EventReadCompleted, EventWriteCompleted, EventDestroyed,
}

// Event is one delivered callback invocation.
type Event struct {
	Kind   EventKind
	Status OperationState
}

// Callback is the per-tag or per-library user callback: tag id, the
// event that fired, its coalesced status, and the userdata registered
// alongside the callback.
type Callback func(tagID uint32, event EventKind, status OperationState, userdata any)

// ChainCallbacks combines several callbacks (e.g. an application's own
// plus one per bridge) into the single Callback a Tag can hold, calling
// each in order. A nil entry is skipped, so callers can build the chain
// conditionally (bridge enabled or not) without filtering nils
// themselves.
func ChainCallbacks(cbs ...Callback) Callback {
	return func(tagID uint32, event EventKind, status OperationState, userdata any) {
		for _, cb := range cbs {
			if cb != nil {
				cb(tagID, event, status, userdata)
			}
		}
	}
}

// eventState holds each event kind's pending flag and coalesced status.
// A kind raised twice before it drains delivers only its latest status.
type eventState struct {
	pending        [eventKindCount]bool
	status         [eventKindCount]OperationState
	destroyedFired bool
}

// raise marks kind pending with status, overwriting any status from a
// previous raise of the same kind that hasn't drained yet. Once
// DESTROYED has fired once, further raises of any kind are dropped —
// the "DESTROYED always last and only once" guarantee.
func (e *eventState) raise(kind EventKind, status OperationState) {
	if e.destroyedFired {
		return
	}
	e.pending[kind] = true
	e.status[kind] = status
}

// drain copies out every pending event in dispatch order and clears
// their pending flags, so the caller can dispatch them to the user
// callback after releasing the tag's API mutex: copy under lock, then
// dispatch unlocked, so a callback that re-enters the tag can't deadlock.
func (e *eventState) drain() []Event {
	if e.destroyedFired {
		return nil
	}
	var out []Event
	for _, k := range dispatchOrder {
		if !e.pending[k] {
			continue
		}
		out = append(out, Event{Kind: k, Status: e.status[k]})
		e.pending[k] = false
		if k == EventDestroyed {
			e.destroyedFired = true
			break
		}
	}
	return out
}
