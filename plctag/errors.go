// Package plctag implements the tag abstraction: a uniform read/write/
// status surface over CIP, PCCC, and Modbus/TCP backends, a tag registry
// with a pooled-session allocator, a background tickler driving auto-sync
// and multi-fragment progression, and a seven-event callback engine.
package plctag

import (
	"errors"
	"fmt"
)

// OperationState is the tag-facing status code a client sees from
// Tag.Status: the two steady states (OK, Pending) plus one bucket per
// error category (configuration, resource, transport, protocol,
// negotiation, lifecycle, semantics).
type OperationState int

const (
	StatusOK OperationState = iota
	StatusPending
	StatusConfigError
	StatusResourceError
	StatusTransportError
	StatusProtocolError
	StatusNegotiationError
	StatusAbort
	StatusDestroyed
	StatusSemanticError
)

func (s OperationState) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPending:
		return "pending"
	case StatusConfigError:
		return "config error"
	case StatusResourceError:
		return "resource error"
	case StatusTransportError:
		return "transport error"
	case StatusProtocolError:
		return "protocol error"
	case StatusNegotiationError:
		return "negotiation error"
	case StatusAbort:
		return "aborted"
	case StatusDestroyed:
		return "destroyed"
	case StatusSemanticError:
		return "semantic error"
	default:
		return fmt.Sprintf("unknown status %d", int(s))
	}
}

// Sentinel errors, one representative per error-taxonomy bucket.
// Backend and core code wraps these with %w so callers can errors.Is
// against the bucket without parsing a message.
var (
	// Configuration
	ErrBadAttribute  = errors.New("plctag: bad attribute value")
	ErrUnknownFamily = errors.New("plctag: unknown PLC family")
	ErrMalformedPath = errors.New("plctag: malformed path")
	ErrMalformedName = errors.New("plctag: malformed tag name")
	ErrBadByteOrder  = errors.New("plctag: invalid byte order permutation")

	// Resource
	ErrOutOfSlots = errors.New("plctag: no more request slots")

	// Transport
	ErrTimeout = errors.New("plctag: timed out waiting for operation")

	// Protocol
	ErrRemote = errors.New("plctag: remote device reported an error")

	// Negotiation
	ErrNegotiationFailed = errors.New("plctag: session negotiation failed")

	// Lifecycle
	ErrAborted   = errors.New("plctag: operation aborted")
	ErrDestroyed = errors.New("plctag: tag destroyed")
	ErrNotFound  = errors.New("plctag: tag id not found in registry")

	// Semantics
	ErrOutOfBounds   = errors.New("plctag: buffer access out of bounds")
	ErrUnsupportedOp = errors.New("plctag: unsupported operation for this tag type")
	ErrReadOnly      = errors.New("plctag: tag is read-only")
)

// classifyError maps an error from a backend call to the OperationState
// bucket it belongs to, for Tag.lastStatus and the READ/WRITE_COMPLETED
// event status. Unrecognized errors default to StatusProtocolError,
// since most backend failures come from a translated remote status.
func classifyError(err error) OperationState {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrAborted):
		return StatusAbort
	case errors.Is(err, ErrDestroyed):
		return StatusDestroyed
	case errors.Is(err, ErrTimeout):
		return StatusTransportError
	case errors.Is(err, ErrBadAttribute), errors.Is(err, ErrUnknownFamily),
		errors.Is(err, ErrMalformedPath), errors.Is(err, ErrMalformedName),
		errors.Is(err, ErrBadByteOrder):
		return StatusConfigError
	case errors.Is(err, ErrOutOfSlots):
		return StatusResourceError
	case errors.Is(err, ErrNegotiationFailed):
		return StatusNegotiationError
	case errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrUnsupportedOp), errors.Is(err, ErrReadOnly):
		return StatusSemanticError
	default:
		return StatusProtocolError
	}
}
