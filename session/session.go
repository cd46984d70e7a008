package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"plctag/cip"
	"plctag/config"
	"plctag/eip"
	"plctag/internal/logging"
)

// RetryWait is the delay a session spends in WAIT_RETRY before trying
// OPEN_SOCKET_START again (≈5s).
const RetryWait = 5 * time.Second

// DisconnectTimeout is how long a session sits in IDLE with no traffic
// before it tears itself down.
const DisconnectTimeout = 5 * time.Second

// Session owns one PLC's TCP socket, EtherNet/IP registration, and (for
// families that need it) CIP connected-messaging path. It is driven
// through a named set of connection states; the request scheduler calls
// Acquire before every send so a lapsed session reconnects transparently.
type Session struct {
	cfg *config.Config

	mu        sync.Mutex
	state     State
	client    *eip.EipClient
	conn      *cip.Connection
	connSize  uint16
	connPath  []byte
	legacyFwd bool // latched after an UNSUPPORTED response to ForwardOpenEx

	lastActivity time.Time
	retryAfter   time.Time
}

// New builds a Session for cfg. The socket is not opened until the first
// Acquire or an explicit Connect call.
func New(cfg *config.Config) *Session {
	return &Session{cfg: cfg, state: StateDisconnected}
}

// Gateway returns the host[:port] this session connects to, for status
// surfaces that report connection state per PLC identity.
func (s *Session) Gateway() string { return s.cfg.Gateway }

// State reports the session's current state machine node.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire ensures the session is connected (and, if the family requires
// it, that a CIP connection is open), reconnecting or waiting out a
// retry backoff as needed. Callers (the request scheduler) should call
// this immediately before every send.
func (s *Session) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return nil
	case StateWaitRetry, StateStartRetry:
		if time.Now().Before(s.retryAfter) {
			return fmt.Errorf("session: waiting out retry backoff for %s", s.cfg.Gateway)
		}
	case StateWaitReconnect:
		// a queued request is exactly the trigger for
		// WAIT_RECONNECT -> OPEN_SOCKET_START.
	}

	return s.connectLocked()
}

// Connect forces a (re)connect attempt regardless of current state.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *Session) connectLocked() error {
	s.state = StateOpenSocketStart
	client := eip.NewEipClientWithPort(host(s.cfg.Gateway), gatewayPort(s.cfg))

	s.state = StateOpenSocketWait
	if err := client.Connect(); err != nil {
		s.state = StateCloseSocket
		s.scheduleRetryLocked()
		return fmt.Errorf("session: socket open: %w", err)
	}
	s.client = client

	s.state = StateRegister
	// RegisterSession happens inside client.Connect() (EIP session
	// registration isn't split out as its own step), so by the time
	// Connect returns without error the session is registered.
	logging.Debugf("session", "registered session 0x%08x with %s", client.GetSession(), s.cfg.Gateway)

	if !s.cfg.UseConnectedMsg {
		s.state = StateIdle
		s.lastActivity = time.Now()
		return nil
	}

	s.state = StateSendForwardOpen
	if err := s.forwardOpenLocked(); err != nil {
		_ = s.client.Disconnect()
		s.client = nil
		s.state = StateCloseSocket
		s.scheduleRetryLocked()
		return fmt.Errorf("session: forward open: %w", err)
	}

	s.state = StateIdle
	s.lastActivity = time.Now()
	return nil
}

func (s *Session) scheduleRetryLocked() {
	s.state = StateStartRetry
	s.retryAfter = time.Now().Add(RetryWait)
	s.state = StateWaitRetry
}

// Touch marks the session as having just carried traffic, resetting the
// idle auto-disconnect clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// IdleFor reports how long the session has sat idle in IDLE state.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return 0
	}
	return time.Since(s.lastActivity)
}

// MaybeAutoDisconnect disconnects the session if it has been idle longer
// than DisconnectTimeout, taking the IDLE -> DISCONNECT/UNREGISTER ->
// WAIT_RECONNECT edge. It is safe to call this on a timer; it is a
// no-op when the session isn't idle or hasn't timed out yet.
func (s *Session) MaybeAutoDisconnect() {
	s.mu.Lock()
	idle := s.state == StateIdle && time.Since(s.lastActivity) > DisconnectTimeout
	s.mu.Unlock()
	if idle {
		_ = s.disconnect(StateWaitReconnect)
	}
}

// Disconnect tears the session down (ForwardClose if connected, then
// UnregisterSession and socket close) and leaves it in WAIT_RECONNECT so
// the next Acquire reopens it.
func (s *Session) Disconnect() error {
	return s.disconnect(StateWaitReconnect)
}

func (s *Session) disconnect(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		s.state = next
		return nil
	}

	s.state = StateDisconnecting
	if s.conn != nil {
		if req, err := cip.BuildForwardCloseRequest(s.conn, s.connPath); err == nil {
			cpf := unconnectedCpf(req)
			_, _ = s.client.SendRRData(*cpf)
		}
		s.conn = nil
		s.connPath = nil
		s.connSize = 0
	}

	s.state = StateCloseSocket
	err := s.client.Disconnect()
	s.client = nil
	s.state = next
	return err
}

// IsConnected reports whether the session has an open socket (and, for
// connected families, an open CIP connection).
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateIdle
}

// Connection returns the active CIP connection, or nil if the session
// isn't using connected messaging.
func (s *Session) Connection() *cip.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Client returns the underlying EIP client for unconnected sends. It may
// be nil if the session isn't currently connected.
func (s *Session) Client() *eip.EipClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// MaxPayloadSize reports the negotiated CIP payload size for this
// session's connection, or the family's default guess before any
// connection has been negotiated. The scheduler uses this to size its
// Multiple Service Packet batches.
func (s *Session) MaxPayloadSize() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connSize > 0 {
		return s.connSize
	}
	return s.cfg.Family.DefaultPayloadSize()
}

// RoutePath returns the parsed connection path this session would use
// for ForwardOpen or Unconnected Send routing.
func (s *Session) RoutePath() (cip.Route, error) {
	return cip.ParseRoutePath(s.cfg.Path)
}

func unconnectedCpf(data []byte) *eip.EipCommonPacket {
	return &eip.EipCommonPacket{
		Items: []eip.EipCommonPacketItem{
			{TypeId: eip.CpfAddressNullId, Length: 0, Data: nil},
			{TypeId: eip.CpfUnconnectedMessageId, Length: uint16(len(data)), Data: data},
		},
	}
}

// host strips a trailing ":port" from a gateway string, since EipClient
// takes the host and port separately.
func host(gateway string) string {
	if i := strings.LastIndex(gateway, ":"); i >= 0 {
		if _, err := strconv.Atoi(gateway[i+1:]); err == nil {
			return gateway[:i]
		}
	}
	return gateway
}

// gatewayPort extracts an explicit "host:port" port from the gateway
// string, falling back to the protocol's default port.
func gatewayPort(cfg *config.Config) uint16 {
	if i := strings.LastIndex(cfg.Gateway, ":"); i >= 0 {
		if p, err := strconv.Atoi(cfg.Gateway[i+1:]); err == nil {
			return uint16(p)
		}
	}
	return uint16(cfg.DefaultPort())
}
