package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
)

// ID identifies a session for its lifetime. Zero is never assigned.
type ID uint64

// NoID is the zero ID; passed as a broadcast exclusion it excludes no one.
const NoID ID = 0

const DefaultOutboxBytes = 256 << 10

var (
	ErrDuplicateID     = errors.New("session id already registered")
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
	ErrSessionClosed   = errors.New("session closed")
)

// Path is one delivery path to a client: the signaling WebSocket, a WebRTC
// DataChannel, or the operator console.
type Path interface {
	Send(msg string) error
	Open() bool
	Close() error
}

type Options struct {
	// Nickname overrides the default "User{id}".
	Nickname string
	Admin    bool
	// OutboxBytes bounds queued outbound chat. Defaults to DefaultOutboxBytes.
	OutboxBytes int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Session is one connected participant. The transport is owned by the session
// and closed with it; the peer channel is attached while a DataChannel is open
// and preferred for delivery.
type Session struct {
	id        ID
	admin     bool
	transport Path

	logger  *slog.Logger
	metrics *metrics.Metrics
	outbox  *outbox

	mu       sync.Mutex
	nickname string
	peer     Path
	closed   bool

	closeOnce sync.Once
	drained   chan struct{}
}

func New(id ID, transport Path, opts Options) *Session {
	if opts.OutboxBytes <= 0 {
		opts.OutboxBytes = DefaultOutboxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	nickname := opts.Nickname
	if nickname == "" {
		nickname = DefaultNickname(id)
	}

	s := &Session{
		id:        id,
		admin:     opts.Admin,
		transport: transport,
		logger:    opts.Logger.With("session_id", uint64(id)),
		metrics:   opts.Metrics,
		outbox:    newOutbox(opts.OutboxBytes),
		nickname:  nickname,
		drained:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// DefaultNickname is the nickname a session starts with.
func DefaultNickname(id ID) string {
	return fmt.Sprintf("User%d", uint64(id))
}

func (s *Session) ID() ID        { return s.id }
func (s *Session) IsAdmin() bool { return s.admin }

func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

func (s *Session) setNickname(name string) {
	s.mu.Lock()
	s.nickname = name
	s.mu.Unlock()
}

func (s *Session) AttachPeerChannel(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.peer = p
}

// DetachPeerChannel clears the peer channel if it is still p. A nil p clears
// whatever is attached.
func (s *Session) DetachPeerChannel(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil || s.peer == p {
		s.peer = nil
	}
}

// HasPeerChannel reports whether an open DataChannel is attached.
func (s *Session) HasPeerChannel() bool {
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	return p != nil && p.Open()
}

// deliveryPath returns the open peer channel, else the open transport, else
// nil.
func (s *Session) deliveryPath() Path {
	s.mu.Lock()
	peer, closed := s.peer, s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	if peer != nil && peer.Open() {
		return peer
	}
	if s.transport != nil && s.transport.Open() {
		return s.transport
	}
	return nil
}

// Reachable reports whether the session currently has an open delivery path.
func (s *Session) Reachable() bool {
	return s.deliveryPath() != nil
}

// Deliver queues msg for asynchronous sending. It returns false when the
// session is closed or its outbox is full.
func (s *Session) Deliver(msg string) bool {
	return s.outbox.enqueue(msg)
}

func (s *Session) drain() {
	defer close(s.drained)
	for {
		msg, ok := s.outbox.dequeue()
		if !ok {
			return
		}
		path := s.deliveryPath()
		if path == nil {
			s.metrics.Inc(metrics.SendFailed)
			continue
		}
		if err := path.Send(msg); err != nil {
			s.metrics.Inc(metrics.SendFailed)
			s.logger.Debug("chat send failed", "err", err)
		}
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops delivery, discards queued messages, detaches the peer channel
// and closes the transport. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.peer = nil
		s.mu.Unlock()

		s.outbox.close()
		if s.transport != nil {
			err = s.transport.Close()
		}
	})
	return err
}

// Done is closed once the delivery goroutine has exited after Close.
func (s *Session) Done() <-chan struct{} {
	return s.drained
}
