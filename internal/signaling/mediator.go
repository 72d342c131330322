package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/relay"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/webrtcpeer"
)

type State int32

const (
	StateNew State = iota
	StateOfferReceived
	StateAnswerSent
	StateChannelOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOfferReceived:
		return "offer_received"
	case StateAnswerSent:
		return "answer_sent"
	case StateChannelOpen:
		return "channel_open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Establisher is the server side of one WebRTC negotiation.
type Establisher interface {
	AcceptOffer(sdp string) (answer string, err error)
	AddRemoteCandidate(c webrtc.ICECandidateInit) error
	Close() error
}

// EstablisherFactory creates an Establisher that reports its events to h.
type EstablisherFactory func(h webrtcpeer.Handler) (Establisher, error)

// PeerEstablisher returns a factory that builds pion-backed peers.
func PeerEstablisher(api *webrtc.API, iceServers []webrtc.ICEServer, logger *slog.Logger) EstablisherFactory {
	return func(h webrtcpeer.Handler) (Establisher, error) {
		peer, err := webrtcpeer.NewPeer(api, webrtcpeer.PeerConfig{ICEServers: iceServers, Logger: logger}, h)
		if err != nil {
			return nil, err
		}
		return peer, nil
	}
}

type Broadcaster interface {
	Broadcast(msg string, exclude session.ID) int
}

var errNegotiationTimeout = errors.New("negotiation timed out")

const eventQueueSize = 64

type MediatorConfig struct {
	Session  *session.Session
	Registry *session.Registry
	// Signal carries outbound signaling envelopes, normally the session's
	// WebSocket transport.
	Signal         session.Path
	Broadcaster    Broadcaster
	NewEstablisher EstablisherFactory

	// NegotiationTimeout bounds the time from an accepted offer to an open
	// DataChannel. Zero disables it.
	NegotiationTimeout time.Duration
	// MaxChatMessageBytes drops longer chat input. Zero means unlimited.
	MaxChatMessageBytes int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type eventKind int

const (
	eventFrame eventKind = iota
	eventTransportClosed
	eventLocalCandidate
	eventChannelOpen
	eventChannelMessage
	eventChannelClose
	eventFailure
	eventTimeout
)

type event struct {
	kind eventKind
	// gen ties peer events to the establisher that produced them; events from
	// a released establisher are dropped.
	gen uint64

	data      []byte
	text      string
	candidate webrtc.ICECandidateInit
	path      session.Path
	err       error
}

// Mediator runs the negotiation state machine of one session. Every input,
// whether a WebSocket frame, a pion callback or a timer, is posted as an event
// and handled sequentially by Run.
type Mediator struct {
	cfg    MediatorConfig
	sess   *session.Session
	logger *slog.Logger

	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	est   Establisher
	gen   uint64
	timer *time.Timer

	state atomic.Int32
}

func NewMediator(cfg MediatorConfig) *Mediator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Mediator{
		cfg:    cfg,
		sess:   cfg.Session,
		logger: cfg.Logger.With("session_id", uint64(cfg.Session.ID())),
		events: make(chan event, eventQueueSize),
		done:   make(chan struct{}),
	}
}

func (m *Mediator) State() State {
	return State(m.state.Load())
}

func (m *Mediator) setState(s State) {
	prev := State(m.state.Swap(int32(s)))
	if prev != s {
		m.logger.Debug("negotiation state", "from", prev.String(), "to", s.String())
	}
}

// Done is closed when Run has returned and the session is torn down.
func (m *Mediator) Done() <-chan struct{} {
	return m.done
}

func (m *Mediator) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// HandleFrame queues one inbound text frame from the transport.
func (m *Mediator) HandleFrame(data []byte) {
	m.post(event{kind: eventFrame, data: data})
}

// TransportClosed reports that the transport's read side has ended.
func (m *Mediator) TransportClosed() {
	m.post(event{kind: eventTransportClosed})
}

// Run handles events until the session closes or ctx is done. On return the
// establisher is released, the session unregistered and closed.
func (m *Mediator) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.shutdown("mediator stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			m.handle(ev)
			if m.State() == StateClosed {
				return nil
			}
		}
	}
}

func (m *Mediator) handle(ev event) {
	if ev.kind >= eventLocalCandidate && ev.gen != m.gen {
		return
	}

	switch ev.kind {
	case eventFrame:
		m.handleFrame(ev.data)
	case eventTransportClosed:
		m.shutdown("transport closed")
	case eventLocalCandidate:
		m.cfg.Metrics.Inc(metrics.CandidateSent)
		_ = m.sendSignal(candidateMessage(ev.candidate))
	case eventChannelOpen:
		m.stopTimer()
		m.sess.AttachPeerChannel(ev.path)
		m.setState(StateChannelOpen)
		m.cfg.Metrics.Inc(metrics.PeerChannelOpened)
		m.logger.Info("peer channel open")
	case eventChannelMessage:
		m.handleChat(ev.text)
	case eventChannelClose:
		m.sess.DetachPeerChannel(ev.path)
		m.release()
		m.setState(StateNew)
		m.cfg.Metrics.Inc(metrics.PeerChannelClosed)
		m.logger.Info("peer channel closed; awaiting renegotiation")
	case eventFailure:
		m.fail(ev.err)
	case eventTimeout:
		if m.State() != StateChannelOpen {
			m.fail(errNegotiationTimeout)
		}
	}
}

func (m *Mediator) handleFrame(data []byte) {
	if !isSignalFrame(data) {
		m.handleChat(string(data))
		return
	}

	msg, err := parseSignalMessage(data)
	if err != nil {
		m.protocolError(err)
		return
	}
	switch msg.Type {
	case messageTypeOffer:
		m.handleOffer(msg.SDP)
	case messageTypeCandidate:
		m.handleRemoteCandidate(msg.Candidate)
	case messageTypeBye, messageTypeTerminate:
		m.shutdown("client said bye")
	}
}

func (m *Mediator) handleOffer(sdp string) {
	if state := m.State(); state != StateNew {
		m.protocolError(fmt.Errorf("%w: offer received in state %s", errProtocol, state))
		return
	}
	if sdp == "" {
		m.protocolError(fmt.Errorf("%w: offer missing sdp", errProtocol))
		return
	}
	m.cfg.Metrics.Inc(metrics.OfferReceived)

	m.gen++
	h := peerEvents{m: m, gen: m.gen}
	err := m.guard("create", func() error {
		est, err := m.cfg.NewEstablisher(h)
		if err != nil {
			return err
		}
		m.est = est
		return nil
	})
	if err != nil {
		m.fail(err)
		return
	}
	m.setState(StateOfferReceived)

	var answer string
	err = m.guard("accept offer", func() error {
		var err error
		answer, err = m.est.AcceptOffer(sdp)
		return err
	})
	if err != nil {
		m.fail(err)
		return
	}

	if err := m.sendSignal(answerMessage(answer)); err != nil {
		m.fail(err)
		return
	}
	m.cfg.Metrics.Inc(metrics.AnswerSent)
	m.setState(StateAnswerSent)
	m.startTimer()
}

func (m *Mediator) handleRemoteCandidate(c *candidate) {
	if c == nil || c.Candidate == "" {
		return
	}
	if m.est == nil {
		m.logger.Debug("ignoring candidate before offer")
		return
	}
	m.cfg.Metrics.Inc(metrics.CandidateReceived)
	if err := m.guard("add candidate", func() error {
		return m.est.AddRemoteCandidate(c.ToPion())
	}); err != nil {
		m.fail(err)
	}
}

func (m *Mediator) handleChat(text string) {
	if limit := m.cfg.MaxChatMessageBytes; limit > 0 && len(text) > limit {
		m.cfg.Metrics.Inc(metrics.ChatTooLarge)
		m.logger.Warn("dropping oversized chat message", "bytes", len(text), "max_bytes", limit)
		return
	}

	in := relay.ParseInput(text)
	if in.Kind == relay.InputRename {
		if err := m.cfg.Registry.Rename(m.sess.ID(), in.Text); err != nil {
			m.logger.Info("rename rejected", "nickname", in.Text, "err", err)
			return
		}
		m.logger.Info("renamed", "nickname", m.sess.Nickname())
		return
	}

	m.cfg.Metrics.Inc(metrics.ChatReceived)
	m.cfg.Broadcaster.Broadcast(relay.FormatChat(m.sess.Nickname(), in.Text, false), m.sess.ID())
}

func (m *Mediator) sendSignal(msg signalMessage) error {
	if m.State() == StateClosed {
		return errTransportClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := m.cfg.Signal.Send(string(data)); err != nil {
		m.logger.Debug("signaling send failed", "type", string(msg.Type), "err", err)
		return err
	}
	return nil
}

// guard runs one establisher call, converting errors and panics into
// negotiation failures.
func (m *Mediator) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", errNegotiation, op, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%w: %s: %w", errNegotiation, op, err)
	}
	return nil
}

func (m *Mediator) protocolError(err error) {
	m.cfg.Metrics.Inc(metrics.ProtocolError)
	m.logger.Warn("signaling protocol error", "state", m.State().String(), "err", err)
}

func (m *Mediator) fail(err error) {
	m.cfg.Metrics.Inc(metrics.NegotiationFailure)
	m.logger.Warn("negotiation failed; closing session", "state", m.State().String(), "err", err)
	m.shutdown("negotiation failed")
}

func (m *Mediator) startTimer() {
	if m.cfg.NegotiationTimeout <= 0 {
		return
	}
	gen := m.gen
	m.timer = time.AfterFunc(m.cfg.NegotiationTimeout, func() {
		m.post(event{kind: eventTimeout, gen: gen})
	})
}

func (m *Mediator) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// release closes the current establisher, if any. Later events from it are
// dropped because the generation no longer matches.
func (m *Mediator) release() {
	m.stopTimer()
	if m.est == nil {
		return
	}
	est := m.est
	m.est = nil
	m.gen++
	if err := m.guard("close", est.Close); err != nil {
		m.logger.Debug("establisher close failed", "err", err)
	}
}

func (m *Mediator) shutdown(reason string) {
	if m.State() == StateClosed {
		return
	}
	m.release()
	m.setState(StateClosed)
	m.cfg.Registry.Unregister(m.sess.ID())
	_ = m.sess.Close()
	m.logger.Info("session closed", "reason", reason)
}

// peerEvents adapts pion callbacks for one establisher generation into
// mediator events.
type peerEvents struct {
	m   *Mediator
	gen uint64
}

func (p peerEvents) OnLocalCandidate(c webrtc.ICECandidateInit) {
	p.m.post(event{kind: eventLocalCandidate, gen: p.gen, candidate: c})
}

func (p peerEvents) OnChannelOpen(ch session.Path) {
	p.m.post(event{kind: eventChannelOpen, gen: p.gen, path: ch})
}

func (p peerEvents) OnChannelMessage(text string) {
	p.m.post(event{kind: eventChannelMessage, gen: p.gen, text: text})
}

func (p peerEvents) OnChannelClose(ch session.Path) {
	p.m.post(event{kind: eventChannelClose, gen: p.gen, path: ch})
}

func (p peerEvents) OnFailure(err error) {
	p.m.post(event{kind: eventFailure, gen: p.gen, err: err})
}
