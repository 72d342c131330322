package webrtcpeer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
)

var (
	ErrPeerConnectionFailed = errors.New("peer connection failed")
	ErrPeerClosed           = errors.New("peer closed")
)

// Handler receives a Peer's events. Methods are called from pion goroutines
// and must not block.
type Handler interface {
	OnLocalCandidate(c webrtc.ICECandidateInit)
	OnChannelOpen(ch session.Path)
	OnChannelMessage(text string)
	OnChannelClose(ch session.Path)
	OnFailure(err error)
}

// DefaultClientChannelGrace is how long a Peer waits, once its own chat
// channel is open, for a client-created chat channel before reporting.
const DefaultClientChannelGrace = 250 * time.Millisecond

type PeerConfig struct {
	ICEServers []webrtc.ICEServer
	Logger     *slog.Logger

	// ClientChannelGrace defaults to DefaultClientChannelGrace.
	ClientChannelGrace time.Duration
}

// Peer owns one server-side PeerConnection and its chat DataChannels.
//
// The relay creates a chat channel and also accepts one the client creates.
// Handler.OnChannelOpen is called once with a path that prefers the
// client-created channel; Handler.OnChannelClose is called when no chat
// channel is left. Text messages from any chat channel are forwarded. After
// Close no further Handler calls are made.
type Peer struct {
	pc      *webrtc.PeerConnection
	handler Handler
	logger  *slog.Logger
	grace   time.Duration
	path    *chatPath

	mu         sync.Mutex
	local      *Channel
	remote     *Channel
	reported   bool
	graceTimer *time.Timer
	closed     bool

	closeOnce sync.Once
}

func NewPeer(api *webrtc.API, cfg PeerConfig, h Handler) (*Peer, error) {
	if api == nil {
		api = webrtc.NewAPI()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ClientChannelGrace <= 0 {
		cfg.ClientChannelGrace = DefaultClientChannelGrace
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, err
	}
	p := &Peer{
		pc:      pc,
		handler: h,
		logger:  cfg.Logger,
		grace:   cfg.ClientChannelGrace,
	}
	p.path = &chatPath{p: p}

	dc, err := pc.CreateDataChannel(DataChannelLabelChat, nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create chat datachannel: %w", err)
	}
	p.bind(dc, false)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != DataChannelLabelChat {
			p.logger.Debug("rejecting datachannel", "label", dc.Label())
			_ = dc.Close()
			return
		}
		p.bind(dc, true)
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || p.isClosed() {
			return
		}
		h.OnLocalCandidate(c.ToJSON())
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Debug("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed && !p.isClosed() {
			h.OnFailure(ErrPeerConnectionFailed)
		}
	})

	return p, nil
}

func (p *Peer) bind(dc *webrtc.DataChannel, fromClient bool) {
	ch := &Channel{dc: dc}

	dc.OnOpen(func() {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		report := false
		if fromClient {
			if p.remote == nil {
				p.remote = ch
			}
			report = !p.reported
		} else {
			p.local = ch
			if !p.reported && p.graceTimer == nil {
				p.graceTimer = time.AfterFunc(p.grace, p.reportAfterGrace)
			}
		}
		if report {
			p.reported = true
		}
		p.mu.Unlock()
		if report {
			p.handler.OnChannelOpen(p.path)
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.isClosed() {
			return
		}
		if !msg.IsString {
			p.logger.Debug("ignoring binary chat message", "bytes", len(msg.Data))
			return
		}
		p.handler.OnChannelMessage(string(msg.Data))
	})

	dc.OnClose(func() {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		switch ch {
		case p.remote:
			p.remote = nil
		case p.local:
			p.local = nil
		}
		gone := p.reported && p.remote == nil && p.local == nil
		if gone {
			p.reported = false
		}
		p.mu.Unlock()
		if gone {
			p.handler.OnChannelClose(p.path)
		}
	})
}

// reportAfterGrace reports the relay-created channel when the client has not
// opened one of its own.
func (p *Peer) reportAfterGrace() {
	p.mu.Lock()
	report := !p.closed && !p.reported && p.local != nil
	if report {
		p.reported = true
	}
	p.mu.Unlock()
	if report {
		p.handler.OnChannelOpen(p.path)
	}
}

func (p *Peer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// AcceptOffer applies the remote offer and returns the local answer SDP.
// Local candidates trickle through Handler.OnLocalCandidate.
func (p *Peer) AcceptOffer(sdp string) (string, error) {
	if p.isClosed() {
		return "", ErrPeerClosed
	}
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

func (p *Peer) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	if p.isClosed() {
		return ErrPeerClosed
	}
	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Close tears down the PeerConnection and its channels.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.graceTimer != nil {
			p.graceTimer.Stop()
		}
		p.mu.Unlock()
		err = p.pc.Close()
	})
	return err
}
