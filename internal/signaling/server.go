package signaling

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
)

const (
	defaultMaxSignalingMessageBytes      = 64 * 1024
	defaultMaxSignalingMessagesPerSecond = 50
	defaultIdleTimeout                   = 60 * time.Second
	defaultPingInterval                  = 20 * time.Second
)

// Config wires the signaling server to the rest of the relay.
type Config struct {
	Registry       *session.Registry
	Broadcaster    Broadcaster
	NewEstablisher EstablisherFactory

	// AllowedOrigins is the browser origin allow list; empty means same host.
	AllowedOrigins []string

	SessionSendQueueBytes int
	MaxChatMessageBytes   int
	NegotiationTimeout    time.Duration

	// WebSocket inbound hardening.
	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	IdleTimeout                   time.Duration
	PingInterval                  time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Server accepts signaling WebSockets:
//   - GET /              : the endpoint the bundled client connects to
//   - GET /webrtc/signal : the same endpoint under the relay's API prefix
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	conns  map[*wsTransport]struct{}
	closed bool
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxSignalingMessageBytes <= 0 {
		cfg.MaxSignalingMessageBytes = defaultMaxSignalingMessageBytes
	}
	if cfg.MaxSignalingMessagesPerSecond <= 0 {
		cfg.MaxSignalingMessagesPerSecond = defaultMaxSignalingMessagesPerSecond
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.IdleTimeout {
		cfg.PingInterval = min(defaultPingInterval, cfg.IdleTimeout/2)
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		conns:  make(map[*wsTransport]struct{}),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleWebSocket)
	mux.HandleFunc("GET /webrtc/signal", s.handleWebSocket)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Close closes every open signaling connection. Their mediators tear the
// sessions down.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*wsTransport, 0, len(s.conns))
	for t := range s.conns {
		conns = append(conns, t)
	}
	s.conns = nil
	s.closed = true
	s.mu.Unlock()

	for _, t := range conns {
		_ = t.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}

func (s *Server) track(t *wsTransport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[t] = struct{}{}
	return true
}

func (s *Server) untrack(t *wsTransport) {
	s.mu.Lock()
	delete(s.conns, t)
	s.mu.Unlock()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if origin.Allowed(r, s.cfg.AllowedOrigins) {
		return true
	}
	s.cfg.Metrics.Inc(metrics.OriginRejected)
	s.logger.Warn("rejecting signaling websocket origin", "origin", r.Header.Get("Origin"), "host", r.Host)
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	t := newWSTransport(conn)
	if !s.track(t) {
		_ = t.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.untrack(t)

	reg := s.cfg.Registry
	sess := session.New(reg.NextID(), t, session.Options{
		OutboxBytes: s.cfg.SessionSendQueueBytes,
		Logger:      s.logger,
		Metrics:     s.cfg.Metrics,
	})
	if err := reg.Register(sess); err != nil {
		s.logger.Warn("rejecting session", "session_id", uint64(sess.ID()), "err", err)
		code, reason := websocket.ClosePolicyViolation, err.Error()
		if errors.Is(err, session.ErrTooManySessions) {
			code = websocket.CloseTryAgainLater
		}
		_ = t.closeWith(code, reason)
		_ = sess.Close()
		return
	}
	logger := s.logger.With("session_id", uint64(sess.ID()))
	logger.Info("session connected", "nickname", sess.Nickname(), "remote_addr", r.RemoteAddr)

	m := NewMediator(MediatorConfig{
		Session:             sess,
		Registry:            reg,
		Signal:              t,
		Broadcaster:         s.cfg.Broadcaster,
		NewEstablisher:      s.cfg.NewEstablisher,
		NegotiationTimeout:  s.cfg.NegotiationTimeout,
		MaxChatMessageBytes: s.cfg.MaxChatMessageBytes,
		Logger:              s.logger,
		Metrics:             s.cfg.Metrics,
	})

	// The request context ends with the handler, so the mediator gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = m.Run(ctx)
	}()

	stopPing := s.keepalive(t, logger)
	s.readLoop(conn, m, t, logger)
	stopPing()

	m.TransportClosed()
	<-m.Done()
}

// keepalive pings the client until stopped. The read deadline, extended on
// every pong and message, closes connections that stop answering.
func (s *Server) keepalive(t *wsTransport, logger *slog.Logger) (stop func()) {
	_ = t.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := t.ping(); err != nil {
					logger.Debug("signaling ping failed", "err", err)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (s *Server) readLoop(conn *websocket.Conn, m *Mediator, t *wsTransport, logger *slog.Logger) {
	conn.SetReadLimit(s.cfg.MaxSignalingMessageBytes)
	limiter := rate.NewLimiter(rate.Limit(s.cfg.MaxSignalingMessagesPerSecond), s.cfg.MaxSignalingMessagesPerSecond)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				logger.Warn("signaling message too large", "max_bytes", s.cfg.MaxSignalingMessageBytes)
				_ = t.closeWith(websocket.CloseMessageTooBig, "message too large")
			case isTimeout(err):
				logger.Info("signaling websocket idle timeout")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				logger.Debug("signaling websocket closed", "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

		// Check the limit after reading so the frame is consumed and the client
		// sees the close frame instead of a reset.
		if !limiter.Allow() {
			s.cfg.Metrics.Inc(metrics.SignalingRateLimited)
			logger.Warn("signaling rate limit exceeded; closing", "max_per_second", s.cfg.MaxSignalingMessagesPerSecond)
			_ = t.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			logger.Debug("ignoring binary signaling frame", "bytes", len(data))
			continue
		}
		m.HandleFrame(data)
	}
}
