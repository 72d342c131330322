package signaling

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/relay"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/webrtcpeer"
)

type testServer struct {
	reg     *session.Registry
	metrics *metrics.Metrics
	srv     *Server
	ts      *httptest.Server
}

func startTestServer(t *testing.T, maxSessions int, mutate func(*Config)) *testServer {
	t.Helper()

	m := metrics.New()
	reg := session.NewRegistry(maxSessions, m)
	cfg := Config{
		Registry:    reg,
		Broadcaster: relay.New(reg, nil, m),
		NewEstablisher: func(h webrtcpeer.Handler) (Establisher, error) {
			return &fakeEstablisher{handler: h, answer: "answer-sdp"}, nil
		},
		Metrics: m,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := NewServer(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testServer{reg: reg, metrics: m, srv: srv, ts: ts}
}

func (s *testServer) url(path string) string {
	return "ws" + strings.TrimPrefix(s.ts.URL, "http") + path
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(s.url(path), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", path, err, status)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (s *testServer) waitSessions(t *testing.T, n int) {
	t.Helper()
	eventually(t, "registered sessions", func() bool { return s.reg.Len() == n })
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if typ != websocket.TextMessage {
		t.Fatalf("message type=%d, want text", typ)
	}
	return string(data)
}

func expectClose(t *testing.T, c *websocket.Conn, code int) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := c.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if !errors.As(err, &ce) {
			t.Fatalf("read err=%v, want close %d", err, code)
		}
		if ce.Code != code {
			t.Fatalf("close code=%d (%q), want %d", ce.Code, ce.Text, code)
		}
		return
	}
}

func send(t *testing.T, c *websocket.Conn, msg string) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func TestServer_ChatBetweenTwoClients(t *testing.T) {
	s := startTestServer(t, 0, nil)

	a := s.dial(t, "/")
	s.waitSessions(t, 1)
	b := s.dial(t, "/webrtc/signal")
	s.waitSessions(t, 2)

	send(t, a, "hi")
	if got := readText(t, b); got != "User1: hi" {
		t.Fatalf("b got %q, want %q", got, "User1: hi")
	}

	send(t, a, "/name alice")
	send(t, a, "hi")
	if got := readText(t, b); got != "alice: hi" {
		t.Fatalf("b got %q, want %q", got, "alice: hi")
	}

	send(t, b, "hello")
	if got := readText(t, a); got != "User2: hello" {
		t.Fatalf("a got %q, want %q", got, "User2: hello")
	}
}

func TestServer_SenderDoesNotReceiveOwnChat(t *testing.T) {
	s := startTestServer(t, 0, nil)
	a := s.dial(t, "/")
	s.waitSessions(t, 1)

	send(t, a, "echo?")
	_ = a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := a.ReadMessage(); err == nil {
		t.Fatalf("sender received %q", data)
	}
}

func TestServer_OfferGetsAnswer(t *testing.T) {
	s := startTestServer(t, 0, nil)
	c := s.dial(t, "/")

	send(t, c, `{"type":"offer","sdp":"offer-sdp"}`)
	if got := readText(t, c); got != `{"type":"answer","sdp":"answer-sdp"}` {
		t.Fatalf("answer=%s", got)
	}
}

func TestServer_DisconnectUnregisters(t *testing.T) {
	s := startTestServer(t, 0, nil)
	c := s.dial(t, "/")
	s.waitSessions(t, 1)

	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.Close()
	s.waitSessions(t, 0)
}

func TestServer_ByeClosesConnection(t *testing.T) {
	s := startTestServer(t, 0, nil)
	c := s.dial(t, "/")
	s.waitSessions(t, 1)

	send(t, c, `{"type":"bye"}`)
	expectClose(t, c, websocket.CloseNormalClosure)
	s.waitSessions(t, 0)
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	s := startTestServer(t, 0, nil)

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(s.url("/"), h)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp=%v, want 403", resp)
	}
	if s.metrics.Get(metrics.OriginRejected) != 1 {
		t.Fatalf("origin_rejected=%d, want 1", s.metrics.Get(metrics.OriginRejected))
	}
	if s.reg.Len() != 0 {
		t.Fatalf("rejected origin registered a session")
	}
}

func TestServer_AllowsListedOrigin(t *testing.T) {
	s := startTestServer(t, 0, func(c *Config) {
		c.AllowedOrigins = []string{"https://chat.example"}
	})

	h := http.Header{}
	h.Set("Origin", "https://chat.example")
	c, _, err := websocket.DefaultDialer.Dial(s.url("/"), h)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	s.waitSessions(t, 1)
}

func TestServer_TooManySessions(t *testing.T) {
	s := startTestServer(t, 1, nil)
	s.dial(t, "/")
	s.waitSessions(t, 1)

	c := s.dial(t, "/")
	expectClose(t, c, websocket.CloseTryAgainLater)
	if s.reg.Len() != 1 {
		t.Fatalf("sessions=%d, want 1", s.reg.Len())
	}
}

func TestServer_RateLimitClosesConnection(t *testing.T) {
	s := startTestServer(t, 0, func(c *Config) {
		c.MaxSignalingMessagesPerSecond = 2
	})
	c := s.dial(t, "/")

	for i := 0; i < 5; i++ {
		_ = c.WriteMessage(websocket.TextMessage, []byte("spam"))
	}
	expectClose(t, c, websocket.ClosePolicyViolation)
	s.waitSessions(t, 0)
	if s.metrics.Get(metrics.SignalingRateLimited) != 1 {
		t.Fatalf("rate_limited=%d, want 1", s.metrics.Get(metrics.SignalingRateLimited))
	}
}

func TestServer_OversizedFrameClosesConnection(t *testing.T) {
	s := startTestServer(t, 0, func(c *Config) {
		c.MaxSignalingMessageBytes = 16
	})
	c := s.dial(t, "/")

	send(t, c, strings.Repeat("x", 64))
	expectClose(t, c, websocket.CloseMessageTooBig)
	s.waitSessions(t, 0)
}

func TestServer_IdleClientIsDropped(t *testing.T) {
	s := startTestServer(t, 0, func(c *Config) {
		c.IdleTimeout = 200 * time.Millisecond
		c.PingInterval = 50 * time.Millisecond
	})
	// Never reading means pings are never answered.
	s.dial(t, "/")
	s.waitSessions(t, 1)
	s.waitSessions(t, 0)
}

func TestServer_PongsKeepClientAlive(t *testing.T) {
	s := startTestServer(t, 0, func(c *Config) {
		c.IdleTimeout = 200 * time.Millisecond
		c.PingInterval = 50 * time.Millisecond
	})
	c := s.dial(t, "/")
	s.waitSessions(t, 1)

	// The default ping handler answers pings while the client reads.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(600 * time.Millisecond)
	if s.reg.Len() != 1 {
		t.Fatalf("responsive client dropped")
	}
}

func TestServer_CloseDisconnectsClients(t *testing.T) {
	s := startTestServer(t, 0, nil)
	c := s.dial(t, "/")
	s.waitSessions(t, 1)

	s.srv.Close()
	expectClose(t, c, websocket.CloseGoingAway)
	s.waitSessions(t, 0)
}
