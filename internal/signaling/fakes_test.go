package signaling

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/webrtcpeer"
)

type fakePath struct {
	mu     sync.Mutex
	open   bool
	closes int
	ch     chan string
}

func newFakePath() *fakePath {
	return &fakePath{open: true, ch: make(chan string, 64)}
}

func (p *fakePath) Send(msg string) error {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()
	if !open {
		return errors.New("closed")
	}
	p.ch <- msg
	return nil
}

func (p *fakePath) Open() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *fakePath) Close() error {
	p.mu.Lock()
	p.open = false
	p.closes++
	p.mu.Unlock()
	return nil
}

func (p *fakePath) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-p.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for outbound message")
		return ""
	}
}

type fakeEstablisher struct {
	handler webrtcpeer.Handler

	mu         sync.Mutex
	offers     []string
	candidates []webrtc.ICECandidateInit
	closes     int

	answer       string
	acceptErr    error
	candidateErr error
	acceptPanic  bool
	onAccept     func()
}

func (e *fakeEstablisher) AcceptOffer(sdp string) (string, error) {
	e.mu.Lock()
	e.offers = append(e.offers, sdp)
	onAccept := e.onAccept
	e.mu.Unlock()
	if onAccept != nil {
		onAccept()
	}
	if e.acceptPanic {
		panic("pion exploded")
	}
	if e.acceptErr != nil {
		return "", e.acceptErr
	}
	return e.answer, nil
}

func (e *fakeEstablisher) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.candidateErr != nil {
		return e.candidateErr
	}
	e.candidates = append(e.candidates, c)
	return nil
}

func (e *fakeEstablisher) Close() error {
	e.mu.Lock()
	e.closes++
	e.mu.Unlock()
	return nil
}

func (e *fakeEstablisher) closeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

func (e *fakeEstablisher) candidateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.candidates)
}

type broadcastCall struct {
	msg     string
	exclude session.ID
}

type fakeBroadcaster struct {
	ch chan broadcastCall
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan broadcastCall, 64)}
}

func (b *fakeBroadcaster) Broadcast(msg string, exclude session.ID) int {
	b.ch <- broadcastCall{msg: msg, exclude: exclude}
	return 1
}

func (b *fakeBroadcaster) next(t *testing.T) broadcastCall {
	t.Helper()
	select {
	case c := <-b.ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for broadcast")
		return broadcastCall{}
	}
}

func (b *fakeBroadcaster) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-b.ch:
		t.Fatalf("unexpected broadcast %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
