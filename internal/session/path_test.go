package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakePath records sent messages and forwards them to a channel.
type fakePath struct {
	mu      sync.Mutex
	open    bool
	sent    []string
	sendErr error
	closes  int

	ch chan string
}

func newFakePath() *fakePath {
	return &fakePath{open: true, ch: make(chan string, 64)}
}

func (p *fakePath) Send(msg string) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return errors.New("closed")
	}
	if p.sendErr != nil {
		err := p.sendErr
		p.mu.Unlock()
		return err
	}
	p.sent = append(p.sent, msg)
	p.mu.Unlock()
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

func (p *fakePath) setOpen(open bool) {
	p.mu.Lock()
	p.open = open
	p.mu.Unlock()
}

func (p *fakePath) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *fakePath) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-p.ch:
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (p *fakePath) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case got := <-p.ch:
		t.Fatalf("unexpected message %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}
