package session

import (
	"errors"
	"testing"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
)

func TestSession_DefaultNickname(t *testing.T) {
	s := New(7, newFakePath(), Options{})
	defer s.Close()
	if got := s.Nickname(); got != "User7" {
		t.Fatalf("Nickname=%q, want %q", got, "User7")
	}
	if s.IsAdmin() {
		t.Fatalf("IsAdmin=true, want false")
	}

	admin := New(8, newFakePath(), Options{Nickname: "Admin", Admin: true})
	defer admin.Close()
	if admin.Nickname() != "Admin" || !admin.IsAdmin() {
		t.Fatalf("admin session=%q/%v", admin.Nickname(), admin.IsAdmin())
	}
}

func TestSession_DeliversInOrderOverTransport(t *testing.T) {
	transport := newFakePath()
	s := New(1, transport, Options{})
	defer s.Close()

	for _, msg := range []string{"a", "b", "c"} {
		if !s.Deliver(msg) {
			t.Fatalf("Deliver(%q)=false", msg)
		}
	}
	transport.expect(t, "a")
	transport.expect(t, "b")
	transport.expect(t, "c")
}

func TestSession_PrefersOpenPeerChannel(t *testing.T) {
	transport := newFakePath()
	peer := newFakePath()
	s := New(1, transport, Options{})
	defer s.Close()

	s.AttachPeerChannel(peer)
	if !s.HasPeerChannel() {
		t.Fatalf("HasPeerChannel=false after attach")
	}
	s.Deliver("via peer")
	peer.expect(t, "via peer")
	transport.expectNothing(t)

	// A closed channel is never sent to; delivery falls back to the transport.
	peer.setOpen(false)
	s.Deliver("via transport")
	transport.expect(t, "via transport")
	peer.expectNothing(t)

	s.DetachPeerChannel(peer)
	if s.HasPeerChannel() {
		t.Fatalf("HasPeerChannel=true after detach")
	}
}

func TestSession_DetachIgnoresStaleChannel(t *testing.T) {
	s := New(1, newFakePath(), Options{})
	defer s.Close()

	first, second := newFakePath(), newFakePath()
	s.AttachPeerChannel(second)
	s.DetachPeerChannel(first)
	if !s.HasPeerChannel() {
		t.Fatalf("detaching a stale channel removed the current one")
	}
}

func TestSession_OutboxOverflowDrops(t *testing.T) {
	s := New(1, newFakePath(), Options{OutboxBytes: 4})
	defer s.Close()

	if s.Deliver("too long") {
		t.Fatalf("Deliver past the byte budget returned true")
	}
}

func TestSession_SendFailuresAreCounted(t *testing.T) {
	m := metrics.New()
	transport := newFakePath()
	transport.sendErr = errors.New("boom")
	s := New(1, transport, Options{Metrics: m})
	defer s.Close()

	s.Deliver("lost")
	deadline := time.Now().Add(2 * time.Second)
	for m.Get(metrics.SendFailed) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("send failure not counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	transport := newFakePath()
	s := New(1, transport, Options{})
	s.AttachPeerChannel(newFakePath())

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := transport.closeCount(); got != 1 {
		t.Fatalf("transport closed %d times, want 1", got)
	}
	if !s.Closed() || s.Reachable() || s.HasPeerChannel() {
		t.Fatalf("closed session still reachable")
	}
	if s.Deliver("late") {
		t.Fatalf("Deliver after Close returned true")
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("drain goroutine did not exit")
	}
}

func TestOutbox_FIFOAndClose(t *testing.T) {
	q := newOutbox(10)
	if !q.enqueue("abc") || !q.enqueue("defg") {
		t.Fatalf("enqueue within budget failed")
	}
	if q.enqueue("hijk") {
		t.Fatalf("enqueue over budget succeeded")
	}
	if got, _ := q.dequeue(); got != "abc" {
		t.Fatalf("dequeue=%q, want abc", got)
	}
	if q.pending() != 1 {
		t.Fatalf("pending=%d, want 1", q.pending())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.dequeue()
		if _, ok := q.dequeue(); ok {
			t.Errorf("dequeue after close returned ok")
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dequeue did not unblock on close")
	}
}
