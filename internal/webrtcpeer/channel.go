package webrtcpeer

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// DataChannelLabelChat is the label of the chat DataChannel, created by the
// relay and accepted when the client creates it.
const DataChannelLabelChat = "chat"

var ErrChannelNotOpen = errors.New("chat channel not open")

// Channel adapts a chat DataChannel to session.Path.
type Channel struct {
	dc *webrtc.DataChannel
}

func (c *Channel) Send(msg string) error { return c.dc.SendText(msg) }

func (c *Channel) Open() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *Channel) Close() error { return c.dc.Close() }

// chatPath is the session.Path a Peer reports. It sends on the client-created
// chat channel while that one is open and on the relay-created one otherwise,
// so a client that only listens on the channel it created still gets chat.
type chatPath struct {
	p *Peer
}

func (c *chatPath) current() *Channel {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if c.p.remote != nil && c.p.remote.Open() {
		return c.p.remote
	}
	if c.p.local != nil && c.p.local.Open() {
		return c.p.local
	}
	return nil
}

func (c *chatPath) Send(msg string) error {
	ch := c.current()
	if ch == nil {
		return ErrChannelNotOpen
	}
	return ch.Send(msg)
}

func (c *chatPath) Open() bool { return c.current() != nil }

func (c *chatPath) Close() error {
	c.p.mu.Lock()
	channels := []*Channel{c.p.remote, c.p.local}
	c.p.mu.Unlock()

	var errs []error
	for _, ch := range channels {
		if ch != nil {
			errs = append(errs, ch.Close())
		}
	}
	return errors.Join(errs...)
}
