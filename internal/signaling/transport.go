package signaling

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 1 * time.Second

var errTransportClosed = errors.New("transport closed")

// wsTransport is the session.Path over the signaling WebSocket. Writes are
// serialized and bounded by a deadline so a stalled client cannot hold a
// writer forever.
type wsTransport struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(msg string) error {
	if t.closed.Load() {
		return errTransportClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (t *wsTransport) Open() bool {
	return !t.closed.Load()
}

func (t *wsTransport) ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// Close sends a normal closure frame and closes the connection.
func (t *wsTransport) Close() error {
	return t.closeWith(websocket.CloseNormalClosure, "")
}

func (t *wsTransport) closeWith(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
