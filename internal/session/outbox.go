package session

import "sync"

// outbox is a byte-bounded FIFO of outbound chat lines.
//
// Enqueue never blocks so a slow recipient cannot stall a broadcast; lines
// that do not fit are rejected.
type outbox struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool

	maxBytes int
	curBytes int
	msgs     []string
}

func newOutbox(maxBytes int) *outbox {
	q := &outbox{maxBytes: maxBytes}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *outbox) enqueue(msg string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.curBytes+len(msg) > q.maxBytes {
		return false
	}
	q.msgs = append(q.msgs, msg)
	q.curBytes += len(msg)
	q.notEmpty.Signal()
	return true
}

// dequeue blocks until a line is available. It returns false once the outbox
// is closed.
func (q *outbox) dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.msgs) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.closed {
		return "", false
	}
	msg := q.msgs[0]
	q.msgs[0] = ""
	q.msgs = q.msgs[1:]
	q.curBytes -= len(msg)
	return msg, true
}

func (q *outbox) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// close discards anything still queued and wakes the drain goroutine.
func (q *outbox) close() {
	q.mu.Lock()
	q.closed = true
	q.msgs = nil
	q.curBytes = 0
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}
