package session

import (
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
)

// Registry tracks the registered sessions of one relay process.
type Registry struct {
	maxSessions int
	metrics     *metrics.Metrics

	nextID atomic.Uint64

	mu    sync.RWMutex
	byID  map[ID]*Session
	order []*Session
}

// NewRegistry returns an empty registry. maxSessions <= 0 means unlimited.
func NewRegistry(maxSessions int, m *metrics.Metrics) *Registry {
	return &Registry{
		maxSessions: maxSessions,
		metrics:     m,
		byID:        make(map[ID]*Session),
	}
}

// NextID allocates the next session id. Ids start at 1 and are never reused.
func (r *Registry) NextID() ID {
	return ID(r.nextID.Add(1))
}

func (r *Registry) Register(s *Session) error {
	if s.Closed() {
		r.metrics.Inc(metrics.SessionRejected)
		return ErrSessionClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.id]; ok {
		r.metrics.Inc(metrics.SessionRejected)
		return ErrDuplicateID
	}
	if r.maxSessions > 0 && len(r.byID) >= r.maxSessions {
		r.metrics.Inc(metrics.SessionRejected)
		return ErrTooManySessions
	}
	r.byID[s.id] = s
	r.order = append(r.order, s)
	r.metrics.Inc(metrics.SessionRegistered)
	return nil
}

// Unregister removes id. Unknown ids are ignored.
func (r *Registry) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(other *Session) bool { return other == s })
	r.metrics.Inc(metrics.SessionUnregistered)
}

func (r *Registry) Get(id ID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Rename validates name and sets it as the nickname of session id.
func (r *Registry) Rename(id ID, name string) error {
	s, ok := r.Get(id)
	if !ok {
		r.metrics.Inc(metrics.RenameRejected)
		return ErrNotFound
	}
	name, err := ValidateNickname(name)
	if err != nil {
		r.metrics.Inc(metrics.RenameRejected)
		return err
	}
	s.setNickname(name)
	r.metrics.Inc(metrics.Rename)
	return nil
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ForEach calls visit for each session registered at the time of the call, in
// registration order, until visit returns false. visit runs without the
// registry lock held.
func (r *Registry) ForEach(visit func(*Session) bool) {
	for _, s := range r.snapshot() {
		if !visit(s) {
			return
		}
	}
}

// All returns an iterator over a fresh snapshot each time it is ranged over.
func (r *Registry) All() iter.Seq[*Session] {
	return r.ForEach
}

// Snapshot returns the registered sessions in registration order.
func (r *Registry) Snapshot() []*Session {
	return r.snapshot()
}
