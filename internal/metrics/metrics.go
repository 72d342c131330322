package metrics

import "sync"

// Event names counted by the relay.
const (
	SessionRegistered   = "session_registered"
	SessionUnregistered = "session_unregistered"
	SessionRejected     = "session_rejected"

	OfferReceived      = "offer_received"
	AnswerSent         = "answer_sent"
	CandidateReceived  = "candidate_received"
	CandidateSent      = "candidate_sent"
	NegotiationFailure = "negotiation_failure"
	ProtocolError      = "protocol_error"

	PeerChannelOpened = "peer_channel_opened"
	PeerChannelClosed = "peer_channel_closed"

	ChatReceived       = "chat_received"
	ChatTooLarge       = "chat_too_large"
	Broadcast          = "broadcast"
	BroadcastDelivered = "broadcast_delivered"
	BroadcastDropped   = "broadcast_dropped"
	SendFailed         = "send_failed"

	Rename         = "rename"
	RenameRejected = "rename_rejected"
	AdminBroadcast = "admin_broadcast"

	SignalingRateLimited = "signaling_rate_limited"
	OriginRejected       = "origin_rejected"
)

// Metrics is a concurrency-safe set of named counters.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc and Add are no-ops on a nil *Metrics so components can run without one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil || delta == 0 {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return map[string]uint64{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
