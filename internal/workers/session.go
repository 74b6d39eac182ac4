package workers

import (
	"sync"
	"time"
)

// sessionHandle serializes dispatch for one WhatsApp session: a session can
// only have one message in flight at a time, and consecutive sends must
// observe a mandatory minimum delay so the session isn't flagged by the
// upstream provider for bursty behavior. This guarantee is per-process
// only — running multiple worker replicas against the same session name
// would need a distributed lock, which is out of scope here.
type sessionHandle struct {
	mu           sync.Mutex
	nextSendOK   time.Time
	interMessage time.Duration
}

// sessionRegistry hands out a sessionHandle per session name, creating one
// on first use.
type sessionRegistry struct {
	delay time.Duration
	mu    sync.Mutex
	byKey map[string]*sessionHandle
}

func newSessionRegistry(interMessageDelay time.Duration) *sessionRegistry {
	return &sessionRegistry{delay: interMessageDelay, byKey: make(map[string]*sessionHandle)}
}

func (r *sessionRegistry) get(sessionKey string) *sessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byKey[sessionKey]
	if !ok {
		h = &sessionHandle{interMessage: r.delay}
		r.byKey[sessionKey] = h
	}
	return h
}

// acquire blocks until it is this caller's turn to send on the session,
// honoring both mutual exclusion and the minimum inter-message delay, and
// returns a release function the caller must call exactly once after the
// provider call returns (success or failure).
func (h *sessionHandle) acquire() func() {
	h.mu.Lock()
	if wait := time.Until(h.nextSendOK); wait > 0 {
		time.Sleep(wait)
	}
	return func() {
		h.nextSendOK = time.Now().Add(h.interMessage)
		h.mu.Unlock()
	}
}
