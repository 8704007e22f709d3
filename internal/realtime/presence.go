// Package realtime implements the websocket hub: presence tracking,
// per-user and per-role rooms, and best-effort publishes into them.
package realtime

import "sync"

// Presence tracks which user identities currently hold open connections.
// A user may have several simultaneous sessions, so each identity maps to a
// set of handles. State is process-local and rebuilt empty on restart;
// clients reconnect and re-register.
type Presence struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{conns: make(map[string]map[*Client]struct{})}
}

// Register adds a handle under the user's entry. Always succeeds.
func (p *Presence) Register(userID string, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		p.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a handle. Removing the last handle removes the entry.
// Unregistering an absent handle is a no-op.
func (p *Presence) Unregister(userID string, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(p.conns, userID)
	}
}

// IsPresent reports whether at least one handle is registered for the user.
func (p *Presence) IsPresent(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// HandlesFor returns the user's registered handles; empty when absent.
func (p *Presence) HandlesFor(userID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	handles := make([]*Client, 0, len(p.conns[userID]))
	for c := range p.conns[userID] {
		handles = append(handles, c)
	}
	return handles
}
