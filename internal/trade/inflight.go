package trade

import "sync"

// inflight tracks opportunity IDs with an outstanding execution request so a
// duplicate submission cannot slip through while the first is in the air.
// Safe for concurrent use.
type inflight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{active: make(map[string]struct{})}
}

// tryAcquire marks the opportunity as in flight. Returns false if it already
// is.
func (g *inflight) tryAcquire(opportunityID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.active[opportunityID]; ok {
		return false
	}
	g.active[opportunityID] = struct{}{}
	return true
}

// release frees the opportunity for a future submission.
func (g *inflight) release(opportunityID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, opportunityID)
}
