package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Fanout delivers an encoded frame to every connection of a tenant and
// returns how many transports accepted it.
type Fanout interface {
	Broadcast(tenantID string, payload []byte) int
}

// Registry maintains active connections grouped by tenant.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]map[*Conn]struct{}
	// owner remembers which tenant set a connection is in.
	owner  map[*Conn]string
	logger *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tenants: make(map[string]map[*Conn]struct{}),
		owner:   make(map[*Conn]string),
		logger:  logger,
	}
}

// Add inserts a connection under a tenant, moving it if it was registered elsewhere.
func (r *Registry) Add(tenantID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[c]; ok && prev != tenantID {
		r.removeLocked(c)
	}
	if _, ok := r.tenants[tenantID]; !ok {
		r.tenants[tenantID] = make(map[*Conn]struct{})
	}
	r.tenants[tenantID][c] = struct{}{}
	r.owner[c] = tenantID

	r.logger.Debug("connection registered",
		zap.String("conn", c.ID),
		zap.String("tenant", tenantID),
		zap.Int("tenant_connections", len(r.tenants[tenantID])),
	)
}

// Remove drops a connection; if its tenant has no more connections, the set is deleted.
// Removing an unknown connection is a no-op.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c)
}

func (r *Registry) removeLocked(c *Conn) {
	tenantID, ok := r.owner[c]
	if !ok {
		return
	}
	delete(r.owner, c)
	if set, ok := r.tenants[tenantID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.tenants, tenantID)
		}
	}
	r.logger.Debug("connection unregistered", zap.String("conn", c.ID), zap.String("tenant", tenantID))
}

// Broadcast sends payload to every open connection of a tenant.
// The set is snapshotted first so sends never run under the lock.
func (r *Registry) Broadcast(tenantID string, payload []byte) int {
	r.mu.RLock()
	set := r.tenants[tenantID]
	targets := make([]*Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	sent := 0
	for _, c := range targets {
		if !c.Open() {
			continue
		}
		if c.Send(payload) {
			sent++
		}
	}
	r.logger.Debug("broadcast",
		zap.String("tenant", tenantID),
		zap.Int("targets", len(targets)),
		zap.Int("sent", sent),
	)
	return sent
}

// Has reports whether the tenant has at least one registered connection.
func (r *Registry) Has(tenantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tenants[tenantID]
	return ok
}

// Count returns the number of connections registered for a tenant.
func (r *Registry) Count(tenantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants[tenantID])
}

// Len returns the total number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

// Tenants returns the number of tenants with at least one connection.
func (r *Registry) Tenants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}

// Snapshot returns every registered connection.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.owner))
	for c := range r.owner {
		out = append(out, c)
	}
	return out
}

var _ Fanout = (*Registry)(nil)
