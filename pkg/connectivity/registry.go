package connectivity

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/omnichat-dev/omnichat/internal/observability"
	"github.com/omnichat-dev/omnichat/pkg/catalog"
)

// Prober verifies that the shared API credential works.
// chat.Client satisfies this.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Registry holds per-agent statuses, persists them on every change, and
// runs verification probes.
//
// Verification is deliberately coarse: one probe result is fanned out to
// every API-backed agent in the catalog, because API connectivity is one
// shared credential, not per-agent reachability. Web-embedded agents are
// never probed; only manual SetStatus applies to them.
type Registry struct {
	store   Store
	catalog *catalog.Catalog
	prober  Prober
	limiter *rate.Limiter

	mu       sync.Mutex
	statuses map[string]Status
	inflight chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithProbeLimit overrides the probe rate limiter. The default allows
// one probe every two seconds; verify actions inside that window are
// dropped rather than queued, except those overlapping an in-flight
// probe, which wait for its result.
func WithProbeLimit(l *rate.Limiter) RegistryOption {
	return func(r *Registry) { r.limiter = l }
}

// NewRegistry creates a registry over the given store, catalog, and
// prober. Call Load before first use to restore persisted statuses.
func NewRegistry(store Store, cat *catalog.Catalog, prober Prober, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:    store,
		catalog:  cat,
		prober:   prober,
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
		statuses: make(map[string]Status),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load restores the status map from the store. A missing or unreadable
// record is not fatal: it logs and starts from an empty map, so every
// agent reports the default disconnected status.
func (r *Registry) Load(ctx context.Context) {
	statuses, err := r.store.Load(ctx)
	if err != nil {
		log.Printf("connectivity: failed to restore statuses, starting empty: %v", err)
		statuses = make(map[string]Status)
	}

	// Drop unparsable values rather than carrying them forward.
	for id, s := range statuses {
		if !s.Valid() {
			log.Printf("connectivity: dropping unknown status %q for agent %s", s, id)
			delete(statuses, id)
		}
	}

	r.mu.Lock()
	r.statuses = statuses
	r.mu.Unlock()
}

// Status returns one agent's status, defaulting to disconnected.
func (r *Registry) Status(agentID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.statuses[agentID]; ok {
		return s
	}
	return StatusDisconnected
}

// Statuses returns a snapshot of all known statuses.
func (r *Registry) Statuses() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Status, len(r.statuses))
	for id, s := range r.statuses {
		out[id] = s
	}
	return out
}

// SetStatus overwrites one agent's status and persists the whole map.
func (r *Registry) SetStatus(ctx context.Context, agentID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	r.mu.Lock()
	r.statuses[agentID] = status
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	return r.persist(ctx, snapshot)
}

// Verify runs a connectivity check triggered for the given agent.
// For API-backed agents it marks every API-backed agent checking, runs
// one shared credential probe, and fans the single result out to all of
// them. For web-embedded or unknown agents it is a no-op.
//
// Concurrent verifies coalesce: a call arriving while a probe is in
// flight waits for that probe's result instead of starting another.
// After a probe resolves, further verifies inside the limiter window
// return immediately; the statuses they would produce are the ones
// already in place.
func (r *Registry) Verify(ctx context.Context, agentID string) {
	desc, ok := r.catalog.Get(agentID)
	if !ok || desc.Kind != catalog.KindAPIBacked {
		return
	}

	r.mu.Lock()
	if wait := r.inflight; wait != nil {
		r.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
		}
		return
	}
	if !r.limiter.Allow() {
		r.mu.Unlock()
		return
	}
	done := make(chan struct{})
	r.inflight = done

	apiAgents := r.catalog.APIBacked()
	for _, d := range apiAgents {
		r.statuses[d.ID] = StatusChecking
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inflight = nil
		r.mu.Unlock()
		close(done)
	}()

	if err := r.persist(ctx, snapshot); err != nil {
		log.Printf("connectivity: persist checking statuses: %v", err)
	}

	ok = r.prober.Probe(ctx)
	observability.RecordProbe(ok)

	result := StatusDisconnected
	if ok {
		result = StatusConnected
	}

	r.mu.Lock()
	for _, d := range apiAgents {
		r.statuses[d.ID] = result
	}
	snapshot = r.snapshotLocked()
	r.mu.Unlock()

	if err := r.persist(ctx, snapshot); err != nil {
		log.Printf("connectivity: persist probe result: %v", err)
	}
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}

func (r *Registry) snapshotLocked() map[string]Status {
	out := make(map[string]Status, len(r.statuses))
	for id, s := range r.statuses {
		out[id] = s
	}
	return out
}

func (r *Registry) persist(ctx context.Context, statuses map[string]Status) error {
	if err := r.store.Save(ctx, statuses); err != nil {
		return fmt.Errorf("persist statuses: %w", err)
	}
	return nil
}
