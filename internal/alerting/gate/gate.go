// Package gate decides which health events become notifications.
//
// A transition (new problem, change of problem, recovery) always passes.
// A re-fire of an ongoing problem passes only once the cool-down since the
// last successful notification for the same (node, status) key has elapsed.
// A transition whose delivery failed stays pending and passes on the next
// evaluation of the same key, UP included, until it is delivered or the node
// moves on. Records live in memory and are written through to an AlertStore so a
// restart does not re-notify ongoing problems.
package gate

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
)

const (
	shardCount   = 32
	storeTimeout = 3 * time.Second
)

// Decision is the outcome of NotifyIfDue.
type Decision int

const (
	Suppress Decision = iota
	Send
)

func (d Decision) String() string {
	if d == Send {
		return "send"
	}
	return "suppress"
}

type shard struct {
	mu       sync.Mutex
	records  map[domain.AlertKey]time.Time
	inflight map[domain.AlertKey]int
	// pending holds transitions that were decided but not yet delivered.
	pending map[domain.AlertKey]bool
}

// Gate is safe for concurrent use. Calls for different keys only contend
// when the keys hash to the same shard.
type Gate struct {
	shards [shardCount]*shard
	store  storage.AlertStore
	log    *slog.Logger
}

// New creates a gate backed by store. store may be nil.
func New(store storage.AlertStore, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	g := &Gate{
		store: store,
		log:   log.With("component", "gate"),
	}
	for i := range g.shards {
		g.shards[i] = &shard{
			records:  make(map[domain.AlertKey]time.Time),
			inflight: make(map[domain.AlertKey]int),
			pending:  make(map[domain.AlertKey]bool),
		}
	}
	return g
}

// Load seeds the in-memory records from the store.
func (g *Gate) Load(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	recs, err := g.store.LoadAlerts(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		s := g.shardFor(rec.Key)
		s.mu.Lock()
		if prev, ok := s.records[rec.Key]; !ok || rec.SentAt.After(prev) {
			s.records[rec.Key] = rec.SentAt
		}
		s.mu.Unlock()
	}
	g.log.Debug("Loaded alert records", "count", len(recs))
	return nil
}

func (g *Gate) shardFor(key domain.AlertKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.NodeID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Status))
	return g.shards[h.Sum32()%shardCount]
}

// NotifyIfDue decides whether an alert for key should go out now. A Send
// decision marks the key in flight until MarkSent or MarkFailed.
func (g *Gate) NotifyIfDue(key domain.AlertKey, transition bool, cooldown time.Duration, now time.Time) Decision {
	if transition {
		// A new transition supersedes undelivered ones of the same node.
		g.clearPending(key.NodeID)
	}

	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if transition {
		s.pending[key] = true
		s.inflight[key]++
		return Send
	}

	if s.inflight[key] > 0 {
		return Suppress
	}
	if !s.pending[key] {
		if !key.Status.IsProblem() {
			return Suppress
		}
		if last, ok := s.records[key]; ok && now.Sub(last) < cooldown {
			return Suppress
		}
	}

	s.inflight[key]++
	return Send
}

// Pending reports whether a transition for key was decided but never
// delivered.
func (g *Gate) Pending(key domain.AlertKey) bool {
	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[key]
}

func (g *Gate) clearPending(node domain.NodeID) {
	for _, st := range domain.AllStatuses {
		key := domain.AlertKey{NodeID: node, Status: st}
		s := g.shardFor(key)
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}
}

// MarkSent records a delivered alert. at is the time the decision was made,
// so the cool-down is measured on the observation clock.
func (g *Gate) MarkSent(key domain.AlertKey, at time.Time) {
	s := g.shardFor(key)
	s.mu.Lock()
	s.release(key)
	delete(s.pending, key)
	if prev, ok := s.records[key]; !ok || at.After(prev) {
		s.records[key] = at
	}
	s.mu.Unlock()

	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := g.store.SaveAlert(ctx, domain.AlertRecord{Key: key, SentAt: at}); err != nil {
		g.log.Warn("Failed to persist alert record", "key", key.String(), "error", err)
	}
}

// MarkFailed releases the in-flight mark and leaves the record untouched, so
// the next eligible evaluation retries. A failed transition stays pending.
func (g *Gate) MarkFailed(key domain.AlertKey) {
	s := g.shardFor(key)
	s.mu.Lock()
	s.release(key)
	s.mu.Unlock()
}

func (s *shard) release(key domain.AlertKey) {
	if s.inflight[key] <= 1 {
		delete(s.inflight, key)
		return
	}
	s.inflight[key]--
}

// Resolve forgets every record of a node once it is back UP, so the next
// occurrence of a problem starts a fresh cool-down.
func (g *Gate) Resolve(node domain.NodeID) {
	for _, st := range domain.AllStatuses {
		key := domain.AlertKey{NodeID: node, Status: st}
		s := g.shardFor(key)
		s.mu.Lock()
		delete(s.records, key)
		s.mu.Unlock()
	}

	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := g.store.DeleteNodeAlerts(ctx, node); err != nil {
		g.log.Warn("Failed to delete alert records", "node", node, "error", err)
	}
}

// LastSent returns the time of the last recorded notification for key.
func (g *Gate) LastSent(key domain.AlertKey) (time.Time, bool) {
	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[key]
	return t, ok
}
