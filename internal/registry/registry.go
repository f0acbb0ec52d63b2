// Package registry owns the live configuration snapshot of a namespace.
//
// The registry state (current snapshot, rollback history, kill switch) lives
// behind a single atomic pointer. Readers load the pointer and never block.
// Writers build a complete new state and publish it with one store; compound
// writers are serialised by a mutex so history is never lost.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/google/uuid"
)

// DefaultHistoryDepth is the number of prior snapshots kept for rollback.
const DefaultHistoryDepth = 10

// ErrRollbackUnavailable is returned when fewer snapshots are retained than requested.
var ErrRollbackUnavailable = errors.New("rollback unavailable")

// HistoryEntry describes a retained snapshot.
type HistoryEntry struct {
	Revision     uuid.UUID `json:"revision"`
	Version      string    `json:"version"`
	FeatureCount int       `json:"featureCount"`
	LoadedAt     time.Time `json:"loadedAt"`
}

type revision struct {
	HistoryEntry
	snapshot *domain.Snapshot
}

type state struct {
	current revision
	history []revision // oldest first
	enabled bool
}

// View is a consistent read of the registry taken from a single pointer load.
type View struct {
	Snapshot *domain.Snapshot
	Enabled  bool
	Revision HistoryEntry
}

// Registry is the per-namespace configuration holder.
type Registry struct {
	namespace string
	depth     int
	now       func() time.Time

	mu    sync.Mutex
	state atomic.Pointer[state]
}

// Option configures a Registry.
type Option func(*Registry)

// WithHistoryDepth bounds the rollback history. Zero disables history.
func WithHistoryDepth(depth int) Option {
	return func(r *Registry) {
		if depth >= 0 {
			r.depth = depth
		}
	}
}

// WithClock overrides the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an enabled registry holding an empty snapshot.
func New(namespace string, opts ...Option) *Registry {
	r := &Registry{
		namespace: namespace,
		depth:     DefaultHistoryDepth,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.state.Store(&state{
		current: r.revisionOf(domain.EmptySnapshot(namespace)),
		enabled: true,
	})
	return r
}

func (r *Registry) revisionOf(s *domain.Snapshot) revision {
	return revision{
		HistoryEntry: HistoryEntry{
			Revision:     uuid.New(),
			Version:      s.Version(),
			FeatureCount: s.Len(),
			LoadedAt:     r.now(),
		},
		snapshot: s,
	}
}

// Namespace returns the namespace this registry serves.
func (r *Registry) Namespace() string { return r.namespace }

// HistoryDepth returns the configured rollback depth.
func (r *Registry) HistoryDepth() int { return r.depth }

// Current returns the live snapshot without locking.
func (r *Registry) Current() *domain.Snapshot {
	return r.state.Load().current.snapshot
}

// Enabled reports whether the kill switch is off.
func (r *Registry) Enabled() bool {
	return r.state.Load().enabled
}

// View returns the snapshot and kill switch as one consistent pair.
func (r *Registry) View() View {
	st := r.state.Load()
	return View{Snapshot: st.current.snapshot, Enabled: st.enabled, Revision: st.current.HistoryEntry}
}

// Load replaces the whole configuration with s and pushes the prior snapshot
// onto the history.
func (r *Registry) Load(s *domain.Snapshot) (HistoryEntry, error) {
	if err := r.check(s); err != nil {
		return HistoryEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.install(r.state.Load(), s)
	return next.current.HistoryEntry, nil
}

// Patch overlays p on the current snapshot and installs the result the same
// way Load does. On error the registry is unchanged.
func (r *Registry) Patch(p domain.Patch) (HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	merged, err := cur.current.snapshot.Apply(p)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to apply patch: %w", err)
	}

	next := r.install(cur, merged)
	return next.current.HistoryEntry, nil
}

// install publishes s as current. Callers hold r.mu.
func (r *Registry) install(cur *state, s *domain.Snapshot) *state {
	history := append(slices.Clone(cur.history), cur.current)
	if excess := len(history) - r.depth; excess > 0 {
		history = history[excess:]
	}

	next := &state{
		current: r.revisionOf(s),
		history: history,
		enabled: cur.enabled,
	}
	r.state.Store(next)
	return next
}

// Rollback restores the snapshot retained steps loads ago. The restored
// entry and every newer one leave the history; the current snapshot is
// discarded. If fewer than steps entries are retained nothing changes.
func (r *Registry) Rollback(steps int) (HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	if steps < 1 || steps > len(cur.history) {
		return HistoryEntry{}, fmt.Errorf("%w: requested %d steps, %d retained", ErrRollbackUnavailable, steps, len(cur.history))
	}

	idx := len(cur.history) - steps
	next := &state{
		current: cur.history[idx],
		history: slices.Clone(cur.history[:idx]),
		enabled: cur.enabled,
	}
	r.state.Store(next)
	return next.current.HistoryEntry, nil
}

// Disable turns the kill switch on: every toggle resolves to its default.
func (r *Registry) Disable() { r.setEnabled(false) }

// Enable turns the kill switch off.
func (r *Registry) Enable() { r.setEnabled(true) }

func (r *Registry) setEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	if cur.enabled == enabled {
		return
	}
	next := *cur
	next.enabled = enabled
	r.state.Store(&next)
}

// History returns the retained rollback points, newest first, so that
// History()[n-1] is what Rollback(n) restores.
func (r *Registry) History() []HistoryEntry {
	st := r.state.Load()
	out := make([]HistoryEntry, 0, len(st.history))
	for i := len(st.history) - 1; i >= 0; i-- {
		out = append(out, st.history[i].HistoryEntry)
	}
	return out
}

func (r *Registry) check(s *domain.Snapshot) error {
	if s == nil {
		return domain.NewValidationError("cannot load a nil snapshot")
	}
	if s.Namespace() != r.namespace {
		return fmt.Errorf("snapshot for %q loaded into %q: %w", s.Namespace(), r.namespace, domain.ErrNamespaceMismatch)
	}
	return nil
}
