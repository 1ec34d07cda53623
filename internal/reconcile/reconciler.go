// Package reconcile turns raw opportunity snapshots into stable,
// change-annotated state. The backend always pushes the complete current
// set, so every update is a local diff against the previously rendered set,
// joined by opportunity ID rather than position.
package reconcile

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbdash/internal/domain"
)

// DefaultEmphasisWindow is how long a change emphasis stays visible before
// it decays back to none.
const DefaultEmphasisWindow = 500 * time.Millisecond

// ChangeFunc is invoked with a copy of the reconciled set after every state
// change (new snapshot or emphasis decay). It runs off the reconciler lock.
type ChangeFunc func([]domain.ReconciledOpportunity)

// Reconciler holds the rendered opportunity set and classifies each incoming
// record against its predecessor. Safe for concurrent use.
type Reconciler struct {
	window   time.Duration
	logger   *slog.Logger
	onChange ChangeFunc

	mu      sync.Mutex
	current []domain.ReconciledOpportunity
	decay   *time.Timer
}

// New creates a Reconciler with the given emphasis window; window <= 0 uses
// DefaultEmphasisWindow. onChange may be nil.
func New(window time.Duration, onChange ChangeFunc, logger *slog.Logger) *Reconciler {
	if window <= 0 {
		window = DefaultEmphasisWindow
	}
	return &Reconciler{
		window:   window,
		logger:   logger.With(slog.String("component", "reconcile")),
		onChange: onChange,
	}
}

// Apply replaces the rendered set with the incoming snapshot, classifying
// each record against the previous record with the same ID: spread strictly
// up is increased, strictly down is decreased, otherwise none. Records
// appearing for the first time are never emphasized; records absent from the
// snapshot are dropped silently. A single decay timer clears all emphasis
// after the window; an earlier pending timer is superseded.
func (r *Reconciler) Apply(snapshot []domain.Opportunity) {
	r.mu.Lock()

	prev := make(map[string]string, len(r.current))
	for _, rec := range r.current {
		prev[rec.ID] = rec.SpreadPercentage
	}

	now := time.Now()
	next := make([]domain.ReconciledOpportunity, 0, len(snapshot))
	emphasized := false

	for _, opp := range snapshot {
		rec := domain.ReconciledOpportunity{Opportunity: opp, Emphasis: domain.EmphasisNone}
		if prevSpread, ok := prev[opp.ID]; ok {
			rec.Emphasis = r.classify(opp.ID, prevSpread, opp.SpreadPercentage)
		}
		if rec.Emphasis != domain.EmphasisNone {
			rec.EmphasizedAt = now
			emphasized = true
		}
		next = append(next, rec)
	}

	r.current = next

	if r.decay != nil {
		r.decay.Stop()
		r.decay = nil
	}
	if emphasized {
		r.decay = time.AfterFunc(r.window, r.clearEmphasis)
	}

	out := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(out)
}

// Current returns a copy of the reconciled set.
func (r *Reconciler) Current() []domain.ReconciledOpportunity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Close cancels any pending decay timer.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decay != nil {
		r.decay.Stop()
		r.decay = nil
	}
}

// classify compares two decimal-string spreads. Malformed values are a
// data-quality problem on the backend side: they are logged and treated as
// no change, never a failure.
func (r *Reconciler) classify(id, prevSpread, newSpread string) domain.Emphasis {
	prevVal, err := decimal.NewFromString(strings.TrimSpace(prevSpread))
	if err != nil {
		r.logger.Warn("malformed previous spread, skipping emphasis",
			slog.String("opportunity_id", id),
			slog.String("spread", prevSpread),
		)
		return domain.EmphasisNone
	}

	newVal, err := decimal.NewFromString(strings.TrimSpace(newSpread))
	if err != nil {
		r.logger.Warn("malformed spread, skipping emphasis",
			slog.String("opportunity_id", id),
			slog.String("spread", newSpread),
		)
		return domain.EmphasisNone
	}

	switch newVal.Cmp(prevVal) {
	case 1:
		return domain.EmphasisIncreased
	case -1:
		return domain.EmphasisDecreased
	default:
		return domain.EmphasisNone
	}
}

// clearEmphasis resets every emphasis to none without touching any other
// field. Fired by the decay timer.
func (r *Reconciler) clearEmphasis() {
	r.mu.Lock()

	for i := range r.current {
		r.current[i].Emphasis = domain.EmphasisNone
		r.current[i].EmphasizedAt = time.Time{}
	}
	r.decay = nil

	out := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(out)
}

// snapshotLocked copies the current set. Caller must hold r.mu.
func (r *Reconciler) snapshotLocked() []domain.ReconciledOpportunity {
	out := make([]domain.ReconciledOpportunity, len(r.current))
	copy(out, r.current)
	return out
}

func (r *Reconciler) notify(set []domain.ReconciledOpportunity) {
	if r.onChange != nil {
		r.onChange(set)
	}
}
