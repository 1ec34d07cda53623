package reconcile

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbdash/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func opp(id, spread string) domain.Opportunity {
	return domain.Opportunity{
		ID:               id,
		SpreadPercentage: spread,
		IsActive:         true,
	}
}

func emphasisByID(set []domain.ReconciledOpportunity) map[string]domain.Emphasis {
	out := make(map[string]domain.Emphasis, len(set))
	for _, rec := range set {
		out[rec.ID] = rec.Emphasis
	}
	return out
}

func TestApplyFirstSnapshotNeverEmphasized(t *testing.T) {
	r := New(time.Minute, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.25"), opp("b", "0.80")})

	set := r.Current()
	require.Len(t, set, 2)
	for _, rec := range set {
		assert.Equal(t, domain.EmphasisNone, rec.Emphasis)
		assert.True(t, rec.EmphasizedAt.IsZero())
	}
}

func TestApplyClassifiesSpreadChanges(t *testing.T) {
	r := New(time.Minute, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.25"), opp("b", "2.00"), opp("c", "0.50")})
	r.Apply([]domain.Opportunity{opp("a", "1.50"), opp("b", "1.75"), opp("c", "0.50"), opp("d", "9.99")})

	got := emphasisByID(r.Current())
	assert.Equal(t, domain.EmphasisIncreased, got["a"])
	assert.Equal(t, domain.EmphasisDecreased, got["b"])
	assert.Equal(t, domain.EmphasisNone, got["c"])
	// New record in a later snapshot: present but never emphasized.
	assert.Equal(t, domain.EmphasisNone, got["d"])
}

func TestApplyEquivalentDecimalStringsAreNoChange(t *testing.T) {
	r := New(time.Minute, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.50")})
	r.Apply([]domain.Opportunity{opp("a", "1.5000")})

	got := emphasisByID(r.Current())
	assert.Equal(t, domain.EmphasisNone, got["a"])
}

func TestApplyDropsRecordsAbsentFromSnapshot(t *testing.T) {
	r := New(time.Minute, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.25"), opp("b", "2.00")})
	r.Apply([]domain.Opportunity{opp("a", "1.25")})

	set := r.Current()
	require.Len(t, set, 1)
	assert.Equal(t, "a", set[0].ID)
}

func TestApplyMalformedSpreadSkipsEmphasis(t *testing.T) {
	r := New(time.Minute, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "not-a-number"), opp("b", "1.00")})
	r.Apply([]domain.Opportunity{opp("a", "2.00"), opp("b", "garbage")})

	got := emphasisByID(r.Current())
	assert.Equal(t, domain.EmphasisNone, got["a"])
	assert.Equal(t, domain.EmphasisNone, got["b"])
}

func TestEmphasisDecaysAfterWindow(t *testing.T) {
	r := New(30*time.Millisecond, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.00")})
	r.Apply([]domain.Opportunity{opp("a", "2.00")})

	got := emphasisByID(r.Current())
	require.Equal(t, domain.EmphasisIncreased, got["a"])

	require.Eventually(t, func() bool {
		set := r.Current()
		return len(set) == 1 && set[0].Emphasis == domain.EmphasisNone && set[0].EmphasizedAt.IsZero()
	}, time.Second, 5*time.Millisecond)

	// Record fields other than emphasis survive the decay untouched.
	set := r.Current()
	assert.Equal(t, "2.00", set[0].SpreadPercentage)
}

func TestNewSnapshotSupersedesPendingDecay(t *testing.T) {
	r := New(100*time.Millisecond, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.00")})
	r.Apply([]domain.Opportunity{opp("a", "2.00")})

	// Re-emphasize halfway through the window; the first timer must not
	// clear the fresh emphasis when it would have fired.
	time.Sleep(50 * time.Millisecond)
	r.Apply([]domain.Opportunity{opp("a", "3.00")})

	time.Sleep(70 * time.Millisecond)
	got := emphasisByID(r.Current())
	assert.Equal(t, domain.EmphasisIncreased, got["a"], "superseded timer cleared a fresh emphasis")

	require.Eventually(t, func() bool {
		return emphasisByID(r.Current())["a"] == domain.EmphasisNone
	}, time.Second, 5*time.Millisecond)
}

func TestUnchangedSnapshotCancelsNothing(t *testing.T) {
	var calls int
	r := New(time.Minute, func([]domain.ReconciledOpportunity) { calls++ }, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.00")})
	r.Apply([]domain.Opportunity{opp("a", "1.00")})

	// Both snapshots notify even though nothing was emphasized.
	assert.Equal(t, 2, calls)
}

func TestCurrentReturnsCopy(t *testing.T) {
	r := New(time.Minute, nil, testLogger())
	defer r.Close()

	r.Apply([]domain.Opportunity{opp("a", "1.00")})

	set := r.Current()
	set[0].SpreadPercentage = "mutated"

	assert.Equal(t, "1.00", r.Current()[0].SpreadPercentage)
}
