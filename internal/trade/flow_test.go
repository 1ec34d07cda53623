package trade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbdash/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubExecutor lets a test block and count executions.
type stubExecutor struct {
	mu      sync.Mutex
	calls   int
	execute func(ctx context.Context, opportunityID string, amount decimal.Decimal) (domain.Trade, error)
}

func (s *stubExecutor) ExecuteTrade(ctx context.Context, opportunityID string, amount decimal.Decimal) (domain.Trade, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.execute(ctx, opportunityID, amount)
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestExecuteRecordsAcceptedTrade(t *testing.T) {
	exec := &stubExecutor{
		execute: func(_ context.Context, opportunityID string, amount decimal.Decimal) (domain.Trade, error) {
			return domain.Trade{
				ID:            "trade-1",
				OpportunityID: opportunityID,
				Amount:        amount.String(),
				Status:        domain.TradeStatusPending,
			}, nil
		},
	}
	f := NewFlow(exec, testLogger())

	trade, err := f.Execute(context.Background(), "opp-1", decimal.RequireFromString("100"))
	require.NoError(t, err)
	assert.Equal(t, "trade-1", trade.ID)

	got, ok := f.Trade("trade-1")
	require.True(t, ok)
	assert.Equal(t, domain.TradeStatusPending, got.Status)
	assert.Equal(t, 1, exec.callCount())
}

func TestExecuteNeverRetriesFailures(t *testing.T) {
	wantErr := errors.New("backend rejected trade")
	exec := &stubExecutor{
		execute: func(context.Context, string, decimal.Decimal) (domain.Trade, error) {
			return domain.Trade{}, wantErr
		},
	}
	f := NewFlow(exec, testLogger())

	_, err := f.Execute(context.Background(), "opp-1", decimal.RequireFromString("100"))
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, exec.callCount())
	assert.Empty(t, f.Trades())
}

func TestExecuteRejectsConcurrentDuplicate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	exec := &stubExecutor{
		execute: func(_ context.Context, opportunityID string, _ decimal.Decimal) (domain.Trade, error) {
			blocked := false
			once.Do(func() { blocked = true; close(started) })
			if blocked {
				<-release
			}
			return domain.Trade{ID: "trade-1", OpportunityID: opportunityID}, nil
		},
	}
	f := NewFlow(exec, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := f.Execute(context.Background(), "opp-1", decimal.RequireFromString("100"))
		done <- err
	}()

	<-started

	// Same opportunity while the first submission is outstanding.
	_, err := f.Execute(context.Background(), "opp-1", decimal.RequireFromString("100"))
	require.ErrorIs(t, err, domain.ErrTradeInFlight)

	// The duplicate never reached the executor.
	assert.Equal(t, 1, exec.callCount())

	close(release)
	require.NoError(t, <-done)

	// The guard releases once the first submission settles.
	_, err = f.Execute(context.Background(), "opp-1", decimal.RequireFromString("100"))
	require.NoError(t, err)
	assert.Equal(t, 2, exec.callCount())
}

func TestExecuteDifferentOpportunitiesRunIndependently(t *testing.T) {
	release := make(chan struct{})
	exec := &stubExecutor{
		execute: func(_ context.Context, opportunityID string, _ decimal.Decimal) (domain.Trade, error) {
			if opportunityID == "opp-slow" {
				<-release
			}
			return domain.Trade{ID: "trade-" + opportunityID, OpportunityID: opportunityID}, nil
		},
	}
	f := NewFlow(exec, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := f.Execute(context.Background(), "opp-slow", decimal.RequireFromString("50"))
		done <- err
	}()

	require.Eventually(t, func() bool { return exec.callCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.Execute(context.Background(), "opp-fast", decimal.RequireFromString("50"))
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestHandleTradeUpdateOverwritesByID(t *testing.T) {
	f := NewFlow(&stubExecutor{}, testLogger())

	f.HandleTradeUpdate(domain.Trade{ID: "trade-1", Status: domain.TradeStatusPending})
	f.HandleTradeUpdate(domain.Trade{ID: "trade-1", Status: domain.TradeStatusCompleted})
	f.HandleTradeUpdate(domain.Trade{Status: domain.TradeStatusFailed}) // no ID, dropped

	got, ok := f.Trade("trade-1")
	require.True(t, ok)
	assert.Equal(t, domain.TradeStatusCompleted, got.Status)
	assert.Len(t, f.Trades(), 1)
}

func TestTradesSortedMostRecentFirst(t *testing.T) {
	f := NewFlow(&stubExecutor{}, testLogger())

	base := time.Now()
	f.HandleTradeUpdate(domain.Trade{ID: "old", ExecutedAt: base.Add(-time.Hour)})
	f.HandleTradeUpdate(domain.Trade{ID: "new", ExecutedAt: base})
	f.HandleTradeUpdate(domain.Trade{ID: "mid", ExecutedAt: base.Add(-time.Minute)})

	trades := f.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, "new", trades[0].ID)
	assert.Equal(t, "mid", trades[1].ID)
	assert.Equal(t, "old", trades[2].ID)
}

func TestEstimateProfit(t *testing.T) {
	opp := domain.Opportunity{ProfitAfterFees: "1.5"}

	got, err := EstimateProfit(opp, decimal.RequireFromString("200"))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("3")), "got %s", got)
}

func TestEstimateProfitMalformed(t *testing.T) {
	_, err := EstimateProfit(domain.Opportunity{ProfitAfterFees: "n/a"}, decimal.NewFromInt(100))
	require.Error(t, err)
}
