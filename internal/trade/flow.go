// Package trade submits trade intents and tracks their server-reported
// lifecycle. Execution is never retried client-side: a duplicated financial
// side effect is worse than a failed one. Status updates arrive either in
// the execution response or asynchronously over the push channel, and the
// server's word is authoritative.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"arbdash/internal/domain"
)

// Executor is the slice of the REST client the flow needs. *api.Client
// satisfies it.
type Executor interface {
	ExecuteTrade(ctx context.Context, opportunityID string, amount decimal.Decimal) (domain.Trade, error)
}

// Flow coordinates trade submission and keeps a local read-only view of
// trades keyed by trade ID, updated from execution responses and
// trade:update push events.
type Flow struct {
	executor Executor
	logger   *slog.Logger
	guard    *inflight

	mu     sync.RWMutex
	trades map[string]domain.Trade
}

// NewFlow creates a Flow on top of the given executor.
func NewFlow(executor Executor, logger *slog.Logger) *Flow {
	return &Flow{
		executor: executor,
		logger:   logger.With(slog.String("component", "trade")),
		guard:    newInflight(),
		trades:   make(map[string]domain.Trade),
	}
}

// Execute submits a trade for the opportunity. While a submission for the
// same opportunity is outstanding, further calls fail with
// domain.ErrTradeInFlight instead of doubling the order. The single HTTP
// request is never retried; failures surface verbatim.
func (f *Flow) Execute(ctx context.Context, opportunityID string, amount decimal.Decimal) (domain.Trade, error) {
	if !f.guard.tryAcquire(opportunityID) {
		return domain.Trade{}, fmt.Errorf("trade: opportunity %s: %w", opportunityID, domain.ErrTradeInFlight)
	}
	defer f.guard.release(opportunityID)

	f.logger.Info("submitting trade",
		slog.String("opportunity_id", opportunityID),
		slog.String("amount", amount.String()),
	)

	trade, err := f.executor.ExecuteTrade(ctx, opportunityID, amount)
	if err != nil {
		f.logger.Warn("trade submission failed",
			slog.String("opportunity_id", opportunityID),
			slog.String("error", err.Error()),
		)
		return domain.Trade{}, err
	}

	f.record(trade)

	f.logger.Info("trade accepted",
		slog.String("trade_id", trade.ID),
		slog.String("status", string(trade.Status)),
	)
	return trade, nil
}

// HandleTradeUpdate ingests an asynchronous status update from the push
// channel. Register it with stream.Client.OnTradeUpdate.
func (f *Flow) HandleTradeUpdate(trade domain.Trade) {
	f.record(trade)
	f.logger.Debug("trade update",
		slog.String("trade_id", trade.ID),
		slog.String("status", string(trade.Status)),
	)
}

// Trade returns the latest known state of a trade.
func (f *Flow) Trade(id string) (domain.Trade, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.trades[id]
	return t, ok
}

// Trades returns all known trades, most recently executed first.
func (f *Flow) Trades() []domain.Trade {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Trade, 0, len(f.trades))
	for _, t := range f.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	return out
}

func (f *Flow) record(trade domain.Trade) {
	if trade.ID == "" {
		return
	}
	f.mu.Lock()
	f.trades[trade.ID] = trade
	f.mu.Unlock()
}

// EstimateProfit computes the indicative profit of trading amount against an
// opportunity: profitAfterFees percent of the amount.
func EstimateProfit(opp domain.Opportunity, amount decimal.Decimal) (decimal.Decimal, error) {
	profit, err := decimal.NewFromString(opp.ProfitAfterFees)
	if err != nil {
		return decimal.Zero, fmt.Errorf("trade: parse profit_after_fees %q: %w", opp.ProfitAfterFees, err)
	}
	return profit.Mul(amount).Div(decimal.NewFromInt(100)), nil
}
