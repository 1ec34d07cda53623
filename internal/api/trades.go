package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"arbdash/internal/domain"
)

type executeTradeRequest struct {
	OpportunityID string      `json:"opportunityId"`
	Amount        json.Number `json:"amount"`
}

// Trades returns the user's trade history.
func (c *Client) Trades(ctx context.Context) ([]domain.Trade, error) {
	var trades []domain.Trade
	if err := c.do(ctx, http.MethodGet, "/api/trades", nil, &trades); err != nil {
		return nil, fmt.Errorf("api: trades: %w", err)
	}
	return trades, nil
}

// TradeByID returns a single trade.
func (c *Client) TradeByID(ctx context.Context, id string) (domain.Trade, error) {
	var trade domain.Trade
	path := "/api/trades/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &trade); err != nil {
		return domain.Trade{}, fmt.Errorf("api: trade %s: %w", id, err)
	}
	return trade, nil
}

// TradeStats returns per-user trade aggregates.
func (c *Client) TradeStats(ctx context.Context) (domain.TradeStats, error) {
	var stats domain.TradeStats
	if err := c.do(ctx, http.MethodGet, "/api/trades/stats", nil, &stats); err != nil {
		return domain.TradeStats{}, fmt.Errorf("api: trade stats: %w", err)
	}
	return stats, nil
}

// ExecuteTrade submits a trade intent for the opportunity. The request is
// never retried on failure; duplicate-submission protection lives in the
// trade package.
func (c *Client) ExecuteTrade(ctx context.Context, opportunityID string, amount decimal.Decimal) (domain.Trade, error) {
	req := executeTradeRequest{
		OpportunityID: opportunityID,
		Amount:        json.Number(amount.String()),
	}

	var trade domain.Trade
	if err := c.do(ctx, http.MethodPost, "/api/trades/execute", req, &trade); err != nil {
		return domain.Trade{}, fmt.Errorf("api: execute trade: %w", err)
	}
	return trade, nil
}
