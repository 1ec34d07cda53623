package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"arbdash/internal/domain"
)

// OpportunityParams filter the opportunity listing. Zero values are omitted
// from the query string.
type OpportunityParams struct {
	Symbol     string
	MinSpread  float64
	Limit      int
	MarketType domain.MarketType
}

func (p OpportunityParams) query() string {
	params := url.Values{}
	if p.Symbol != "" {
		params.Set("symbol", p.Symbol)
	}
	if p.MinSpread > 0 {
		params.Set("minSpread", strconv.FormatFloat(p.MinSpread, 'f', -1, 64))
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.MarketType != "" {
		params.Set("marketType", string(p.MarketType))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// TimeRange selects the statistics aggregation window.
type TimeRange string

const (
	TimeRangeHour TimeRange = "hour"
	TimeRangeDay  TimeRange = "day"
	TimeRangeWeek TimeRange = "week"
)

// Opportunities returns the current opportunity set matching params. The
// push channel is the live source; this endpoint serves the initial page
// load and ad-hoc queries.
func (c *Client) Opportunities(ctx context.Context, params OpportunityParams) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	path := "/api/arbitrage/opportunities" + params.query()
	if err := c.do(ctx, http.MethodGet, path, nil, &opps); err != nil {
		return nil, fmt.Errorf("api: opportunities: %w", err)
	}
	return opps, nil
}

// OpportunityByID returns a single opportunity.
func (c *Client) OpportunityByID(ctx context.Context, id string) (domain.Opportunity, error) {
	var opp domain.Opportunity
	path := "/api/arbitrage/opportunities/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &opp); err != nil {
		return domain.Opportunity{}, fmt.Errorf("api: opportunity %s: %w", id, err)
	}
	return opp, nil
}

// Summary returns the dashboard summary.
func (c *Client) Summary(ctx context.Context) (domain.Summary, error) {
	var sum domain.Summary
	if err := c.do(ctx, http.MethodGet, "/api/arbitrage/summary", nil, &sum); err != nil {
		return domain.Summary{}, fmt.Errorf("api: summary: %w", err)
	}
	return sum, nil
}

// Statistics returns aggregates over the given time range.
func (c *Client) Statistics(ctx context.Context, timeRange TimeRange) (domain.Statistics, error) {
	var stats domain.Statistics
	path := "/api/arbitrage/statistics?timeRange=" + url.QueryEscape(string(timeRange))
	if err := c.do(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return domain.Statistics{}, fmt.Errorf("api: statistics: %w", err)
	}
	return stats, nil
}

// Filters returns the user's persisted opportunity filters.
func (c *Client) Filters(ctx context.Context) (domain.UserFilters, error) {
	var filters domain.UserFilters
	if err := c.do(ctx, http.MethodGet, "/api/arbitrage/filters", nil, &filters); err != nil {
		return domain.UserFilters{}, fmt.Errorf("api: filters: %w", err)
	}
	return filters, nil
}

// UpdateFilters replaces the user's persisted filters and returns the stored
// result.
func (c *Client) UpdateFilters(ctx context.Context, filters domain.UserFilters) (domain.UserFilters, error) {
	var updated domain.UserFilters
	if err := c.do(ctx, http.MethodPut, "/api/arbitrage/filters", filters, &updated); err != nil {
		return domain.UserFilters{}, fmt.Errorf("api: update filters: %w", err)
	}
	return updated, nil
}
