package domain

// UserFilters are the server-persisted opportunity filters for the current
// user, read and written via /api/arbitrage/filters.
type UserFilters struct {
	MinSpreadPercentage float64      `json:"minSpreadPercentage"`
	MinProfit           *float64     `json:"minProfit,omitempty"`
	ExchangeFilter      []string     `json:"exchangeFilter"`
	PairFilter          []string     `json:"pairFilter"`
	MarketTypeFilter    []MarketType `json:"marketTypeFilter"`
}

// PairCount is an aggregate entry in Statistics.
type PairCount struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// ExchangeCount is an aggregate entry in Statistics.
type ExchangeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the dashboard headline view returned by /api/arbitrage/summary.
type Summary struct {
	TotalActive int    `json:"totalActive"`
	BestSpread  string `json:"bestSpread"`
	AvgSpread   string `json:"avgSpread"`
}

// TradeStats is the per-user aggregate returned by /api/trades/stats.
type TradeStats struct {
	TotalTrades     int    `json:"totalTrades"`
	CompletedTrades int    `json:"completedTrades"`
	FailedTrades    int    `json:"failedTrades"`
	TotalNetProfit  string `json:"totalNetProfit"`
}

// Statistics is the aggregate view returned by /api/arbitrage/statistics.
type Statistics struct {
	TotalOpportunities int             `json:"totalOpportunities"`
	AvgSpread          float64         `json:"avgSpread"`
	AvgProfit          float64         `json:"avgProfit"`
	TopPairs           []PairCount     `json:"topPairs"`
	TopExchanges       []ExchangeCount `json:"topExchanges"`
}
