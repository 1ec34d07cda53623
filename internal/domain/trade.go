package domain

import "time"

// TradeStatus is the server-authoritative lifecycle state of a trade. The
// client never infers transitions; it only reflects what the backend reports.
type TradeStatus string

const (
	TradeStatusPending    TradeStatus = "PENDING"
	TradeStatusBuyPlaced  TradeStatus = "BUY_PLACED"
	TradeStatusBuyFilled  TradeStatus = "BUY_FILLED"
	TradeStatusSellPlaced TradeStatus = "SELL_PLACED"
	TradeStatusSellFilled TradeStatus = "SELL_FILLED"
	TradeStatusCompleted  TradeStatus = "COMPLETED"
	TradeStatusFailed     TradeStatus = "FAILED"
	TradeStatusCancelled  TradeStatus = "CANCELLED"
)

// Terminal reports whether the status is a final state.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeStatusCompleted, TradeStatusFailed, TradeStatusCancelled:
		return true
	}
	return false
}

// Trade is an executed (or executing) arbitrage trade owned by the backend.
// Monetary fields are decimal strings as sent on the wire.
type Trade struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	OpportunityID    string      `json:"opportunityId"`
	BuyExchange      string      `json:"buyExchange"`
	SellExchange     string      `json:"sellExchange"`
	TradingPair      string      `json:"tradingPair"`
	BuyPrice         string      `json:"buyPrice"`
	SellPrice        string      `json:"sellPrice"`
	Amount           string      `json:"amount"`
	SpreadPercentage string      `json:"spreadPercentage"`
	GrossProfit      string      `json:"grossProfit"`
	TotalFees        string      `json:"totalFees"`
	NetProfit        string      `json:"netProfit"`
	Status           TradeStatus `json:"status"`
	ErrorMessage     string      `json:"errorMessage,omitempty"`
	ExecutedAt       time.Time   `json:"executedAt"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
}
