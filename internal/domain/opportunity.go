package domain

import "time"

// MarketType classifies the venue type an opportunity was detected on.
type MarketType string

const (
	MarketTypeSpot    MarketType = "SPOT"
	MarketTypeFutures MarketType = "FUTURES"
	MarketTypeDEX     MarketType = "DEX"
)

// Exchange describes a trading venue as embedded in an opportunity. The
// backend resolves these server-side; the client never looks them up by ID.
type Exchange struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"` // "CEX" or "DEX"
	IsActive    bool   `json:"isActive"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// TradingPair describes the traded symbol embedded in an opportunity.
type TradingPair struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
	IsActive   bool   `json:"isActive"`
}

// Opportunity is a single arbitrage opportunity as published by the backend.
// Records are immutable: every snapshot replaces the full set, and identity
// across snapshots is ID. Prices and spreads are decimal strings as sent on
// the wire; they are only parsed at comparison time.
type Opportunity struct {
	ID               string      `json:"id"`
	TradingPair      TradingPair `json:"tradingPair"`
	BuyExchange      Exchange    `json:"buyExchange"`
	SellExchange     Exchange    `json:"sellExchange"`
	BuyPrice         string      `json:"buyPrice"`
	SellPrice        string      `json:"sellPrice"`
	SpreadPercentage string      `json:"spreadPercentage"`
	EstimatedProfit  string      `json:"estimatedProfit"`
	ProfitAfterFees  string      `json:"profitAfterFees"`
	MarketType       MarketType  `json:"marketType"`
	BuyVolume        string      `json:"buyVolume,omitempty"`
	SellVolume       string      `json:"sellVolume,omitempty"`
	FundingRate      string      `json:"fundingRate,omitempty"`
	IsActive         bool        `json:"isActive"`
	DetectedAt       time.Time   `json:"detectedAt"`
	ExpiresAt        *time.Time  `json:"expiresAt,omitempty"`
}

// Emphasis is the transient change classification assigned to an opportunity
// when a snapshot replaces the previous one. It drives presentation only.
type Emphasis string

const (
	EmphasisNone      Emphasis = "none"
	EmphasisIncreased Emphasis = "increased"
	EmphasisDecreased Emphasis = "decreased"
)

// ReconciledOpportunity is an Opportunity annotated with the change direction
// of its spread since the previous snapshot. EmphasizedAt records when the
// emphasis was assigned; the reconciler clears it after a fixed window.
type ReconciledOpportunity struct {
	Opportunity
	Emphasis     Emphasis
	EmphasizedAt time.Time
}
