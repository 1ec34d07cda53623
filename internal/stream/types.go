package stream

import (
	"encoding/json"
	"time"

	"arbdash/internal/domain"
)

// Event names on the push channel.
const (
	// Client -> server.
	eventSubscribeOpportunities   = "subscribe:opportunities"
	eventUnsubscribeOpportunities = "unsubscribe:opportunities"

	// Server -> client.
	eventOpportunitiesUpdate = "opportunities:update"
	eventTradeUpdate         = "trade:update"
	eventAlertNotification   = "alert:notification"
	eventSystemMessage       = "system:message"
)

// envelope is the wire frame for every message in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// opportunitiesPayload carries a full replacement snapshot. The backend
// never sends deltas; every update supersedes the previous set entirely.
type opportunitiesPayload struct {
	Data []domain.Opportunity `json:"data"`
}

// Notification is an alert pushed on "alert:notification".
type Notification struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// SystemMessage is an operator broadcast pushed on "system:message".
type SystemMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Handler types. Handlers run inline on the read loop, one message at a
// time, in arrival order; a slow handler delays everything behind it.
type (
	OpportunitiesHandler func([]domain.Opportunity)
	TradeUpdateHandler   func(domain.Trade)
	AlertHandler         func(Notification)
	SystemMessageHandler func(SystemMessage)
)
