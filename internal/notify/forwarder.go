// Package notify forwards selected push channel events to external chat
// channels (Discord webhook, Telegram bot). Delivery is best effort: failures
// are logged and dropped, and sends run off the channel's read loop so a slow
// webhook never stalls event dispatch.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"arbdash/internal/domain"
	"arbdash/internal/stream"
)

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 10 * time.Second

// Sender delivers one formatted message to an external channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Forwarder fans selected events out to all configured senders. A nil
// Forwarder is valid and forwards nothing.
type Forwarder struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewForwarder creates a Forwarder delivering to the given senders. events
// limits alert forwarding to those alert types; empty forwards every alert.
func NewForwarder(senders []Sender, events []string, logger *slog.Logger) *Forwarder {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[strings.ToUpper(e)] = true
		}
	}
	return &Forwarder{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notify")),
	}
}

// HandleAlert forwards an alert notification. Register it with
// stream.Client.OnAlert.
func (f *Forwarder) HandleAlert(alert stream.Notification) {
	if f == nil {
		return
	}
	if len(f.allowed) > 0 && !f.allowed[strings.ToUpper(alert.Type)] {
		f.logger.Debug("alert filtered out", slog.String("type", alert.Type))
		return
	}
	f.deliver(alert.Title, alert.Message)
}

// HandleTradeUpdate forwards trades that reached a terminal status. Register
// it with stream.Client.OnTradeUpdate.
func (f *Forwarder) HandleTradeUpdate(trade domain.Trade) {
	if f == nil || !trade.Status.Terminal() {
		return
	}

	title := fmt.Sprintf("Trade %s", strings.ToLower(string(trade.Status)))
	message := fmt.Sprintf("%s: buy %s, sell %s, net profit %s",
		trade.TradingPair, trade.BuyExchange, trade.SellExchange, trade.NetProfit)
	f.deliver(title, message)
}

// deliver sends to every sender concurrently. Each send gets its own timeout
// so one stuck channel cannot hold up the others.
func (f *Forwarder) deliver(title, message string) {
	for _, s := range f.senders {
		go func(s Sender) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			if err := s.Send(ctx, title, message); err != nil {
				f.logger.Warn("notification delivery failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
			}
		}(s)
	}
}
