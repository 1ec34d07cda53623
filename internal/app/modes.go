package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"arbdash/internal/api"
	"arbdash/internal/domain"
	"arbdash/internal/stream"
)

// WatchMode connects the push channel, subscribes to the opportunity stream,
// seeds the table from the REST API, and renders until cancelled. Transport
// drops after the initial connect are recovered inside the stream client;
// watch mode never sees them.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.connectWithRetry(ctx, deps.Stream); err != nil {
			return err
		}

		if exp, ok := deps.Store.AccessTokenExpiry(); ok {
			a.logger.InfoContext(ctx, "authenticated session", slog.Time("token_expires", exp))
		} else {
			a.logger.InfoContext(ctx, "anonymous session")
		}

		deps.Stream.SubscribeOpportunities()

		// Seed the table via REST so the first render does not wait for a
		// push. A failure here is not fatal: the live stream will fill the
		// table on its next update.
		opps, err := deps.API.Opportunities(ctx, a.opportunityParams())
		switch {
		case err == nil:
			deps.Reconciler.Apply(opps)
		case errors.Is(err, domain.ErrSessionInvalid):
			return fmt.Errorf("watch mode: %w", err)
		default:
			a.logger.WarnContext(ctx, "initial opportunity load failed, waiting for stream",
				slog.String("error", err.Error()),
			)
		}

		<-ctx.Done()
		deps.Stream.UnsubscribeOpportunities()
		return ctx.Err()
	})

	return g.Wait()
}

// LoginMode authenticates with the configured email and password, persists
// the issued credential, and exits.
func (a *App) LoginMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting login mode")

	user, err := deps.API.Login(ctx, a.cfg.Session.Email, a.cfg.Session.Password)
	if err != nil {
		return fmt.Errorf("login mode: %w", err)
	}

	attrs := []any{
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	}
	if exp, ok := deps.Store.AccessTokenExpiry(); ok {
		attrs = append(attrs, slog.Time("token_expires", exp))
	}
	a.logger.InfoContext(ctx, "logged in, credential persisted", attrs...)

	return nil
}

// connectWithRetry dials the push channel until it succeeds or the context
// ends. Once connected, later drops are handled by the client's own
// reconnect loop.
func (a *App) connectWithRetry(ctx context.Context, client *stream.Client) error {
	delay := 2 * time.Second
	const maxDelay = 60 * time.Second

	for {
		err := client.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrChannelClosed) {
			return fmt.Errorf("watch mode: %w", err)
		}

		a.logger.WarnContext(ctx, "initial connect failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// opportunityParams translates the configured startup filters into query
// parameters.
func (a *App) opportunityParams() api.OpportunityParams {
	return api.OpportunityParams{
		Symbol:     a.cfg.Filters.Symbol,
		MinSpread:  a.cfg.Filters.MinSpread,
		Limit:      a.cfg.Filters.Limit,
		MarketType: domain.MarketType(strings.ToUpper(a.cfg.Filters.MarketType)),
	}
}
