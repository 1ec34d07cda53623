package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"arbdash/internal/api"
	"arbdash/internal/config"
	"arbdash/internal/dashboard"
	"arbdash/internal/domain"
	"arbdash/internal/notify"
	"arbdash/internal/reconcile"
	"arbdash/internal/session"
	"arbdash/internal/stream"
	"arbdash/internal/trade"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store      *session.Store
	API        *api.Client
	Stream     *stream.Client
	Reconciler *reconcile.Reconciler
	Flow       *trade.Flow
	Renderer   *dashboard.Renderer
}

// Wire builds the dependency graph: session store -> REST client -> push
// channel -> reconciler -> trade flow -> renderer, and registers the push
// channel handlers. Event dispatch stays on the channel's single read loop,
// so reconciliation and trade updates are applied in arrival order.
func Wire(cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	credPath, err := resolveCredentialPath(cfg.Session.CredentialPath)
	if err != nil {
		return nil, nil, fmt.Errorf("app: resolve credential path: %w", err)
	}

	store := session.NewStore(credPath, logger)
	apiClient := api.NewClient(cfg.Backend.ApiURL, store, logger)
	streamClient := stream.NewClient(cfg.Backend.WsURL, store, logger)
	renderer := dashboard.NewRenderer(os.Stdout)

	reconciler := reconcile.New(
		cfg.Stream.EmphasisWindow.Duration,
		func(set []domain.ReconciledOpportunity) { renderer.Render(streamClient.Status(), set) },
		logger,
	)

	flow := trade.NewFlow(apiClient, logger)

	streamClient.OnOpportunities(reconciler.Apply)
	streamClient.OnTradeUpdate(flow.HandleTradeUpdate)
	streamClient.OnAlert(renderer.RenderAlert)
	streamClient.OnSystemMessage(renderer.RenderSystemMessage)

	if forwarder := buildForwarder(cfg.Notify, logger); forwarder != nil {
		streamClient.OnAlert(forwarder.HandleAlert)
		streamClient.OnTradeUpdate(forwarder.HandleTradeUpdate)
	}

	deps := &Dependencies{
		Store:      store,
		API:        apiClient,
		Stream:     streamClient,
		Reconciler: reconciler,
		Flow:       flow,
		Renderer:   renderer,
	}

	cleanup := func() {
		reconciler.Close()
		if err := streamClient.Close(); err != nil {
			logger.Warn("close push channel", slog.String("error", err.Error()))
		}
	}

	return deps, cleanup, nil
}

// buildForwarder assembles the outbound notification senders from config.
// Returns nil when no channel is configured.
func buildForwarder(cfg config.NotifyConfig, logger *slog.Logger) *notify.Forwarder {
	var senders []notify.Sender
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewForwarder(senders, cfg.Events, logger)
}

// resolveCredentialPath expands the default credential location when the
// config leaves it empty.
func resolveCredentialPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "arbdash", "credentials.json"), nil
}
