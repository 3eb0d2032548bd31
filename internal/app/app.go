package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"btc-trend-watch/internal/alert"
	"btc-trend-watch/internal/config"
	"btc-trend-watch/internal/feed"
	"btc-trend-watch/internal/fetcher"
	"btc-trend-watch/internal/outlook"
	"btc-trend-watch/internal/server"
	"btc-trend-watch/internal/service"
	"btc-trend-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newHistoryFetcher() fetcher.HistoryFetcher {
	return fetcher.NewHistory(fetcher.HistoryOptions{
		BaseURL:   a.Config.Bootstrap.BaseURL,
		FromSym:   a.Config.Bootstrap.FromSym,
		ToSym:     a.Config.Bootstrap.ToSym,
		Limit:     a.Config.Bootstrap.Limit,
		Timeout:   a.Config.Bootstrap.RequestTimeout,
		UserAgent: a.Config.Bootstrap.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alert.Notifier {
	if a.Config.Alerts.Telegram.Enabled {
		cfg := a.Config.Alerts.Telegram
		return alert.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newOutlook() service.OutlookGenerator {
	if !a.Config.Outlook.Enabled || a.Config.Outlook.APIKey == "" {
		return nil
	}
	return outlook.NewClient(outlook.Options{
		BaseURL:  a.Config.Outlook.BaseURL,
		APIKey:   a.Config.Outlook.APIKey,
		Model:    a.Config.Outlook.Model,
		Timeout:  a.Config.Outlook.RequestTimeout,
		MaxWords: a.Config.Outlook.MaxWords,
	}, a.Logger)
}

func (a *App) openRuleStore() (storage.RuleStore, error) {
	store, err := storage.OpenRuleStore(a.Config.Alerts.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open alert rule store: %w", err)
	}
	return store, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running tracking service: feed ingestion, alert
// evaluation, the outlook schedule, and the dashboard API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rules, err := a.openRuleStore()
	if err != nil {
		return err
	}
	defer rules.Close()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; audit persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	deps := service.Dependencies{
		History:  a.newHistoryFetcher(),
		Rules:    rules,
		Notifier: a.newNotifier(),
		Outlook:  a.newOutlook(),
	}
	if store != nil {
		deps.Firings = store
		deps.Outlooks = store
	}

	session := service.New(a.Config, deps, a.Logger)

	manager := feed.NewManager(feed.Options{
		URL:               a.Config.Feed.URL,
		ReconnectDelay:    a.Config.Feed.ReconnectDelay,
		MaxReconnectDelay: a.Config.Feed.MaxReconnectDelay,
		HandshakeTimeout:  a.Config.Feed.HandshakeTimeout,
	}, session.EnqueueTick, session.EnqueueState, a.Logger)
	session.AttachFeed(manager)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return session.Run(ctx)
	})
	if a.Config.Server.Enabled {
		srv := server.New(a.Config.Server.ListenAddr, session, a.Logger)
		group.Go(func() error {
			return srv.Run(ctx)
		})
	}

	a.Logger.Info().Msg("starting tracking service")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("tracking service stopped")
	return nil
}

// ExportOptions hold parameters for exporting the bootstrapped series.
type ExportOptions struct {
	Range     string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit    int
	Outlooks bool
}

// SimulateOptions configure the alert dry-run.
type SimulateOptions struct {
	Threshold string
	Condition string
	Prices    []string
}
