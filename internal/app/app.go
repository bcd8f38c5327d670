package app

import (
	"context"
	"log/slog"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/infrastructure/github"
	"RepoSentinel/internal/infrastructure/hackernews"
	"RepoSentinel/internal/infrastructure/llm"
	"RepoSentinel/internal/infrastructure/notifier"
	"RepoSentinel/internal/infrastructure/scheduler"
	"RepoSentinel/internal/infrastructure/storage"
	"RepoSentinel/internal/logging"
	"RepoSentinel/internal/ports"
	"RepoSentinel/internal/usecase"
)

// Application wires configuration to use cases and owns the pieces that
// need explicit teardown.
type Application struct {
	Cfg       config.Config
	Log       *slog.Logger
	Manager   *usecase.Manager
	Reports   *usecase.ReportGenerator
	Scheduler *usecase.BatchScheduler
	Trending  ports.TrendingSource

	history *storage.PostgresHistory
}

// New builds a fully wired application instance. Optional collaborators
// (summarizer, notifier, trending, history) are wired only when their
// configuration is present.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.File)
	}

	client := github.NewClient(cfg.GitHub, baseLogger.With("component", "github"))
	subs := storage.NewFileSubscriptionStore(cfg.Storage.SubscriptionsFile)
	snaps := storage.NewFileSnapshotStore(cfg.Storage.RawDataDir)

	app := &Application{Cfg: cfg, Log: baseLogger}

	var history ports.ProcessingHistory
	if cfg.History.DSN != "" {
		h, err := storage.OpenHistory(cfg.History.DSN)
		if err != nil {
			return nil, err
		}
		app.history = h
		history = h
	}

	app.Manager = usecase.NewManager(usecase.ManagerDeps{
		Client:  client,
		Subs:    subs,
		Snaps:   snaps,
		History: history,
		Logger:  baseLogger.With("component", "manager"),
	})

	var summarizer ports.Summarizer
	if cfg.DeepSeek.APIKey != "" {
		summarizer = llm.NewDeepSeekClient(cfg.DeepSeek)
	}

	var notifierPort ports.Notifier
	if len(cfg.Notifications.Providers) > 0 {
		nm, err := notifier.NewManager(cfg.Notifications, baseLogger.With("component", "notifier"))
		if err != nil {
			return nil, err
		}
		notifierPort = nm
	}

	var trending ports.TrendingSource
	if cfg.HackerNews.BaseURL != "" {
		trending = hackernews.NewCrawler(cfg.HackerNews)
	}
	app.Trending = trending

	app.Reports = usecase.NewReportGenerator(usecase.ReportDeps{
		Snaps:      snaps,
		Summarizer: summarizer,
		Notifier:   notifierPort,
		Trending:   trending,
		ReportsDir: cfg.Storage.ReportsDir,
		Logger:     baseLogger.With("component", "reports"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler, baseLogger.With("component", "scheduler"))
	app.Scheduler = usecase.NewBatchScheduler(driver, app.Manager, app.Reports, baseLogger.With("component", "batch"))

	return app, nil
}

// Close releases held resources.
func (a *Application) Close(ctx context.Context) error {
	if a.Scheduler != nil && a.Scheduler.Status().State == domain.SchedulerRunning {
		if err := a.Scheduler.Stop(ctx); err != nil {
			a.Log.Warn("scheduler stop", "error", err)
		}
	}
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}
