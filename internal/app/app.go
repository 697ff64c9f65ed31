package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/artforge-backend/internal/config"
	"github.com/yungbote/artforge-backend/internal/data/db"
	"github.com/yungbote/artforge-backend/internal/http"
	"github.com/yungbote/artforge-backend/internal/observability"
	"github.com/yungbote/artforge-backend/internal/orchestrator"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/realtime"
)

const collectorInterval = 15 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      *config.Config
	Metrics  *observability.Metrics
	Repos    Repos
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *http.Server

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

// New wires every component. The caller owns log and must call Close.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     cfg.Otel.Headers,
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.New()
	}

	dbs, err := db.NewService(cfg.Database, log)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbs.DB()

	ssehub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)

	clientset, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = dbs.Close()
		_ = otelShutdown(context.Background())
		return nil, err
	}

	serviceset, err := wireServices(ctx, log, cfg, reposet, clientset, metrics, ssehub)
	if err != nil {
		clientset.Close()
		_ = dbs.Close()
		_ = otelShutdown(context.Background())
		return nil, err
	}

	handlerset := wireHandlers(log, theDB, clientset, serviceset, ssehub)
	server := wireServer(log, cfg, metrics, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Metrics:      metrics,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		SSEHub:       ssehub,
		Server:       server,
		dbService:    dbs,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx ends. With COLLECTION_AUTORUN it also drives the
// collection to its target in the background.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartDBCollector(gctx, a.Log, a.DB, collectorInterval)
	if a.Clients.Bus != nil {
		a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.Bus.Client(), collectorInterval)
		if err := a.Clients.Bus.StartForwarder(gctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}

	g.Go(func() error {
		return a.Server.Run(gctx, ":"+a.Cfg.Port, a.Cfg.ShutdownTimeout)
	})

	if a.Cfg.Orchestrator.AutoRun {
		g.Go(func() error {
			_, err := a.RunCollection(gctx, orchestrator.CollectionOptions{Interval: a.Cfg.Orchestrator.MintInterval})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// RunCollection generates until the collection target is reached or opts.MaxRuns is spent.
func (a *App) RunCollection(ctx context.Context, opts orchestrator.CollectionOptions) (orchestrator.CollectionReport, error) {
	a.Log.Info("Collection run starting",
		"target", a.Services.History.Target(),
		"max_runs", opts.MaxRuns,
		"interval", opts.Interval.String(),
	)
	report, err := a.Services.Runner.RunCollection(ctx, opts)
	a.Log.Info("Collection run finished",
		"runs", report.Runs,
		"completed", report.Completed,
		"failed", report.Failed,
		"stopped", report.Stopped,
		"remaining", report.Remaining,
	)
	return report, err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Runner != nil {
		a.Services.Runner.Wait()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
