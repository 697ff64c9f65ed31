package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/artforge-backend/internal/artifact"
	"github.com/yungbote/artforge-backend/internal/catalog"
	"github.com/yungbote/artforge-backend/internal/config"
	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/history"
	"github.com/yungbote/artforge-backend/internal/observability"
	"github.com/yungbote/artforge-backend/internal/orchestrator"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/preference"
	"github.com/yungbote/artforge-backend/internal/realtime"
	"github.com/yungbote/artforge-backend/internal/selector"
	"github.com/yungbote/artforge-backend/internal/storage"
)

type Services struct {
	Catalog     *catalog.Catalog
	Preferences *preference.Model
	Selector    *selector.Selector
	Generator   *artifact.Generator
	Storage     *storage.Service
	History     *history.Store
	Runner      *orchestrator.Runner
	Notifier    *realtime.Notifier
}

func wireServices(ctx context.Context, log *logger.Logger, cfg *config.Config, reposet Repos, clients Clients, metrics *observability.Metrics, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("load catalog: %w", err)
	}

	prefs := preference.NewModel(reposet.Preference, log)
	if err := prefs.Initialize(ctx, preference.Defaults{
		types.CategoryStyle: cat.StyleKeys(),
		types.CategoryTheme: cat.ThemeKeys(),
	}); err != nil {
		return Services{}, fmt.Errorf("init preferences: %w", err)
	}

	sel := selector.New(cfg.Selector.Epsilon, nil)
	if cfg.Selector.Seed != 0 {
		sel = selector.NewSeeded(cfg.Selector.Epsilon, cfg.Selector.Seed)
	}

	gen, err := artifact.NewGenerator(cat, clients.Writers, clients.Images, artifact.Config{
		Validation: artifact.Validation{
			MinBytes:       cfg.Artifact.MinBytes,
			AllowedFormats: cfg.Artifact.AllowedFormats,
			MaxDimension:   cfg.Artifact.MaxDimension,
		},
		MaxPromptAttempts: cfg.Artifact.MaxPromptAttempts,
		MaxImageAttempts:  cfg.Artifact.MaxImageAttempts,
	}, log)
	if err != nil {
		return Services{}, err
	}

	store, err := storage.NewService(clients.ObjectStore, storage.Options{
		KeyPrefix: cfg.Storage.KeyPrefix,
		Timeout:   cfg.Storage.UploadTimeout,
		Observer:  metrics,
	}, log)
	if err != nil {
		return Services{}, err
	}

	hist := history.NewStore(reposet.Task, cfg.Orchestrator.CollectionTarget, log)
	if err := hist.Load(ctx); err != nil {
		return Services{}, fmt.Errorf("load history: %w", err)
	}

	runner, err := orchestrator.New(orchestrator.Deps{
		Preferences: prefs,
		Selector:    sel,
		Generator:   gen,
		Storage:     store,
		Minter:      clients.Minter,
		History:     hist,
		Metrics:     metrics,
	}, runnerConfig(cfg, cat), log)
	if err != nil {
		return Services{}, err
	}

	var pub realtime.Publisher
	if clients.Bus != nil {
		pub = clients.Bus
	}
	notifier := realtime.NewNotifier(hub, pub, log)
	runner.Subscribe(notifier.Handle)

	if counts, err := hist.Counts(ctx); err == nil {
		metrics.SetCollection(counts.Target, counts.Generated, counts.Remaining)
	}

	return Services{
		Catalog:     cat,
		Preferences: prefs,
		Selector:    sel,
		Generator:   gen,
		Storage:     store,
		History:     hist,
		Runner:      runner,
		Notifier:    notifier,
	}, nil
}

func runnerConfig(cfg *config.Config, cat *catalog.Catalog) orchestrator.Config {
	oc := orchestrator.Config{
		CollectionName:     cfg.Orchestrator.CollectionName,
		Symbol:             cfg.Orchestrator.CollectionSymbol,
		RoyaltyBasisPoints: cfg.Orchestrator.RoyaltyBasisPoints,
		ExternalURL:        cfg.Orchestrator.ExternalURL,
		NameTemplate:       cat.Prompt.Name,
		TaskTimeout:        cfg.Orchestrator.TaskTimeout,
		Cluster:            cfg.Minting.Cluster,
	}
	if wallet := strings.TrimSpace(cfg.Minting.WalletAddress); wallet != "" {
		oc.Creators = []gateway.Creator{{Address: wallet, Share: 100}}
	}
	return oc
}
