package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/artforge-backend/internal/artifact"
	"github.com/yungbote/artforge-backend/internal/config"
	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/minting"
	"github.com/yungbote/artforge-backend/internal/observability"
	"github.com/yungbote/artforge-backend/internal/platform/llm"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/platform/openai"
	"github.com/yungbote/artforge-backend/internal/platform/solana"
	"github.com/yungbote/artforge-backend/internal/realtime/bus"
	"github.com/yungbote/artforge-backend/internal/storage"
)

type Clients struct {
	Bus         *bus.RedisBus
	ObjectStore storage.ObjectStore
	Writers     []artifact.PromptWriter
	Images      []artifact.ImageProvider
	Minter      gateway.Minter
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var sseBus *bus.RedisBus
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		sseBus = b
	}

	// Object storage
	store, err := resolveObjectStore(ctx, log, cfg.Storage)
	if err != nil {
		_ = sseBus.Close()
		return Clients{}, err
	}

	// Generation providers
	writers, err := buildPromptWriters(log, cfg.Artifact, metrics)
	if err != nil {
		_ = sseBus.Close()
		closeStore(store)
		return Clients{}, fmt.Errorf("init prompt writers: %w", err)
	}
	images, err := buildImageProviders(log, cfg.Artifact, metrics)
	if err != nil {
		_ = sseBus.Close()
		closeStore(store)
		return Clients{}, fmt.Errorf("init image providers: %w", err)
	}

	// Minting
	minter, err := buildMinter(log, cfg.Minting)
	if err != nil {
		_ = sseBus.Close()
		closeStore(store)
		return Clients{}, fmt.Errorf("init minter: %w", err)
	}

	return Clients{
		Bus:         sseBus,
		ObjectStore: store,
		Writers:     writers,
		Images:      images,
		Minter:      minter,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	closeStore(c.ObjectStore)
}

func closeStore(store storage.ObjectStore) {
	if cl, ok := store.(io.Closer); ok {
		_ = cl.Close()
	}
}

// buildPromptWriters keeps the configured order. Providers missing credentials
// are skipped; an empty result is fine because the catalog template remains.
func buildPromptWriters(log *logger.Logger, cfg config.ArtifactConfig, obs llm.Observer) ([]artifact.PromptWriter, error) {
	var out []artifact.PromptWriter
	for _, name := range cfg.PromptProviders {
		var pc llm.ProviderConfig
		switch name {
		case "local":
			pc = llm.ProviderConfig{
				Name:    "local",
				BaseURL: cfg.LocalLLMBaseURL,
				Model:   cfg.LocalLLMModel,
				Timeout: cfg.PromptTimeout,
			}
		case "openrouter":
			if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
				log.Warn("Skipping prompt provider without credentials", "provider", name)
				continue
			}
			pc = llm.ProviderConfig{
				Name:    "openrouter",
				BaseURL: cfg.OpenRouterBaseURL,
				APIKey:  cfg.OpenRouterAPIKey,
				Model:   cfg.OpenRouterModel,
				Timeout: cfg.PromptTimeout,
				Headers: map[string]string{"X-Title": "artforge"},
			}
		default:
			return nil, fmt.Errorf("unknown prompt provider %q", name)
		}
		c, err := llm.New(pc, log, obs)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// buildImageProviders keeps the configured order. At least one provider must
// survive since images have no fallback.
func buildImageProviders(log *logger.Logger, cfg config.ArtifactConfig, obs openai.Observer) ([]artifact.ImageProvider, error) {
	var out []artifact.ImageProvider
	for _, name := range cfg.ImageProviders {
		switch name {
		case "openai":
			if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
				log.Warn("Skipping image provider without credentials", "provider", name)
				continue
			}
			c, err := openai.NewClient(openai.Config{
				BaseURL:    cfg.OpenAIBaseURL,
				APIKey:     cfg.OpenAIAPIKey,
				ImageModel: cfg.OpenAIImageModel,
				ImageSize:  cfg.OpenAIImageSize,
				Timeout:    cfg.OpenAITimeout,
				MaxRetries: cfg.OpenAIMaxRetries,
			}, log, obs)
			if err != nil {
				return nil, err
			}
			out = append(out, artifact.OpenAIImages{Client: c})
		case "procedural":
			p, err := artifact.NewProcedural(cfg.ProceduralSize)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		default:
			return nil, fmt.Errorf("unknown image provider %q", name)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no usable image provider configured")
	}
	return out, nil
}

func buildMinter(log *logger.Logger, cfg config.MintingConfig) (gateway.Minter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		return minting.NewLedgerMinter(cfg.LedgerPath, log)
	case "http":
		rpc := solana.NewRPCClient(cfg.RPCURL, cfg.RequestTimeout, cfg.MaxRetries, log)
		api := solana.NewMintAPI(cfg.APIURL, cfg.APIKey, cfg.RequestTimeout, log)
		return minting.NewSolanaMinter(rpc, api, minting.SolanaConfig{
			Cluster:       cfg.Cluster,
			WalletAddress: cfg.WalletAddress,
			MinBalanceSOL: cfg.MinBalanceSOL,
		}, log)
	default:
		return nil, fmt.Errorf("unknown mint backend %q", cfg.Backend)
	}
}
