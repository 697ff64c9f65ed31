package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	sol "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration for the service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"artforge"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`
	LogMode     string `env:"LOG_MODE" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173,http://127.0.0.1:3000,http://127.0.0.1:5173"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`

	Database     DatabaseConfig
	Selector     SelectorConfig
	Orchestrator OrchestratorConfig
	Artifact     ArtifactConfig
	Storage      StorageConfig
	Minting      MintingConfig
	Redis        RedisConfig
	Otel         OtelConfig

	// Optional YAML file overriding the built-in style/theme catalog.
	CatalogPath string `env:"CATALOG_PATH"`
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"sqlite"` // postgres | sqlite
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_NAME" envDefault:"artforge"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"artforge.db"`

	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type SelectorConfig struct {
	Epsilon float64 `env:"SELECTOR_EPSILON" envDefault:"0.2"`
	// Zero means seed from the clock.
	Seed int64 `env:"SELECTOR_SEED" envDefault:"0"`
}

type OrchestratorConfig struct {
	RoyaltyBasisPoints int           `env:"ROYALTY_BASIS_POINTS" envDefault:"500"`
	CollectionSymbol   string        `env:"COLLECTION_SYMBOL" envDefault:"AFNFT"`
	CollectionName     string        `env:"COLLECTION_NAME" envDefault:"Artforge"`
	ExternalURL        string        `env:"COLLECTION_EXTERNAL_URL"`
	TaskTimeout        time.Duration `env:"TASK_TIMEOUT" envDefault:"0s"`
	CollectionTarget   int           `env:"COLLECTION_SIZE" envDefault:"69"`
	MintInterval       time.Duration `env:"MINT_INTERVAL" envDefault:"2s"`
	AutoRun            bool          `env:"COLLECTION_AUTORUN" envDefault:"false"`
}

type ArtifactConfig struct {
	MinBytes       int      `env:"ARTIFACT_MIN_BYTES" envDefault:"10240"`
	AllowedFormats []string `env:"ARTIFACT_ALLOWED_FORMATS" envSeparator:"," envDefault:"image/png"`
	MaxDimension   int      `env:"ARTIFACT_MAX_DIMENSION" envDefault:"1024"`

	// Ordered provider lists; each is tried once per run unless capped below.
	PromptProviders   []string `env:"PROMPT_PROVIDERS" envSeparator:"," envDefault:"local,openrouter"`
	ImageProviders    []string `env:"IMAGE_PROVIDERS" envSeparator:"," envDefault:"openai,procedural"`
	MaxPromptAttempts int      `env:"PROMPT_MAX_ATTEMPTS" envDefault:"0"`
	MaxImageAttempts  int      `env:"IMAGE_MAX_ATTEMPTS" envDefault:"0"`

	LocalLLMBaseURL   string        `env:"LOCAL_LLM_BASE_URL" envDefault:"http://localhost:1234/v1"`
	LocalLLMModel     string        `env:"LOCAL_LLM_MODEL" envDefault:"local-model"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey  string        `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string        `env:"OPENROUTER_MODEL" envDefault:"meta-llama/llama-3.1-8b-instruct"`
	PromptTimeout     time.Duration `env:"PROMPT_TIMEOUT" envDefault:"30s"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com"`
	OpenAIImageModel  string        `env:"OPENAI_IMAGE_MODEL" envDefault:"dall-e-3"`
	OpenAIImageSize   string        `env:"OPENAI_IMAGE_SIZE" envDefault:"1024x1024"`
	OpenAITimeout     time.Duration `env:"OPENAI_TIMEOUT" envDefault:"180s"`
	OpenAIMaxRetries  int           `env:"OPENAI_MAX_RETRIES" envDefault:"2"`
	ProceduralSize    int           `env:"PROCEDURAL_SIZE" envDefault:"768"`
}

type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"local"` // gcs | s3 | local

	GCSBucket    string `env:"GCS_BUCKET_NAME"`
	GCSCDNDomain string `env:"GCS_CDN_DOMAIN"`
	GCSPublicURL string `env:"GCS_PUBLIC_BASE_URL"`
	// Path or inline JSON; empty uses application default credentials.
	GCSCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	// Non-empty switches the GCS client to an emulator endpoint without auth.
	GCSEmulatorHost string `env:"STORAGE_EMULATOR_HOST"`

	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3PublicEndpoint string `env:"S3_PUBLIC_ENDPOINT"`
	S3Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket         string `env:"S3_BUCKET"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle   bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`

	LocalPath    string `env:"LOCAL_STORAGE_PATH" envDefault:"./data/objects"`
	LocalBaseURL string `env:"LOCAL_STORAGE_BASE_URL" envDefault:"http://localhost:8080/objects"`

	KeyPrefix     string        `env:"STORAGE_KEY_PREFIX" envDefault:"artforge"`
	UploadTimeout time.Duration `env:"STORAGE_UPLOAD_TIMEOUT" envDefault:"2m"`
}

type MintingConfig struct {
	Backend string `env:"MINT_BACKEND" envDefault:"local"` // http | local

	APIURL         string        `env:"MINT_API_URL"`
	APIKey         string        `env:"MINT_API_KEY"`
	RPCURL         string        `env:"SOLANA_RPC_URL" envDefault:"https://api.devnet.solana.com"`
	Cluster        string        `env:"SOLANA_CLUSTER" envDefault:"devnet"`
	WalletAddress  string        `env:"WALLET_PUBLIC_KEY"`
	MinBalanceSOL  float64       `env:"MIN_WALLET_BALANCE_SOL" envDefault:"0.1"`
	RequestTimeout time.Duration `env:"MINT_TIMEOUT" envDefault:"60s"`
	MaxRetries     int           `env:"MINT_MAX_RETRIES" envDefault:"2"`

	LedgerPath string `env:"LOCAL_LEDGER_PATH" envDefault:"./data/ledger.jsonl"`
}

type RedisConfig struct {
	Addr    string `env:"REDIS_ADDR"`
	Channel string `env:"REDIS_CHANNEL" envDefault:"artforge:events"`
}

type OtelConfig struct {
	Enabled     bool              `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers     map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS" envSeparator:"," envKeyValSeparator:"="`
	Insecure    bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio float64           `env:"OTEL_SAMPLER_RATIO" envDefault:"1"`
}

// Load reads an optional .env file, then parses the environment into Config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Minting.Backend = strings.ToLower(strings.TrimSpace(c.Minting.Backend))
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	c.Storage.GCSBucket = strings.TrimSpace(c.Storage.GCSBucket)
	c.Artifact.PromptProviders = trimAll(c.Artifact.PromptProviders)
	c.Artifact.ImageProviders = trimAll(c.Artifact.ImageProviders)
	c.Artifact.AllowedFormats = trimAll(c.Artifact.AllowedFormats)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Selector.Epsilon < 0 || c.Selector.Epsilon > 1 {
		errs = append(errs, fmt.Errorf("SELECTOR_EPSILON must be within [0,1], got %v", c.Selector.Epsilon))
	}
	if c.Orchestrator.RoyaltyBasisPoints < 0 || c.Orchestrator.RoyaltyBasisPoints > 10000 {
		errs = append(errs, fmt.Errorf("ROYALTY_BASIS_POINTS must be within [0,10000], got %d", c.Orchestrator.RoyaltyBasisPoints))
	}
	if c.Orchestrator.CollectionTarget < 0 {
		errs = append(errs, fmt.Errorf("COLLECTION_SIZE must be >= 0"))
	}
	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLER_RATIO must be within [0,1], got %v", c.Otel.SampleRatio))
	}
	if c.Artifact.MinBytes < 0 {
		errs = append(errs, fmt.Errorf("ARTIFACT_MIN_BYTES must be >= 0"))
	}
	if c.Artifact.MaxPromptAttempts < 0 || c.Artifact.MaxImageAttempts < 0 {
		errs = append(errs, fmt.Errorf("PROMPT_MAX_ATTEMPTS and IMAGE_MAX_ATTEMPTS must be >= 0"))
	}
	if len(c.Artifact.ImageProviders) == 0 {
		errs = append(errs, fmt.Errorf("IMAGE_PROVIDERS must name at least one provider"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			errs = append(errs, fmt.Errorf("STORAGE_BACKEND=gcs requires GCS_BUCKET_NAME"))
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("STORAGE_BACKEND=s3 requires S3_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Minting.Backend {
	case "local":
	case "http":
		if strings.TrimSpace(c.Minting.APIURL) == "" {
			errs = append(errs, fmt.Errorf("MINT_BACKEND=http requires MINT_API_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MINT_BACKEND %q", c.Minting.Backend))
	}
	if w := strings.TrimSpace(c.Minting.WalletAddress); w != "" {
		if _, err := sol.PublicKeyFromBase58(w); err != nil {
			errs = append(errs, fmt.Errorf("WALLET_PUBLIC_KEY is not a valid base58 public key: %w", err))
		}
	}
	return errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
