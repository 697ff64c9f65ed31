package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/artforge-backend/internal/config"
	"github.com/yungbote/artforge-backend/internal/platform/gcp"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/platform/s3store"
	"github.com/yungbote/artforge-backend/internal/storage"
)

var (
	newLocalStore = func(root, baseURL string) (storage.ObjectStore, error) {
		return storage.NewLocalStore(root, baseURL)
	}
	newGCSBucket = func(ctx context.Context, cfg gcp.BucketConfig, log *logger.Logger) (storage.ObjectStore, error) {
		return gcp.NewBucket(ctx, cfg, log)
	}
	newS3Store = func(ctx context.Context, cfg s3store.Config, log *logger.Logger) (storage.ObjectStore, error) {
		return s3store.New(ctx, cfg, log)
	}
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidBackend   StorageProviderBootstrapErrorCode = "invalid_backend"
	StorageProviderBootstrapErrorMissingBucket    StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorInvalidPublicURL StorageProviderBootstrapErrorCode = "invalid_public_url"
	StorageProviderBootstrapErrorConnectFailed    StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code    StorageProviderBootstrapErrorCode
	Backend string
	Bucket  string
	Cause   error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s backend=%q bucket=%q): %v",
		e.Code,
		e.Backend,
		e.Bucket,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectStore builds the ObjectStore named by cfg.Backend. The returned
// store may also implement io.Closer.
func resolveObjectStore(ctx context.Context, log *logger.Logger, cfg config.StorageConfig) (storage.ObjectStore, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	bucket := bucketFor(backend, cfg)

	log.Info("Selecting object storage provider",
		"backend", backend,
		"bucket", bucket,
		"emulator_host", cfg.GCSEmulatorHost,
	)

	var (
		store storage.ObjectStore
		err   error
	)
	switch backend {
	case "local":
		store, err = newLocalStore(cfg.LocalPath, cfg.LocalBaseURL)
	case "gcs":
		store, err = newGCSBucket(ctx, gcp.BucketConfig{
			Name:          cfg.GCSBucket,
			CDNDomain:     cfg.GCSCDNDomain,
			Credentials:   cfg.GCSCredentials,
			EmulatorHost:  cfg.GCSEmulatorHost,
			PublicBaseURL: cfg.GCSPublicURL,
		}, log)
	case "s3":
		store, err = newS3Store(ctx, s3store.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicEndpoint:  cfg.S3PublicEndpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, log)
	default:
		err = fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		classified := classifyStorageProviderBootstrapError(backend, cfg, err)
		log.Error("Object storage provider bootstrap failed",
			"backend", backend,
			"bucket", bucket,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyStorageProviderBootstrapError(backend string, cfg config.StorageConfig, err error) error {
	out := &StorageProviderBootstrapError{
		Code:    StorageProviderBootstrapErrorConnectFailed,
		Backend: backend,
		Bucket:  bucketFor(backend, cfg),
		Cause:   err,
	}
	switch backend {
	case "local":
	case "gcs":
		if out.Bucket == "" {
			out.Code = StorageProviderBootstrapErrorMissingBucket
		} else if !validPublicURL(cfg.GCSPublicURL) {
			out.Code = StorageProviderBootstrapErrorInvalidPublicURL
		}
	case "s3":
		if out.Bucket == "" {
			out.Code = StorageProviderBootstrapErrorMissingBucket
		} else if !validPublicURL(cfg.S3PublicEndpoint) {
			out.Code = StorageProviderBootstrapErrorInvalidPublicURL
		}
	default:
		out.Code = StorageProviderBootstrapErrorInvalidBackend
	}
	return out
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}

func bucketFor(backend string, cfg config.StorageConfig) string {
	switch backend {
	case "gcs":
		return strings.TrimSpace(cfg.GCSBucket)
	case "s3":
		return strings.TrimSpace(cfg.S3Bucket)
	}
	return ""
}

// An empty value is valid: the store derives its own public URL.
func validPublicURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
