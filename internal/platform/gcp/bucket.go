package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type BucketConfig struct {
	Name        string
	CDNDomain   string
	Credentials string
	// Non-empty switches to a fake-gcs style emulator without auth.
	EmulatorHost string
	// Overrides the host used in public URLs (e.g. a browser-reachable emulator).
	PublicBaseURL string
}

// Bucket is a single GCS bucket holding public artifacts.
type Bucket struct {
	log           *logger.Logger
	client        *storage.Client
	name          string
	cdnDomain     string
	emulatorHost  string
	publicBaseURL string
}

func NewBucket(ctx context.Context, cfg BucketConfig, log *logger.Logger) (*Bucket, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, errors.New("missing GCS_BUCKET_NAME")
	}
	emulatorHost := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	publicBaseURL, err := resolvePublicBaseURL(cfg.PublicBaseURL, emulatorHost)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if emulatorHost != "" {
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(CredentialOptions(cfg.Credentials), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	b := &Bucket{
		log:           log.With("service", "GCSBucket"),
		client:        client,
		name:          name,
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
		emulatorHost:  emulatorHost,
		publicBaseURL: publicBaseURL,
	}
	b.log.Info("Object storage initialized",
		"bucket", name,
		"emulator_host", emulatorHost,
		"public_base_url", publicBaseURL,
	)
	return b, nil
}

func resolvePublicBaseURL(raw, emulatorHost string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return "", fmt.Errorf("invalid public base url %q; expected absolute URL like http://localhost:4443", raw)
		}
		return strings.TrimRight(raw, "/"), nil
	}
	return emulatorHost, nil
}

func (b *Bucket) Name() string { return "gcs" }

func (b *Bucket) Put(ctx context.Context, key string, body []byte, contentType string) error {
	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = ContentTypeForKey(key)
	}
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Get reads an object fully. Emulators are read over plain HTTP.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	if b.emulatorHost != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, emulatorMediaURL(b.emulatorHost, b.name, key), nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("emulator download: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return io.ReadAll(resp.Body)
	}
	r, err := b.client.Bucket(b.name).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Health reads the bucket attributes.
func (b *Bucket) Health(ctx context.Context) error {
	if _, err := b.client.Bucket(b.name).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %q: %w", b.name, err)
	}
	return nil
}

func (b *Bucket) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", b.cdnDomain, key)
	}
	if b.emulatorHost != "" {
		base := b.publicBaseURL
		if base == "" {
			base = b.emulatorHost
		}
		return emulatorMediaURL(base, b.name, key)
	}
	if b.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.name, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key)
}

func (b *Bucket) Close() error {
	return b.client.Close()
}

func emulatorMediaURL(base, bucket, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(base, "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
