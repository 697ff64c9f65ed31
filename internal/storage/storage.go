package storage

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

// ObjectStore is a flat key/value blob store with public URLs.
type ObjectStore interface {
	Name() string
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PublicURL(key string) string
}

type Observer interface {
	ObserveUpload(backend, object string, size int, err error)
}

type Options struct {
	KeyPrefix string
	// Per-upload deadline; zero leaves ctx untouched.
	Timeout  time.Duration
	Observer Observer
}

// Service implements gateway.DurableStorage over an ObjectStore.
type Service struct {
	log     *logger.Logger
	store   ObjectStore
	prefix  string
	timeout time.Duration
	obs     Observer

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewService(store ObjectStore, opts Options, baseLog *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage: object store required")
	}
	return &Service{
		log:     baseLog.With("service", "DurableStorage", "backend", store.Name()),
		store:   store,
		prefix:  strings.Trim(strings.TrimSpace(opts.KeyPrefix), "/"),
		timeout: opts.Timeout,
		obs:     opts.Observer,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func (s *Service) StoreArtifact(ctx context.Context, a gateway.Artifact) (gateway.StoredObject, error) {
	if len(a.Bytes) == 0 {
		return gateway.StoredObject{}, gateway.NewStorageError(s.store.Name(), "artifact", "empty artifact", nil)
	}
	mimeType := a.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	key := s.key("artifacts", extFor(mimeType))
	return s.put(ctx, "artifact", key, a.Bytes, mimeType)
}

func (s *Service) StoreMetadata(ctx context.Context, m gateway.Metadata) (gateway.StoredObject, error) {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return gateway.StoredObject{}, gateway.NewStorageError(s.store.Name(), "metadata", "encode metadata", err)
	}
	key := s.key("metadata", ".json")
	return s.put(ctx, "metadata", key, body, "application/json")
}

func (s *Service) put(ctx context.Context, object, key string, body []byte, contentType string) (gateway.StoredObject, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := s.store.Put(ctx, key, body, contentType)
	if s.obs != nil {
		s.obs.ObserveUpload(s.store.Name(), object, len(body), err)
	}
	if err != nil {
		s.log.Warn("Upload failed", "object", object, "key", key, "error", err)
		return gateway.StoredObject{}, gateway.NewStorageError(s.store.Name(), object, "", err)
	}
	url := s.store.PublicURL(key)
	s.log.Info("Object stored", "object", object, "key", key, "bytes", len(body), "duration", time.Since(start).String())
	return gateway.StoredObject{URL: url, Key: key}, nil
}

func (s *Service) key(kind, ext string) string {
	s.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy)
	s.mu.Unlock()
	name := strings.ToLower(id.String()) + ext
	if s.prefix == "" {
		return path.Join(kind, name)
	}
	return path.Join(s.prefix, kind, name)
}

func extFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

var _ gateway.DurableStorage = (*Service)(nil)

// String is used in startup logs.
func (s *Service) String() string {
	return fmt.Sprintf("storage(%s, prefix=%q)", s.store.Name(), s.prefix)
}
