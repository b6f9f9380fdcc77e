package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/esurat/apiserver/config"
)

// ErrObjectNotFound is returned by Get and Delete when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

const (
	// LampiranPrefix holds attachments bound to a document number. Their
	// keys embed the attachment token, so content under it never changes.
	LampiranPrefix = "lampiran/"
	// TempPrefix holds uploads that no document has claimed yet.
	TempPrefix = "uploads/temp/"
)

const (
	cacheImmutable = "public, max-age=31536000, immutable"
	cacheNone      = "no-cache"
)

// CacheControl returns the Cache-Control header stored with key.
func CacheControl(key string) string {
	if strings.HasPrefix(strings.TrimLeft(key, "/"), LampiranPrefix) {
		return cacheImmutable
	}
	return cacheNone
}

// Expirer is implemented by backends that can drop objects under a prefix
// once they are older than the given age.
type Expirer interface {
	ExpirePrefix(ctx context.Context, prefix string, age time.Duration) error
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend and builds public URLs for keys.
type Storage struct {
	backend       ObjectStorage
	baseURL       string
	tempRetention time.Duration
}

func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	return &Storage{backend: backend, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// WithTempRetention sets how long objects under TempPrefix are kept.
// Zero keeps them forever.
func (s *Storage) WithTempRetention(days int) *Storage {
	if days > 0 {
		s.tempRetention = time.Duration(days) * 24 * time.Hour
	}
	return s
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", "disk":
		backend, err = NewDiskStorage(cfg.DiskRoot)
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend, cfg.PublicBaseURL).WithTempRetention(cfg.TempRetentionDays), nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// ApplyRetention asks the backend to expire stale temporary uploads. Object
// stores install a lifecycle rule; the disk backend sweeps once per call.
func (s *Storage) ApplyRetention(ctx context.Context) error {
	if s.tempRetention <= 0 {
		return nil
	}
	exp, ok := s.backend.(Expirer)
	if !ok {
		return nil
	}
	if err := exp.ExpirePrefix(ctx, TempPrefix, s.tempRetention); err != nil {
		return fmt.Errorf("expire %s: %w", TempPrefix, err)
	}
	return nil
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Backend exposes the wrapped backend.
func (s *Storage) Backend() ObjectStorage {
	return s.backend
}
