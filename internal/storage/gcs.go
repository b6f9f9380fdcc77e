package storage

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/esurat/apiserver/config"
)

// GCSClient wraps the Google Cloud Storage SDK client and bucket name.
type GCSClient struct {
	client    *storage.Client
	bucket    string
	projectID string
}

// NewGCSClient constructs a GCS client from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// EnsureBucket ensures the configured bucket exists.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

// ExpirePrefix adds a delete rule for prefix to the bucket lifecycle.
// Existing delete rules on the same prefix are replaced.
func (g *GCSClient) ExpirePrefix(ctx context.Context, prefix string, age time.Duration) error {
	bucket := g.client.Bucket(g.bucket)
	attrs, err := bucket.Attrs(ctx)
	if err != nil {
		return err
	}
	lc := withDeleteRule(attrs.Lifecycle, prefix, age)
	_, err = bucket.Update(ctx, storage.BucketAttrsToUpdate{Lifecycle: &lc})
	return err
}

func withDeleteRule(lc storage.Lifecycle, prefix string, age time.Duration) storage.Lifecycle {
	rules := make([]storage.LifecycleRule, 0, len(lc.Rules)+1)
	for _, rule := range lc.Rules {
		if rule.Action.Type == storage.DeleteAction && slices.Contains(rule.Condition.MatchesPrefix, prefix) {
			continue
		}
		rules = append(rules, rule)
	}
	rules = append(rules, storage.LifecycleRule{
		Action: storage.LifecycleAction{Type: storage.DeleteAction},
		Condition: storage.LifecycleCondition{
			AgeInDays:     int64(ageInDays(age)),
			MatchesPrefix: []string{prefix},
		},
	})
	return storage.Lifecycle{Rules: rules}
}

// Put uploads an object with the cache policy of its prefix.
func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if strings.TrimSpace(contentType) != "" {
		writer.ContentType = contentType
	}
	writer.CacheControl = CacheControl(key)
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	return r, err
}

func (g *GCSClient) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// Bucket returns the configured bucket name.
func (g *GCSClient) Bucket() string {
	return g.bucket
}
