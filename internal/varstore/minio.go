package varstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore keeps each variable as one small object; the variable path
// is the object key.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg Config) (*MinIOStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("varstore client: %w", err)
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the variable bucket when missing.
func (s *MinIOStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region})
}

// Check reports whether the bucket is reachable, for readiness probes.
func (s *MinIOStore) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("varstore bucket exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("varstore bucket missing: %s", s.bucket)
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, path, value string) error {
	key := objectKey(path)
	if key == "" {
		return errors.New("variable path is required")
	}
	reader := strings.NewReader(value)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return fmt.Errorf("put variable %s: %w", path, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, path string) (string, error) {
	key := objectKey(path)
	if key == "" {
		return "", errors.New("variable path is required")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get variable %s: %w", path, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read variable %s: %w", path, err)
	}
	return string(raw), nil
}

func (s *MinIOStore) Delete(ctx context.Context, path string) error {
	key := objectKey(path)
	if key == "" {
		return errors.New("variable path is required")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete variable %s: %w", path, err)
	}
	return nil
}

func (s *MinIOStore) ListByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	key := objectKey(prefix)
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}

	out := map[string]string{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    key,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list variables %s: %w", prefix, obj.Err)
		}
		value, err := s.Get(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		out["/"+obj.Key] = value
	}
	return out, nil
}

func objectKey(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), "/")
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
