package s3

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/duckmesh/vtbench/internal/storage"
)

const csvContentType = "text/csv"

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// objectAPI is the slice of the minio client the store uses. Transfers go
// file-to-object and object-to-file; nothing is streamed through memory.
type objectAPI interface {
	StatObject(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	FGetObject(ctx context.Context, bucket, key, dst string) error
	FPutObject(ctx context.Context, bucket, key, src, contentType string) (storage.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
}

// Store keeps benchmark input files in an S3-compatible bucket (MinIO in dev).
type Store struct {
	api    objectAPI
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	store, err := newStore(minioAPI{client: client}, cfg.Bucket, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newStore(api objectAPI, bucket, prefix string) (*Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		if err := storage.ValidateKey(prefix); err != nil {
			return nil, fmt.Errorf("invalid prefix: %w", err)
		}
	}
	return &Store{api: api, bucket: bucket, prefix: prefix}, nil
}

// Fetch downloads key into dst and checks the local file against the size the
// bucket reports. A short or long copy is removed.
func (s *Store) Fetch(ctx context.Context, key, dst string) (storage.ObjectInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.StatObject(ctx, s.bucket, objectKey)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s/%s: %w", s.bucket, objectKey, err)
	}
	if err := s.api.FGetObject(ctx, s.bucket, objectKey, dst); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("download %s/%s: %w", s.bucket, objectKey, err)
	}
	if err := checkSize(dst, info.Size); err != nil {
		_ = os.Remove(dst)
		return storage.ObjectInfo{}, fmt.Errorf("download %s/%s: %w", s.bucket, objectKey, err)
	}
	return info, nil
}

// UploadCSV stores src under key as text/csv and checks that the bucket
// received every byte.
func (s *Store) UploadCSV(ctx context.Context, key, src string) (storage.ObjectInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	local, err := os.Stat(src)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s: %w", src, err)
	}
	if !local.Mode().IsRegular() {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s: not a regular file", src)
	}
	info, err := s.api.FPutObject(ctx, s.bucket, objectKey, src, csvContentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s to %s/%s: %w", src, s.bucket, objectKey, err)
	}
	if info.Size != local.Size() {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s to %s/%s: stored %d bytes, local %d: %w", src, s.bucket, objectKey, info.Size, local.Size(), storage.ErrSizeMismatch)
	}
	if info.Key == "" {
		info.Key = objectKey
	}
	return info, nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) objectKey(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}

func checkSize(local string, want int64) error {
	info, err := os.Stat(local)
	if err != nil {
		return err
	}
	if info.Size() != want {
		return fmt.Errorf("local copy has %d bytes, object has %d: %w", info.Size(), want, storage.ErrSizeMismatch)
	}
	return nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint URL: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("endpoint host is required")
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, useSSL, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
}

type minioAPI struct {
	client *minio.Client
}

func (m minioAPI) StatObject(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	obj, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return storage.ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified}, nil
}

func (m minioAPI) FGetObject(ctx context.Context, bucket, key, dst string) error {
	return notFound(m.client.FGetObject(ctx, bucket, key, dst, minio.GetObjectOptions{}))
}

func (m minioAPI) FPutObject(ctx context.Context, bucket, key, src, contentType string) (storage.ObjectInfo, error) {
	uploaded, err := m.client.FPutObject(ctx, bucket, key, src, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return storage.ObjectInfo{Key: uploaded.Key, Size: uploaded.Size, ETag: uploaded.ETag, LastModified: uploaded.LastModified}, nil
}

func (m minioAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.client.BucketExists(ctx, bucket)
}

func (m minioAPI) MakeBucket(ctx context.Context, bucket, region string) error {
	return m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

// notFound folds the S3 "no such key/bucket" responses into ErrObjectNotFound.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)
	}
	return err
}

var _ storage.DatasetStore = (*Store)(nil)
