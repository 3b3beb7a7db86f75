package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Config describes an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// S3 stores images as objects in a single bucket.
type S3 struct {
	client  *minio.Client
	bucket  string
	breaker *CircuitBreaker
	log     *zap.Logger
}

const (
	breakerMaxFailures = 5
	breakerTimeout     = 30 * time.Second
)

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme: host:port, insecure by default for local MinIO.
	return raw, false, nil
}

// NewS3 connects to the bucket described by cfg and fails if it does not exist.
func NewS3(ctx context.Context, cfg S3Config, log *zap.Logger) (*S3, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 configuration incomplete")
	}
	if log == nil {
		log = zap.NewNop()
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("s3 bucket does not exist: %s", cfg.Bucket)
	}

	log = log.Named("storage")
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: NewCircuitBreaker(breakerMaxFailures, breakerTimeout, log),
		log:     log,
	}, nil
}

// Kind implements Storage.
func (s *S3) Kind() string { return "s3" }

// Circuit reports the state of the breaker guarding bucket calls.
func (s *S3) Circuit() CircuitState { return s.breaker.State() }

// Save implements Storage. The object only becomes visible once the upload
// completes.
func (s *S3) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = SanitizeName(name)

	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)
	contentType := ContentTypeFor(name, head)

	var info minio.UploadInfo
	err := s.breaker.Execute(func() error {
		var err error
		info, err = s.client.PutObject(ctx, s.bucket, name, br, -1,
			minio.PutObjectOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", name, err)
	}

	s.log.Debug("image stored", zap.String("filename", name), zap.Int64("bytes", info.Size))
	return name, nil
}

// Exists implements Storage.
func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.stat(ctx, SanitizeName(name))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Open implements Storage.
func (s *S3) Open(ctx context.Context, name string) (*Object, error) {
	name = SanitizeName(name)

	info, err := s.stat(ctx, name)
	if err != nil {
		return nil, err
	}

	var obj *minio.Object
	err = s.breaker.Execute(func() error {
		var err error
		obj, err = s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}

	return &Object{
		ReadSeekCloser: obj,
		Name:           name,
		Size:           info.Size,
		ModTime:        info.LastModified,
		ContentType:    info.ContentType,
	}, nil
}

// stat looks the object up, mapping a missing key to ErrNotFound. A missing
// key does not count against the breaker.
func (s *S3) stat(ctx context.Context, name string) (minio.ObjectInfo, error) {
	var (
		info     minio.ObjectInfo
		notFound bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		info, err = s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
		if isNotFound(err) {
			notFound = true
			return nil
		}
		return err
	})
	if notFound {
		return minio.ObjectInfo{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return minio.ObjectInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return info, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchBucket" {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// Check implements Storage.
func (s *S3) Check(ctx context.Context) error {
	return s.breaker.Execute(func() error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("bucket does not exist: %s", s.bucket)
		}
		return nil
	})
}
