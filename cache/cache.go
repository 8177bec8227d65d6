// Package cache implements an optional remote build cache for dumc:
// a compiled source file's object bytes, keyed by the SHA-256 of the
// file's source text, stored xz-compressed in an S3 bucket (or any
// S3-compatible endpoint, e.g. MinIO).
//
// Grounded on storage/persistence-s3.go's S3Storage (config/credential
// wiring, lazy client construction behind a mutex, the
// Bucket/Prefix/Endpoint/ForcePathStyle knobs) and scm/streams.go's xz
// stream wrapping. Unlike S3Storage, a cache miss or transport error is
// reported as an error rather than a panic: a cold or unreachable cache
// must never stop a build that would otherwise succeed locally.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ulikunitz/xz"
)

// ErrMiss is returned by Get when the cache holds no entry for the key.
var ErrMiss = errors.New("cache: miss")

// Config describes where and how to reach the remote cache. It is
// parsed from a "-cache=s3://bucket/prefix" flag value by ParseURL.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // non-empty selects an S3-compatible endpoint (MinIO, etc.)
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// ParseURL parses a "s3://bucket/prefix" cache URL.
func ParseURL(raw string) (Config, error) {
	const scheme = "s3://"
	if !strings.HasPrefix(raw, scheme) {
		return Config{}, fmt.Errorf("cache: unsupported cache URL %q, want s3://bucket[/prefix]", raw)
	}
	rest := raw[len(scheme):]
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Config{}, fmt.Errorf("cache: empty bucket in cache URL %q", raw)
	}
	return Config{Bucket: bucket, Prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Store is a lazily-connected handle to the remote cache.
type Store struct {
	cfg Config

	mu     sync.Mutex
	client *awss3.Client
	opened bool
}

// New returns a Store for cfg. It does not connect until first use.
func New(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) ensureOpen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if s.cfg.Region != "" {
		opts = append(opts, config.WithRegion(s.cfg.Region))
	}
	if s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("cache: load aws config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if s.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) { o.BaseEndpoint = aws.String(s.cfg.Endpoint) })
	}
	if s.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) { o.UsePathStyle = true })
	}

	s.client = awss3.NewFromConfig(awsCfg, s3Opts...)
	s.opened = true
	return nil
}

// Key hashes src to the cache key used by Get/Put.
func Key(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

func (s *Store) objectKey(key string) string {
	if s.cfg.Prefix == "" {
		return key + ".o.xz"
	}
	return s.cfg.Prefix + "/" + key + ".o.xz"
}

// Get fetches and decompresses the cached object for key, or ErrMiss if
// absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	defer resp.Body.Close()

	zr, err := xz.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cache: corrupt xz entry for %s: %w", key, err)
	}
	return io.ReadAll(zr)
}

// Put xz-compresses data and stores it under key, overwriting any
// existing entry.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("cache: xz writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("cache: xz compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("cache: xz flush: %w", err)
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}
