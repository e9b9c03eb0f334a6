// Package objectstore is the S3-compatible object store client backing
// C10's storage stage and C7's direct SVG upload, spec.md §6's object-store
// layout.
package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/mime"
)

const (
	maxRetries  = 3
	httpTimeout = 2 * time.Minute
)

// Client wraps a single S3-compatible endpoint. Bucket, scoped to one
// bucket name, is what the rest of the pipeline actually depends on.
type Client struct {
	s3            *s3.Client
	uploader      *manager.Uploader
	publicURLBase string
}

// New builds a Client from config.ObjectStorage, following the same
// endpoint-resolver/path-style pattern the pack's only S3 provider uses for
// S3-compatible (non-AWS) endpoints.
func New(ctx context.Context, cfg config.ObjectStorage) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Timeout: httpTimeout}),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}
	awsCfg.RetryMaxAttempts = maxRetries

	pathStyle := cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "amazonaws.com")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	return &Client{
		s3:            client,
		uploader:      manager.NewUploader(client),
		publicURLBase: cfg.PublicURLBase,
	}, nil
}

// Bucket returns a handle bound to a single bucket name, implementing
// internal/visual.ObjectStore's Put contract and internal/storagestage's
// dedup-by-hash upload — one shared client/connection pool, one handle per
// artifact kind (images, docs, thumbs).
func (c *Client) Bucket(name string) *Bucket {
	return &Bucket{client: c, name: name}
}

// Bucket implements internal/visual.ObjectStore against one bucket.
type Bucket struct {
	client *Client
	name   string
}

// Put uploads content under key, skipping the upload entirely when the
// object already exists — the idempotent-PUT behavior spec.md §4.10/§6
// require, since callers key uploads so a retry reuses the same key.
func (b *Bucket) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = mime.StringTypeByExtension(key)
	}
	exists, err := b.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("objectstore: head %s/%s: %w", b.name, key, err)
	}
	if !exists {
		_, err = b.client.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.name),
			Key:         aws.String(key),
			Body:        bytes.NewReader(content),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return "", fmt.Errorf("objectstore: put %s/%s: %w", b.name, key, err)
		}
	}
	return b.client.publicURL(b.name + "/" + key), nil
}

// PutContent uploads content keyed by its own sha256 hash (plus ext, if
// given) and reports whether the key already existed — the content-address
// layout spec.md §6 describes and the dedup check storagestage runs before
// writing an images/links/videos row for an artifact it has already stored.
func (b *Bucket) PutContent(ctx context.Context, content []byte, ext, contentType string) (storageURL, storagePath, fileHash string, deduped bool, err error) {
	if contentType == "" && ext != "" {
		contentType = mime.StringTypeByExtension("file" + ext)
	}
	sum := sha256.Sum256(content)
	fileHash = hex.EncodeToString(sum[:])
	key := fileHash
	if ext != "" {
		key += ext
	}

	exists, err := b.Exists(ctx, key)
	if err != nil {
		return "", "", "", false, fmt.Errorf("objectstore: head %s/%s: %w", b.name, key, err)
	}
	if !exists {
		_, err = b.client.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.name),
			Key:         aws.String(key),
			Body:        bytes.NewReader(content),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return "", "", "", false, fmt.Errorf("objectstore: put %s/%s: %w", b.name, key, err)
		}
	}

	path := b.name + "/" + key
	return b.client.publicURL(path), path, fileHash, exists, nil
}

// Exists reports whether key is already present in the bucket.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var notFound *smithyhttp.ResponseError
	if errors.As(err, &notFound) && notFound.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	// Some S3-compatible backends return a generic error without the typed
	// smithy response wrapper; treat "not found"-shaped messages the same
	// way rather than failing the whole upload.
	if strings.Contains(strings.ToLower(err.Error()), "not found") {
		return false, nil
	}
	return false, err
}

func (c *Client) publicURL(path string) string {
	if c.publicURLBase == "" {
		return path
	}
	return strings.TrimRight(c.publicURLBase, "/") + "/" + path
}
