// Package s3 provides the S3-backed remote tier client.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/metrics"
	"github.com/marmos91/tierfs/pkg/remote"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// Config holds configuration for the S3 remote client.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all object keys (e.g., "archive/").
	// Should end with "/" if non-empty.
	KeyPrefix string

	// CredentialsFile is an AWS shared-credentials file. Empty uses the
	// SDK default chain. The file is read-only input; the client never
	// writes it.
	CredentialsFile string

	// Profile selects a profile within CredentialsFile.
	Profile string

	// MaxRetries bounds retry attempts for retryable errors.
	// Default: 3.
	MaxRetries int

	// ForcePathStyle forces path-style addressing (required for
	// Localstack/MinIO).
	ForcePathStyle bool
}

// Client is the S3 implementation of remote.Client.
type Client struct {
	client     *s3.Client
	bucket     string
	keyPrefix  string
	maxRetries int
	metrics    metrics.RemoteMetrics

	closed bool
	mu     sync.RWMutex
}

// New creates a Client with an existing S3 client.
func New(client *s3.Client, cfg Config, m metrics.RemoteMetrics) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		client:     client,
		bucket:     cfg.Bucket,
		keyPrefix:  cfg.KeyPrefix,
		maxRetries: maxRetries,
		metrics:    m,
	}
}

// NewFromConfig creates a Client by building the S3 client from cfg.
// This is the preferred constructor when no S3 client exists yet.
func NewFromConfig(ctx context.Context, cfg Config, m metrics.RemoteMetrics) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, awsconfig.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg, m), nil
}

// key returns the full S3 key for a tier path.
func (c *Client) key(path string) string {
	return c.keyPrefix + strings.Trim(path, "/")
}

// path strips the key prefix from a full S3 key.
func (c *Client) path(key string) string {
	return strings.TrimPrefix(key, c.keyPrefix)
}

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return tiererrors.NewRemoteUnavailable(fmt.Errorf("client is closed"))
	}
	return nil
}

// withRetry runs fn with exponential backoff on retryable errors.
// Cancellation is cooperative: the context is checked between attempts,
// an in-flight request is not aborted.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)

	start := time.Now()
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		mapped := classify(err, "")
		if !tiererrors.IsRetryable(mapped) {
			return backoff.Permanent(mapped)
		}
		logger.Warn("Retrying remote operation",
			"operation", op,
			"attempt", attempt,
			"error", err)
		return mapped
	}, policy)

	if c.metrics != nil {
		c.metrics.ObserveOperation(op, time.Since(start), err == nil)
	}
	return err
}

// List implements remote.Client using delimiter-based listing, so S3
// common prefixes surface as directory entries.
func (c *Client) List(ctx context.Context, path string) ([]tier.Entry, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	dir := strings.Trim(path, "/")
	prefix := c.keyPrefix
	if dir != "" {
		prefix = c.key(dir) + "/"
	}

	var entries []tier.Entry
	err := c.withRetry(ctx, "list", func() error {
		entries = entries[:0]

		paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(c.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}

			for _, cp := range page.CommonPrefixes {
				sub := strings.TrimSuffix(c.path(*cp.Prefix), "/")
				entries = append(entries, tier.Entry{
					Path:     sub,
					Kind:     tier.KindDirectory,
					Location: tier.LocationRemote,
				})
			}
			for _, obj := range page.Contents {
				p := c.path(*obj.Key)
				if strings.Trim(p, "/") == dir {
					// Placeholder object for the directory itself.
					continue
				}
				e := tier.Entry{
					Path:     p,
					Kind:     tier.KindFile,
					Location: tier.LocationRemote,
				}
				if obj.Size != nil {
					e.Size = uint64(*obj.Size)
				}
				if obj.LastModified != nil {
					e.ModTime = *obj.LastModified
				}
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if dir != "" && len(entries) == 0 {
		// Distinguish empty-vs-missing: a missing directory has no
		// objects under its prefix at all.
		if _, statErr := c.Stat(ctx, dir); statErr != nil {
			return nil, statErr
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Stat implements remote.Client. Directories are detected by probing
// for any object under the path prefix.
func (c *Client) Stat(ctx context.Context, path string) (tier.Entry, error) {
	if err := c.checkOpen(); err != nil {
		return tier.Entry{}, err
	}

	p := strings.Trim(path, "/")

	var entry tier.Entry
	err := c.withRetry(ctx, "stat", func() error {
		head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key(p)),
		})
		if err == nil {
			entry = tier.Entry{
				Path:     p,
				Kind:     tier.KindFile,
				Location: tier.LocationRemote,
			}
			if head.ContentLength != nil {
				entry.Size = uint64(*head.ContentLength)
			}
			if head.LastModified != nil {
				entry.ModTime = *head.LastModified
			}
			return nil
		}
		if !isNotFoundError(err) {
			return err
		}

		// Not an object; a single keyed object below the prefix makes
		// it a directory.
		list, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(c.bucket),
			Prefix:  aws.String(c.key(p) + "/"),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return err
		}
		if len(list.Contents) == 0 && len(list.CommonPrefixes) == 0 {
			return backoff.Permanent(tiererrors.NewNotFound(path))
		}
		entry = tier.Entry{
			Path:     p,
			Kind:     tier.KindDirectory,
			Location: tier.LocationRemote,
		}
		if len(list.Contents) > 0 && list.Contents[0].LastModified != nil {
			entry.ModTime = *list.Contents[0].LastModified
		}
		return nil
	})
	if err != nil {
		return tier.Entry{}, err
	}
	return entry, nil
}

// Read implements remote.Client using S3 range requests for partial reads.
func (c *Client) Read(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(path)),
	}
	if offset > 0 || length >= 0 {
		if length >= 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	var data []byte
	err := c.withRetry(ctx, "read", func() error {
		resp, err := c.client.GetObject(ctx, input)
		if err != nil {
			if isNotFoundError(err) {
				return backoff.Permanent(tiererrors.NewNotFound(path))
			}
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read s3 object body: %w", err)
		}
		if c.metrics != nil {
			c.metrics.AddBytes("read", len(data))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements remote.Client.
func (c *Client) Write(ctx context.Context, path string, data []byte) (tier.Entry, error) {
	if err := c.checkOpen(); err != nil {
		return tier.Entry{}, err
	}

	err := c.withRetry(ctx, "write", func() error {
		_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key(path)),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return tier.Entry{}, err
	}
	if c.metrics != nil {
		c.metrics.AddBytes("write", len(data))
	}

	return tier.Entry{
		Path:     strings.Trim(path, "/"),
		Kind:     tier.KindFile,
		Size:     uint64(len(data)),
		ModTime:  time.Now(),
		Location: tier.LocationRemote,
	}, nil
}

// Move implements remote.Client as copy-then-delete; S3 has no rename.
func (c *Client) Move(ctx context.Context, path, newPath string) (tier.Entry, error) {
	if err := c.checkOpen(); err != nil {
		return tier.Entry{}, err
	}

	err := c.withRetry(ctx, "move", func() error {
		_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(c.bucket),
			CopySource: aws.String(c.bucket + "/" + c.key(path)),
			Key:        aws.String(c.key(newPath)),
		})
		if err != nil {
			if isNotFoundError(err) {
				return backoff.Permanent(tiererrors.NewNotFound(path))
			}
			return err
		}
		_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key(path)),
		})
		return err
	})
	if err != nil {
		return tier.Entry{}, err
	}

	return c.Stat(ctx, newPath)
}

// Delete implements remote.Client.
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	return c.withRetry(ctx, "delete", func() error {
		// DeleteObject succeeds on missing keys; surface NotFound the
		// way the contract requires.
		_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key(path)),
		})
		if err != nil {
			if isNotFoundError(err) {
				return backoff.Permanent(tiererrors.NewNotFound(path))
			}
			return err
		}

		_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key(path)),
		})
		return err
	})
}

// HealthCheck verifies the bucket is accessible via HeadBucket.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return classify(err, "")
	}
	return nil
}

// Close marks the client as closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Ensure Client implements remote.Client.
var _ remote.Client = (*Client)(nil)
