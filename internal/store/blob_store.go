package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"
)

// BlobStore is the S3-backed content blob store (spec.md §6: "Keyed by
// opaque string; get(key) -> bytes, put(key, bytes)"), holding role
// code/media under their S3Key. Circuit-broken the same way ProjectStore
// wraps Mongo.
type BlobStore struct {
	client *s3.Client
	bucket string
	cb     *gobreaker.CircuitBreaker
}

// NewBlobStore loads the default AWS config chain (env vars, shared config,
// IAM role) and returns a gateway over the given bucket/region.
func NewBlobStore(ctx context.Context, bucket, region string) (*BlobStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewBlobStoreWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewBlobStoreWithClient builds a gateway over an already-configured S3
// client, letting callers (including tests in other packages) point at a
// local endpoint instead of the default AWS config chain.
func NewBlobStoreWithClient(client *s3.Client, bucket string) *BlobStore {
	st := gobreaker.Settings{
		Name:        "s3-blobs",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues("blob").Set(stateValue(to))
		},
	}

	return &BlobStore{
		client: client,
		bucket: bucket,
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

// Get fetches the blob stored under key (e.g. a role's CodeKey/MediaKey).
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerFailures.WithLabelValues("blob").Inc()
		}
		metrics.BlobOperations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("%w: %v", apperr.ErrBlobUnavailable, err)
	}
	metrics.BlobOperations.WithLabelValues("get", "success").Inc()
	return res.([]byte), nil
}

// Put uploads data under key, used when creating/saving a role's code/media.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return nil, err
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerFailures.WithLabelValues("blob").Inc()
		}
		metrics.BlobOperations.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("%w: %v", apperr.ErrBlobUnavailable, err)
	}
	metrics.BlobOperations.WithLabelValues("put", "success").Inc()
	return nil
}

// Ping satisfies internal/health.BlobChecker by checking the bucket exists
// and is reachable.
func (b *BlobStore) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrBlobUnavailable, err)
	}
	return nil
}
