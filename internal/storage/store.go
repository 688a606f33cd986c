package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore uploads a transcoded artifact and returns its resolvable URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// ObjectKey builds the storage key for one transcoded image. It is a pure
// function of stable inputs, so a redelivered job overwrites the same object
// instead of accumulating duplicates.
func ObjectKey(requestID string, serialNumber int, imageIndex int) string {
	return fmt.Sprintf("processed/%s/%d-%d.jpg", requestID, serialNumber, imageIndex)
}

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads artifacts to an S3-compatible bucket.
type S3Store struct {
	client   s3API
	bucket   string
	region   string
	endpoint string
}

func NewS3Store(client *s3.Client, bucket string, region string, endpoint string) (*S3Store, error) {
	return newS3Store(client, bucket, region, endpoint)
}

func newS3Store(client s3API, bucket string, region string, endpoint string) (*S3Store, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	return &S3Store{
		client:   client,
		bucket:   bucket,
		region:   region,
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("object store is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is required")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("object body is empty")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", classifyUploadError(key, err)
	}

	return s.ObjectURL(key), nil
}

// ObjectURL resolves the public location of a stored object. A configured
// endpoint (MinIO, localstack) takes precedence over virtual-hosted AWS URLs.
func (s *S3Store) ObjectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
