package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sony/gobreaker"

	"gear-market/internal/core/config"
)

// S3 works against AWS S3 and S3-compatible endpoints (R2, MinIO).
type S3 struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
	cb       *gobreaker.CircuitBreaker
}

func NewS3(c config.Storage) (*S3, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required for s3")
	}
	region := c.Region
	if region == "" {
		region = "auto"
	}
	awsCfg := &aws.Config{Region: aws.String(region)}
	if c.Endpoint != "" {
		awsCfg.Endpoint = aws.String(c.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if c.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(c.AccessKey, c.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, region)
	}
	return &S3{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   c.Bucket,
		baseURL:  baseURL,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "s3:" + c.Bucket,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

func (s *S3) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, err := executeWithBreaker(s.cb, func() (*s3manager.UploadOutput, error) {
		return s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        r,
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := executeWithBreaker(s.cb, func() (*s3.DeleteObjectOutput, error) {
		return s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}
	return nil
}

func (s *S3) URL(key string) string { return joinURL(s.baseURL, key) }

func executeWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}
