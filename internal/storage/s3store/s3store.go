// Package s3store implements service.ObjectStore on Amazon S3 (or any S3
// compatible endpoint). Versions are ETags and conditional puts map onto the
// If-Match and If-None-Match request headers.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/service"
)

// API is the subset of the S3 client the store needs.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Region   string
	Endpoint string
	Profile  string
}

// Store is an S3-backed object store.
type Store struct {
	client API
}

var _ service.ObjectStore = (*Store)(nil)

// New builds a store from the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	slog.Debug("Configured S3 object store", "region", cfg.Region, "endpoint", opts.Endpoint)
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API) *Store {
	return &Store{client: client}
}

// GetObject downloads bucket/key. A missing key returns common.ErrNotFound.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (*service.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, mapError(err))
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close S3 response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, errors.Join(common.ErrStoreUnavailable, err))
	}

	obj := &service.Object{Body: body, Version: aws.ToString(out.ETag)}
	if out.LastModified != nil {
		obj.UpdatedAt = *out.LastModified
	}
	return obj, nil
}

// PutObject uploads body to bucket/key, honoring the conditional options.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body []byte, opts service.PutOptions) (*service.Object, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.IfAbsent {
		input.IfNoneMatch = aws.String("*")
	}
	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put s3://%s/%s: %w", bucket, key, mapError(err))
	}
	return &service.Object{Body: body, Version: aws.ToString(out.ETag)}, nil
}

// mapError translates S3 failures into the store sentinels.
func mapError(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return errors.Join(common.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return errors.Join(common.ErrNotFound, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return errors.Join(common.ErrPreconditionFailed, err)
		case "AccessDenied", "NoSuchBucket", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return common.Permanent(err)
		}
	}
	return errors.Join(common.ErrStoreUnavailable, err)
}
