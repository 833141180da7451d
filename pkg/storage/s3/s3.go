// Package s3 provides an object uploader backed by Amazon S3 or any
// S3-compatible store (MinIO, R2, etc.).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/MrWong99/echoscribe/pkg/storage"
)

// Client abstracts the S3 API operations used by [Uploader].
// The [s3.Client] type satisfies this interface.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader implements storage.Uploader on top of the S3 API.
//
// All object paths are mapped to keys under an optional prefix. The caller
// is responsible for configuring the [s3.Client] with appropriate
// credentials, region, and endpoint.
type Uploader struct {
	client Client
	bucket string
	prefix string
}

// New creates an S3-backed uploader.
//
// The client should be pre-configured (credentials, region, endpoint).
// Any type satisfying [Client] is accepted; typically an [s3.Client].
// Prefix is prepended to all object keys; pass "" for no prefix.
func New(client Client, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix}
}

// NewFromDefaultConfig creates an uploader using the ambient AWS credential
// chain (environment, shared config, instance role). Region may be empty to
// use the chain's default.
func NewFromDefaultConfig(ctx context.Context, bucket, prefix, region string) (*Uploader, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// key builds the full S3 object key for the given storage path.
func (u *Uploader) key(path string) string {
	if u.prefix == "" {
		return path
	}
	return u.prefix + "/" + path
}

// Upload stores data under the given path via PutObject. A non-overwriting
// upload is made conditional with If-None-Match: * so an existing object
// surfaces as storage.ErrObjectExists instead of being replaced.
func (u *Uploader) Upload(ctx context.Context, path string, data []byte, contentType string, overwrite bool) (string, error) {
	key := u.key(path)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if !overwrite {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		if isPreconditionFailed(err) {
			return "", fmt.Errorf("s3: put %s: %w", key, storage.ErrObjectExists)
		}
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

// isPreconditionFailed reports whether err is the S3 rejection of a
// conditional If-None-Match write against an existing object.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ storage.Uploader = (*Uploader)(nil)
