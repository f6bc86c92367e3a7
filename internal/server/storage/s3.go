package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/filex"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// keyPrefix namespaces every object this service writes, so keys cannot
// collide with foreign objects and prefix-scoped listing stays possible.
const keyPrefix = "filegate"

// Seams for testing the AWS SDK interaction without a live endpoint.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Config carries the settings needed to reach an S3-compatible endpoint.
type S3Config struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Backend stores files in an S3-compatible object store (MinIO, AWS).
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend builds a client for the configured endpoint.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.RootUser,
			cfg.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Backend{client: client, bucket: cfg.Bucket}, nil
}

// newObjectKey namespaces an upload under the fixed prefix plus a generated
// unique segment.
func newObjectKey(name string) string {
	return fmt.Sprintf("%s/%s/%s", keyPrefix, uuid.New(), filex.SanitizeName(name))
}

func objectKeyOf(loc models.Locator) (string, error) {
	key, ok := loc.(models.ObjectKey)
	if !ok {
		return "", fmt.Errorf("s3 backend given non-object locator: %w", common.ErrNotSupported)
	}
	return string(key), nil
}

func (b *S3Backend) Put(ctx context.Context, r io.Reader, suggestedName string) (models.Locator, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read upload: %w", err)
	}

	key := newObjectKey(suggestedName)
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("put object %s: %w", key, err)
	}

	return models.ObjectKey(key), int64(len(data)), nil
}

func (b *S3Backend) Get(ctx context.Context, loc models.Locator) ([]byte, error) {
	key, err := objectKeyOf(loc)
	if err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Replace rewrites the object under its existing key.
func (b *S3Backend) Replace(ctx context.Context, loc models.Locator, r io.Reader) (int64, error) {
	key, err := objectKeyOf(loc)
	if err != nil {
		return 0, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read replacement: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", key, err)
	}
	return int64(len(data)), nil
}

func (b *S3Backend) Head(ctx context.Context, loc models.Locator) (ObjectInfo, error) {
	key, err := objectKeyOf(loc)
	if err != nil {
		return ObjectInfo{}, err
	}

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("head object %s: %w", key, err)
	}

	info := ObjectInfo{}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModifiedAt = out.LastModified.UTC()
	}
	return info, nil
}

func (b *S3Backend) Delete(ctx context.Context, loc models.Locator) error {
	key, err := objectKeyOf(loc)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// PresignedURL issues a time-limited GET URL that makes the client download
// directly from the object store with an attachment disposition. Plain
// object-store downloads are never proxied through the application.
func (b *S3Backend) PresignedURL(ctx context.Context, loc models.Locator, displayName string, ttl time.Duration) (string, error) {
	key, err := objectKeyOf(loc)
	if err != nil {
		return "", err
	}

	disposition := fmt.Sprintf("attachment; filename=%q", displayName)
	req, err := presignGetObject(newS3PresignClient(b.client), ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(disposition),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	return req.URL, nil
}
