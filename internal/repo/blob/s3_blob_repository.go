package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

// ErrMissingBucket is returned when the S3 backend is selected without a bucket.
var ErrMissingBucket = errors.New("s3 bucket not configured")

// S3BlobRepositoryConfig holds configuration for the S3 blob repository.
// Any S3 compatible store (MinIO, Ceph, R2) works when Endpoint is set.
type S3BlobRepositoryConfig struct {
	Bucket          string `env:"BUCKET" default:""`
	Region          string `env:"REGION" default:"us-east-1"`
	Endpoint        string `env:"ENDPOINT" default:""`
	AccessKeyID     string `env:"ACCESS_KEY_ID" default:""`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY" default:""`

	// Prefix is prepended to every object key
	Prefix string `env:"PREFIX" default:""`

	// UsePathStyle addresses objects as endpoint/bucket/key, required by MinIO
	UsePathStyle bool `env:"USE_PATH_STYLE" default:"true"`
}

// s3API is the part of *s3.Client the repository needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ s3API = (*s3.Client)(nil)

// S3Repository implements Repository on top of an S3 bucket.
type S3Repository struct {
	client s3API
	bucket string
	prefix string
	ext    string
	log    logging.Logger
}

var _ Repository = (*S3Repository)(nil)

// S3BlobRepositoryFactory creates a factory function that returns a new S3Repository.
func S3BlobRepositoryFactory(cfg S3BlobRepositoryConfig) RepositoryFactory {
	return func(
		ctx context.Context,
		name string,
		ext string,
	) (Repository, error) {
		return NewS3BlobRepository(ctx, name, ext, cfg)
	}
}

// NewS3BlobRepository creates an S3Repository storing objects below Prefix/name.
// Static credentials are used when configured, the default AWS chain otherwise.
func NewS3BlobRepository(ctx context.Context, name, ext string, cfg S3BlobRepositoryConfig) (*S3Repository, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Repository(client, cfg.Bucket, path.Join(cfg.Prefix, name), ext), nil
}

func newS3Repository(client s3API, bucket, prefix, ext string) *S3Repository {
	return &S3Repository{
		client: client,
		bucket: bucket,
		prefix: prefix,
		ext:    ext,
		log: logging.GetLogger("repo.blob.s3_repository").With(
			logging.Group("repo", "bucket", bucket, "prefix", prefix, "ext", ext),
		),
	}
}

// Key returns the object key of a blob.
func (r *S3Repository) Key(id domain.BlobID) string {
	return path.Join(r.prefix, fmt.Sprintf("%s.%s", path.Base("/"+string(id)), r.ext))
}

func isS3NotFound(err error) bool {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
		apiErr    smithy.APIError
	)

	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return true
	case errors.As(err, &apiErr):
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	default:
		return false
	}
}

func (r *S3Repository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	key := r.Key(blob.ID)

	defer func() {
		log := r.log.With(logging.Group("blob", "id", blob.ID, "key", key))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(blob.Bytes()),
		ContentLength: aws.Int64(blob.Size()),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", errors.Join(domain.ErrUpstreamUnavailable, err))
	}

	return nil
}

func (r *S3Repository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	key := r.Key(id)

	defer func() {
		log := r.log.With(logging.Group("blob", "id", id, "key", key))
		if err != nil && !errors.Is(err, domain.ErrBlobNotFound) {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else if err == nil {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("get object: %w", errors.Join(domain.ErrBlobNotFound, err))
		}

		return nil, fmt.Errorf("get object: %w", errors.Join(domain.ErrUpstreamUnavailable, err))
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return domain.NewBlob(id, body), nil
}
