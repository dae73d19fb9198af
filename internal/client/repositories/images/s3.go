package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/randpic/internal/client/models"
)

const (
	metaOriginLocator = "origin-locator"
	metaCreatedAt     = "created-at"
)

// S3API is the subset of *s3.Client used by S3Repository.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures the S3 client. Region is required; the rest are for
// S3-compatible servers such as MinIO.
type S3Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds an S3 client from opts and the default AWS credential
// chain (static keys take precedence when both are set).
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// S3Repository stores each record as one object, key <prefix>/<id>. The
// origin locator and creation time travel in object metadata.
type S3Repository struct {
	api    S3API
	bucket string
	prefix string
}

func NewS3Repository(api S3API, bucket, prefix string) *S3Repository {
	return &S3Repository{api: api, bucket: bucket, prefix: prefix}
}

func (r *S3Repository) key(id string) string {
	if r.prefix == "" {
		return id
	}
	return path.Join(r.prefix, id)
}

func (r *S3Repository) listPrefix() *string {
	if r.prefix == "" {
		return nil
	}
	return aws.String(r.prefix + "/")
}

func (r *S3Repository) Put(ctx context.Context, rec *models.ImageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(r.key(rec.ID)),
		Body:          bytes.NewReader(rec.Data),
		ContentLength: aws.Int64(int64(len(rec.Data))),
		Metadata: map[string]string{
			metaOriginLocator: url.QueryEscape(rec.OriginLocator),
			metaCreatedAt:     createdAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return storageErr("put", rec.ID, err)
	}
	return nil
}

func (r *S3Repository) Get(ctx context.Context, id string) (*models.ImageRecord, error) {
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, storageErr("get", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, storageErr("get", id, fmt.Errorf("read object: %w", err))
	}

	rec := &models.ImageRecord{ID: id, Data: data}
	if v, ok := out.Metadata[metaOriginLocator]; ok {
		if loc, err := url.QueryUnescape(v); err == nil {
			rec.OriginLocator = loc
		}
	}
	if v, ok := out.Metadata[metaCreatedAt]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.CreatedAt = ts
		}
	}
	return rec, nil
}

// Clear deletes every object under the prefix, one list page at a time.
func (r *S3Repository) Clear(ctx context.Context) error {
	p := s3.NewListObjectsV2Paginator(r.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: r.listPrefix(),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return storageErr("clear", "", fmt.Errorf("list objects: %w", err))
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}

		out, err := r.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(r.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return storageErr("clear", "", fmt.Errorf("delete objects: %w", err))
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return storageErr("clear", aws.ToString(first.Key),
				fmt.Errorf("delete objects: %d failed: %s", len(out.Errors), aws.ToString(first.Message)))
		}
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
