package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("blob/s3")

// S3Config selects the bucket. Credentials come from the default AWS chain.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional, e.g. MinIO
	// PathStyle addresses objects as endpoint/bucket/key.
	PathStyle bool
	// HTTPClient overrides the transport; tests use it.
	HTTPClient *http.Client
	// ConfigOptions are appended to the AWS config loaders.
	ConfigOptions []func(*config.LoadOptions) error
}

// S3 stores payloads as objects of one bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3 store.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, cfg.ConfigOptions...)
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3) Put(ctx context.Context, key, contentType string, body []byte) error {
	ctx, span := tracer.Start(ctx, "S3.Put")
	defer span.End()
	span.SetAttributes(attribute.String("blob.key", key), attribute.Int("blob.size", len(body)))

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "S3.Get")
	defer span.End()
	span.SetAttributes(attribute.String("blob.key", key))

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", &domain.ErrNotFound{Resource: "blob", ID: key}
		}
		return nil, "", &domain.ErrPersistence{Operation: "get object", Err: err}
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", &domain.ErrPersistence{Operation: "read object", Err: err}
	}
	return body, aws.ToString(out.ContentType), nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "S3.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("blob.key", key))

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
