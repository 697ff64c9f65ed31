package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	PublicEndpoint  string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store writes public objects to an S3-compatible bucket (AWS, MinIO, R2).
type Store struct {
	log       *logger.Logger
	client    *s3.Client
	bucket    string
	region    string
	publicURL string
	pathStyle bool
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("missing S3_BUCKET")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, r string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           endpoint,
				PartitionID:   "aws",
				SigningRegion: region,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	public := strings.TrimRight(strings.TrimSpace(cfg.PublicEndpoint), "/")
	if public == "" {
		public = endpoint
	}
	s := &Store{
		log:       log.With("service", "S3Store"),
		client:    client,
		bucket:    bucket,
		region:    region,
		publicURL: public,
		pathStyle: cfg.UsePathStyle,
	}
	s.log.Info("Object storage initialized", "bucket", bucket, "region", region, "endpoint", endpoint)
	return s, nil
}

func (s *Store) Name() string { return "s3" }

func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Health performs a HeadBucket request.
func (s *Store) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *Store) PublicURL(key string) string {
	return publicURL(s.publicURL, s.bucket, s.region, s.pathStyle, key)
}

func publicURL(base, bucket, region string, pathStyle bool, key string) string {
	key = strings.TrimLeft(key, "/")
	if base != "" {
		if pathStyle {
			return fmt.Sprintf("%s/%s/%s", base, bucket, key)
		}
		if i := strings.Index(base, "://"); i >= 0 {
			return fmt.Sprintf("%s%s.%s/%s", base[:i+3], bucket, base[i+3:], key)
		}
		return fmt.Sprintf("%s/%s/%s", base, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
