package s3images

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	scheme            = "s3://"
	defaultPresignTTL = 15 * time.Minute
)

// Config holds S3 client configuration for question images.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint points at an S3-compatible store (e.g. MinIO); empty means AWS.
	Endpoint   string
	PresignTTL time.Duration
}

// Resolver turns s3://bucket/key image references into pre-signed GET URLs.
// Any other reference (a Telegram file id, a plain URL) is returned unchanged.
type Resolver struct {
	presign *s3.PresignClient
	ttl     time.Duration
	logger  *zap.Logger
}

// New creates a resolver using credentials from config or the environment
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY), falling back to the default chain.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
		logger.Info("image resolver using static credentials", zap.String("region", cfg.Region))
	} else {
		logger.Warn("image resolver using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &Resolver{presign: s3.NewPresignClient(client), ttl: ttl, logger: logger}, nil
}

// Resolve implements app.ImageResolver.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	bucket, key, ok := ParseRef(ref)
	if !ok {
		return ref, nil
	}
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = r.ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", ref, err)
	}
	return req.URL, nil
}

// ParseRef splits s3://bucket/key. Anything else reports false.
func ParseRef(ref string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(ref, scheme) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(ref, scheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
