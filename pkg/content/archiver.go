package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/observability"
)

// Archiver keeps a compliance copy of every generated newsletter. It is
// optional and strictly best-effort: archive failures never fail generation.
type Archiver interface {
	Archive(ctx context.Context, key string, n *Newsletter)
}

// S3Archiver stores newsletters as JSON objects keyed by cache key.
type S3Archiver struct {
	client *s3.Client
	bucket string
	logger *observability.Logger
}

// NewS3Archiver creates the archiver, or returns (nil, nil) when archiving
// is disabled in configuration.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig, logger *observability.Logger) (*S3Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.WithField("component", "content.archiver"),
	}, nil
}

// Archive uploads the newsletter JSON under newsletters/<cache key>.json.
func (a *S3Archiver) Archive(ctx context.Context, key string, n *Newsletter) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	objectKey := "newsletters/" + key + ".json"
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.logger.WithError(err).WithField("key", objectKey).Warn("failed to archive newsletter")
	}
}
