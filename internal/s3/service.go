package s3

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
)

const defaultPresignExpiry = 7 * 24 * time.Hour

// Service stores generated documents and hands back a download URL. Only the
// path and URL are kept by the billing core, never the bytes.
type Service interface {
	Save(ctx context.Context, doc *Document) (string, error)
}

type s3ServiceImpl struct {
	client    *s3.Client
	presigner *s3.PresignClient
	config    *config.S3Config
	logger    *logger.Logger
}

// NewService returns nil when blob storage is disabled
func NewService(cfg *config.Configuration, logger *logger.Logger) (Service, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(cfg.S3.Region),
	)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("failed to load aws config").
			Mark(ierr.ErrHTTPClient)
	}

	client := s3.NewFromConfig(awsCfg)
	return &s3ServiceImpl{
		client:    client,
		presigner: s3.NewPresignClient(client),
		config:    &cfg.S3,
		logger:    logger,
	}, nil
}

func (s *s3ServiceImpl) objectKey(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.config.KeyPrefix != "" {
		return path.Join(s.config.KeyPrefix, p)
	}
	return p
}

// Save uploads the document and returns a presigned download URL
func (s *s3ServiceImpl) Save(ctx context.Context, doc *Document) (string, error) {
	if doc == nil || doc.Path == "" || len(doc.Data) == 0 {
		return "", ierr.NewError("document path and data are required").
			WithHint("Cannot store an empty document").
			Mark(ierr.ErrValidation)
	}

	key := s.objectKey(doc.Path)
	contentType := doc.resolvedContentType()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", ierr.WithError(err).WithHint("failed to upload document").
			WithMessagef("bucket:%s, key:%s", s.config.Bucket, key).
			Mark(ierr.ErrTransient)
	}

	expiry := s.config.URLExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", ierr.WithError(err).WithHint("failed to get presigned url").
			WithMessagef("bucket:%s, key:%s", s.config.Bucket, key).
			Mark(ierr.ErrHTTPClient)
	}

	s.logger.Debugw("document stored",
		"bucket", s.config.Bucket,
		"key", key,
		"content_type", contentType,
		"size", len(doc.Data),
	)
	return result.URL, nil
}
