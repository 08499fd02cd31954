// Package media hands out presigned S3 PUT URLs so browsers can upload
// featured images straight to object storage. The returned public URL is what
// the client then stores in a post's featuredImage.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

// Config describes the bucket. Endpoint is set for S3-compatible stores
// (MinIO, R2) and left empty for AWS.
type Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
	Expires       time.Duration
}

// allowedTypes maps accepted upload content types to object key extensions.
var allowedTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/avif": "avif",
}

// Upload is a single-use upload slot.
type Upload struct {
	Key       string            `json:"key"`
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	PublicURL string            `json:"publicUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type Service struct {
	presign *s3.PresignClient
	cfg     Config
	logger  *slog.Logger
}

// New builds the S3 client from cfg. Credentials fall back to the default
// AWS chain (env, shared config, instance role) when no static keys are set.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expires <= 0 {
		cfg.Expires = 15 * time.Minute
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Service{
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// PresignUpload reserves a fresh object key under the caller's prefix and
// signs a PUT for it.
func (s *Service) PresignUpload(ctx context.Context, actor *model.Principal, contentType string) (*Upload, error) {
	if actor == nil {
		return nil, apperror.Unauthorized()
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, apperror.ValidationFailed("contentType",
			"contentType must be one of image/png, image/jpeg, image/gif, image/webp, image/avif")
	}

	key := fmt.Sprintf("featured/%s/%s.%s", actor.UserID, uuid.NewString(), ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.Expires))
	if err != nil {
		return nil, fmt.Errorf("media: presigning upload: %w", err)
	}

	s.logger.InfoContext(ctx, "upload presigned",
		slog.String("userID", actor.UserID),
		slog.String("key", key),
	)

	return &Upload{
		Key:       key,
		UploadURL: req.URL,
		Method:    req.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		PublicURL: s.publicURL(key),
		ExpiresAt: time.Now().Add(s.cfg.Expires).UTC(),
	}, nil
}

func (s *Service) publicURL(key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}
