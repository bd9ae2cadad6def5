package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/errs"
)

// MaxUploadSize is the largest attachment accepted for image and file messages.
const MaxUploadSize int64 = 5 << 20

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig
	newS3PresignClient   = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// UploadService hands out presigned URLs that clients PUT attachments to before sending a message.
type UploadService interface {
	RequestUpload(ctx context.Context, userID uuid.UUID, name, contentType string, size int64) (Upload, error)
}

// Upload is a presigned PUT target plus the URL the object is served from afterwards.
type Upload struct {
	Key       string
	PutURL    string
	FileURL   string
	ExpiresAt time.Time
}

// S3Config configures the attachment bucket.
type S3Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	Bucket        string
	PublicBaseURL string
	Expires       time.Duration
}

// UploadServiceImpl presigns S3 PUT requests.
type UploadServiceImpl struct {
	cfg     S3Config
	presign *s3.PresignClient
}

// NewUploadService builds the presign client. An empty bucket disables uploads.
func NewUploadService(ctx context.Context, cfg S3Config) (*UploadServiceImpl, error) {
	if cfg.Expires <= 0 {
		cfg.Expires = 15 * time.Minute
	}
	s := &UploadServiceImpl{cfg: cfg}
	if cfg.Bucket == "" {
		return s, nil
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	s.presign = newS3PresignClient(client)
	return s, nil
}

// RequestUpload validates the attachment metadata and presigns a PUT for a fresh per-user key.
func (s *UploadServiceImpl) RequestUpload(ctx context.Context, userID uuid.UUID, name, contentType string, size int64) (Upload, error) {
	if s.presign == nil {
		return Upload{}, fmt.Errorf("%w: uploads are not configured", errs.ErrUnavailable)
	}
	name = sanitizeName(name)
	switch {
	case userID == uuid.Nil:
		return Upload{}, fmt.Errorf("%w: empty user", errs.ErrValidation)
	case name == "":
		return Upload{}, fmt.Errorf("%w: empty file name", errs.ErrValidation)
	case contentType == "":
		return Upload{}, fmt.Errorf("%w: empty content type", errs.ErrValidation)
	case size <= 0 || size > MaxUploadSize:
		return Upload{}, fmt.Errorf("%w: size must be in (0, %d]", errs.ErrValidation, MaxUploadSize)
	}

	key := fmt.Sprintf("uploads/%s/%s/%s", userID, uuid.Must(uuid.NewV4()), name)
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(s.cfg.Expires))
	if err != nil {
		return Upload{}, fmt.Errorf("presign: %w: %v", errs.ErrUnavailable, err)
	}

	return Upload{
		Key:       key,
		PutURL:    req.URL,
		FileURL:   s.objectURL(key),
		ExpiresAt: time.Now().Add(s.cfg.Expires),
	}, nil
}

func (s *UploadServiceImpl) objectURL(key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		if s.cfg.Endpoint != "" {
			base = strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region)
		}
	}
	return strings.TrimRight(base, "/") + "/" + key
}

// sanitizeName keeps the base name and drops characters unsafe in object keys.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
