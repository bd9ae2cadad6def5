package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-chat/internal/errs"
)

func minioCfg() S3Config {
	return S3Config{
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "chat",
	}
}

func TestUploads_Disabled(t *testing.T) {
	s, err := NewUploadService(context.Background(), S3Config{})
	require.NoError(t, err)
	_, err = s.RequestUpload(context.Background(), uuid.Must(uuid.NewV4()), "a.png", "image/png", 10)
	require.ErrorIs(t, err, errs.ErrUnavailable)
}

func TestUploads_PresignPathStyle(t *testing.T) {
	s, err := NewUploadService(context.Background(), minioCfg())
	require.NoError(t, err)
	user := uuid.Must(uuid.NewV4())

	up, err := s.RequestUpload(context.Background(), user, "../My Photo.png", "image/png", 1024)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(up.Key, "uploads/"+user.String()+"/"))
	require.True(t, strings.HasSuffix(up.Key, "/My_Photo.png"))
	require.True(t, strings.HasPrefix(up.PutURL, "http://127.0.0.1:9000/chat/uploads/"))
	require.Contains(t, up.PutURL, "X-Amz-Signature=")
	require.Equal(t, "http://127.0.0.1:9000/chat/"+up.Key, up.FileURL)
}

func TestUploads_Validation(t *testing.T) {
	s, err := NewUploadService(context.Background(), minioCfg())
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())

	_, err = s.RequestUpload(ctx, uuid.Nil, "a", "a/b", 1)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.RequestUpload(ctx, user, " ", "a/b", 1)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.RequestUpload(ctx, user, "a", "", 1)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.RequestUpload(ctx, user, "a", "a/b", MaxUploadSize+1)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.RequestUpload(ctx, user, "a", "a/b", 0)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestUploads_PresignError(t *testing.T) {
	orig := presignPutObject
	t.Cleanup(func() { presignPutObject = orig })
	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("sign failed")
	}

	s, err := NewUploadService(context.Background(), minioCfg())
	require.NoError(t, err)
	_, err = s.RequestUpload(context.Background(), uuid.Must(uuid.NewV4()), "a.pdf", "application/pdf", 5)
	require.ErrorIs(t, err, errs.ErrUnavailable)
}

func TestUploads_PublicBaseURL(t *testing.T) {
	cfg := minioCfg()
	cfg.PublicBaseURL = "https://cdn.example.com/files/"
	s, err := NewUploadService(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/files/k", s.objectURL("k"))

	cfg = S3Config{Region: "eu-west-1", Bucket: "b"}
	s = &UploadServiceImpl{cfg: cfg}
	require.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/k", s.objectURL("k"))
}
