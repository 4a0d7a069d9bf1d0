package services

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrUnsupportedContentType is returned for uploads that are not images.
var ErrUnsupportedContentType = errors.New("only image uploads are allowed")

const presignExpiry = 5 * time.Minute

// Presigner is the subset of the S3 presign client used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Service struct {
	Presigner Presigner
	Bucket    string
	Log       zerolog.Logger
	Now       func() time.Time
}

// NewS3Service presigns photo uploads into bucket.
func NewS3Service(cfg aws.Config, bucket string, log zerolog.Logger) *S3Service {
	return &S3Service{
		Presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:    bucket,
		Log:       log.With().Str("component", "s3").Logger(),
		Now:       time.Now,
	}
}

// GenerateUploadURL generates a presigned URL for uploading a profile photo
// of userID. It returns the URL and the object key.
func (s *S3Service) GenerateUploadURL(ctx context.Context, userID, fileName, contentType string) (string, string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", ErrUnsupportedContentType
	}
	key := "profile-pics/" + userID + "/" + s.Now().UTC().Format("20060102150405") + "-" + path.Base(fileName)
	params := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	presigned, err := s.Presigner.PresignPutObject(ctx, params, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		s.Log.Error().Err(err).Str("key", key).Msg("❌ failed to presign upload")
		return "", "", errors.Wrap(err, "presign upload")
	}
	return presigned.URL, key, nil
}

// GenerateReadURL generates a presigned URL for reading a file
func (s *S3Service) GenerateReadURL(ctx context.Context, key string) (string, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	presigned, err := s.Presigner.PresignGetObject(ctx, params, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", errors.Wrap(err, "presign read")
	}
	return presigned.URL, nil
}
