package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	put *s3.PutObjectInput
	get *s3.GetObjectInput
	err error
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.put = params
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3/" + aws.ToString(params.Key) + "?sig", Method: http.MethodPut}, nil
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.get = params
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3/" + aws.ToString(params.Key), Method: http.MethodGet}, nil
}

func newTestS3() (*S3Service, *fakePresigner) {
	p := &fakePresigner{}
	return &S3Service{
		Presigner: p,
		Bucket:    "amora-photos",
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return fixedNow },
	}, p
}

func TestGenerateUploadURL(t *testing.T) {
	svc, p := newTestS3()

	url, key, err := svc.GenerateUploadURL(context.Background(), "u1", "../../me.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "profile-pics/u1/20240615093000-me.png", key)
	assert.Contains(t, url, key)
	assert.Equal(t, "amora-photos", aws.ToString(p.put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(p.put.ContentType))
}

func TestGenerateUploadURLRejectsNonImages(t *testing.T) {
	svc, p := newTestS3()

	_, _, err := svc.GenerateUploadURL(context.Background(), "u1", "notes.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
	assert.Nil(t, p.put)
}

func TestGenerateURLsPropagateErrors(t *testing.T) {
	svc, p := newTestS3()
	p.err = errors.New("no credentials")

	_, _, err := svc.GenerateUploadURL(context.Background(), "u1", "a.jpg", "image/jpeg")
	assert.Error(t, err)
	_, err = svc.GenerateReadURL(context.Background(), "profile-pics/u1/a.jpg")
	assert.Error(t, err)
}
