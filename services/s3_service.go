package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ImageStore keeps message images and hands out time-limited URLs.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	ReadURL(ctx context.Context, key string) (string, error)
	UploadURL(ctx context.Context, fileName, contentType string) (url, key string, err error)
}

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the subset of s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

const presignExpiry = 5 * time.Minute

// S3ImageStore stores images under KeyPrefix in Bucket.
type S3ImageStore struct {
	Client    S3API
	Presigner Presigner
	Bucket    string
	KeyPrefix string
}

// NewS3ImageStore loads the default AWS config for region.
func NewS3ImageStore(ctx context.Context, region, bucket string) (*S3ImageStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3ImageStore{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
		KeyPrefix: "chat-images/",
	}, nil
}

// NewImageKey returns a unique object key for fileName.
func (s *S3ImageStore) NewImageKey(fileName string) string {
	return s.KeyPrefix + time.Now().UTC().Format("20060102150405") + "-" + uuid.NewString()[:8] + "-" + fileName
}

func (s *S3ImageStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	return nil
}

// ReadURL generates a presigned URL for reading key.
func (s *S3ImageStore) ReadURL(ctx context.Context, key string) (string, error) {
	req, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// UploadURL generates a presigned URL a client can PUT fileName to.
func (s *S3ImageStore) UploadURL(ctx context.Context, fileName, contentType string) (string, string, error) {
	key := s.NewImageKey(fileName)
	req, err := s.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", err
	}
	return req.URL, key, nil
}
