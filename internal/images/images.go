// Package images stores uploaded event and profile images in S3 and
// serves them through a CDN prefix. Keys are the upload timestamp
// joined to the original filename so repeat uploads never collide.
package images

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Upload is one incoming image file.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store writes to a single bucket. Event and profile images use
// separate Store instances over separate buckets.
type Store struct {
	client    objectAPI
	bucket    string
	cdnPrefix string
	now       func() time.Time
}

// NewClient builds an S3 client from the ambient AWS credential chain.
func NewClient(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func NewStore(client *s3.Client, bucket, cdnPrefix string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		cdnPrefix: strings.TrimRight(cdnPrefix, "/"),
		now:       time.Now,
	}
}

// Put stores the upload and returns its object key.
func (s *Store) Put(ctx context.Context, upload Upload) (string, error) {
	key := fmt.Sprintf("%d_%s", s.now().Unix(), cleanFilename(upload.Filename))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        upload.Body,
		ContentType: aws.String(upload.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// URL returns the public CDN URL for a key, or "" when there is no key.
func (s *Store) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.cdnPrefix + "/" + key
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
