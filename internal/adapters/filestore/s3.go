package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/PabloGalante/insighter/internal/domain"
)

// S3 stores files in a bucket. Objects stay private; the API streams them.
type S3 struct {
	client   *s3.Client
	bucket   string
	prefix   string
	baseURL  string
	maxBytes int64
}

type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
	BaseURL  string
	MaxBytes int64
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3{
		client:   s3.NewFromConfig(awsCfg, s3Options...),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		baseURL:  opts.BaseURL,
		maxBytes: opts.MaxBytes,
	}, nil
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3) Upload(ctx context.Context, r io.Reader, filename string) (*domain.FileRef, error) {
	data, err := readLimited(r, s.maxBytes)
	if err != nil {
		return nil, err
	}

	name := storageName(filename)
	contentType := mimeFor(filename)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"filename": filename},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", name, err)
	}

	return &domain.FileRef{
		URL:       publicURL(s.baseURL, name),
		MimeType:  contentType,
		Filename:  filename,
		SizeBytes: int64(len(data)),
	}, nil
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, *domain.FileRef, error) {
	if !validName(name) {
		return nil, nil, domain.ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get object %s: %w", name, err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = mimeFor(name)
	}
	return out.Body, &domain.FileRef{
		URL:       publicURL(s.baseURL, name),
		MimeType:  contentType,
		Filename:  name,
		SizeBytes: aws.ToInt64(out.ContentLength),
	}, nil
}

func (s *S3) Download(ctx context.Context, url string) ([]byte, error) {
	name, err := nameFromURL(s.baseURL, url)
	if err != nil {
		return nil, err
	}
	rc, _, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
