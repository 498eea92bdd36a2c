package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"sacctcollapse/config"
)

// NewS3Client builds a client for AWS or any S3-compatible store.  Without static credentials the
// SDK's default chain applies.
func NewS3Client(cfg *config.S3Config) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Key places an object name under a prefix.
func Key(prefix, name string) string {
	return path.Join(prefix, name)
}

type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Source = (*S3Source)(nil)

func NewS3Source(client *s3.Client, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) Open(ctx context.Context, addr Address) (io.ReadCloser, int64, error) {
	key := Key(s.prefix, addr.InputName())
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, 0, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

func (s *S3Source) String() string {
	return "s3://" + Key(s.bucket, s.prefix)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}

// FromConfig builds the configured source.  A non-empty `dir` overrides the configuration.
func FromConfig(cfg *config.InputConfig, dir string) (Source, error) {
	switch {
	case dir != "":
		return NewDirSource(dir), nil
	case cfg.S3 != nil:
		return NewS3Source(NewS3Client(cfg.S3), cfg.S3.Bucket, cfg.S3.Prefix), nil
	case cfg.Dir != "":
		return NewDirSource(cfg.Dir), nil
	default:
		return nil, errors.New("no input location: give a data directory or configure input.dir or input.s3")
	}
}
