package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sacctcollapse/collapse"
	"sacctcollapse/partition"
)

// S3Sink puts each partition as one object; a put is atomic, so there is no temporary object.
type S3Sink struct {
	client    *s3.Client
	bucket    string
	prefix    string
	delimiter rune
}

var _ Sink = (*S3Sink)(nil)

func NewS3Sink(client *s3.Client, bucket, prefix string, delimiter rune) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, delimiter: delimiter}
}

func (s *S3Sink) Key(addr partition.Address) string {
	return partition.Key(s.prefix, addr.OutputName())
}

func (s *S3Sink) Write(ctx context.Context, addr partition.Address, res *collapse.Result) error {
	var buf bytes.Buffer
	if err := res.Write(&buf, s.delimiter); err != nil {
		return err
	}
	key := s.Key(addr)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Sink) Close() error {
	return nil
}

func (s *S3Sink) String() string {
	return "s3://" + partition.Key(s.bucket, s.prefix)
}
