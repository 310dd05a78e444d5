package report

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3Sink struct {
	client   s3iface.S3API
	bucket   string
	prefix   string
	maxRetry int
}

// NewS3Sink : credentials come from the default aws chain
func NewS3Sink(region string, bucket string, prefix string, maxRetry int) (*S3Sink, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("report: could not create aws session : %w", err)
	}
	return NewS3SinkWithClient(s3.New(sess), bucket, prefix, maxRetry), nil
}

func NewS3SinkWithClient(client s3iface.S3API, bucket string, prefix string, maxRetry int) *S3Sink {
	if maxRetry <= 0 {
		maxRetry = 1
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, maxRetry: maxRetry}
}

func (s *S3Sink) Write(ctx context.Context, name string, body []byte) error {
	var (
		attempt int
		err     error
		key     = path.Join(s.prefix, name)
	)
	for attempt < s.maxRetry && ctx.Err() == nil {
		attempt++
		_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Body:   bytes.NewReader(body),
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return nil
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return fmt.Errorf("Attempted uploading key (%s) %d times with no success : original_err=%w", key, attempt, err)
}
