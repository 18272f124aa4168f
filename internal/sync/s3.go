package sync

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const ndjsonContentType = "application/x-ndjson"

// objectPutter is the part of *s3.Client the destination uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination writes JSONL data to an S3-compatible bucket. With history
// enabled every write is also kept under a timestamped key next to the
// main object.
type S3Destination struct {
	client  objectPutter
	bucket  string
	key     string
	history bool
	now     func() time.Time
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string, history bool) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Destination(s3.NewFromConfig(cfg, s3opts...), bucket, key, history), nil
}

func newS3Destination(client objectPutter, bucket, key string, history bool) *S3Destination {
	return &S3Destination{
		client:  client,
		bucket:  bucket,
		key:     key,
		history: history,
		now:     time.Now,
	}
}

// Write uploads data as the configured object key, then the history copy.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	if err := d.put(ctx, d.key, data); err != nil {
		return err
	}
	if d.history {
		if err := d.put(ctx, d.historyKey(), data); err != nil {
			return err
		}
	}
	return nil
}

// historyKey derives "dir/name/20240102T030405Z.jsonl" from "dir/name.jsonl".
func (d *S3Destination) historyKey() string {
	ext := path.Ext(d.key)
	base := strings.TrimSuffix(d.key, ext)
	if ext == "" {
		ext = ".jsonl"
	}
	return base + "/" + d.now().UTC().Format("20060102T150405Z") + ext
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ndjsonContentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}
