package sync

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        string
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.calls = append(f.calls, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination_Write(t *testing.T) {
	for _, tc := range []struct {
		name    string
		key     string
		history bool
		want    []string
	}{
		{"Latest", "storyweb/relationships.jsonl", false, []string{"storyweb/relationships.jsonl"}},
		{"History", "storyweb/relationships.jsonl", true, []string{
			"storyweb/relationships.jsonl",
			"storyweb/relationships/20240102T030405Z.jsonl",
		}},
		{"HistoryNoExt", "export", true, []string{"export", "export/20240102T030405Z.jsonl"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakePutter{}
			d := newS3Destination(fake, "bucket", tc.key, tc.history)
			d.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600)).UTC() }

			if err := d.Write(context.Background(), []byte("{}\n")); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if len(fake.calls) != len(tc.want) {
				t.Fatalf("expected %d puts, got %+v", len(tc.want), fake.calls)
			}
			for i, c := range fake.calls {
				if c.key != tc.want[i] || c.bucket != "bucket" || c.body != "{}\n" || c.contentType != ndjsonContentType {
					t.Fatalf("put %d: %+v", i, c)
				}
			}
		})
	}
}

func TestS3Destination_WriteError(t *testing.T) {
	d := newS3Destination(&fakePutter{err: errors.New("denied")}, "bucket", "k.jsonl", false)
	if err := d.Write(context.Background(), []byte("{}\n")); err == nil {
		t.Fatal("expected error")
	}
}
