package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/detradefi/navoracle/internal/domain"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter using an S3-compatible backend.
type Writer struct {
	client *s3.Client
	bucket string
}

// NewWriter creates a new Writer that uploads objects to the given client's
// configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// Write uploads body under key. Payloads below the multipart minimum go
// up in a single PutObject; anything larger goes through the multipart
// upload manager.
func (w *Writer) Write(ctx context.Context, key string, body []byte, contentType string) error {
	if int64(len(body)) < minPartSize {
		input := &s3.PutObjectInput{
			Bucket:      aws.String(w.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType),
		}
		if _, err := w.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("s3blob: put object %s: %w", key, err)
		}
		return nil
	}

	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = minPartSize
	})
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
