package s3blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// objectPutter is the part of *s3.Client the writer uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Writer implements domain.BlobWriter with single PutObject requests.
// Listing exports are small JSON documents, so there is no multipart path.
type Writer struct {
	client objectPutter
	bucket string
}

func NewWriter(c *Client) *Writer {
	return &Writer{client: c.s3, bucket: c.bucket}
}

// Put uploads data to path, stripping any leading slash from the key.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return fmt.Errorf("s3blob: put: empty object key")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
