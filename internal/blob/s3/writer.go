package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// maxImageSize caps profile image uploads at 5 MiB.
const maxImageSize = 5 * 1024 * 1024

// Writer implements domain.BlobWriter using an S3-compatible backend. Uploads
// go through the transfer manager, which splits payloads above its part size
// into a concurrent multipart upload.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
	// publicBaseURL is prefixed to object keys to form the returned URL,
	// e.g. a CDN or the bucket's public endpoint.
	publicBaseURL string
}

// NewWriter creates a Writer that uploads to the client's configured bucket
// and builds object URLs from publicBaseURL.
func NewWriter(c *Client, publicBaseURL string) *Writer {
	return &Writer{
		uploader:      manager.NewUploader(c.S3()),
		bucket:        c.Bucket(),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// PutImage uploads a profile image and returns its public URL. Only image
// content types are accepted.
func (w *Writer) PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("s3blob: put image %s: unsupported content type %q", key, contentType)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("s3blob: put image %s: empty payload", key)
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("s3blob: put image %s: payload exceeds %d bytes", key, maxImageSize)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3blob: put image %s: %w", key, err)
	}

	return w.publicBaseURL + "/" + key, nil
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
