package s3blob

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// Validation runs before any network call, so a Writer without a configured
// uploader exercises the rejection paths.
func TestPutImageValidation(t *testing.T) {
	w := &Writer{bucket: "profiles", publicBaseURL: "https://cdn.example.com"}
	ctx := context.Background()

	_, err := w.PutImage(ctx, "profiles/0xabc.png", []byte{0x89, 0x50}, "application/pdf")
	require.ErrorContains(t, err, "unsupported content type")

	_, err = w.PutImage(ctx, "profiles/0xabc.png", nil, "image/png")
	require.ErrorContains(t, err, "empty payload")

	oversized := bytes.Repeat([]byte{0xff}, maxImageSize+1)
	_, err = w.PutImage(ctx, "profiles/0xabc.png", oversized, "image/png")
	require.ErrorContains(t, err, "exceeds")
}
