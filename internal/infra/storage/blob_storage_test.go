package storage

import (
	"context"
	"testing"

	"kitchenline/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStorage_UploadWithPublicBaseURL(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBlobStorage(ctx, config.BlobConfig{BucketURL: "mem://", PublicBaseURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	defer s.Close()

	url, err := s.Upload(ctx, "actors/a-1/avatar/x.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/actors/a-1/avatar/x.png", url)

	bs := s.(*bucketStorage)
	got, err := bs.bucket.ReadAll(ctx, "actors/a-1/avatar/x.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)

	attrs, err := bs.bucket.Attributes(ctx, "actors/a-1/avatar/x.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", attrs.ContentType)
}

func TestBucketStorage_UploadWithoutSigning(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBlobStorage(ctx, config.BlobConfig{BucketURL: "mem://"})
	require.NoError(t, err)
	defer s.Close()

	url, err := s.Upload(ctx, "docs/license.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestOpenBlobStorage_UnknownScheme(t *testing.T) {
	_, err := OpenBlobStorage(context.Background(), config.BlobConfig{BucketURL: "nope://bucket"})
	assert.Error(t, err)
}
