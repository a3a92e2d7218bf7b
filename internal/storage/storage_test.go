package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndDelete(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "http://localhost:8080/")
	require.NoError(t, err)
	ctx := context.Background()

	name := ObjectName("user-1", "image/png")
	assert.True(t, strings.HasPrefix(name, "user-1/"))
	assert.True(t, strings.HasSuffix(name, ".png"))

	obj, err := l.Put(ctx, BucketCardImages, name, "image/png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.EqualValues(t, 9, obj.Size)
	assert.Equal(t, "http://localhost:8080/storage/card-images/"+name, obj.URL)

	data, err := os.ReadFile(filepath.Join(root, BucketCardImages, filepath.FromSlash(name)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	back, ok := l.NameFromURL(BucketCardImages, obj.URL)
	require.True(t, ok)
	assert.Equal(t, name, back)

	require.NoError(t, l.Delete(ctx, BucketCardImages, name))
	assert.ErrorIs(t, l.Delete(ctx, BucketCardImages, name), ErrObjectNotFound)
}

func TestPutRejections(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://cdn")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.Put(ctx, "secrets", "a/b.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnknownBucket)

	_, err = l.Put(ctx, BucketWallPosts, "a/b.txt", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = l.Put(ctx, BucketWallPosts, "../escape.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidName)

	big := bytes.NewReader(make([]byte, MaxImageBytes+1))
	_, err = l.Put(ctx, BucketWallPosts, "a/big.png", "image/png", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLimit(t *testing.T) {
	n, err := Limit("video/mp4; codecs=avc1")
	require.NoError(t, err)
	assert.EqualValues(t, MaxVideoBytes, n)
	assert.True(t, IsVideo("VIDEO/webm"))
	_, err = Limit("application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
