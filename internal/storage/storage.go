// Package storage stores uploaded media in named buckets and hands out
// public URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Buckets
const (
	BucketCardImages = "card-images"
	BucketWallPosts  = "wall-posts"
)

// Upload limits
const (
	MaxImageBytes = 10 << 20
	MaxVideoBytes = 50 << 20
)

var (
	ErrUnknownBucket   = errors.New("unknown bucket")
	ErrUnsupportedType = errors.New("only image and video uploads are accepted")
	ErrTooLarge        = errors.New("upload exceeds the size limit")
	ErrInvalidName     = errors.New("invalid object name")
	ErrObjectNotFound  = errors.New("object not found")
)

var (
	knownBuckets     = map[string]bool{BucketCardImages: true, BucketWallPosts: true}
	extensionsByType = map[string]string{
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"video/mp4":       ".mp4",
		"video/webm":      ".webm",
		"video/quicktime": ".mov",
	}
)

// Object describes a stored blob.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Blobs is the bucket API the services depend on.
type Blobs interface {
	Put(ctx context.Context, bucket, name, contentType string, r io.Reader) (Object, error)
	Delete(ctx context.Context, bucket, name string) error
	PublicURL(bucket, name string) string
	NameFromURL(bucket, url string) (string, bool)
}

// ObjectName builds "<owner>/<uuid><ext>" for a content type.
func ObjectName(ownerID, contentType string) string {
	return ownerID + "/" + uuid.NewString() + extensionsByType[baseType(contentType)]
}

// Limit returns the byte limit for contentType or ErrUnsupportedType.
func Limit(contentType string) (int64, error) {
	switch {
	case strings.HasPrefix(baseType(contentType), "image/"):
		return MaxImageBytes, nil
	case strings.HasPrefix(baseType(contentType), "video/"):
		return MaxVideoBytes, nil
	}
	return 0, ErrUnsupportedType
}

// IsVideo reports whether contentType is a video type.
func IsVideo(contentType string) bool {
	return strings.HasPrefix(baseType(contentType), "video/")
}

func baseType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// Local keeps buckets as directories under Root. Files are served by the
// HTTP layer under BaseURL + "/storage".
type Local struct {
	Root    string
	BaseURL string
}

var _ Blobs = (*Local)(nil)

// NewLocal creates the bucket directories under root.
func NewLocal(root, baseURL string) (*Local, error) {
	for b := range knownBuckets {
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", b, err)
		}
	}
	return &Local{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) resolve(bucket, name string) (string, error) {
	if !knownBuckets[bucket] {
		return "", ErrUnknownBucket
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name || strings.Contains(name, "\\") {
		return "", ErrInvalidName
	}
	return filepath.Join(l.Root, bucket, filepath.FromSlash(clean)), nil
}

// Put writes r to bucket/name. Reads stop one byte past the limit so an
// oversized upload never lands on disk.
func (l *Local) Put(ctx context.Context, bucket, name, contentType string, r io.Reader) (Object, error) {
	limit, err := Limit(contentType)
	if err != nil {
		return Object{}, err
	}
	dst, err := l.resolve(bucket, name)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Object{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write object: %w", err)
	}
	if n > limit {
		return Object{}, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Object{}, err
	}
	logrus.WithFields(logrus.Fields{
		"bucket": bucket,
		"name":   name,
		"size":   n,
	}).Debug("Object stored")
	return Object{
		Bucket:      bucket,
		Name:        name,
		ContentType: baseType(contentType),
		Size:        n,
		URL:         l.PublicURL(bucket, name),
	}, nil
}

// Delete removes bucket/name.
func (l *Local) Delete(ctx context.Context, bucket, name string) error {
	dst, err := l.resolve(bucket, name)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

// PublicURL returns the URL the object is served at.
func (l *Local) PublicURL(bucket, name string) string {
	return l.BaseURL + "/storage/" + bucket + "/" + name
}

// NameFromURL reverses PublicURL, returning ok=false for foreign URLs.
func (l *Local) NameFromURL(bucket, url string) (string, bool) {
	prefix := l.BaseURL + "/storage/" + bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
