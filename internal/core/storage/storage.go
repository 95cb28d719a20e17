// Package storage persists uploaded files (product images, avatars) on local
// disk or an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gear-market/internal/core/config"
)

type Storage interface {
	// Save stores the content under key, overwriting any existing object.
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public address of key.
	URL(key string) string
}

func New(c config.Storage) (Storage, error) {
	switch c.Type {
	case "", "local":
		return NewLocal(c.BasePath, c.BaseURL)
	case "s3":
		return NewS3(c)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Type)
	}
}

// ProductImageKey mirrors the dated upload layout products/YYYY/MM/DD/<name><ext>.
func ProductImageKey(now time.Time, name, filename string) string {
	return path.Join("products", now.Format("2006/01/02"), name+ext(filename))
}

func AvatarKey(name, filename string) string {
	return path.Join("profile_images", name+ext(filename))
}

func ext(filename string) string {
	e := strings.ToLower(path.Ext(filename))
	if len(e) > 6 {
		return ""
	}
	return e
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
