package service

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"

	"gear-market/internal/core/storage"
)

// Upload is a file received with a request. Open may be called more than once.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

const invalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

// sniffImage returns the detected content type, or "" when the file is not an
// image.
func sniffImage(u Upload) (string, error) {
	f, err := u.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", u.Filename, err)
	}
	defer f.Close()
	m, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect %q: %w", u.Filename, err)
	}
	if !strings.HasPrefix(m.String(), "image/") {
		return "", nil
	}
	return m.String(), nil
}

type storedFile struct {
	key         string
	contentType string
}

// saveAll writes every upload under the key produced by keyFn. If any write
// fails, the files already written are removed again.
func saveAll(ctx context.Context, st storage.Storage, ups []Upload, types []string, keyFn func(Upload) string) ([]storedFile, error) {
	out := make([]storedFile, 0, len(ups))
	for i, u := range ups {
		key := keyFn(u)
		if err := saveOne(ctx, st, u, key, types[i]); err != nil {
			removeAll(context.WithoutCancel(ctx), st, out)
			return nil, err
		}
		out = append(out, storedFile{key: key, contentType: types[i]})
	}
	return out, nil
}

func saveOne(ctx context.Context, st storage.Storage, u Upload, key, contentType string) error {
	f, err := u.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", u.Filename, err)
	}
	defer f.Close()
	if err := st.Save(ctx, key, f, contentType); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func removeAll(ctx context.Context, st storage.Storage, files []storedFile) []error {
	var errs []error
	for _, f := range files {
		if err := st.Delete(ctx, f.key); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

var strict = bluemonday.StrictPolicy()

// cleanText strips any markup from user supplied text. Entities produced by
// the sanitizer are decoded again because the value is stored as plain text.
func cleanText(s *string) {
	if s == nil {
		return
	}
	v := html.UnescapeString(strict.Sanitize(*s))
	v = strings.TrimSpace(v)
	*s = v
}
