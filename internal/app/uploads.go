package app

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"myride/internal/util"
)

// Upload is one incoming file (photo, document, attachment).
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// maxConcurrentUploads bounds parallel blob transfers for one request.
const maxConcurrentUploads = 4

// uploadAll writes every upload under its precomputed key concurrently.
// On any failure it deletes the blobs that did make it, so a failed batch
// leaves the blob store as it was.
func (a *App) uploadAll(ctx context.Context, keys []string, uploads []Upload) error {
	if len(keys) != len(uploads) {
		return fmt.Errorf("upload key count mismatch")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i := range uploads {
		key, up := keys[i], uploads[i]
		g.Go(func() error {
			contentType := up.ContentType
			if contentType == "" {
				contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(up.Filename)))
			}
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			if err := a.objects.Put(gctx, key, up.Reader, up.Size, contentType); err != nil {
				return fmt.Errorf("upload %s: %w", up.Filename, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, key := range keys {
			_ = a.objects.Delete(context.WithoutCancel(ctx), key)
		}
		return err
	}
	return nil
}

// deleteAll removes the given keys, stopping at the first failure so the
// caller can surface a partial cleanup instead of silently diverging.
func (a *App) deleteAll(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := a.objects.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// uploadName builds the object name for a client upload. The random prefix
// keeps two uploads with the same filename from colliding on one key.
func uploadName(filename string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "file"
	}
	return util.NewID() + "_" + name
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
