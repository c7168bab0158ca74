package uploads

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

	"PhoneVerse/internal/ports"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Extension maps an allowed image content type to a file extension.
func Extension(contentType string) (string, bool) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))]
	return ext, ok
}

// objectName is a random name that keeps the original extension class.
func objectName(contentType string) (string, error) {
	ext, ok := Extension(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	return uuid.NewString() + ext, nil
}

// LocalStore writes uploads under dir and serves them from publicPath.
type LocalStore struct {
	dir        string
	publicPath string
}

var _ ports.ImageStore = (*LocalStore)(nil)

// NewLocalStore builds a store rooted at dir.
func NewLocalStore(dir, publicPath string) *LocalStore {
	return &LocalStore{dir: dir, publicPath: "/" + strings.Trim(publicPath, "/")}
}

// Save writes body to a fresh file; name is ignored apart from logging by callers.
func (s *LocalStore) Save(ctx context.Context, _ string, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := objectName(contentType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	target := filepath.Join(s.dir, name)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path.Join(s.publicPath, name), nil
}

// Delete removes a file previously returned by Save. URLs outside the
// store's public path are ignored.
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := strings.CutPrefix(url, s.publicPath+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
