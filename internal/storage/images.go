package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/patrimonio/patrimonio-webapi/pkg/errors"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ImageStore keeps equipment images. Stored names are plain file names,
// reachable under the /img mount.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, name string) error
}

// Images stores uploads in a directory on the local disk.
type Images struct {
	root    string
	maxSize int64
}

func NewImages(root string, maxSize int64) (*Images, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images root: %w", err)
	}
	return &Images{root: root, maxSize: maxSize}, nil
}

// Save writes r under a new random name that keeps the extension of
// filename. Content that is not an image or exceeds the size limit is rejected.
func (s *Images) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: extension %q not allowed", pkgerrors.ErrInvalidImage, ext)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	head = head[:n]
	if n == 0 || !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", fmt.Errorf("%w: content is not an image", pkgerrors.ErrInvalidImage)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.root, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxSize {
		err = fmt.Errorf("%w: limit is %d bytes", pkgerrors.ErrImageTooLarge, s.maxSize)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Error("failed to remove partial image", "path", path, "error", rmErr)
		}
		if errors.Is(err, pkgerrors.ErrImageTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	slog.Info("image stored", "name", name, "bytes", written)
	return name, nil
}

// Remove deletes a stored image. Missing files are not an error.
func (s *Images) Remove(ctx context.Context, name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: bad image name %q", pkgerrors.ErrInvalidImage, name)
	}
	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}
