// Package attachments turns uploaded receipts into stable URLs.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"expensewizard/internal/core"
	"expensewizard/internal/log"
)

var (
	ErrEmpty       = errors.New("empty attachment")
	ErrUnsupported = errors.New("unsupported attachment type")
)

// allowed maps sniffed content types to the extension files are stored with.
var allowed = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// LocalStore writes receipts under dir and serves them from baseURL.
type LocalStore struct {
	dir     string
	baseURL string
	newName func() string
	logger  *log.Logger
}

func NewLocalStore(dir, baseURL string, logger *log.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		newName: uuid.NewString,
		logger:  logger.WithComponent(log.ComponentAttachments),
	}, nil
}

// Dir is where receipts are written.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Resolve stores att under a random name and returns its public URL.
func (s *LocalStore) Resolve(ctx context.Context, att *core.Attachment) (string, error) {
	if !att.HasReceipt() {
		return "", ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctype := http.DetectContentType(att.Data)
	ext, ok := allowed[ctype]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ctype)
	}

	name := s.newName() + ext
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, att.Data, 0644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}

	s.logger.InfoContext(ctx, "Receipt stored",
		"file", name,
		"original_name", att.Filename,
		"content_type", ctype,
		"size", len(att.Data))
	return s.baseURL + "/" + name, nil
}
