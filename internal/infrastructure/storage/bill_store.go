// Package storage keeps uploaded bill images on the local filesystem. Images
// are served back by the HTTP layer under PublicPrefix.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

const (
	// PublicPrefix is the URL path under which stored images are reachable.
	PublicPrefix = "/uploads/"

	// DefaultMaxBytes applies when no positive limit is configured.
	DefaultMaxBytes = 5 << 20
	sniffBytes      = 3072
	billImageField  = "bill_image"
)

// allowedTypes maps accepted MIME types to the stored file extension.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// BillStore saves bill images under a directory with random names.
type BillStore struct {
	dir      string
	maxBytes int64
}

// NewBillStore creates the upload directory if needed.
func NewBillStore(dir string, maxBytes int64) (*BillStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &BillStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory images are written to.
func (s *BillStore) Dir() string { return s.dir }

// Save implements ports.BillImageStore. The content type is sniffed from the
// data, never taken from the client.
func (s *BillStore) Save(ctx context.Context, upload ports.BillImageUpload) (string, error) {
	if upload.Size > s.maxBytes {
		return "", tooLarge(s.maxBytes)
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: read upload: %w", domain.ErrBillImageUpload, err)
	}
	head = head[:n]
	if n == 0 {
		return "", domain.NewValidationError(billImageField, domain.ReasonRequired, "bill_image is empty")
	}

	mtype := mimetype.Detect(head)
	ext, ok := allowedExtension(mtype)
	if !ok {
		return "", domain.NewValidationError(billImageField, domain.ReasonUnsupportedType,
			fmt.Sprintf("bill_image type %s is not supported (jpeg, png, webp, pdf)", mtype.String()))
	}

	name := uuid.NewString() + ext
	full := filepath.Join(s.dir, name)
	if err := s.write(ctx, full, io.MultiReader(bytes.NewReader(head), upload.Content)); err != nil {
		return "", err
	}
	return PublicPrefix + name, nil
}

// Remove implements ports.BillImageStore. Removing a missing image is not an error.
func (s *BillStore) Remove(_ context.Context, ref string) error {
	name := path.Base(strings.TrimPrefix(ref, PublicPrefix))
	if name == "." || name == "/" || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove bill image: %w", err)
	}
	return nil
}

func (s *BillStore) write(ctx context.Context, full string, r io.Reader) error {
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBillImageUpload, err)
	}

	// one extra byte detects oversize bodies whose declared size lied
	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(full)
		return fmt.Errorf("%w: %w", domain.ErrBillImageUpload, err)
	}
	if written > s.maxBytes {
		_ = os.Remove(full)
		return tooLarge(s.maxBytes)
	}
	return nil
}

func allowedExtension(m *mimetype.MIME) (string, bool) {
	for mt := m; mt != nil; mt = mt.Parent() {
		if ext, ok := allowedTypes[mt.String()]; ok {
			return ext, true
		}
	}
	return "", false
}

func tooLarge(max int64) error {
	return domain.NewValidationError(billImageField, domain.ReasonTooLarge,
		fmt.Sprintf("bill_image must not exceed %d bytes", max))
}
