package ports

import (
	"context"
	"io"
)

// BillImageUpload is an attached bill image as received from the client.
type BillImageUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// BillImageStore persists bill images outside the record store.
type BillImageStore interface {
	// Save stores the image and returns the public reference path
	// (e.g. "/uploads/<name>"). Unsupported or oversized content is a
	// *domain.ValidationError; I/O failure wraps domain.ErrBillImageUpload.
	Save(ctx context.Context, upload BillImageUpload) (string, error)
	// Remove deletes a previously saved image by reference.
	Remove(ctx context.Context, ref string) error
}
