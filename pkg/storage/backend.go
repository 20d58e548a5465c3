package storage

import (
	"context"
	"io"
)

// Descriptor identifies a stored attachment independent of backend.
type Descriptor struct {
	// Locator is what clients ultimately retrieve: a filesystem path for the
	// local backend, a secure URL for remote backends.
	Locator string
	// Key is the backend-specific storage key used for archive and delete.
	Key string
}

// Backend abstracts the attachment store. The notice lifecycle only depends
// on this capability set; the concrete backend is chosen by configuration.
type Backend interface {
	// Store persists the stream under key and returns its descriptor.
	Store(ctx context.Context, key string, r io.Reader) (Descriptor, error)
	// Open returns a read stream for a previously stored attachment.
	Open(ctx context.Context, d Descriptor) (io.ReadCloser, error)
	// Archive moves the attachment to the archive area, keeping it
	// recoverable. The archived copy is addressed by the original key.
	Archive(ctx context.Context, d Descriptor) error
	// Delete removes the primary attachment.
	Delete(ctx context.Context, d Descriptor) error
	// DeleteArchived removes the archived copy for key, if one exists.
	DeleteArchived(ctx context.Context, key string) error
}
