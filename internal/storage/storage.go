package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Open and Move when the key does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds uploaded binaries under slash-separated keys such as
// "videos/12_intro.mp4".
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Move renames src to dst, replacing dst. A missing src yields
	// ErrBlobNotFound.
	Move(ctx context.Context, src, dst string) error
}
