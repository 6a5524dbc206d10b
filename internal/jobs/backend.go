package jobs

import (
	"context"
	"fmt"
	"strings"
)

// Backend stores raw job documents keyed by bucket and id. Implementations do
// not interpret documents; decoding and lifecycle rules live in Store.
type Backend interface {
	// Init prepares the backing storage and reports whether every bucket is
	// confirmed usable. It must be safe to call repeatedly.
	Init(ctx context.Context) (bool, error)
	Exists(ctx context.Context, bucket Bucket, id string) (bool, error)
	// Load returns errDocumentNotFound when the bucket does not hold id.
	Load(ctx context.Context, bucket Bucket, id string) ([]byte, error)
	Save(ctx context.Context, bucket Bucket, id string, data []byte) error
	// Move relocates id from one bucket to another. It returns
	// errDocumentNotFound when the source is missing.
	Move(ctx context.Context, id string, from, to Bucket) error
	// Delete returns errDocumentNotFound when the bucket does not hold id.
	Delete(ctx context.Context, bucket Bucket, id string) error
	// List returns the ids stored in bucket, sorted.
	List(ctx context.Context, bucket Bucket) ([]string, error)
	// Location describes where a document lives, for logs and CLI output.
	Location(bucket Bucket, id string) string
	Close() error
}

// Backend names accepted by OpenBackend and the store.backend config key.
const (
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
	BackendBadger     = "badger"
)

// OpenBackend constructs the named backend rooted at root.
func OpenBackend(name, root string, codec Codec) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendFilesystem:
		return NewFileBackend(root, codec), nil
	case BackendSQLite:
		return OpenSQLiteBackend(root)
	case BackendBadger:
		return OpenBadgerBackend(root)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", name)
	}
}
