package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jobqueue/internal/fileutil"
)

// FileBackend keeps one document per job. Unassigned jobs sit directly in the
// root; every other bucket is a subdirectory named after it.
type FileBackend struct {
	root string
	ext  string
}

// NewFileBackend returns a backend rooted at root using the codec's extension.
func NewFileBackend(root string, codec Codec) *FileBackend {
	ext := JSONCodec{}.Ext()
	if codec != nil {
		ext = codec.Ext()
	}
	return &FileBackend{root: root, ext: ext}
}

func (b *FileBackend) path(bucket Bucket, id string) string {
	return filepath.Join(b.root, bucket.Dir(), id+b.ext)
}

func (b *FileBackend) Init(context.Context) (bool, error) {
	for _, bucket := range allBuckets {
		if err := os.MkdirAll(filepath.Join(b.root, bucket.Dir()), 0o755); err != nil {
			return false, fmt.Errorf("create %s directory: %w", bucket, err)
		}
	}
	for _, bucket := range allBuckets {
		info, err := os.Stat(filepath.Join(b.root, bucket.Dir()))
		if err != nil || !info.IsDir() {
			return false, nil
		}
	}
	return true, nil
}

func (b *FileBackend) Exists(_ context.Context, bucket Bucket, id string) (bool, error) {
	info, err := os.Stat(b.path(bucket, id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (b *FileBackend) Load(_ context.Context, bucket Bucket, id string) ([]byte, error) {
	data, err := os.ReadFile(b.path(bucket, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errDocumentNotFound
	}
	return data, err
}

func (b *FileBackend) Save(_ context.Context, bucket Bucket, id string, data []byte) error {
	return fileutil.WriteFileAtomic(b.path(bucket, id), data, 0o644)
}

func (b *FileBackend) Move(_ context.Context, id string, from, to Bucket) error {
	err := fileutil.MoveFile(b.path(from, id), b.path(to, id))
	if errors.Is(err, fs.ErrNotExist) {
		return errDocumentNotFound
	}
	return err
}

func (b *FileBackend) Delete(_ context.Context, bucket Bucket, id string) error {
	err := os.Remove(b.path(bucket, id))
	if errors.Is(err, fs.ErrNotExist) {
		return errDocumentNotFound
	}
	return err
}

// List skips hidden entries, which covers in-flight temp files.
func (b *FileBackend) List(_ context.Context, bucket Bucket) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.root, bucket.Dir()))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		id, ok := strings.CutSuffix(name, b.ext)
		if !ok || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *FileBackend) Location(bucket Bucket, id string) string {
	return b.path(bucket, id)
}

func (b *FileBackend) Close() error {
	return nil
}
