package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerDirName       = "badger"
	badgerKeyPrefix     = "job/"
	badgerMaxRetries    = 20
	badgerRetryInterval = 2 * time.Millisecond
)

// BadgerBackend stores documents under job/<bucket>/<id> keys.
type BadgerBackend struct {
	db   *badger.DB
	path string
}

// OpenBadgerBackend opens or creates the badger directory under root.
func OpenBadgerBackend(root string) (*BadgerBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs directory: %w", err)
	}

	dbPath := filepath.Join(root, badgerDirName)
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerBackend{db: db, path: dbPath}, nil
}

func bucketPrefix(bucket Bucket) []byte {
	return []byte(badgerKeyPrefix + string(bucket) + "/")
}

func badgerKey(bucket Bucket, id string) []byte {
	return append(bucketPrefix(bucket), id...)
}

// retryUpdate retries an update transaction on conflicts.
func (b *BadgerBackend) retryUpdate(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < badgerMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(badgerRetryInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := b.db.Update(fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("transaction conflict after %d retries: %w", badgerMaxRetries, lastErr)
}

// Init has nothing to create; buckets are key prefixes.
func (b *BadgerBackend) Init(context.Context) (bool, error) {
	return !b.db.IsClosed(), nil
}

func (b *BadgerBackend) Exists(_ context.Context, bucket Bucket, id string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(bucket, id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *BadgerBackend) Load(_ context.Context, bucket Bucket, id string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(bucket, id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errDocumentNotFound
	}
	return value, err
}

func (b *BadgerBackend) Save(ctx context.Context, bucket Bucket, id string, data []byte) error {
	return b.retryUpdate(ctx, func(txn *badger.Txn) error {
		return txn.Set(badgerKey(bucket, id), data)
	})
}

// Move copies and deletes inside one transaction, so a job is never seen in
// both buckets or neither.
func (b *BadgerBackend) Move(ctx context.Context, id string, from, to Bucket) error {
	err := b.retryUpdate(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(from, id))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Set(badgerKey(to, id), value); err != nil {
			return err
		}
		return txn.Delete(badgerKey(from, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errDocumentNotFound
	}
	return err
}

func (b *BadgerBackend) Delete(ctx context.Context, bucket Bucket, id string) error {
	err := b.retryUpdate(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(bucket, id)); err != nil {
			return err
		}
		return txn.Delete(badgerKey(bucket, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errDocumentNotFound
	}
	return err
}

// List relies on badger's lexicographic key order for sorting.
func (b *BadgerBackend) List(_ context.Context, bucket Bucket) ([]string, error) {
	prefix := bucketPrefix(bucket)
	ids := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func (b *BadgerBackend) Location(bucket Bucket, id string) string {
	return fmt.Sprintf("%s#%s", b.path, badgerKey(bucket, id))
}

func (b *BadgerBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
