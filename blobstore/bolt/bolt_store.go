// Package bolt stores snapshot blobs in a bbolt database file.
package bolt

import (
	"bytes"
	"context"
	"time"

	"github.com/hupe1980/vecflat/blobstore"
	"go.etcd.io/bbolt"
)

// Compile-time check to ensure Store satisfies blobstore.Store.
var _ blobstore.Store = (*Store)(nil)

var defaultBucket = []byte("snapshots")

// Store keeps every blob as one value in a single bucket.
// bbolt transactions make Put atomic.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

// Options configure Open.
type Options struct {
	// Bucket names the bbolt bucket. Defaults to "snapshots".
	Bucket string
	// Timeout bounds the wait for the file lock. Defaults to 5s.
	Timeout time.Duration
}

// Open opens or creates the database at path.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Timeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	bucket := defaultBucket
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Open copies the blob out of a read transaction.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(name)
		k, v := tx.Bucket(s.bucket).Cursor().Seek(key)
		if !bytes.Equal(k, key) {
			return blobstore.ErrNotFound
		}
		// v is only valid inside the transaction.
		data = bytes.Clone(v)
		if data == nil {
			data = []byte{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobstore.NewBytesBlob(data), nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(name), bytes.Clone(data))
	})
}

func (s *Store) Delete(_ context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(name))
	})
}

// List returns names in key order, which is sorted.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
