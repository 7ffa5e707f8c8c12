package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	"gocloud.dev/gcerrors"
)

// DefaultBlobPrefix is the key prefix of run records in a bucket.
const DefaultBlobPrefix = "batches/"

// BlobStore keeps one object per run in a gocloud.dev bucket, so several
// hosts driving runs can share state.
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
	codec  Codec
}

// NewBlobStore opens bucketURL, e.g. "file:///var/lib/bulkops" or "mem://".
func NewBlobStore(ctx context.Context, bucketURL, prefix string, codec Codec) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return newBlobStore(bucket, prefix, codec), nil
}

func newBlobStore(bucket *blob.Bucket, prefix string, codec Codec) *BlobStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BlobStore{bucket: bucket, prefix: prefix, codec: codec}
}

func (s *BlobStore) key(id string) string {
	return s.prefix + id + s.codec.Extension()
}

// Load implements Store.
func (s *BlobStore) Load(ctx context.Context, id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	r, err := s.read(ctx, s.key(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	if r.IsExpired() {
		_ = s.bucket.Delete(ctx, s.key(id))
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return r, nil
}

func (s *BlobStore) read(ctx context.Context, key string) (*Record, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var r Record
	if err := s.codec.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save implements Store. Bucket writes become visible only once the writer
// is closed, so readers never observe a partial record.
func (s *BlobStore) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	data, err := s.codec.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.bucket.WriteAll(ctx, s.key(r.ID), data, nil); err != nil {
		return fmt.Errorf("write %s: %w", s.key(r.ID), err)
	}
	return nil
}

// Delete implements Store.
func (s *BlobStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := s.bucket.Delete(ctx, s.key(id))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("delete %s: %w", s.key(id), err)
	}
	return nil
}

// List implements Store.
func (s *BlobStore) List(ctx context.Context) ([]*Record, error) {
	var records []*Record
	err := s.walk(ctx, func(_ string, r *Record) {
		if !r.IsExpired() {
			records = append(records, r)
		}
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// CleanupExpired implements Store.
func (s *BlobStore) CleanupExpired(ctx context.Context) (int, error) {
	var expired []string
	err := s.walk(ctx, func(key string, r *Record) {
		if r.IsExpired() {
			expired = append(expired, key)
		}
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range expired {
		if delErr := s.bucket.Delete(ctx, key); delErr == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *BlobStore) walk(ctx context.Context, fn func(key string, r *Record)) error {
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix})
	ext := s.codec.Extension()
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", s.prefix, err)
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, ext) {
			continue
		}
		r, readErr := s.read(ctx, obj.Key)
		if readErr != nil {
			continue
		}
		fn(obj.Key, r)
	}
}

// Close releases the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
