package store

import (
	"context"
	"errors"
	"fmt"
)

// Backends.
const (
	BackendFile = "file"
	BackendBlob = "blob"
)

// ErrUnknownBackend is returned by Open for unsupported backends.
var ErrUnknownBackend = errors.New("unknown state backend")

// Options select and configure a backend.
type Options struct {
	Backend   string
	Dir       string
	BucketURL string
	Prefix    string
	Compress  bool
}

// Open builds the configured store. The returned store owns its codec.
func Open(ctx context.Context, opts Options) (Store, error) {
	var codec Codec = JSONCodec{}
	var closeCodec func() error
	if opts.Compress {
		z, err := NewZstdCodec()
		if err != nil {
			return nil, err
		}
		codec, closeCodec = z, z.Close
	}

	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", BackendFile:
		s, err = NewFileStore(opts.Dir, codec)
	case BackendBlob:
		prefix := opts.Prefix
		if prefix == "" {
			prefix = DefaultBlobPrefix
		}
		s, err = NewBlobStore(ctx, opts.BucketURL, prefix, codec)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		if closeCodec != nil {
			_ = closeCodec()
		}
		return nil, err
	}
	if closeCodec == nil {
		return s, nil
	}
	return &codecOwner{Store: s, closeCodec: closeCodec}, nil
}

type codecOwner struct {
	Store
	closeCodec func() error
}

func (c *codecOwner) Close() error {
	return errors.Join(c.Store.Close(), c.closeCodec())
}
