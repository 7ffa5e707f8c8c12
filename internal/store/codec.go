package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec serializes records for storage.
type Codec interface {
	// Extension is appended to record ids to form storage keys.
	Extension() string
	Marshal(r *Record) ([]byte, error)
	Unmarshal(data []byte, r *Record) error
}

// JSONCodec stores records as indented JSON.
type JSONCodec struct{}

// Extension implements Codec.
func (JSONCodec) Extension() string { return ".json" }

// Marshal implements Codec.
func (JSONCodec) Marshal(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, r *Record) error {
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

// ZstdCodec stores zstd-compressed JSON. Captured item lists of large runs
// compress well.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec creates a codec. Close releases its resources.
func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

// Extension implements Codec.
func (*ZstdCodec) Extension() string { return ".json.zst" }

// Marshal implements Codec.
func (c *ZstdCodec) Marshal(r *Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return c.enc.EncodeAll(data, nil), nil
}

// Unmarshal implements Codec.
func (c *ZstdCodec) Unmarshal(data []byte, r *Record) error {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decompress: %w", err)
	}
	return JSONCodec{}.Unmarshal(raw, r)
}

// Close releases the encoder and decoder.
func (c *ZstdCodec) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
