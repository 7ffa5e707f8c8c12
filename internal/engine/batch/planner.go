package batch

import (
	"errors"
	"fmt"
)

// Chunk size bounds.
const (
	// DefaultChunkSize is the number of items processed per invocation.
	DefaultChunkSize = 10

	// MaxChunkSize caps configured and per-action chunk sizes.
	MaxChunkSize = 1000
)

// ErrInvalidChunkSize is returned for negative or oversized chunk sizes.
var ErrInvalidChunkSize = errors.New("invalid chunk size")

// ValidateChunkSize checks size against [0, limit]. A size of 0 means one
// unbounded chunk.
func ValidateChunkSize(size, limit int) error {
	if limit <= 0 {
		limit = MaxChunkSize
	}
	if size < 0 || size > limit {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidChunkSize, size, limit)
	}
	return nil
}

// Cursor is the progress of one phase of a run.
type Cursor struct {
	ChunkIndex int  `json:"chunk_index"`
	Processed  int  `json:"processed"`
	Total      *int `json:"total,omitempty"`
}

// Offset is the selection position the current chunk starts at.
func (c Cursor) Offset(size int) int {
	if size <= 0 {
		return 0
	}
	return c.ChunkIndex * size
}

// NextWindow returns the offset of the chunk the cursor points at and the
// cursor to persist once that chunk succeeds. Unbounded runs (size 0) have a
// single chunk and never advance.
func NextWindow(c Cursor, size int) (int, Cursor) {
	offset := c.Offset(size)
	if size > 0 {
		c.ChunkIndex++
	}
	return offset, c
}

// WithTotal records total the first time it becomes known. A known total is
// never replaced.
func (c Cursor) WithTotal(total int) Cursor {
	if c.Total != nil || total < 0 {
		return c
	}
	c.Total = &total
	return c
}

// Advance adds n processed items, never moving backwards and never past a
// known total.
func (c Cursor) Advance(n int) Cursor {
	if n > 0 {
		c.Processed += n
	}
	if c.Total != nil && c.Processed > *c.Total {
		c.Processed = *c.Total
	}
	return c
}

// Exhausted reports whether the chunk at offset is the last one.
func (c Cursor) Exhausted(offset, size int) bool {
	if size <= 0 {
		return true
	}
	return c.Total != nil && offset+size >= *c.Total
}

// Windows lists the [start, end) bounds of every chunk over total items.
func Windows(total, size int) [][2]int {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		return [][2]int{{0, total}}
	}
	count := total / size
	if total%size > 0 {
		count++
	}
	windows := make([][2]int, count)
	for i := range count {
		start := i * size
		windows[i] = [2]int{start, min(start+size, total)}
	}
	return windows
}
