package batch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestNextWindow(t *testing.T) {
	t.Run("bounded advances", func(t *testing.T) {
		c := Cursor{}
		var offsets []int
		for range 3 {
			var offset int
			offset, c = NextWindow(c, 10)
			offsets = append(offsets, offset)
		}
		assert.Equal(t, []int{0, 10, 20}, offsets)
		assert.Equal(t, 3, c.ChunkIndex)
	})

	t.Run("unbounded never advances", func(t *testing.T) {
		c := Cursor{ChunkIndex: 0}
		offset, next := NextWindow(c, 0)
		assert.Equal(t, 0, offset)
		assert.Equal(t, c, next)
	})

	t.Run("pure", func(t *testing.T) {
		c := Cursor{ChunkIndex: 4, Processed: 40, Total: intPtr(90)}
		o1, n1 := NextWindow(c, 10)
		o2, n2 := NextWindow(c, 10)
		assert.Equal(t, o1, o2)
		assert.Equal(t, n1, n2)
		assert.Equal(t, 4, c.ChunkIndex)
	})
}

func TestCursorTotalIsFixed(t *testing.T) {
	c := Cursor{}.WithTotal(25)
	require.NotNil(t, c.Total)
	c = c.WithTotal(40)
	assert.Equal(t, 25, *c.Total)

	assert.Nil(t, Cursor{}.WithTotal(-1).Total)
}

func TestCursorAdvance(t *testing.T) {
	c := Cursor{Total: intPtr(25)}
	var seen []int
	for _, n := range []int{10, 10, 10, -4} {
		c = c.Advance(n)
		seen = append(seen, c.Processed)
	}
	assert.Equal(t, []int{10, 20, 25, 25}, seen)

	unknown := Cursor{}.Advance(7).Advance(7)
	assert.Equal(t, 14, unknown.Processed)
}

func TestCursorExhausted(t *testing.T) {
	assert.True(t, Cursor{}.Exhausted(0, 0))
	assert.False(t, Cursor{}.Exhausted(100, 10))
	assert.False(t, Cursor{Total: intPtr(25)}.Exhausted(10, 10))
	assert.True(t, Cursor{Total: intPtr(25)}.Exhausted(20, 10))
	assert.True(t, Cursor{Total: intPtr(20)}.Exhausted(10, 10))
}

func TestWindows(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 10}, {10, 20}, {20, 25}}, Windows(25, 10))
	assert.Equal(t, [][2]int{{0, 25}}, Windows(25, 0))
	assert.Nil(t, Windows(0, 10))

	for _, size := range []int{1, 3, 7, 25, 30} {
		t.Run(fmt.Sprintf("cover/%d", size), func(t *testing.T) {
			covered := 0
			for i, w := range Windows(25, size) {
				assert.Equal(t, covered, w[0], "window %d", i)
				covered = w[1]
			}
			assert.Equal(t, 25, covered)
		})
	}
}

func TestValidateChunkSize(t *testing.T) {
	require.NoError(t, ValidateChunkSize(0, 0))
	require.NoError(t, ValidateChunkSize(MaxChunkSize, 0))
	require.NoError(t, ValidateChunkSize(50, 50))
	assert.ErrorIs(t, ValidateChunkSize(-1, 0), ErrInvalidChunkSize)
	assert.ErrorIs(t, ValidateChunkSize(51, 50), ErrInvalidChunkSize)
	assert.ErrorIs(t, ValidateChunkSize(MaxChunkSize+1, 0), ErrInvalidChunkSize)
}

func TestNewReport(t *testing.T) {
	tests := []struct {
		name        string
		phase       Phase
		cursor      Cursor
		message     string
		fraction    float64
		determinate bool
	}{
		{
			name:    "processing known",
			phase:   PhaseProcessing,
			cursor:  Cursor{Processed: 10, Total: intPtr(25)},
			message: "Processed 10 of 25 entities.", fraction: 0.4, determinate: true,
		},
		{
			name:    "processing unknown",
			phase:   PhaseProcessing,
			cursor:  Cursor{Processed: 1500},
			message: "Processed 1,500 entities.",
		},
		{
			name:    "listing known",
			phase:   PhaseListing,
			cursor:  Cursor{Processed: 2000, Total: intPtr(12000)},
			message: "Prepared 2,000 of 12,000 entities for processing.", fraction: 2000.0 / 12000.0, determinate: true,
		},
		{
			name:    "listing unknown",
			phase:   PhaseListing,
			cursor:  Cursor{Processed: 3},
			message: "Prepared 3 entities for processing.",
		},
		{
			name:    "empty total",
			phase:   PhaseProcessing,
			cursor:  Cursor{Total: intPtr(0)},
			message: "Processed 0 of 0 entities.", fraction: 1, determinate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReport(tt.phase, tt.cursor)
			assert.Equal(t, tt.message, r.Message)
			assert.InDelta(t, tt.fraction, r.Fraction, 1e-9)
			assert.Equal(t, tt.determinate, r.Determinate)
			assert.Equal(t, tt.phase, r.Phase)
		})
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress(NewReport(PhaseProcessing, Cursor{Total: intPtr(100)}))
	assert.Equal(t, time.Duration(0), p.EstimatedTimeRemaining())

	time.Sleep(5 * time.Millisecond)
	p.Observe(NewReport(PhaseProcessing, Cursor{Processed: 50, Total: intPtr(100)}))
	assert.Equal(t, 1, p.Steps())
	assert.Equal(t, 50, p.Last().Processed)
	assert.Greater(t, p.ElapsedTime(), time.Duration(0))
	assert.Greater(t, p.ItemsPerSecond(), 0.0)
	assert.Greater(t, p.EstimatedTimeRemaining(), time.Duration(0))

	p.Observe(NewReport(PhaseProcessing, Cursor{Processed: 100, Total: intPtr(100)}))
	assert.Equal(t, time.Duration(0), p.EstimatedTimeRemaining())

	unknown := NewProgress(NewReport(PhaseListing, Cursor{}))
	unknown.Observe(NewReport(PhaseListing, Cursor{Processed: 10}))
	assert.Equal(t, time.Duration(0), unknown.EstimatedTimeRemaining())
}
