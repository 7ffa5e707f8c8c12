package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/bulkops/internal/logging"
)

// QueryEngine re-runs a stored listing. A limit of 0 means unbounded.
type QueryEngine interface {
	Execute(ctx context.Context, q QueryRef, offset, limit int) ([]Row, error)
	// CountTotal reports the total result count when it is cheap to obtain;
	// known is false when the engine cannot tell.
	CountTotal(ctx context.Context, q QueryRef) (total int, known bool, err error)
}

// RowLoader maps a listing row to the record it stands for, following
// relationship when the listing joins through a related entity.
type RowLoader interface {
	LoadFromRow(ctx context.Context, row Row, relationship string) (Record, error)
}

// RevisionLister is implemented by query engines whose listings can return
// revisions instead of current records. References resolved from such a
// listing keep the revision id, whatever the stored QueryRef says.
type RevisionLister interface {
	ListsRevisions(ctx context.Context, q QueryRef) (bool, error)
}

// Chunk is one resolved window of a selection.
type Chunk struct {
	// Items are the resolved references, in selection order.
	Items []ItemRef
	// Records is aligned with Items when the records were already loaded while
	// resolving (all-matching selections); nil otherwise.
	Records []Record
	// Rows are the raw listing rows behind Records; nil for explicit selections.
	Rows []Row
	// Unresolved counts rows whose record could no longer be loaded.
	Unresolved int
	// Exhausted is set when no item exists past this window.
	Exhausted bool
}

// Size is the number of selection positions the chunk consumed.
func (c Chunk) Size() int {
	return len(c.Items) + c.Unresolved
}

// Resolver turns a selection into ordered windows of item references.
type Resolver struct {
	query QueryEngine
	rows  RowLoader
}

// NewResolver builds a resolver. Both collaborators may be nil when only
// explicit selections are resolved.
func NewResolver(query QueryEngine, rows RowLoader) *Resolver {
	return &Resolver{query: query, rows: rows}
}

// ResolveChunk returns the window [offset, offset+size) of sel. A size of 0
// resolves everything from offset in one call.
func (r *Resolver) ResolveChunk(ctx context.Context, sel Selection, offset, size int) (Chunk, error) {
	if offset < 0 || size < 0 {
		return Chunk{}, ErrNegativeWindow
	}
	if sel.Kind == KindExplicit {
		return resolveExplicit(sel.Items, offset, size), nil
	}
	if sel.Kind != KindAllMatching || sel.Query == nil {
		return Chunk{}, sel.Validate()
	}
	return r.resolveQuery(ctx, *sel.Query, offset, size)
}

func resolveExplicit(items []ItemRef, offset, size int) Chunk {
	if offset >= len(items) {
		return Chunk{Exhausted: true}
	}
	end := len(items)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	window := make([]ItemRef, end-offset)
	copy(window, items[offset:end])
	return Chunk{
		Items:     window,
		Exhausted: size == 0 || offset+size >= len(items),
	}
}

func (r *Resolver) resolveQuery(ctx context.Context, q QueryRef, offset, size int) (Chunk, error) {
	if r.query == nil || r.rows == nil {
		return Chunk{}, ErrNoQueryEngine
	}
	log := logging.FromContext(ctx)

	withRevision, err := r.listsRevisions(ctx, q)
	if err != nil {
		return Chunk{}, err
	}

	rows, err := r.query.Execute(ctx, q, q.PagerOffset+offset, size)
	if err != nil {
		return Chunk{}, fmt.Errorf("executing query %s at offset %d: %w", q.View, offset, err)
	}

	chunk := Chunk{
		Items:     make([]ItemRef, 0, len(rows)),
		Records:   make([]Record, 0, len(rows)),
		Rows:      make([]Row, 0, len(rows)),
		Exhausted: size == 0 || len(rows) < size,
	}
	for _, row := range rows {
		rec, loadErr := r.rows.LoadFromRow(ctx, row, q.Relationship)
		if loadErr != nil {
			if errors.Is(loadErr, ErrRecordNotFound) || errors.Is(loadErr, ErrInvalidRowFormat) {
				log.Warn().
					Ctx(ctx).
					Str("component", "selection").
					Str("view", q.View).
					Err(loadErr).
					Msg("listing row no longer resolves to a record")
				chunk.Unresolved++
				continue
			}
			return Chunk{}, fmt.Errorf("loading record from row: %w", loadErr)
		}
		chunk.Items = append(chunk.Items, RefFromRecord(rec, withRevision))
		chunk.Records = append(chunk.Records, rec)
		chunk.Rows = append(chunk.Rows, row)
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "selection").
		Str("view", q.View).
		Int("offset", offset).
		Int("limit", size).
		Int("rows", len(rows)).
		Bool("exhausted", chunk.Exhausted).
		Msg("resolved query window")

	return chunk, nil
}

func (r *Resolver) listsRevisions(ctx context.Context, q QueryRef) (bool, error) {
	if q.Revisions {
		return true, nil
	}
	lister, ok := r.query.(RevisionLister)
	if !ok {
		return false, nil
	}
	listed, err := lister.ListsRevisions(ctx, q)
	if err != nil {
		return false, fmt.Errorf("inspecting query %s: %w", q.View, err)
	}
	return listed, nil
}

// Total returns the selection size when it is known cheaply.
func (r *Resolver) Total(ctx context.Context, sel Selection) (int, bool, error) {
	switch sel.Kind {
	case KindExplicit:
		return len(sel.Items), true, nil
	case KindAllMatching:
		if sel.Query == nil {
			return 0, false, ErrNoQuery
		}
		if r.query == nil {
			return 0, false, ErrNoQueryEngine
		}
		total, known, err := r.query.CountTotal(ctx, *sel.Query)
		if err != nil {
			return 0, false, fmt.Errorf("counting query %s: %w", sel.Query.View, err)
		}
		if !known {
			return 0, false, nil
		}
		// The pager offset is part of the stored listing, so it shrinks the set.
		total -= sel.Query.PagerOffset
		if total < 0 {
			total = 0
		}
		return total, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownKind, sel.Kind)
	}
}
