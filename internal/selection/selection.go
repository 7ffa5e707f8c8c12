// Package selection models what an operator picked from a listing: either an
// explicit list of item references or every result of a stored query. It also
// resolves a selection window by window without materializing large result sets.
package selection

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind identifies the populated variant of a Selection.
type Kind string

// Selection variants.
const (
	KindExplicit    Kind = "explicit"
	KindAllMatching Kind = "all_matching"
)

// Selection validation errors.
var (
	ErrNoItems          = errors.New("explicit selection has no items")
	ErrNoQuery          = errors.New("all-matching selection has no query")
	ErrAmbiguous        = errors.New("selection must populate exactly one variant")
	ErrUnknownKind      = errors.New("unknown selection kind")
	ErrRecordNotFound   = errors.New("record not found")
	ErrNoQueryEngine    = errors.New("no query engine configured for all-matching selections")
	ErrNegativeWindow   = errors.New("chunk offset and size must be non-negative")
	ErrInvalidRowFormat = errors.New("row does not identify a record")
)

// QueryRef carries enough of the originating listing to re-run it
// deterministically: the view and display, contextual arguments, exposed
// filter input, the pager offset baked into the listing, an optional
// relationship to load the targeted record through. Revisions forces
// revision-pinned references for engines that cannot report it themselves; a
// RevisionLister answers for its own listings.
type QueryRef struct {
	View         string            `json:"view"                    yaml:"view"`
	Display      string            `json:"display,omitempty"       yaml:"display,omitempty"`
	Arguments    []string          `json:"arguments,omitempty"     yaml:"arguments,omitempty"`
	ExposedInput map[string]string `json:"exposed_input,omitempty" yaml:"exposed_input,omitempty"`
	PagerOffset  int               `json:"pager_offset,omitempty"  yaml:"pager_offset,omitempty"`
	Relationship string            `json:"relationship,omitempty"  yaml:"relationship,omitempty"`
	Revisions    bool              `json:"revisions,omitempty"     yaml:"revisions,omitempty"`
}

// Selection is a tagged union: Items is set for KindExplicit, Query for
// KindAllMatching.
type Selection struct {
	Kind  Kind      `json:"kind"`
	Items []ItemRef `json:"items,omitempty"`
	Query *QueryRef `json:"query,omitempty"`
}

// Explicit builds a hand-picked selection.
func Explicit(items ...ItemRef) Selection {
	return Selection{Kind: KindExplicit, Items: items}
}

// AllMatching builds a "select all results" selection over q.
func AllMatching(q QueryRef) Selection {
	return Selection{Kind: KindAllMatching, Query: &q}
}

// Validate checks that exactly the variant named by Kind is populated.
func (s Selection) Validate() error {
	switch s.Kind {
	case KindExplicit:
		if s.Query != nil {
			return ErrAmbiguous
		}
		if len(s.Items) == 0 {
			return ErrNoItems
		}
	case KindAllMatching:
		if len(s.Items) > 0 {
			return ErrAmbiguous
		}
		if s.Query == nil {
			return ErrNoQuery
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	return nil
}

// IsExplicit reports whether the selection is a stored item list.
func (s Selection) IsExplicit() bool {
	return s.Kind == KindExplicit
}

// Len returns the number of explicit items, or -1 for all-matching selections.
func (s Selection) Len() int {
	if s.Kind != KindExplicit {
		return -1
	}
	return len(s.Items)
}

// Row is one result row of a listing, keyed by column alias.
type Row map[string]any

// String returns the textual value of column, or "".
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the integer value of column and whether it was present.
func (r Row) Int64(column string) (int64, bool) {
	s := r.String(column)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Record is the slice of a loaded content record the engine relies on.
type Record interface {
	EntityTypeID() string
	ID() string
	Language() string
	RevisionID() (int64, bool)
	Label() string
}

// RefFromRecord derives the reference of rec, keeping the revision only when
// withRevision is set.
func RefFromRecord(rec Record, withRevision bool) ItemRef {
	ref := NewItemRef(rec.Language(), rec.EntityTypeID(), rec.ID())
	if withRevision {
		if rev, ok := rec.RevisionID(); ok {
			ref = ref.WithRevision(rev)
		}
	}
	return ref
}
