package pagination

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rshade/bulkops/internal/store"
)

// Sort fields for persisted runs.
const (
	FieldCreated = "created"
	FieldUpdated = "updated"
	FieldStatus  = "status"
	FieldAction  = "action"
	FieldSteps   = "steps"
)

//nolint:gochecknoglobals // Static lookup table.
var recordLess = map[string]func(a, b *store.Record) bool{
	FieldCreated: func(a, b *store.Record) bool { return a.CreatedAt.Before(b.CreatedAt) },
	FieldUpdated: func(a, b *store.Record) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	FieldStatus:  func(a, b *store.Record) bool { return a.Status < b.Status },
	FieldAction:  func(a, b *store.Record) bool { return a.Request.ActionID < b.Request.ActionID },
	FieldSteps:   func(a, b *store.Record) bool { return a.Steps < b.Steps },
}

// SortFields lists the accepted sort fields.
func SortFields() []string {
	fields := make([]string, 0, len(recordLess))
	for f := range recordLess {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// SortRecords returns a sorted copy of records. An empty field keeps the
// input order.
func SortRecords(records []*store.Record, field, order string) ([]*store.Record, error) {
	sorted := make([]*store.Record, len(records))
	copy(sorted, records)
	if field == "" {
		return sorted, nil
	}
	less, ok := recordLess[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidSortField, field, strings.Join(SortFields(), ", "))
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if order == SortOrderDesc {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})
	return sorted, nil
}
