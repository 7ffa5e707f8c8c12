package pagination

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/store"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{name: "defaults", params: Params{Limit: DefaultLimit}},
		{name: "offset mode", params: Params{Limit: 10, Offset: 20}},
		{name: "page mode", params: Params{Page: 2, PageSize: 10}},
		{name: "negative limit", params: Params{Limit: -1}, wantErr: ErrNegative},
		{name: "negative page size", params: Params{PageSize: -1}, wantErr: ErrNegative},
		{name: "mixed modes", params: Params{Page: 1, PageSize: 5, Offset: 10}, wantErr: ErrMixedModes},
		{name: "page size alone", params: Params{PageSize: 10}, wantErr: ErrPageSizeNeedsPage},
		{name: "page alone", params: Params{Page: 3}, wantErr: ErrPageNeedsPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in        string
		wantField string
		wantOrder string
		wantErr   error
	}{
		{in: "", wantField: "", wantOrder: SortOrderDesc},
		{in: "created", wantField: "created", wantOrder: SortOrderDesc},
		{in: "steps:ASC", wantField: "steps", wantOrder: SortOrderAsc},
		{in: " status : desc ", wantField: "status", wantOrder: SortOrderDesc},
		{in: "a:b:c", wantErr: ErrInvalidSortFormat},
		{in: ":asc", wantErr: ErrEmptySortField},
		{in: "steps:up", wantErr: ErrInvalidSortOrder},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			field, order, err := ParseSort(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}

func TestApply(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	tests := []struct {
		name   string
		params Params
		want   []int
	}{
		{name: "first page", params: Params{Page: 1, PageSize: 3}, want: []int{1, 2, 3}},
		{name: "last page", params: Params{Page: 3, PageSize: 3}, want: []int{7}},
		{name: "past the end", params: Params{Page: 4, PageSize: 3}, want: []int{}},
		{name: "offset and limit", params: Params{Offset: 2, Limit: 2}, want: []int{3, 4}},
		{name: "unlimited", params: Params{Offset: 5}, want: []int{6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.params, items))
		})
	}
}

func TestNewMeta(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   Meta
	}{
		{
			name:   "middle page",
			params: Params{Page: 2, PageSize: 10},
			total:  35,
			want:   Meta{CurrentPage: 2, PageSize: 10, TotalPages: 4, TotalItems: 35, HasPrevious: true, HasNext: true},
		},
		{
			name:   "offset converted to page",
			params: Params{Offset: 20, Limit: 10},
			total:  25,
			want:   Meta{CurrentPage: 3, PageSize: 10, TotalPages: 3, TotalItems: 25, HasPrevious: true},
		},
		{
			name:   "everything on one page",
			params: Params{},
			total:  4,
			want:   Meta{CurrentPage: 1, PageSize: 4, TotalPages: 1, TotalItems: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMeta(tt.params, tt.total))
		})
	}
}

func TestAddFlags(t *testing.T) {
	var p Params
	cmd := &cobra.Command{Use: "list"}
	p.AddFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--page", "2", "--page-size", "5", "--sort", "steps:asc"}))

	assert.Equal(t, Params{Limit: DefaultLimit, Page: 2, PageSize: 5, Sort: "steps:asc"}, p)
	offset, limit := p.OffsetLimit()
	assert.Equal(t, 5, offset)
	assert.Equal(t, 5, limit)
}

func TestSortRecords(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*store.Record{
		{ID: "a", Status: store.StatusRunning, Steps: 3, CreatedAt: base, Request: engine.Request{ActionID: "publish"}},
		{ID: "b", Status: store.StatusFailed, Steps: 1, CreatedAt: base.Add(time.Hour), Request: engine.Request{ActionID: "example"}},
		{ID: "c", Status: store.StatusFinished, Steps: 2, CreatedAt: base.Add(-time.Hour), Request: engine.Request{ActionID: "retitle"}},
	}
	ids := func(rs []*store.Record) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	tests := []struct {
		field, order string
		want         []string
	}{
		{field: "", order: SortOrderDesc, want: []string{"a", "b", "c"}},
		{field: FieldCreated, order: SortOrderAsc, want: []string{"c", "a", "b"}},
		{field: FieldCreated, order: SortOrderDesc, want: []string{"b", "a", "c"}},
		{field: FieldSteps, order: SortOrderAsc, want: []string{"b", "c", "a"}},
		{field: FieldAction, order: SortOrderAsc, want: []string{"b", "a", "c"}},
		{field: FieldStatus, order: SortOrderAsc, want: []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.field+":"+tt.order, func(t *testing.T) {
			got, err := SortRecords(records, tt.field, tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, err := SortRecords(records, "size", SortOrderAsc)
	require.ErrorIs(t, err, ErrInvalidSortField)
	assert.Equal(t, []string{"a", "b", "c"}, ids(records))
}
