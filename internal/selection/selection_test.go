package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionValidate(t *testing.T) {
	item := NewItemRef("en", "node", "1")
	q := QueryRef{View: "content"}

	tests := []struct {
		name    string
		sel     Selection
		wantErr error
	}{
		{name: "explicit", sel: Explicit(item)},
		{name: "all matching", sel: AllMatching(q)},
		{name: "explicit empty", sel: Explicit(), wantErr: ErrNoItems},
		{name: "all matching without query", sel: Selection{Kind: KindAllMatching}, wantErr: ErrNoQuery},
		{name: "explicit with query", sel: Selection{Kind: KindExplicit, Items: []ItemRef{item}, Query: &q}, wantErr: ErrAmbiguous},
		{name: "all matching with items", sel: Selection{Kind: KindAllMatching, Items: []ItemRef{item}, Query: &q}, wantErr: ErrAmbiguous},
		{name: "unknown kind", sel: Selection{Kind: "some"}, wantErr: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSelectionLen(t *testing.T) {
	assert.Equal(t, 2, Explicit(NewItemRef("en", "node", "1"), NewItemRef("en", "node", "2")).Len())
	assert.Equal(t, -1, AllMatching(QueryRef{View: "content"}).Len())
	assert.True(t, Explicit().IsExplicit())
}

func TestRowAccessors(t *testing.T) {
	row := Row{"id": int64(4), "title": "Hello", "raw": []byte("b"), "f": 2.0, "bad": "x1"}
	assert.Equal(t, "4", row.String("id"))
	assert.Equal(t, "Hello", row.String("title"))
	assert.Equal(t, "b", row.String("raw"))
	assert.Equal(t, "2", row.String("f"))
	assert.Equal(t, "", row.String("missing"))

	n, ok := row.Int64("id")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	_, ok = row.Int64("bad")
	assert.False(t, ok)
	_, ok = row.Int64("missing")
	assert.False(t, ok)
}
