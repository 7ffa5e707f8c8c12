package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAccount struct {
	perms map[string]bool
}

func (a testAccount) AccountID() string           { return "tester" }
func (a testAccount) HasPermission(p string) bool { return a.perms[p] }

func plainFactory() Action { return plainAction{} }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{ID: "publish", Label: "Publish"}, plainFactory))
	require.NoError(t, r.Register(Definition{ID: "unpublish", Label: "Unpublish", EntityType: "node"}, plainFactory))
	require.NoError(t, r.Register(Definition{ID: "guarded", Label: "Guarded"}, func() Action { return guardedAction{} }))
	require.NoError(t, r.Register(Definition{ID: "retitle", Label: "Change title", EntityType: "node"},
		func() Action { return &richAction{} }))
	return r
}

func TestRegistryRegister(t *testing.T) {
	r := newTestRegistry(t)

	def, err := r.Get("retitle")
	require.NoError(t, err)
	assert.Equal(t, "execute retitle node", def.RequiredPermission)
	assert.True(t, def.Capabilities.Has(CapContext))

	def, err = r.Get("guarded")
	require.NoError(t, err)
	assert.True(t, def.HasOwnRequirementCheck)
	assert.Empty(t, def.RequiredPermission)

	err = r.Register(Definition{ID: "publish"}, plainFactory)
	assert.ErrorIs(t, err, ErrDuplicate)

	err = r.Register(Definition{ID: "node_delete_action", Label: "Delete"}, plainFactory)
	assert.ErrorIs(t, err, ErrIncompatible)
	_, err = r.Get("node_delete_action")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.Register(Definition{ID: "  "}, plainFactory), ErrInvalidDefinition)
	assert.ErrorIs(t, r.Register(Definition{ID: "n"}, nil), ErrInvalidDefinition)
	assert.ErrorIs(t, r.Register(Definition{ID: "n"}, func() Action { return nil }), ErrInvalidDefinition)
}

func TestRegistryNewReturnsFreshInstances(t *testing.T) {
	r := newTestRegistry(t)
	_, a1, err := r.New("retitle")
	require.NoError(t, err)
	_, a2, err := r.New("retitle")
	require.NoError(t, err)
	assert.NotSame(t, a1, a2)

	_, _, err = r.New("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryList(t *testing.T) {
	r := newTestRegistry(t)
	ids := func(defs []Definition) []string {
		out := make([]string, 0, len(defs))
		for _, d := range defs {
			out = append(out, d.ID)
		}
		return out
	}

	assert.Equal(t, []string{"retitle", "guarded", "publish", "unpublish"}, ids(r.List(Filter{})))
	assert.Equal(t, []string{"publish", "unpublish"}, ids(r.List(Filter{Include: []string{"publish", "unpublish", "nope"}})))
	assert.Equal(t, []string{"retitle", "guarded"}, ids(r.List(Filter{Exclude: []string{"publish", "unpublish"}})))
	assert.Equal(t, []string{"guarded", "publish"}, ids(r.List(Filter{EntityType: "user"})))

	acct := testAccount{perms: map[string]bool{"execute publish all": true}}
	assert.Equal(t, []string{"guarded", "publish"}, ids(r.List(Filter{Account: acct})))
}

func TestRegistryPermissions(t *testing.T) {
	perms := newTestRegistry(t).Permissions()
	require.Len(t, perms, 3)
	assert.Equal(t, Permission{
		ID:       "execute publish all",
		Title:    "Execute the Publish action on all entity types.",
		ActionID: "publish",
	}, perms[0])
	assert.Equal(t, "Execute the Change title action on node.", perms[1].Title)
	assert.Equal(t, "execute unpublish node", perms[2].ID)
}

func TestIncompatible(t *testing.T) {
	assert.True(t, Incompatible("node_delete_action"))
	assert.False(t, Incompatible("publish"))
}
