package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/selection"
)

type node struct {
	typ, id, lang string
}

func (n node) EntityTypeID() string      { return n.typ }
func (n node) ID() string                { return n.id }
func (n node) Language() string          { return n.lang }
func (n node) RevisionID() (int64, bool) { return 0, false }
func (n node) Label() string             { return n.typ + " " + n.id }

// memRecords is an in-memory record store and query engine over an ordered
// list of nodes.
type memRecords struct {
	order      []node
	deleted    map[string]bool
	countKnown bool
	loadErr    error
	loads      int
	executes   int
}

func newMemRecords(nodes ...node) *memRecords {
	return &memRecords{order: nodes, deleted: map[string]bool{}, countKnown: true}
}

func pages(n int) []node {
	out := make([]node, n)
	for i := range out {
		out[i] = node{typ: "page", id: strconv.Itoa(i + 1), lang: "en"}
	}
	return out
}

func (m *memRecords) Load(_ context.Context, ref selection.ItemRef) (selection.Record, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	for _, n := range m.order {
		if n.typ == ref.EntityTypeID && n.id == ref.ID && !m.deleted[n.id] {
			return n, nil
		}
	}
	return nil, selection.ErrRecordNotFound
}

func (m *memRecords) LoadFromRow(ctx context.Context, row selection.Row, _ string) (selection.Record, error) {
	if row.String("id") == "" {
		return nil, selection.ErrInvalidRowFormat
	}
	return m.Load(ctx, selection.NewItemRef("en", row.String("entity_type"), row.String("id")))
}

func (m *memRecords) Execute(_ context.Context, _ selection.QueryRef, offset, limit int) ([]selection.Row, error) {
	m.executes++
	var rows []selection.Row
	for i, n := range m.order {
		if i < offset {
			continue
		}
		if limit > 0 && len(rows) == limit {
			break
		}
		rows = append(rows, selection.Row{"entity_type": n.typ, "id": n.id})
	}
	return rows, nil
}

func (m *memRecords) CountTotal(context.Context, selection.QueryRef) (int, bool, error) {
	return len(m.order), m.countKnown, nil
}

// recorder is an action that remembers what it was asked to do.
type recorder struct {
	calls    [][]string
	labels   func(recs []selection.Record) []string
	err      error
	contexts []action.BatchContext
	source   *selection.QueryRef
}

func (r *recorder) ExecuteMany(_ context.Context, recs []selection.Record, _ action.Configuration) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID()
	}
	r.calls = append(r.calls, ids)
	if r.labels == nil {
		return nil, nil
	}
	return r.labels(recs), nil
}

func (r *recorder) SetContext(bc action.BatchContext) {
	r.contexts = append(r.contexts, bc)
}

func (r *recorder) SetSourceListing(q *selection.QueryRef) {
	r.source = q
}

// configurable validates a required "title" option.
type configurable struct{ recorder }

func (*configurable) DefaultConfiguration() action.Configuration {
	return action.Configuration{"status": "draft"}
}

func (*configurable) ValidateConfiguration(cfg action.Configuration) error {
	if cfg.String("title") == "" {
		return errors.New("title is required")
	}
	return nil
}

// picky grants access only to odd ids.
type picky struct{ recorder }

func (*picky) Access(_ context.Context, rec selection.Record, _ action.Account) bool {
	n, _ := strconv.Atoi(rec.ID())
	return n%2 == 1
}

// denyIDs is an access checker that refuses the listed record ids.
type denyIDs map[string]bool

func (d denyIDs) HasAccess(_ context.Context, _ action.Definition, rec selection.Record, _ action.Account) bool {
	return !d[rec.ID()]
}

func keysFor(nodes ...node) []string {
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = selection.EncodeKey(selection.NewItemRef(n.lang, n.typ, n.id))
	}
	return keys
}

func register(reg *action.Registry, def action.Definition, a action.Action) {
	if err := reg.Register(def, func() action.Action { return a }); err != nil {
		panic(fmt.Sprintf("register %s: %v", def.ID, err))
	}
}
