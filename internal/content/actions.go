package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/selection"
)

// Labels reported by the sample actions.
const (
	LabelUnpublished        = "Unpublished"
	LabelAlreadyUnpublished = "Already unpublished"
	LabelTitleChanged       = "Title changed"
	LabelTitleUnchanged     = "Title unchanged"
	LabelUnsupported        = "Record not stored here"
)

// ErrInvalidConfiguration is returned by ValidateConfiguration.
var ErrInvalidConfiguration = errors.New("invalid action configuration")

// Definitions returns the sample action definitions, keyed by id.
func Definitions() map[string]action.Definition {
	return map[string]action.Definition{
		"publish": {
			ID: "publish", Label: "Publish content", EntityType: "node",
		},
		"unpublish": {
			ID: "unpublish", Label: "Unpublish content", EntityType: "node",
		},
		"retitle": {
			ID: "retitle", Label: "Change title",
		},
		"example": {
			ID: "example", Label: "Example action", EntityType: "node",
			Confirm: true, PassContext: true, PassRows: true, PassView: true,
		},
		"node_delete_action": {
			ID: "node_delete_action", Label: "Delete content", EntityType: "node",
		},
	}
}

// RegisterActions registers every sample action backed by s. Actions the
// registry refuses for bulk use are skipped.
func RegisterActions(ctx context.Context, reg *action.Registry, s *Store) error {
	defs := Definitions()
	unpublish := func() action.Action {
		return &statusAction{store: s, changed: LabelUnpublished, unchanged: LabelAlreadyUnpublished}
	}
	factories := map[string]action.Factory{
		"publish":            func() action.Action { return &statusAction{store: s, status: true} },
		"unpublish":          unpublish,
		"retitle":            func() action.Action { return &retitleAction{store: s} },
		"example":            func() action.Action { return &exampleAction{} },
		"node_delete_action": func() action.Action { return &deleteAction{store: s} },
	}
	for _, id := range []string{"publish", "unpublish", "retitle", "example", "node_delete_action"} {
		err := reg.Register(defs[id], factories[id])
		if errors.Is(err, action.ErrIncompatible) {
			logging.FromContext(ctx).Debug().
				Ctx(ctx).
				Str("component", "content").
				Str("action_id", id).
				Msg("skipping action unsuitable for bulk use")
			continue
		}
		if err != nil {
			return fmt.Errorf("registering %s: %w", id, err)
		}
	}
	return nil
}

// statusAction publishes or unpublishes. Without labels it leaves labelling
// to the definition.
type statusAction struct {
	store     *Store
	status    bool
	changed   string
	unchanged string
}

func (a *statusAction) ExecuteMany(ctx context.Context, records []selection.Record, _ action.Configuration) ([]string, error) {
	labels := make([]string, 0, len(records))
	err := a.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			n, ok := rec.(*Node)
			if !ok {
				labels = append(labels, LabelUnsupported)
				continue
			}
			if n.Status == a.status {
				labels = append(labels, a.unchanged)
				continue
			}
			n.Status = a.status
			if err := update(tx, n); err != nil {
				return err
			}
			labels = append(labels, a.changed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if a.changed == "" {
		return nil, nil
	}
	return labels, nil
}

// retitleAction replaces titles, or appends a suffix to them.
type retitleAction struct {
	store *Store
}

func (a *retitleAction) DefaultConfiguration() action.Configuration {
	return action.Configuration{"title": "", "suffix": ""}
}

func (a *retitleAction) ValidateConfiguration(cfg action.Configuration) error {
	title, suffix := strings.TrimSpace(cfg.String("title")), cfg.String("suffix")
	switch {
	case title == "" && suffix == "":
		return fmt.Errorf("%w: either title or suffix is required", ErrInvalidConfiguration)
	case title != "" && suffix != "":
		return fmt.Errorf("%w: title and suffix are mutually exclusive", ErrInvalidConfiguration)
	}
	return nil
}

func (a *retitleAction) ExecuteMany(ctx context.Context, records []selection.Record, cfg action.Configuration) ([]string, error) {
	title, suffix := strings.TrimSpace(cfg.String("title")), cfg.String("suffix")
	labels := make([]string, 0, len(records))
	err := a.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			n, ok := rec.(*Node)
			if !ok {
				labels = append(labels, LabelUnsupported)
				continue
			}
			next := title
			if suffix != "" {
				next = n.Title + suffix
			}
			if next == n.Title {
				labels = append(labels, LabelTitleUnchanged)
				continue
			}
			n.Title = next
			if err := update(tx, n); err != nil {
				return err
			}
			labels = append(labels, LabelTitleChanged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// exampleAction changes nothing; it records what the engine handed it.
type exampleAction struct {
	bc     action.BatchContext
	source *selection.QueryRef
}

func (a *exampleAction) SetContext(bc action.BatchContext) { a.bc = bc }

func (a *exampleAction) SetSourceListing(q *selection.QueryRef) { a.source = q }

func (a *exampleAction) ExecuteMany(ctx context.Context, records []selection.Record, _ action.Configuration) ([]string, error) {
	ev := logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "content").
		Str("action_id", "example").
		Int("chunk", a.bc.ChunkIndex).
		Int("processed", a.bc.Processed).
		Int("records", len(records)).
		Int("rows", len(a.bc.Rows))
	if a.source != nil {
		ev = ev.Str("view", a.source.View)
	}
	ev.Msg("example action ran")
	return nil, nil
}

// deleteAction removes records outright. It skips confirmation, so the
// registry never accepts it for bulk use.
type deleteAction struct {
	store *Store
}

func (a *deleteAction) ExecuteMany(ctx context.Context, records []selection.Record, _ action.Configuration) ([]string, error) {
	err := a.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			if err := deleteRecord(tx, rec.EntityTypeID(), rec.ID()); err != nil {
				return err
			}
		}
		return nil
	})
	return nil, err
}
