package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// ErrUnknownView is returned for listings that were never registered.
var ErrUnknownView = errors.New("unknown view")

// Row columns produced by listings.
const (
	ColEntityType = "entity_type"
	ColID         = "id"
	ColLangcode   = "langcode"
	ColRevisionID = "revision_id"
	ColTitle      = "title"
	ColBundle     = "bundle"
	ColStatus     = "status"
	ColOwner      = "owner"
	// ColIsRevision marks rows of revision listings.
	ColIsRevision = "is_revision"
)

// View is a named listing: a base filter, positional argument columns and
// the exposed filters an operator may set.
type View struct {
	ID         string
	Label      string
	EntityType string
	Bundle     string
	Revisions  bool
	Arguments  []string
	Exposed    []string

	// Relationships names the relationships rows carry columns for.
	Relationships []string
}

// DefaultViews are registered by NewStore.
func DefaultViews() []View {
	return []View{
		{
			ID: "content", Label: "Content", EntityType: "node",
			Arguments: []string{"owner"},
			Exposed:   []string{"status", "bundle", "langcode", "title"},
		},
		{
			ID: "articles", Label: "Articles", EntityType: "node", Bundle: "article",
			Exposed: []string{"status", "langcode"},
		},
		{
			ID: "content_revisions", Label: "Content revisions", EntityType: "node", Revisions: true,
			Exposed: []string{"langcode"},
		},
		{
			ID: "comments", Label: "Comments", EntityType: "comment",
			Exposed:       []string{"status"},
			Relationships: []string{"parent"},
		},
	}
}

// filterable maps exposed and argument names to columns.
var filterable = map[string]string{
	"status":   "status",
	"bundle":   "bundle",
	"langcode": "langcode",
	"owner":    "owner",
	"title":    "title",
}

// apply narrows tx to the view with the given arguments and exposed input.
func (v View) apply(tx *gorm.DB, args []string, exposed map[string]string) (*gorm.DB, error) {
	tx = tx.Where("entity_type = ?", v.EntityType)
	if v.Bundle != "" {
		tx = tx.Where("bundle = ?", v.Bundle)
	}
	for i, arg := range args {
		if i >= len(v.Arguments) {
			return nil, fmt.Errorf("view %s takes %d arguments, got %d", v.ID, len(v.Arguments), len(args))
		}
		if arg == "" || arg == "all" {
			continue
		}
		tx = tx.Where(filterable[v.Arguments[i]]+" = ?", arg)
	}
	for _, name := range v.Exposed {
		value, ok := exposed[name]
		if !ok || value == "" || value == "All" {
			continue
		}
		switch name {
		case "status":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("exposed filter status: %w", err)
			}
			tx = tx.Where("status = ?", b)
		case "title":
			tx = tx.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(value)+"%")
		default:
			tx = tx.Where(filterable[name]+" = ?", value)
		}
	}
	return tx, nil
}
