// Package content is a small SQL-backed content repository: translated,
// revisioned records, named listings over them, and a handful of actions.
// It implements the record store and query engine the batch engine consumes.
package content

import (
	"time"
)

// Node is the current revision of one record translation.
type Node struct {
	PK         uint   `gorm:"primaryKey"`
	EntityType string `gorm:"not null;uniqueIndex:idx_node_translation,priority:1"`
	EntityID   string `gorm:"not null;uniqueIndex:idx_node_translation,priority:2"`
	Langcode   string `gorm:"not null;uniqueIndex:idx_node_translation,priority:3"`
	Revision   int64  `gorm:"column:revision_id;index"`
	Bundle     string `gorm:"index"`
	Title      string
	Status     bool
	Owner      string `gorm:"index"`
	// ParentType and ParentID link a record to the one it belongs to, e.g. a
	// comment to its node.
	ParentType string
	ParentID   string
	UpdatedAt  time.Time
}

// EntityTypeID implements selection.Record.
func (n *Node) EntityTypeID() string { return n.EntityType }

// ID implements selection.Record.
func (n *Node) ID() string { return n.EntityID }

// Language implements selection.Record.
func (n *Node) Language() string { return n.Langcode }

// RevisionID implements selection.Record.
func (n *Node) RevisionID() (int64, bool) { return n.Revision, n.Revision > 0 }

// Label implements selection.Record.
func (n *Node) Label() string { return n.Title }

// Revision is an immutable snapshot of a node translation. Its primary key
// is the revision id.
type Revision struct {
	PK         uint   `gorm:"primaryKey"`
	EntityType string `gorm:"not null;index:idx_revision_translation,priority:1"`
	EntityID   string `gorm:"not null;index:idx_revision_translation,priority:2"`
	Langcode   string `gorm:"not null;index:idx_revision_translation,priority:3"`
	Bundle     string
	Title      string
	Status     bool
	Owner      string
	ParentType string
	ParentID   string
	CreatedAt  time.Time
}

func (r *Revision) node() *Node {
	return &Node{
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Langcode:   r.Langcode,
		Revision:   int64(r.PK),
		Bundle:     r.Bundle,
		Title:      r.Title,
		Status:     r.Status,
		Owner:      r.Owner,
		ParentType: r.ParentType,
		ParentID:   r.ParentID,
		UpdatedAt:  r.CreatedAt,
	}
}

func snapshot(n *Node) *Revision {
	return &Revision{
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		Langcode:   n.Langcode,
		Bundle:     n.Bundle,
		Title:      n.Title,
		Status:     n.Status,
		Owner:      n.Owner,
		ParentType: n.ParentType,
		ParentID:   n.ParentID,
	}
}
