package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/rshade/bulkops/internal/logging"
)

// SeedOptions shapes generated sample content.
type SeedOptions struct {
	Nodes     int
	Languages []string
	Bundles   []string
	// CommentsPerNode attaches that many comments to every node.
	CommentsPerNode int
}

// DefaultSeedOptions returns a small bilingual data set.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		Nodes:           25,
		Languages:       []string{"en", "fr"},
		Bundles:         []string{"article", "page"},
		CommentsPerNode: 1,
	}
}

// ErrAlreadySeeded is returned when Seed finds existing content.
var ErrAlreadySeeded = errors.New("content store already holds records")

// Seed fills an empty store with deterministic sample nodes numbered from 1,
// one translation per language, plus comments pointing at their node. It
// returns the number of translations written.
func (s *Store) Seed(ctx context.Context, opts SeedOptions) (int, error) {
	if opts.Nodes <= 0 {
		return 0, nil
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en"}
	}
	if len(opts.Bundles) == 0 {
		opts.Bundles = []string{"page"}
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&Node{}).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("checking existing content: %w", err)
	}
	if existing > 0 {
		return 0, fmt.Errorf("%w: %d rows", ErrAlreadySeeded, existing)
	}

	written := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentID := 0
		for i := 1; i <= opts.Nodes; i++ {
			id := strconv.Itoa(i)
			for _, lang := range opts.Languages {
				n := &Node{
					EntityType: "node",
					EntityID:   id,
					Langcode:   lang,
					Bundle:     opts.Bundles[(i-1)%len(opts.Bundles)],
					Title:      fmt.Sprintf("Node %d (%s)", i, lang),
					Status:     i%3 != 0,
					Owner:      owner(i),
				}
				if err := insert(tx, n); err != nil {
					return err
				}
				written++
			}
			for c := 0; c < opts.CommentsPerNode; c++ {
				commentID++
				n := &Node{
					EntityType: "comment",
					EntityID:   strconv.Itoa(commentID),
					Langcode:   opts.Languages[0],
					Bundle:     "comment",
					Title:      fmt.Sprintf("Comment %d on node %d", commentID, i),
					Status:     true,
					Owner:      owner(i + c + 1),
					ParentType: "node",
					ParentID:   id,
				}
				if err := insert(tx, n); err != nil {
					return err
				}
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "content").
		Int("nodes", opts.Nodes).
		Int("translations", written).
		Msg("seeded sample content")
	return written, nil
}

func insert(tx *gorm.DB, n *Node) error {
	if err := tx.Create(n).Error; err != nil {
		return fmt.Errorf("creating %s/%s: %w", n.EntityType, n.EntityID, err)
	}
	return saveRevision(tx, n)
}

func owner(i int) string {
	if i%2 == 0 {
		return "editor"
	}
	return "author"
}
