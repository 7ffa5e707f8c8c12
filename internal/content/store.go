package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/selection"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Store persists nodes and revisions and runs registered listings over them.
type Store struct {
	db *gorm.DB

	mu    sync.RWMutex
	views map[string]View
}

// Open connects to the sqlite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening content database: %w", err)
	}
	if dsn == MemoryDSN {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, fmt.Errorf("configuring content database: %w", dbErr)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	s := NewStore(db)
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database. Call AutoMigrate before first use.
func NewStore(db *gorm.DB) *Store {
	s := &Store{db: db, views: make(map[string]View)}
	for _, v := range DefaultViews() {
		s.RegisterView(v)
	}
	return s
}

// AutoMigrate creates or updates the content tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Node{}, &Revision{}); err != nil {
		return fmt.Errorf("migrating content schema: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RegisterView adds or replaces a listing.
func (s *Store) RegisterView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v.ID] = v
}

// Views returns the registered listings ordered by id.
func (s *Store) Views() []View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]View, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) view(id string) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownView, id)
	}
	return v, nil
}

// Create inserts a new node translation and its first revision.
func (s *Store) Create(ctx context.Context, n *Node) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insert(tx, n)
	})
}

// Update saves the changed fields of n as a new revision.
func (s *Store) Update(ctx context.Context, n *Node) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return update(tx, n)
	})
}

func update(tx *gorm.DB, n *Node) error {
	if err := saveRevision(tx, n); err != nil {
		return err
	}
	res := tx.Model(&Node{}).
		Where("entity_type = ? AND entity_id = ? AND langcode = ?", n.EntityType, n.EntityID, n.Langcode).
		Updates(map[string]any{
			"title":       n.Title,
			"status":      n.Status,
			"owner":       n.Owner,
			"revision_id": n.Revision,
		})
	if res.Error != nil {
		return fmt.Errorf("updating %s/%s: %w", n.EntityType, n.EntityID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating %s/%s: %w", n.EntityType, n.EntityID, selection.ErrRecordNotFound)
	}
	return nil
}

func saveRevision(tx *gorm.DB, n *Node) error {
	rev := snapshot(n)
	if err := tx.Create(rev).Error; err != nil {
		return fmt.Errorf("saving revision of %s/%s: %w", n.EntityType, n.EntityID, err)
	}
	n.Revision = int64(rev.PK)
	return tx.Model(&Node{}).Where("pk = ?", n.PK).Update("revision_id", n.Revision).Error
}

// Delete removes every translation and revision of a record.
func (s *Store) Delete(ctx context.Context, entityType, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteRecord(tx, entityType, id)
	})
}

func deleteRecord(tx *gorm.DB, entityType, id string) error {
	if err := tx.Where("entity_type = ? AND entity_id = ?", entityType, id).Delete(&Node{}).Error; err != nil {
		return fmt.Errorf("deleting %s/%s: %w", entityType, id, err)
	}
	if err := tx.Where("entity_type = ? AND entity_id = ?", entityType, id).Delete(&Revision{}).Error; err != nil {
		return fmt.Errorf("deleting revisions of %s/%s: %w", entityType, id, err)
	}
	return nil
}

// Load fetches the record ref points to: the pinned revision when ref has
// one, the current translation otherwise.
func (s *Store) Load(ctx context.Context, ref selection.ItemRef) (selection.Record, error) {
	db := s.db.WithContext(ctx)
	if ref.HasRevision() {
		var rev Revision
		err := db.Where("pk = ? AND entity_type = ? AND entity_id = ? AND langcode = ?",
			*ref.RevisionID, ref.EntityTypeID, ref.ID, ref.LanguageCode).
			First(&rev).Error
		if err != nil {
			return nil, notFound(ref, err)
		}
		return rev.node(), nil
	}

	var n Node
	err := db.Where("entity_type = ? AND entity_id = ? AND langcode = ?",
		ref.EntityTypeID, ref.ID, ref.LanguageCode).
		First(&n).Error
	if err != nil {
		return nil, notFound(ref, err)
	}
	return &n, nil
}

func notFound(ref selection.ItemRef, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("loading %s: %w", ref, selection.ErrRecordNotFound)
	}
	return fmt.Errorf("loading %s: %w", ref, err)
}

// LoadFromRow resolves a listing row. With a relationship, the related
// record named by the "<relationship>__entity_type" and "<relationship>__id"
// columns is loaded in the row's language.
func (s *Store) LoadFromRow(ctx context.Context, row selection.Row, relationship string) (selection.Record, error) {
	typeCol, idCol := ColEntityType, ColID
	if relationship != "" {
		typeCol = relationship + "__" + ColEntityType
		idCol = relationship + "__" + ColID
	}
	ref := selection.NewItemRef(row.String(ColLangcode), row.String(typeCol), row.String(idCol))
	if ref.EntityTypeID == "" || ref.ID == "" {
		return nil, fmt.Errorf("%w: missing %s or %s", selection.ErrInvalidRowFormat, typeCol, idCol)
	}
	if relationship == "" && row.String(ColIsRevision) == "true" {
		if rev, ok := row.Int64(ColRevisionID); ok {
			ref = ref.WithRevision(rev)
		}
	}
	return s.Load(ctx, ref)
}

// ListsRevisions reports whether q targets revision rows directly, so the
// resolved references must keep their revision ids.
func (s *Store) ListsRevisions(_ context.Context, q selection.QueryRef) (bool, error) {
	v, err := s.view(q.View)
	if err != nil {
		return false, err
	}
	return v.Revisions && q.Relationship == "", nil
}

// Execute runs the listing named by q and returns rows [offset, offset+limit).
// A limit of 0 returns every row from offset.
func (s *Store) Execute(ctx context.Context, q selection.QueryRef, offset, limit int) ([]selection.Row, error) {
	v, err := s.view(q.View)
	if err != nil {
		return nil, err
	}
	tx, err := s.listing(ctx, v, q)
	if err != nil {
		return nil, err
	}
	tx = tx.Order("pk ASC").Offset(offset)
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []selection.Row
	if v.Revisions {
		var revs []Revision
		if err := tx.Find(&revs).Error; err != nil {
			return nil, fmt.Errorf("running view %s: %w", v.ID, err)
		}
		rows = make([]selection.Row, 0, len(revs))
		for i := range revs {
			row := nodeRow(revs[i].node(), v.Relationships)
			row[ColIsRevision] = true
			rows = append(rows, row)
		}
	} else {
		var nodes []Node
		if err := tx.Find(&nodes).Error; err != nil {
			return nil, fmt.Errorf("running view %s: %w", v.ID, err)
		}
		rows = make([]selection.Row, 0, len(nodes))
		for i := range nodes {
			rows = append(rows, nodeRow(&nodes[i], v.Relationships))
		}
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "content").
		Str("view", v.ID).
		Int("offset", offset).
		Int("limit", limit).
		Int("rows", len(rows)).
		Msg("executed view")
	return rows, nil
}

// CountTotal counts the rows of the listing named by q. The count is always
// known for sqlite listings.
func (s *Store) CountTotal(ctx context.Context, q selection.QueryRef) (int, bool, error) {
	v, err := s.view(q.View)
	if err != nil {
		return 0, false, err
	}
	tx, err := s.listing(ctx, v, q)
	if err != nil {
		return 0, false, err
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, false, fmt.Errorf("counting view %s: %w", v.ID, err)
	}
	return int(n), true, nil
}

func (s *Store) listing(ctx context.Context, v View, q selection.QueryRef) (*gorm.DB, error) {
	var model any = &Node{}
	if v.Revisions {
		model = &Revision{}
	}
	tx, err := v.apply(s.db.WithContext(ctx).Model(model), q.Arguments, q.ExposedInput)
	if err != nil {
		return nil, fmt.Errorf("building view %s: %w", v.ID, err)
	}
	return tx, nil
}

func nodeRow(n *Node, relationships []string) selection.Row {
	row := selection.Row{
		ColEntityType: n.EntityType,
		ColID:         n.EntityID,
		ColLangcode:   n.Langcode,
		ColRevisionID: strconv.FormatInt(n.Revision, 10),
		ColTitle:      n.Title,
		ColBundle:     n.Bundle,
		ColStatus:     n.Status,
		ColOwner:      n.Owner,
	}
	for _, rel := range relationships {
		if rel == "parent" {
			row[rel+"__"+ColEntityType] = n.ParentType
			row[rel+"__"+ColID] = n.ParentID
		}
	}
	return row
}
