package action

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Registry errors.
var (
	ErrNotFound          = errors.New("action not found")
	ErrDuplicate         = errors.New("action already registered")
	ErrIncompatible      = errors.New("action is incompatible with bulk processing")
	ErrInvalidDefinition = errors.New("invalid action definition")
	ErrNotOffered        = errors.New("action is not offered")
)

// incompatible lists actions that must never run in bulk: they destroy data
// while skipping their own confirmation step.
//
//nolint:gochecknoglobals // Static denylist.
var incompatible = mapset.NewThreadUnsafeSet(
	"node_delete_action",
	"comment_delete_action",
	"user_cancel_user_action",
)

// Incompatible reports whether id is on the static denylist.
func Incompatible(id string) bool {
	return incompatible.Contains(id)
}

// Factory creates a fresh action instance for one run.
type Factory func() Action

type entry struct {
	def     Definition
	factory Factory
}

// Registry holds decorated definitions keyed by id. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register decorates def, detects the capabilities of the factory's
// instances and stores both. Denylisted ids are rejected with ErrIncompatible.
func (r *Registry) Register(def Definition, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("%w: %s has no factory", ErrInvalidDefinition, def.ID)
	}
	probe := factory()
	if probe == nil {
		return fmt.Errorf("%w: %s factory returned nil", ErrInvalidDefinition, def.ID)
	}
	def.Capabilities = DetectCapabilities(probe)
	if def.Capabilities.Has(CapAccess) {
		def.HasOwnRequirementCheck = true
	}
	def = Decorate(def)
	if def.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if Incompatible(def.ID) {
		return fmt.Errorf("%w: %s", ErrIncompatible, def.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[def.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, def.ID)
	}
	r.entries[def.ID] = entry{def: def, factory: factory}
	return nil
}

// Get returns the definition of id.
func (r *Registry) Get(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.def, nil
}

// New returns the definition of id together with a fresh instance.
func (r *Registry) New(id string) (Definition, Action, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.def, e.factory(), nil
}

// Filter narrows List. Include, when non-empty, keeps only the named ids;
// Exclude drops the named ids. Account, when set, keeps only actions the
// account holds the permission for.
type Filter struct {
	Include    []string
	Exclude    []string
	EntityType string
	Account    Account
}

// Offers reports whether the Include and Exclude lists let id through.
func (f Filter) Offers(id string) bool {
	if len(f.Include) > 0 && !slices.Contains(f.Include, id) {
		return false
	}
	return !slices.Contains(f.Exclude, id)
}

// List returns the definitions matching f ordered by label, then id.
func (r *Registry) List(f Filter) []Definition {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.entries))
	for _, e := range r.entries {
		def := e.def
		if !f.Offers(def.ID) {
			continue
		}
		if f.EntityType != "" && !def.AppliesTo(f.EntityType) {
			continue
		}
		if f.Account != nil && !def.HasOwnRequirementCheck && !f.Account.HasPermission(def.RequiredPermission) {
			continue
		}
		defs = append(defs, def)
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Label != defs[j].Label {
			return defs[i].Label < defs[j].Label
		}
		return defs[i].ID < defs[j].ID
	})
	return defs
}

// Permissions lists the permissions generated for registered actions, sorted
// by id. Actions with their own requirement check contribute none.
func (r *Registry) Permissions() []Permission {
	r.mu.RLock()
	perms := make([]Permission, 0, len(r.entries))
	for _, e := range r.entries {
		if e.def.HasOwnRequirementCheck || e.def.RequiredPermission == "" {
			continue
		}
		perms = append(perms, permissionFor(e.def))
	}
	r.mu.RUnlock()

	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms
}
