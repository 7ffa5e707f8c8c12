// Package action defines the operations bulkops applies to selected records:
// their static definitions, the capability interfaces an implementation may
// satisfy, and the registry they are looked up from.
package action

import (
	"context"
	"maps"
	"strings"

	"github.com/rshade/bulkops/internal/selection"
)

// Configuration holds the options an operator chose for one run.
type Configuration map[string]any

// String returns the text value of key, or "".
func (c Configuration) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Bool returns the boolean value of key, or false.
func (c Configuration) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// MergeConfiguration layers runtime over preconfiguration over defaults. Keys
// present in an earlier layer win.
func MergeConfiguration(runtime, preconfiguration, defaults Configuration) Configuration {
	merged := make(Configuration, len(runtime)+len(preconfiguration)+len(defaults))
	maps.Copy(merged, defaults)
	maps.Copy(merged, preconfiguration)
	maps.Copy(merged, runtime)
	return merged
}

// Action is implemented by every operation. ExecuteMany may return fewer
// labels than records, including none, in which case the definition label is
// used for each record.
type Action interface {
	ExecuteMany(ctx context.Context, records []selection.Record, cfg Configuration) ([]string, error)
}

// Account is the acting user as seen by actions with their own access check.
type Account interface {
	AccountID() string
	HasPermission(permission string) bool
}

// Configurable actions expose defaults and validate operator input before a
// batch starts.
type Configurable interface {
	DefaultConfiguration() Configuration
	ValidateConfiguration(cfg Configuration) error
}

// BatchContext describes the running batch to actions that ask for it.
type BatchContext struct {
	RequestID  string
	ActionID   string
	ChunkIndex int
	Processed  int
	Total      *int
	// Rows carries the raw listing rows of the chunk when the definition asks
	// for full rows; nil otherwise.
	Rows []selection.Row
}

// ContextSetter actions receive the batch context before every chunk.
type ContextSetter interface {
	SetContext(bc BatchContext)
}

// SourceListingSetter actions receive the listing the selection came from.
type SourceListingSetter interface {
	SetSourceListing(q *selection.QueryRef)
}

// Accessor actions replace the permission check with their own.
type Accessor interface {
	Access(ctx context.Context, rec selection.Record, acct Account) bool
}

// Capability is a set of optional interfaces an implementation satisfies.
type Capability uint8

// Capabilities.
const (
	CapConfigurable Capability = 1 << iota
	CapContext
	CapSourceListing
	CapAccess
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapConfigurable, "configurable"},
	{CapContext, "context"},
	{CapSourceListing, "source_listing"},
	{CapAccess, "access"},
}

// Has reports whether all of other is present in c.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.c) {
			names = append(names, cn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// DetectCapabilities inspects an instance once, at registration.
func DetectCapabilities(a Action) Capability {
	var c Capability
	if _, ok := a.(Configurable); ok {
		c |= CapConfigurable
	}
	if _, ok := a.(ContextSetter); ok {
		c |= CapContext
	}
	if _, ok := a.(SourceListingSetter); ok {
		c |= CapSourceListing
	}
	if _, ok := a.(Accessor); ok {
		c |= CapAccess
	}
	return c
}
