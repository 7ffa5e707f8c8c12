package action

import (
	"fmt"
	"strings"
)

// DefaultConfirmRoute is used for actions that require confirmation without
// naming a step of their own.
const DefaultConfirmRoute = "bulkops.confirm"

// Definition is the static description of an action.
type Definition struct {
	ID    string `json:"id"    yaml:"id"`
	Label string `json:"label" yaml:"label"`
	// EntityType restricts the action to one record type; empty means any.
	EntityType string `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`

	Confirm      bool   `json:"confirm"                 yaml:"confirm"`
	ConfirmRoute string `json:"confirm_route,omitempty" yaml:"confirm_route,omitempty"`
	// PassRows hands the raw listing rows of each chunk to the action.
	PassRows bool `json:"pass_rows"    yaml:"pass_rows"`
	// PassContext hands the batch context to the action before each chunk.
	PassContext bool `json:"pass_context" yaml:"pass_context"`
	// PassView hands the originating listing to the action.
	PassView bool `json:"pass_view"    yaml:"pass_view"`

	HasOwnRequirementCheck bool   `json:"has_own_requirement_check"     yaml:"has_own_requirement_check"`
	RequiredPermission     string `json:"required_permission,omitempty" yaml:"required_permission,omitempty"`

	// ChunkSize overrides the configured batch size for expensive actions.
	ChunkSize int `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`

	Capabilities Capability `json:"capabilities" yaml:"capabilities"`
}

// AppliesTo reports whether records of entityType pass the type filter.
func (d Definition) AppliesTo(entityType string) bool {
	return d.EntityType == "" || d.EntityType == entityType
}

// Decorate fills defaults that a raw definition may leave out. It is a pure
// function and applying it again changes nothing.
func Decorate(def Definition) Definition {
	def.ID = strings.TrimSpace(def.ID)
	if def.Label == "" {
		def.Label = def.ID
	}
	if def.Confirm && def.ConfirmRoute == "" {
		def.ConfirmRoute = DefaultConfirmRoute
	}
	if !def.HasOwnRequirementCheck && def.RequiredPermission == "" {
		def.RequiredPermission = PermissionID(def.ID, def.EntityType)
	}
	if def.ChunkSize < 0 {
		def.ChunkSize = 0
	}
	return def
}

// PermissionID names the permission guarding action id on entityType.
func PermissionID(id, entityType string) string {
	if entityType == "" {
		entityType = "all"
	}
	return fmt.Sprintf("execute %s %s", id, entityType)
}

// Permission is a generated permission, listed for administrators.
type Permission struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ActionID string `json:"action_id"`
}

func permissionFor(def Definition) Permission {
	target := def.EntityType
	if target == "" {
		target = "all entity types"
	}
	return Permission{
		ID:       def.RequiredPermission,
		Title:    fmt.Sprintf("Execute the %s action on %s.", def.Label, target),
		ActionID: def.ID,
	}
}
