// Package access decides whether an account may run an action on a record.
package access

import (
	"context"
	"slices"
	"strings"

	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/selection"
)

// Account is the acting user, captured when a batch is submitted.
type Account struct {
	ID          string   `json:"id"`
	Permissions []string `json:"permissions,omitempty"`
	Admin       bool     `json:"admin,omitempty"`
}

// AccountID implements action.Account.
func (a Account) AccountID() string {
	return a.ID
}

// HasPermission reports whether a holds permission. Administrators hold all.
func (a Account) HasPermission(permission string) bool {
	if a.Admin {
		return true
	}
	return permission != "" && slices.Contains(a.Permissions, permission)
}

// ParsePermissions splits a comma separated permission list.
func ParsePermissions(s string) []string {
	var perms []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

// PermissionChecker grants access when the account holds the permission the
// action definition requires.
type PermissionChecker struct{}

// HasAccess implements the engine access check.
func (PermissionChecker) HasAccess(
	ctx context.Context,
	def action.Definition,
	rec selection.Record,
	acct action.Account,
) bool {
	if acct == nil {
		return false
	}
	if acct.HasPermission(def.RequiredPermission) {
		return true
	}
	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "access").
		Str("action", def.ID).
		Str("account", acct.AccountID()).
		Str("permission", def.RequiredPermission).
		Str("record", rec.EntityTypeID()+"/"+rec.ID()).
		Msg("permission missing")
	return false
}
