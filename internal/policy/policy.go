// Package policy implements the authorization rules of the bug tracker.
//
// CanPerform is a pure function: it performs no I/O and never mutates its
// arguments. Callers translate a false result into domain.ErrPermissionDenied.
package policy

import (
	"github.com/google/uuid"

	"github.com/prn-tf/bugtracker/internal/domain"
)

// Action identifies an operation subject to authorization.
type Action string

const (
	// ActionViewDashboard lists all bugs.
	ActionViewDashboard Action = "dashboard:view"

	// ActionCreateBug reports a new bug.
	ActionCreateBug Action = "bug:create"

	// ActionViewBug shows a single bug.
	ActionViewBug Action = "bug:view"

	// ActionViewAdminDashboard lists bugs and users for triage.
	ActionViewAdminDashboard Action = "admin:view"

	// ActionSetUserRole grants or revokes admin on another user.
	ActionSetUserRole Action = "user:set-role"

	// ActionSetBugStatus moves a bug to a new status.
	ActionSetBugStatus Action = "bug:set-status"
)

// String implements fmt.Stringer.
func (a Action) String() string {
	return string(a)
}

// Resource describes what an action targets.
// Only the fields relevant to the action are consulted.
type Resource struct {
	// Bug is the target of ActionSetBugStatus.
	Bug *domain.Bug

	// Status is the requested status for ActionSetBugStatus.
	Status domain.BugStatus

	// TargetUserID is the user whose role ActionSetUserRole changes.
	TargetUserID uuid.UUID
}

// CanPerform reports whether principal may perform action on res.
// Anonymous principals, unknown actions and malformed resources are denied.
func CanPerform(principal *domain.Principal, action Action, res Resource) bool {
	if !principal.IsAuthenticated() {
		return false
	}

	switch action {
	case ActionViewDashboard, ActionCreateBug, ActionViewBug:
		return true

	case ActionViewAdminDashboard:
		return principal.IsAdmin

	case ActionSetUserRole:
		// No one changes their own role, admins included.
		if res.TargetUserID == principal.ID {
			return false
		}
		return principal.IsAdmin

	case ActionSetBugStatus:
		return canSetBugStatus(principal, res)

	default:
		return false
	}
}

func canSetBugStatus(principal *domain.Principal, res Resource) bool {
	if res.Bug == nil || !res.Status.IsValid() {
		return false
	}
	if !res.Bug.Status.CanTransitionTo(res.Status) {
		return false
	}
	if principal.IsAdmin {
		return true
	}
	// Creators may withdraw their own reports and nothing else.
	return res.Status == domain.StatusCancelled && res.Bug.IsOwnedBy(principal)
}
