package authz

import (
	"github.com/ticketflow/ticketflow/internal/domain"
	apperrors "github.com/ticketflow/ticketflow/pkg/util"
)

// Action identifies an operation gated by the guard.
type Action string

const (
	ActionCreateTicket Action = "ticket:create"
	ActionRead         Action = "ticket:read"
	ActionComment      Action = "ticket:comment"
	ActionAttach       Action = "ticket:attach"
	ActionTransition   Action = "ticket:transition"
	ActionAssign       Action = "ticket:assign"
	ActionRate         Action = "ticket:rate"
	ActionManageUsers  Action = "users:manage"
)

// Allowed is the authorization predicate consulted before every mutation
// and every scoped read. The ticket may be nil for actions that do not
// reference one (ticket creation, user management).
//
// Existence of the referenced ticket is the caller's concern and is checked
// before authorization, so a missing ticket surfaces as not-found rather
// than forbidden.
func Allowed(actor *domain.User, action Action, ticket *domain.Ticket) bool {
	if actor == nil || !actor.Enabled {
		return false
	}
	switch action {
	case ActionCreateTicket:
		return true
	case ActionRead, ActionComment, ActionAttach:
		if actor.Role.IsStaff() {
			return true
		}
		return ticket != nil && ticket.CreatorID == actor.ID
	case ActionTransition, ActionAssign:
		return actor.Role.IsStaff()
	case ActionRate:
		return ticket != nil && ticket.CreatorID == actor.ID
	case ActionManageUsers:
		return actor.Role == domain.RoleAdmin
	}
	return false
}

// Check wraps Allowed into the error taxonomy.
func Check(actor *domain.User, action Action, ticket *domain.Ticket) error {
	if actor != nil && !actor.Enabled {
		return apperrors.NewForbidden("actor disabled")
	}
	if !Allowed(actor, action, ticket) {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}
