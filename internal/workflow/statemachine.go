package workflow

import "github.com/ticketflow/ticketflow/internal/domain"

// Policy parameterizes the ticket state machine. Reopening of resolved or
// closed tickets is a deployment choice, disabled by default.
type Policy struct {
	AllowReopen bool
}

var forwardEdges = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusOpen},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

var reopenEdges = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusResolved: {domain.TicketStatusOpen, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:   {domain.TicketStatusOpen, domain.TicketStatusInProgress},
}

// CanTransition reports whether the edge from current to next is permitted
// under the policy. Same-state transitions are never permitted.
func (p Policy) CanTransition(current, next domain.TicketStatus) bool {
	if current == next {
		return false
	}
	if contains(forwardEdges[current], next) {
		return true
	}
	return p.AllowReopen && contains(reopenEdges[current], next)
}

func contains(candidates []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range candidates {
		if candidate == status {
			return true
		}
	}
	return false
}
