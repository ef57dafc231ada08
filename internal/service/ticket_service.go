package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ticketflow/ticketflow/internal/authz"
	"github.com/ticketflow/ticketflow/internal/cache"
	"github.com/ticketflow/ticketflow/internal/domain"
	"github.com/ticketflow/ticketflow/internal/events"
	"github.com/ticketflow/ticketflow/internal/repository"
	"github.com/ticketflow/ticketflow/internal/workflow"
	apperrors "github.com/ticketflow/ticketflow/pkg/util"
)

// TicketService coordinates the ticket lifecycle: creation, status
// transitions, assignment and scoped reads.
type TicketService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	ratings     repository.RatingRepository
	policy      workflow.Policy
	ticketCache *cache.TicketCache
	dispatcher  events.Dispatcher
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	RatingRepo repository.RatingRepository
	Policy     workflow.Policy
	Cache      *cache.TicketCache
	Dispatcher events.Dispatcher
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// SearchFilter describes ticket search parameters before scoping.
type SearchFilter struct {
	Keyword  *string
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		ratings:     deps.RatingRepo,
		policy:      deps.Policy,
		ticketCache: deps.Cache,
		dispatcher:  deps.Dispatcher,
		now:         now,
	}
}

// Create opens a new ticket on behalf of the actor.
func (s *TicketService) Create(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := authz.Check(actor, authz.ActionCreateTicket, nil); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || description == "" {
		return nil, apperrors.NewValidationError("subject and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	now := s.now()
	ticket := &domain.Ticket{
		Subject:     subject,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatorID:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			Subject:  ticket.Subject,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// Get fetches a ticket, enforcing read scope, and loads its rating.
func (s *TicketService) Get(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionRead, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// TransitionStatus moves the ticket along a permitted state-machine edge.
// Concurrent transitions on the same ticket serialize on the row version:
// the loser is re-validated against the post-transition status.
func (s *TicketService) TransitionStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	ticket, err := s.loadForMutation(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionTransition, ticket); err != nil {
		return nil, err
	}
	if !s.policy.CanTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewInvalidTransition("status transition not permitted",
			map[string]any{"from": ticket.Status, "to": newStatus})
	}

	oldStatus := ticket.Status
	s.applyStatus(ticket, newStatus)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, s.judgeLostRace(ctx, ticketID, newStatus)
		}
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// Assign sets the ticket assignee. The assignee must be an enabled support
// agent or administrator.
func (s *TicketService) Assign(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	ticket, err := s.loadForMutation(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionAssign, ticket); err != nil {
		return nil, err
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"assignee_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Role.IsStaff() {
		return nil, apperrors.NewValidationError("assignee must be a support agent or administrator",
			map[string]any{"assignee_id": assigneeID, "role": assignee.Role})
	}
	if !assignee.Enabled {
		return nil, apperrors.NewValidationError("assignee is disabled",
			map[string]any{"assignee_id": assigneeID})
	}

	ticket.AssigneeID = &assignee.ID
	ticket.UpdatedAt = s.now()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("ticket modified concurrently", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketAssignedPayload{AssigneeID: assignee.ID},
	})
	return ticket, nil
}

// ListMine returns tickets created by the actor, newest first.
func (s *TicketService) ListMine(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if err := authz.Check(actor, authz.ActionCreateTicket, nil); err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{CreatorID: &actor.ID, Limit: limit, Offset: offset}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAssigned returns tickets assigned to the actor.
func (s *TicketService) ListAssigned(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if err := authz.Check(actor, authz.ActionTransition, nil); err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{AssigneeID: &actor.ID, Limit: limit, Offset: offset}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAll returns every ticket; staff only.
func (s *TicketService) ListAll(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if err := authz.Check(actor, authz.ActionTransition, nil); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Search filters tickets by keyword, status and priority, restricted to the
// actor's scope: users see only their own tickets, staff see all.
func (s *TicketService) Search(ctx context.Context, actor *domain.User, filter SearchFilter) ([]domain.Ticket, error) {
	if err := authz.Check(actor, authz.ActionCreateTicket, nil); err != nil {
		return nil, err
	}
	if filter.Status != nil && !domain.ValidStatus(*filter.Status) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *filter.Status})
	}
	if filter.Priority != nil && !domain.ValidPriority(*filter.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *filter.Priority})
	}

	repoFilter := repository.TicketFilter{
		Keyword:  filter.Keyword,
		Status:   filter.Status,
		Priority: filter.Priority,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	if !actor.Role.IsStaff() {
		repoFilter.CreatorID = &actor.ID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// loadForMutation fetches the authoritative row, bypassing the cache.
func (s *TicketService) loadForMutation(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if cached, err := s.ticketCache.Get(ctx, ticketID); err == nil && cached != nil {
		return cached, nil
	}
	ticket, err := s.loadForMutation(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if rating, err := s.ratings.GetByTicket(ctx, ticketID); err == nil {
		ticket.Rating = rating
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	_ = s.ticketCache.Set(ctx, ticket)
	return ticket, nil
}

// applyStatus mutates status and the once-set timestamps as one unit.
func (s *TicketService) applyStatus(ticket *domain.Ticket, newStatus domain.TicketStatus) {
	now := s.now()
	ticket.Status = newStatus
	ticket.UpdatedAt = now
	switch newStatus {
	case domain.TicketStatusResolved:
		if ticket.ResolvedAt == nil {
			resolvedAt := now
			ticket.ResolvedAt = &resolvedAt
		}
	case domain.TicketStatusClosed:
		if ticket.ClosedAt == nil {
			closedAt := now
			ticket.ClosedAt = &closedAt
		}
	}
}

// judgeLostRace re-reads the ticket after a version conflict and evaluates
// the requested edge against the post-transition status.
func (s *TicketService) judgeLostRace(ctx context.Context, ticketID string, newStatus domain.TicketStatus) error {
	fresh, err := s.loadForMutation(ctx, ticketID)
	if err != nil {
		return err
	}
	if !s.policy.CanTransition(fresh.Status, newStatus) {
		return apperrors.NewInvalidTransition("status transition not permitted",
			map[string]any{"from": fresh.Status, "to": newStatus})
	}
	return apperrors.NewConflict("ticket modified concurrently",
		map[string]any{"ticket_id": ticketID, "status": fresh.Status})
}

func (s *TicketService) invalidate(ctx context.Context, ticketID string) {
	_ = s.ticketCache.Invalidate(ctx, ticketID)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
