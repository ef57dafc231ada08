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
	apperrors "github.com/ticketflow/ticketflow/pkg/util"
)

// AssociationService attaches dependent records to tickets: comments and
// ratings. Attachments are handled by FileService, which shares the same
// guard rules.
type AssociationService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	ratings     repository.RatingRepository
	ticketCache *cache.TicketCache
	dispatcher  events.Dispatcher
	now         func() time.Time
}

// AssociationDependencies bundles collaborators.
type AssociationDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	RatingRepo  repository.RatingRepository
	Cache       *cache.TicketCache
	Dispatcher  events.Dispatcher
	Now         func() time.Time
}

// NewAssociationService constructs the service.
func NewAssociationService(deps AssociationDependencies) *AssociationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AssociationService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		ratings:     deps.RatingRepo,
		ticketCache: deps.Cache,
		dispatcher:  deps.Dispatcher,
		now:         now,
	}
}

// AddComment appends a comment to the ticket thread. Comments are allowed
// in every ticket status, including CLOSED.
func (s *AssociationService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string) (*domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionComment, ticket); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.touchTicket(ctx, ticket)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCommentAddedPayload{
			CommentID:      comment.ID,
			ContentPreview: preview(comment.Content, 120),
		},
	})
	return comment, nil
}

// ListComments returns the ticket thread in chronological order.
func (s *AssociationService) ListComments(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionRead, ticket); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// Rate records the creator's rating of the resolution. A ticket can be
// rated once, and only after reaching RESOLVED or CLOSED.
func (s *AssociationService) Rate(ctx context.Context, actor *domain.User, ticketID string, stars int, feedback string) (*domain.Rating, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionRate, ticket); err != nil {
		return nil, err
	}
	if stars < 1 || stars > 5 {
		return nil, apperrors.NewValidationError("stars must be between 1 and 5", map[string]any{"stars": stars})
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidState("ticket must be resolved or closed before rating",
			map[string]any{"status": ticket.Status})
	}
	if _, err := s.ratings.GetByTicket(ctx, ticketID); err == nil {
		return nil, apperrors.NewConflict("ticket already rated", map[string]any{"ticket_id": ticketID})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	rating := &domain.Rating{
		TicketID: ticket.ID,
		RaterID:  actor.ID,
		Stars:    stars,
		Feedback: strings.TrimSpace(feedback),
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		// the unique constraint settles rate/rate races
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("ticket already rated", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	_ = s.ticketCache.Invalidate(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketRatedPayload{
			RatingID: rating.ID,
			Stars:    rating.Stars,
		},
	})
	return rating, nil
}

func (s *AssociationService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// touchTicket bumps updated_at after an association change. A lost version
// race here is harmless: the winning write already refreshed the row.
func (s *AssociationService) touchTicket(ctx context.Context, ticket *domain.Ticket) {
	ticket.UpdatedAt = s.now()
	if err := s.tickets.Update(ctx, ticket); err != nil && !errors.Is(err, repository.ErrVersionConflict) {
		return
	}
	_ = s.ticketCache.Invalidate(ctx, ticket.ID)
}

func (s *AssociationService) publishEvent(ctx context.Context, event events.Event) {
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

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
