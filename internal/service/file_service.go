package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ticketflow/ticketflow/internal/authz"
	"github.com/ticketflow/ticketflow/internal/cache"
	"github.com/ticketflow/ticketflow/internal/domain"
	"github.com/ticketflow/ticketflow/internal/events"
	"github.com/ticketflow/ticketflow/internal/repository"
	"github.com/ticketflow/ticketflow/internal/storage"
	apperrors "github.com/ticketflow/ticketflow/pkg/util"
)

// FileService manages ticket attachments: metadata in Postgres, bytes in
// the blob store.
type FileService struct {
	attachments repository.AttachmentRepository
	tickets     repository.TicketRepository
	blobs       storage.BlobStore
	ticketCache *cache.TicketCache
	dispatcher  events.Dispatcher
	now         func() time.Time
}

// FileDependencies bundles collaborators.
type FileDependencies struct {
	AttachmentRepo repository.AttachmentRepository
	TicketRepo     repository.TicketRepository
	Blobs          storage.BlobStore
	Cache          *cache.TicketCache
	Dispatcher     events.Dispatcher
	Now            func() time.Time
}

// UploadInput describes an incoming attachment.
type UploadInput struct {
	FileName string
	MimeType string
	Content  io.Reader
}

// NewFileService constructs the service.
func NewFileService(deps FileDependencies) *FileService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &FileService{
		attachments: deps.AttachmentRepo,
		tickets:     deps.TicketRepo,
		blobs:       deps.Blobs,
		ticketCache: deps.Cache,
		dispatcher:  deps.Dispatcher,
		now:         now,
	}
}

// Upload stores the file bytes and appends attachment metadata to the ticket.
func (s *FileService) Upload(ctx context.Context, actor *domain.User, ticketID string, input UploadInput) (*domain.Attachment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionAttach, ticket); err != nil {
		return nil, err
	}
	if input.FileName == "" || input.Content == nil {
		return nil, apperrors.NewValidationError("file required", nil)
	}

	key := uuid.NewString() + filepath.Ext(input.FileName)
	size, err := s.blobs.Save(ctx, key, input.Content)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	attachment := &domain.Attachment{
		TicketID:   ticket.ID,
		UploaderID: actor.ID,
		StorageKey: key,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		SizeBytes:  size,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, apperrors.MapError(err)
	}
	_ = s.ticketCache.Invalidate(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAttachmentUploaded,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketAttachmentUploadedPayload{
			AttachmentID: attachment.ID,
			FileName:     attachment.FileName,
			SizeBytes:    attachment.SizeBytes,
		},
	})
	return attachment, nil
}

// ListByTicket returns attachment metadata for a ticket.
func (s *FileService) ListByTicket(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Attachment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionRead, ticket); err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attachments, nil
}

// Download opens the attachment content for streaming. The caller owns the
// returned reader.
func (s *FileService) Download(ctx context.Context, actor *domain.User, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	ticket, err := s.loadTicket(ctx, attachment.TicketID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Check(actor, authz.ActionRead, ticket); err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, attachment.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment content", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return attachment, rc, nil
}

func (s *FileService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *FileService) publishEvent(ctx context.Context, event events.Event) {
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
