package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/ticketflow/ticketflow/internal/domain"
	"github.com/ticketflow/ticketflow/internal/workflow"
)

type fileServiceFixture struct {
	*ticketServiceFixture
	files *FileService
	blobs *memBlobStore
}

func newFileFixture(users ...*domain.User) *fileServiceFixture {
	base := newTicketFixture(workflow.Policy{}, users...)
	blobs := newMemBlobStore()
	files := NewFileService(FileDependencies{
		AttachmentRepo: newFakeAttachmentRepo(),
		TicketRepo:     base.tickets,
		Blobs:          blobs,
		Now:            base.clock.Now,
	})
	return &fileServiceFixture{ticketServiceFixture: base, files: files, blobs: blobs}
}

func TestUploadAndDownload(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	stranger := testUser("stranger", domain.RoleUser)
	agent := testUser("agent", domain.RoleSupportAgent)
	fx := newFileFixture(creator, stranger, agent)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	attachment, err := fx.files.Upload(ctx, creator, ticket.ID, UploadInput{
		FileName: "screenshot.png",
		MimeType: "image/png",
		Content:  strings.NewReader("not really a png"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if attachment.SizeBytes != int64(len("not really a png")) {
		t.Errorf("size = %d, want %d", attachment.SizeBytes, len("not really a png"))
	}
	if !strings.HasSuffix(attachment.StorageKey, ".png") {
		t.Errorf("storage key %q should keep the extension", attachment.StorageKey)
	}
	if attachment.FileName != "screenshot.png" {
		t.Errorf("file name = %q", attachment.FileName)
	}

	got, rc, err := fx.files.Download(ctx, agent, attachment.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "not really a png" {
		t.Errorf("content = %q", data)
	}
	if got.ID != attachment.ID {
		t.Errorf("metadata ID = %s, want %s", got.ID, attachment.ID)
	}

	if _, _, err := fx.files.Download(ctx, stranger, attachment.ID); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("stranger download = %v, want FORBIDDEN", err)
	}
	if _, _, err := fx.files.Download(ctx, creator, "missing"); errCode(t, err) != "NOT_FOUND" {
		t.Errorf("missing attachment = %v, want NOT_FOUND", err)
	}
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	stranger := testUser("stranger", domain.RoleUser)
	fx := newFileFixture(creator, stranger)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := fx.files.Upload(ctx, creator, ticket.ID, UploadInput{}); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("empty upload = %v, want VALIDATION_FAILED", err)
	}
	if _, err := fx.files.Upload(ctx, stranger, ticket.ID, UploadInput{
		FileName: "x.txt", Content: strings.NewReader("x"),
	}); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("stranger upload = %v, want FORBIDDEN", err)
	}
	if _, err := fx.files.Upload(ctx, creator, "missing", UploadInput{
		FileName: "x.txt", Content: strings.NewReader("x"),
	}); errCode(t, err) != "NOT_FOUND" {
		t.Errorf("upload to missing ticket = %v, want NOT_FOUND", err)
	}
}

func TestListAttachments(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	fx := newFileFixture(creator)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := fx.files.Upload(ctx, creator, ticket.ID, UploadInput{
			FileName: name, Content: strings.NewReader(name),
		}); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}

	attachments, err := fx.files.ListByTicket(ctx, creator, ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attachments) != 2 {
		t.Fatalf("len(attachments) = %d, want 2", len(attachments))
	}
}
