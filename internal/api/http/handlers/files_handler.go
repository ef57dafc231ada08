package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ticketflow/ticketflow/internal/api/dto"
	"github.com/ticketflow/ticketflow/internal/auth"
	"github.com/ticketflow/ticketflow/internal/service"
	apperrors "github.com/ticketflow/ticketflow/pkg/util"
)

// FilesHandler manages attachment endpoints.
type FilesHandler struct {
	files *service.FileService
}

// NewFilesHandler constructs handler.
func NewFilesHandler(fileService *service.FileService) *FilesHandler {
	return &FilesHandler{files: fileService}
}

// Upload POST /files/upload (multipart: ticketId, file).
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID := c.FormValue("ticketId")
	if ticketID == "" {
		return apperrors.NewValidationError("ticketId required", nil)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", nil)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer f.Close()

	attachment, err := h.files.Upload(c.Context(), actor, ticketID, service.UploadInput{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  f,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(attachment)})
}

// ListByTicket GET /files/ticket/:id.
func (h *FilesHandler) ListByTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	attachments, err := h.files.ListByTicket(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Download GET /files/download/:id.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	attachment, rc, err := h.files.Download(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	if attachment.MimeType != "" {
		c.Set(fiber.HeaderContentType, attachment.MimeType)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	return c.SendStream(rc)
}
