package api

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview-properties/messaging-service/internal/apperr"
	"github.com/harborview-properties/messaging-service/internal/attachments"
	"github.com/harborview-properties/messaging-service/internal/models"
	"github.com/harborview-properties/messaging-service/internal/service"
	"github.com/harborview-properties/messaging-service/internal/storage"
)

type Handlers struct {
	svc    *service.MessageService
	agg    *service.UnreadAggregator
	blobs  storage.BlobStore
	policy *attachments.Policy
	log    *zap.SugaredLogger
}

func NewHandlers(
	svc *service.MessageService,
	agg *service.UnreadAggregator,
	blobs storage.BlobStore,
	policy *attachments.Policy,
	log *zap.SugaredLogger,
) *Handlers {
	return &Handlers{svc: svc, agg: agg, blobs: blobs, policy: policy, log: log}
}

type attachmentReq struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

func toAttachments(in []attachmentReq) []models.Attachment {
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, models.Attachment{
			Filename: a.Filename, Path: a.Path, MimeType: a.MimeType, Size: a.Size,
		})
	}
	return out
}

func rejectedJSON(rejected []*apperr.AttachmentRejected) []fiber.Map {
	out := make([]fiber.Map, 0, len(rejected))
	for _, r := range rejected {
		out = append(out, fiber.Map{"filename": r.Filename, "rule": r.Rule})
	}
	return out
}

// totalUnread never fails with 5xx for source errors; the aggregator
// already substituted defaults.
func (h *Handlers) totalUnread(c *fiber.Ctx) error {
	user := c.Locals("user_id").(string)
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	total := h.agg.TotalUnread(ctx, user)
	return c.JSON(fiber.Map{"total": total})
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	var req struct {
		Source    string    `json:"source"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	user := c.Locals("user_id").(string)
	if err := h.svc.MarkRead(c.Context(), user, req.Source, req.Timestamp); err != nil {
		return h.httpError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) createConversation(c *fiber.Ctx) error {
	var req struct {
		Members []string `json:"members"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	user := c.Locals("user_id").(string)
	members := append(req.Members, user)
	conv, err := h.svc.CreateConversation(c.Context(), members)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": conv})
}

func (h *Handlers) getConversation(c *fiber.Ctx) error {
	conv, last, err := h.svc.ConversationDetail(c.Context(), c.Params("conversation_id"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": conv, "last_message": last})
}

func (h *Handlers) deleteConversation(c *fiber.Ctx) error {
	if err := h.svc.DeleteConversation(c.Context(), c.Params("conversation_id")); err != nil {
		return h.httpError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	convID := c.Params("conversation_id")
	limit := int64(c.QueryInt("limit", 50))
	msgs, next, err := h.svc.ListMessages(c.Context(), convID, c.Query("cursor"), limit)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs, "next_cursor": next})
}

func (h *Handlers) createMessage(c *fiber.Ctx) error {
	var req struct {
		Content      string          `json:"content"`
		Attachments  []attachmentReq `json:"attachments"`
		AllOrNothing bool            `json:"all_or_nothing"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	user := c.Locals("user_id").(string)
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	msg, rejected, err := h.svc.CreateMessage(ctx, c.Params("conversation_id"), user, req.Content, toAttachments(req.Attachments), req.AllOrNothing)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":   "ok",
		"data":     msg,
		"rejected": rejectedJSON(rejected),
	})
}

func (h *Handlers) attachFiles(c *fiber.Ctx) error {
	var req struct {
		Attachments  []attachmentReq `json:"attachments"`
		AllOrNothing bool            `json:"all_or_nothing"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	msg, rejected, err := h.svc.AttachFiles(c.Context(), c.Params("msg_id"), toAttachments(req.Attachments), req.AllOrNothing)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msg, "rejected": rejectedJSON(rejected)})
}

// uploadAttachment stores raw bytes through the blob-store boundary and
// returns a descriptor ready to be attached to a message.
func (h *Handlers) uploadAttachment(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file required"})
	}
	mime := fh.Header.Get("Content-Type")
	desc := models.Attachment{
		Filename: fh.Filename,
		Path:     "pending",
		MimeType: mime,
		Size:     fh.Size,
	}
	if err := h.policy.Check(desc); err != nil {
		return h.httpError(c, err)
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable file"})
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.policy.MaxBytes()+1))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable file"})
	}
	if int64(len(data)) > h.policy.MaxBytes() {
		return h.httpError(c, &apperr.AttachmentRejected{Filename: fh.Filename, Rule: attachments.RuleTooLarge})
	}

	user := c.Locals("user_id").(string)
	key := user + "/" + uuid.NewString() + "_" + fh.Filename
	path, err := h.blobs.Store(c.Context(), key, mime, data)
	if err != nil {
		return h.httpError(c, apperr.Unavailable("store attachment", err))
	}
	desc.Path = path
	desc.Size = int64(len(data))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": desc})
}

func (h *Handlers) httpError(c *fiber.Ctx, err error) error {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Message, "field": ve.Field})
	}
	var ar *apperr.AttachmentRejected
	if errors.As(err, &ar) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ar.Error(), "rule": ar.Rule})
	}
	if errors.Is(err, apperr.ErrUnauthorized) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if errors.Is(err, apperr.ErrServiceUnavailable) {
		h.log.Errorw("storage unavailable", "err", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service unavailable"})
	}
	h.log.Errorw("request failed", "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
