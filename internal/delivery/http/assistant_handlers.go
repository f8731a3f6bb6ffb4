package http

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/assistant/internal/document"
	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/service"
)

// maxDocumentSize bounds uploaded documents before extraction.
const maxDocumentSize = 10 << 20

type chatRequest struct {
	Message string `json:"message"`
}

type summarizeRequest struct {
	Text string `json:"text"`
}

// Chat sends one message in the caller's session. The session id is echoed
// in the response header so clients can continue the conversation.
func (h *Handler) Chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	session := h.sessions.Get(sessionID(c))
	c.Set(SessionHeader, session.ID)

	reply, err := h.assistantSvc.Chat(c.Context(), session, req.Message)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"session_id": session.ID,
			"reply":      reply,
			"transcript": session.Transcript(),
		},
	})
}

// sessionID copies the header value, which fiber reuses after the handler returns
func sessionID(c *fiber.Ctx) string {
	return strings.Clone(strings.TrimSpace(c.Get(SessionHeader)))
}

// GetChat returns the session transcript. An unknown or missing session
// reads as empty and is not created.
func (h *Handler) GetChat(c *fiber.Ctx) error {
	id := sessionID(c)
	transcript := []service.ChatTurn{}
	if session, ok := h.sessions.Lookup(id); ok {
		c.Set(SessionHeader, session.ID)
		transcript = session.Transcript()
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"session_id": id,
			"transcript": transcript,
		},
	})
}

// ClearChat drops the session transcript
func (h *Handler) ClearChat(c *fiber.Ctx) error {
	id := sessionID(c)
	if id == "" {
		return fmt.Errorf("header %s is required: %w", SessionHeader, domain.ErrInvalidInput)
	}
	h.sessions.Delete(id)

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// Summarize summarizes text from the JSON body
func (h *Handler) Summarize(c *fiber.Ctx) error {
	var req summarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	summary, err := h.assistantSvc.Summarize(c.Context(), req.Text)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"summary": summary,
		},
	})
}

// SummarizeDocument extracts text from the multipart "file" upload and summarizes it
func (h *Handler) SummarizeDocument(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fmt.Errorf("multipart field file is required: %w", domain.ErrInvalidInput)
	}
	if fh.Size > maxDocumentSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Document too large")
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("summarize: failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize))
	if err != nil {
		return fmt.Errorf("summarize: failed to read upload: %w", err)
	}

	text, err := document.Extract(fh.Filename, fh.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return err
	}

	summary, err := h.assistantSvc.Summarize(c.Context(), text)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"filename": fh.Filename,
			"summary":  summary,
		},
	})
}
