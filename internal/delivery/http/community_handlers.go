package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/assistant/internal/domain"
)

type tipRequest struct {
	Category string `json:"category"`
	Tip      string `json:"tip"`
}

type feedbackRequest struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// GetEcoTipCategories lists the tip categories
func (h *Handler) GetEcoTipCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.ecoTipsSvc.Categories(),
	})
}

// GetRandomEcoTip returns one tip from ?category=
func (h *Handler) GetRandomEcoTip(c *fiber.Ctx) error {
	category := c.Query("category")

	tip, err := h.ecoTipsSvc.RandomTip(category)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"category": category,
			"tip":      tip,
		},
	})
}

// SubmitEcoTip records a user tip
func (h *Handler) SubmitEcoTip(c *fiber.Ctx) error {
	var req tipRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	tip, err := h.ecoTipsSvc.SubmitTip(c.Context(), req.Category, req.Tip)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    tip,
	})
}

// SubmitFeedback records a feedback form entry
func (h *Handler) SubmitFeedback(c *fiber.Ctx) error {
	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	entry, err := h.feedbackSvc.Submit(c.Context(), domain.FeedbackEntry{
		Name:     req.Name,
		City:     req.City,
		Rating:   req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

// ListFeedback returns every recorded entry
func (h *Handler) ListFeedback(c *fiber.Ctx) error {
	entries, err := h.feedbackSvc.List(c.Context())
	if err != nil {
		h.logger.Error("failed to list feedback", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list feedback")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"count":   len(entries),
	})
}
