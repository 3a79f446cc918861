package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/llmpagina/avamem/pkg/memory"
)

// ErrorResponse is the JSON error body returned by every handler.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus reports the state of every configured backend.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"backends": s.manager.Status(),
	})
}

// handleStats returns aggregated memory counts for a session.
func (s *Server) handleStats(c *fiber.Ctx) error {
	session := c.Params("session")
	if session == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session parameter required"})
	}

	stats, err := s.manager.Stats(c.Context(), session)
	if err != nil {
		var verr memory.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: verr.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to collect stats"})
	}

	return c.JSON(stats)
}

// handleRecentContext returns the session's recent memories across
// modalities. Requires the multimodal backend.
func (s *Server) handleRecentContext(c *fiber.Ctx) error {
	if s.multimodal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "multimodal backend unavailable"})
	}

	session := c.Params("session")
	if session == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session parameter required"})
	}
	days := c.QueryInt("days", 7)
	limit := c.QueryInt("limit", 10)

	context, err := s.multimodal.RecentContext(c.Context(), session, days, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load recent context"})
	}

	return c.JSON(context)
}

// handleValidate runs the component health checks.
func (s *Server) handleValidate(c *fiber.Ctx) error {
	if s.multimodal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "multimodal backend unavailable"})
	}

	report := s.multimodal.Validate(c.Context())
	status := fiber.StatusOK
	if !report.Ready {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}
