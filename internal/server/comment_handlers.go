// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	identity := s.identity(c)
	postID, err := s.parseID(c, "id", "post ID")
	if err != nil {
		return nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.AddComment(ctx, service.AddCommentInput{
		Identity: identity,
		PostID:   postID,
		Text:     req.Text,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id", "post ID")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	comments, err := s.commentService.ListComments(ctx, postID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(comments)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	identity := s.identity(c)
	postID, err := s.parseID(c, "id", "post ID")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId", "comment ID")
	if err != nil {
		return nil
	}

	if err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		Identity:  identity,
		PostID:    postID,
		CommentID: commentID,
	}); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
