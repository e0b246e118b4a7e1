package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"murmur/internal/auth"
	"murmur/internal/models"
	"murmur/internal/moderation"
	"murmur/internal/repository"

	"gorm.io/gorm"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	moderator   *moderation.Service
}

type AddCommentInput struct {
	Identity auth.Identity
	PostID   string
	Text     string
}

type DeleteCommentInput struct {
	Identity  auth.Identity
	PostID    string
	CommentID string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	moderator *moderation.Service,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		moderator:   moderator,
	}
}

func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if in.Text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(in.Text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 1000 characters)")
	}

	verdict, err := s.moderator.Review(ctx, "comment", in.Text)
	if err != nil {
		return nil, models.NewUnavailableError("Content moderation is unavailable", err)
	}

	comment := &models.Comment{
		PostID:           in.PostID,
		Text:             in.Text,
		IsFlagged:        verdict.Flagged,
		ModerationReason: verdict.Reason,
		AuthorID:         in.Identity.UserID,
		AuthorName:       in.Identity.DisplayName,
	}
	if err := s.commentRepo.CreateWithCount(ctx, comment); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, ""); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, limit, offset)
}

// DeleteComment removes the caller's comment. A comment that is already gone
// is treated as deleted, so retries and concurrent deletes succeed.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	if _, err := s.postRepo.GetByID(ctx, in.PostID, in.Identity.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", in.PostID)
		}
		return err
	}

	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if comment.PostID != in.PostID {
		return nil
	}
	if comment.AuthorID != in.Identity.UserID {
		return models.NewUnauthorizedError("You can only delete your own comments")
	}

	return s.commentRepo.DeleteWithCount(ctx, in.CommentID)
}
