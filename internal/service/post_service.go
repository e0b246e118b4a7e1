// Package service contains the content operations exposed over HTTP. Every
// operation takes the resolved caller identity explicitly; nothing in this
// package reads ambient session state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"murmur/internal/auth"
	"murmur/internal/models"
	"murmur/internal/moderation"
	"murmur/internal/repository"

	"gorm.io/gorm"
)

const (
	maxTitleLen   = 100
	maxCommentLen = 1000
)

type PostService struct {
	postRepo  repository.PostRepository
	moderator *moderation.Service
}

type CreatePostInput struct {
	Identity auth.Identity
	Title    string
	Content  string
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID string
}

type UpdatePostInput struct {
	Identity auth.Identity
	PostID   string
	Title    string
	Content  string
}

type DeletePostInput struct {
	Identity auth.Identity
	PostID   string
}

func NewPostService(postRepo repository.PostRepository, moderator *moderation.Service) *PostService {
	return &PostService{
		postRepo:  postRepo,
		moderator: moderator,
	}
}

func validatePostFields(title, content string) error {
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 100 characters)")
	}
	if content == "" {
		return models.NewValidationError("Content is required")
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validatePostFields(in.Title, in.Content); err != nil {
		return nil, err
	}

	verdict, err := s.moderator.Review(ctx, "post", in.Title+"\n\n"+in.Content)
	if err != nil {
		return nil, models.NewUnavailableError("Content moderation is unavailable", err)
	}

	post := &models.Post{
		Title:            in.Title,
		Content:          in.Content,
		IsFlagged:        verdict.Flagged,
		ModerationReason: verdict.Reason,
		AuthorID:         in.Identity.UserID,
		AuthorName:       in.Identity.DisplayName,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id string, currentUserID string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	var posts []*models.Post
	var err error

	// The first page is served from the shared anonymous list so every
	// reader hits the same cache entry; liked status is layered back on for
	// logged-in callers.
	if in.Offset == 0 && in.Limit <= 20 {
		posts, err = s.postRepo.List(ctx, in.Limit, 0, "")
		if err != nil {
			return nil, err
		}
		if in.CurrentUserID != "" && len(posts) > 0 {
			postIDs := make([]string, len(posts))
			for i, p := range posts {
				postIDs[i] = p.ID
			}
			likedIDs, likedErr := s.postRepo.GetLikedPostIDs(ctx, in.CurrentUserID, postIDs)
			if likedErr != nil {
				// degrade to unliked rather than failing the whole page
				slog.WarnContext(ctx, "liked-status lookup failed, serving page unliked",
					slog.String("user_id", in.CurrentUserID),
					slog.String("error", likedErr.Error()),
				)
			} else {
				likedMap := make(map[string]bool, len(likedIDs))
				for _, id := range likedIDs {
					likedMap[id] = true
				}
				for _, p := range posts {
					p.Liked = likedMap[p.ID]
				}
			}
		}
		return posts, nil
	}

	posts, err = s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// getPostAny reads a post without the moderation visibility filter. Owner
// writes and like responses use it: an author must still be able to manage a
// post of theirs that moderation flagged.
func (s *PostService) getPostAny(ctx context.Context, id string, currentUserID string) (*models.Post, error) {
	post, err := s.postRepo.GetAnyByID(ctx, id, currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetUserPosts(ctx context.Context, authorID string, limit, offset int, currentUserID string) ([]*models.Post, error) {
	return s.postRepo.GetByAuthorID(ctx, authorID, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validatePostFields(in.Title, in.Content); err != nil {
		return nil, err
	}

	post, err := s.getPostAny(ctx, in.PostID, in.Identity.UserID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.Identity.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}

	post.Title = in.Title
	post.Content = in.Content

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.getPostAny(ctx, in.PostID, in.Identity.UserID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.Identity.UserID {
		return models.NewUnauthorizedError("You can only delete your own posts")
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", in.PostID)
		}
		return err
	}
	return nil
}

// LikePost records the caller's like. Liking an already-liked post succeeds
// without changing anything.
func (s *PostService) LikePost(ctx context.Context, identity auth.Identity, postID string) (*models.Post, error) {
	if err := s.postRepo.Like(ctx, identity.UserID, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	return s.getPostAny(ctx, postID, identity.UserID)
}

// UnlikePost removes the caller's like. Unliking a post that was never liked
// succeeds without changing anything.
func (s *PostService) UnlikePost(ctx context.Context, identity auth.Identity, postID string) (*models.Post, error) {
	if err := s.postRepo.Unlike(ctx, identity.UserID, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	return s.getPostAny(ctx, postID, identity.UserID)
}
