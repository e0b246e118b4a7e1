// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"murmur/internal/cache"
	"murmur/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	CreateWithCount(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error)
	DeleteWithCount(ctx context.Context, id string) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// CreateWithCount inserts the comment and bumps the parent post's counter in
// one transaction, so the counter can never drift from the comment rows.
// Returns gorm.ErrRecordNotFound when the parent post does not exist.
func (r *commentRepository) CreateWithCount(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, "id = ?", comment.PostID).Error; err != nil {
			return err
		}
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(
	ctx context.Context,
	postID string,
	limit, offset int,
) ([]*models.Comment, error) {
	var comments []*models.Comment

	fetch := func() error {
		return r.db.WithContext(ctx).
			Where("post_id = ? AND is_flagged = ?", postID, false).
			Order("created_at asc").
			Limit(limit).
			Offset(offset).
			Find(&comments).Error
	}

	if offset == 0 {
		if err := cache.Aside(ctx, cache.CommentsKey(postID), &comments, cache.CommentsTTL, fetch); err != nil {
			return nil, err
		}
		return comments, nil
	}

	if err := fetch(); err != nil {
		return nil, err
	}
	return comments, nil
}

// DeleteWithCount removes the comment and decrements the parent counter in
// one transaction. Deleting a comment that is already gone is a no-op, so
// concurrent deletes decrement the counter exactly once. The decrement floors
// at zero.
func (r *commentRepository) DeleteWithCount(ctx context.Context, id string) error {
	var postID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		postID = comment.PostID

		res := tx.Where("id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		return tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("CASE WHEN comment_count >= 1 THEN comment_count - 1 ELSE 0 END")).Error
	})
	if err != nil {
		return err
	}
	if postID != "" {
		cache.InvalidatePost(ctx, postID)
	}
	return nil
}
