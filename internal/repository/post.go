// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string, currentUserID string) (*models.Post, error)
	GetAnyByID(ctx context.Context, id string, currentUserID string) (*models.Post, error)
	GetByAuthorID(ctx context.Context, authorID string, limit, offset int, currentUserID string) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int, currentUserID string) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	IsLiked(ctx context.Context, userID, postID string) (bool, error)
	GetLikedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error)
	Like(ctx context.Context, userID, postID string) error
	Unlike(ctx context.Context, userID, postID string) error
}

// canonicalListLimit is the page size of the shared anonymous list cache.
const canonicalListLimit = 20

// postRepository implements PostRepository
type postRepository struct {
	db          *gorm.DB
	deleteScope string
}

// NewPostRepository creates a new post repository. deleteScope controls
// whether Delete removes child comments and likes or only the post row.
func NewPostRepository(db *gorm.DB, deleteScope string) PostRepository {
	return &postRepository{db: db, deleteScope: deleteScope}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Create(post).Error
	if err == nil {
		cache.InvalidatePostsList(ctx)
	}
	return err
}

func (r *postRepository) GetByID(ctx context.Context, id string, currentUserID string) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id)

	var err error
	if currentUserID == "" {
		err = cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
			return r.applyPostDetails(r.db.WithContext(ctx), "").
				Where("posts.id = ? AND posts.is_flagged = ?", id, false).
				First(&post).Error
		})
	} else {
		err = r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
			Where("posts.id = ? AND posts.is_flagged = ?", id, false).
			First(&post).Error
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetAnyByID fetches a post regardless of moderation status. Owner-scoped
// writes go through it so a flagged post stays reachable for its author.
// Never cached: callers are about to mutate.
func (r *postRepository) GetAnyByID(ctx context.Context, id string, currentUserID string) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByAuthorID(ctx context.Context, authorID string, limit, offset int, currentUserID string) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Where("posts.author_id = ? AND posts.is_flagged = ?", authorID, false).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) List(ctx context.Context, limit, offset int, currentUserID string) ([]*models.Post, error) {
	var posts []*models.Post

	fetch := func() error {
		return r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
			Where("posts.is_flagged = ?", false).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&posts).Error
	}

	// Only the canonical anonymous first page is cached; liked status makes
	// every authenticated view user-specific, and a smaller limit must not
	// prime the shared entry with a truncated page.
	if currentUserID == "" && offset == 0 && limit == canonicalListLimit {
		if err := cache.Aside(ctx, cache.PostsListKey(), &posts, cache.ListTTL, fetch); err != nil {
			return nil, err
		}
		return posts, nil
	}

	if err := fetch(); err != nil {
		return nil, err
	}
	return posts, nil
}

// applyPostDetails adds subqueries to fetch the visible comment count and
// liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID string) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_flagged = ?) as visible_comments"

	if currentUserID != "" {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) as liked", false, currentUserID)
	}

	return db.Select(selectQuery+", ? as liked", false, false)
}

// Update persists title and content only. The counter columns are owned by
// the like/comment transactions, so a struct read before a concurrent like or
// comment landed must never write them back.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"title":   post.Title,
			"content": post.Content,
		}).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if r.deleteScope == config.DeleteCascade {
			if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postRepository) GetLikedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var likedPostIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &likedPostIDs).Error
	return likedPostIDs, err
}

// Like records a like and bumps the post's aggregate in one transaction.
// Liking an already-liked post is a no-op: the conflict-tolerant insert
// affects zero rows and the counter is left untouched, so repeated calls
// never inflate it.
func (r *postRepository) Like(ctx context.Context, userID, postID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, "id = ?", postID).Error; err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{PostID: postID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			observability.LikeConflicts.WithLabelValues("like").Inc()
			return nil
		}

		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("likes", gorm.Expr("likes + 1")).Error
	})
	if err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.PostKey(postID))
	cache.InvalidatePostsList(ctx)
	return nil
}

// Unlike removes a like and decrements the aggregate in one transaction.
// Unliking a post that was never liked is a no-op. The decrement floors at
// zero so a stale counter can never go negative.
func (r *postRepository) Unlike(ctx context.Context, userID, postID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, "id = ?", postID).Error; err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).
			Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			observability.LikeConflicts.WithLabelValues("unlike").Inc()
			return nil
		}

		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("likes", gorm.Expr("CASE WHEN likes >= 1 THEN likes - 1 ELSE 0 END")).Error
	})
	if err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.PostKey(postID))
	cache.InvalidatePostsList(ctx)
	return nil
}
