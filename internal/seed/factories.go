// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"murmur/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Author is a synthetic external identity. The application has no user table;
// authorship is recorded denormalized on posts and comments, so the seeder
// fabricates a pool of stable author identities up front.
type Author struct {
	ID   string
	Name string
}

// SeedOptions controls the shape of generated data.
type SeedOptions struct {
	// MaxDays spreads created_at timestamps over this many days back.
	MaxDays int
	// DryRun logs what would be created without writing to the database.
	DryRun bool
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	rng  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	// #nosec G404: acceptable for seeding
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Factory{db: db, opts: opts, rng: rng}
}

// NewAuthor fabricates a synthetic author identity.
func (f *Factory) NewAuthor() Author {
	return Author{
		ID:   uuid.NewString(),
		Name: gofakeit.Name(),
	}
}

// BuildPost constructs a post struct without persisting it. Useful for batching.
func (f *Factory) BuildPost(author Author, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		ID:         uuid.NewString(),
		Title:      gofakeit.Sentence(5),
		Content:    gofakeit.Paragraph(1, 3, 5, "\n"),
		AuthorID:   author.ID,
		AuthorName: author.Name,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rng.Intn(maxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample post for the given author.
func (f *Factory) CreatePost(author Author, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)

	if f.opts.DryRun {
		log.Printf("[dry-run] CreatePost: author=%s title=%q", post.AuthorID, post.Title)
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if f.opts.DryRun {
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.Create(&posts).Error
}

// CreateComment constructs and persists a sample comment on the provided post
// authored by the provided author. The post's raw counter is bumped so seeded
// data honors the same counter discipline as the live write path.
func (f *Factory) CreateComment(author Author, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		ID:         uuid.NewString(),
		PostID:     post.ID,
		Text:       gofakeit.Sentence(8),
		AuthorID:   author.ID,
		AuthorName: author.Name,
		CreatedAt:  post.CreatedAt.Add(time.Duration(f.rng.Intn(48)) * time.Hour),
	}

	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		log.Printf("[dry-run] CreateComment: post=%s author=%s", comment.PostID, comment.AuthorID)
		return comment, nil
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", post.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from `author` on `post` and bumps the aggregate.
// Duplicate (post, author) pairs are rejected by the primary key, so callers
// should pick distinct authors per post.
func (f *Factory) CreateLike(author Author, post *models.Post) error {
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateLike: post=%s author=%s", post.ID, author.ID)
		return nil
	}

	return f.db.Transaction(func(tx *gorm.DB) error {
		like := &models.Like{PostID: post.ID, UserID: author.ID}
		if err := tx.Create(like).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", post.ID).
			UpdateColumn("likes", gorm.Expr("likes + 1")).Error
	})
}

// FlagRandomly marks roughly ratio of the given posts as flagged, simulating
// moderation verdicts in seeded data.
func (f *Factory) FlagRandomly(posts []*models.Post, ratio float64) error {
	reasons := []string{"hate", "harassment", "violence", "sexual"}
	for _, p := range posts {
		if f.rng.Float64() >= ratio {
			continue
		}
		reason := reasons[f.rng.Intn(len(reasons))]
		if f.opts.DryRun {
			log.Printf("[dry-run] FlagRandomly: post=%s reason=%s", p.ID, reason)
			continue
		}
		if err := f.db.Model(&models.Post{}).
			Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"is_flagged":        true,
				"moderation_reason": reason,
			}).Error; err != nil {
			return fmt.Errorf("flagging post %s: %w", p.ID, err)
		}
	}
	return nil
}
