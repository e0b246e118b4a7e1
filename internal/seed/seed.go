// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumAuthors  int
	NumPosts    int
	ShouldClean bool
	FlagRatio   float64
}

// Seeder populates the database with realistic demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	rng     *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	// #nosec G404: acceptable for seeding
	return &Seeder{
		db:      db,
		factory: NewFactory(db, SeedOptions{MaxDays: 90}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded content.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	for _, model := range []interface{}{
		&models.Like{},
		&models.Comment{},
		&models.Post{},
	} {
		if err := s.db.Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clearing %T: %w", model, err)
		}
	}
	return nil
}

// Seed populates the database with authors, posts, comments and likes. The
// engagement pass picks distinct authors per post so the like aggregate
// matches the number of like rows exactly.
func (s *Seeder) Seed(opts Options) error {
	log.Printf("Seeding %d authors, %d posts...", opts.NumAuthors, opts.NumPosts)

	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}

	authors := make([]Author, opts.NumAuthors)
	for i := range authors {
		authors[i] = s.factory.NewAuthor()
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := authors[s.rng.Intn(len(authors))]
		posts = append(posts, s.factory.BuildPost(author))
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return fmt.Errorf("creating posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	comments := 0
	likes := 0
	for _, post := range posts {
		for i := 0; i < s.rng.Intn(6); i++ {
			author := authors[s.rng.Intn(len(authors))]
			if _, err := s.factory.CreateComment(author, post); err != nil {
				return fmt.Errorf("creating comment: %w", err)
			}
			comments++
		}

		// distinct likers per post: shuffle and take a prefix
		perm := s.rng.Perm(len(authors))
		n := s.rng.Intn(len(authors)/2 + 1)
		for _, idx := range perm[:n] {
			if err := s.factory.CreateLike(authors[idx], post); err != nil {
				return fmt.Errorf("creating like: %w", err)
			}
			likes++
		}
	}
	log.Printf("✓ %d comments, %d likes created", comments, likes)

	if opts.FlagRatio > 0 {
		if err := s.factory.FlagRandomly(posts, opts.FlagRatio); err != nil {
			return err
		}
		log.Printf("✓ flagged ~%.0f%% of posts", opts.FlagRatio*100)
	}

	return nil
}
