// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a top-level authored content item. Comments and likes are scoped
// under it.
type Post struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	Title   string `gorm:"not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`

	// Likes is the persisted aggregate of like records. It is only ever
	// mutated inside a store transaction together with the like record
	// itself, so it never drifts from the true count.
	Likes int `gorm:"not null;default:0" json:"likes"`

	// CommentCount is the raw persisted counter maintained alongside comment
	// create/delete. Read paths serve VisibleComments instead, so this stays
	// internal.
	CommentCount int `gorm:"not null;default:0" json:"-"`

	// VisibleComments is computed at query time: the number of non-flagged
	// comments on this post.
	VisibleComments int `gorm:"->;-:migration" json:"comment_count"`

	// Liked indicates whether the requesting user liked this post (computed).
	Liked bool `gorm:"->;-:migration" json:"liked"`

	IsFlagged        bool   `gorm:"not null;default:false;index" json:"is_flagged"`
	ModerationReason string `json:"moderation_reason,omitempty"`

	AuthorID   string `gorm:"not null;index;size:128" json:"author_id"`
	AuthorName string `gorm:"not null" json:"author_name"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a store-side identifier when none is set.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
