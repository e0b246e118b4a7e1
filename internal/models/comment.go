package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a child content item attached to exactly one post.
type Comment struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	PostID string `gorm:"not null;index;size:36" json:"post_id"`
	Text   string `gorm:"type:text;not null" json:"text"`

	IsFlagged        bool   `gorm:"not null;default:false;index" json:"is_flagged"`
	ModerationReason string `json:"moderation_reason,omitempty"`

	AuthorID   string `gorm:"not null;index;size:128" json:"author_id"`
	AuthorName string `gorm:"not null" json:"author_name"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a store-side identifier when none is set.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
