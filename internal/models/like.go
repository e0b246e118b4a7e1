package models

import "time"

// Like records that a user liked a post. The (PostID, UserID) pair is the
// primary key, so a user can hold at most one like per post. Existence of the
// row is the source of truth; Post.Likes is the cached aggregate.
type Like struct {
	PostID    string    `gorm:"primaryKey;size:36" json:"post_id"`
	UserID    string    `gorm:"primaryKey;size:128" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
