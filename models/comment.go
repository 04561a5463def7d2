package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCommentRunes bounds a comment body after sanitizing.
const MaxCommentRunes = 2000

var (
	ErrCommentEmpty   = errors.New("content cannot be empty")
	ErrCommentTooLong = errors.New("content too long")
)

// Comment is a reply to a post. Comments are text only; the route that creates them takes plain
// form fields and refuses file parts.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}

// SetContent trims content and stores it when it is non-empty and within MaxCommentRunes.
func (c *Comment) SetContent(content string) error {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return ErrCommentEmpty
	case utf8.RuneCountInString(content) > MaxCommentRunes:
		return ErrCommentTooLong
	}
	c.Content = content
	return nil
}
