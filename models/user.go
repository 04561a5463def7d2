package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a member of the network. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string         `gorm:"size:255" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	AvatarName   string         `gorm:"size:128" json:"-"`
	AvatarURL    string         `gorm:"size:1024" json:"avatar_url"`
	CoverName    string         `gorm:"size:128" json:"-"`
	CoverURL     string         `gorm:"size:1024" json:"cover_url"`
	Bio          string         `gorm:"size:255" json:"bio"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Posts        []Post         `json:"-"`
	Comments     []Comment      `json:"-"`
}
