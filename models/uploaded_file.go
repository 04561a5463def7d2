package models

import "time"

// Owner types stored in UploadedFile.OwnerType.
const (
	OwnerPost = "post"
	OwnerUser = "user"
)

// UploadedFile registers a stored upload. OwnerID stays 0 until a post or profile claims it;
// unclaimed rows past their TTL are swept together with their files.
type UploadedFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Dir          string    `gorm:"size:1024;not null" json:"-"`
	Ext          string    `gorm:"size:32" json:"ext"`
	Field        string    `gorm:"size:100" json:"field"`
	MimeType     string    `gorm:"size:100" json:"mime_type"`
	Size         int64     `json:"size"`
	URL          string    `gorm:"size:1024;not null" json:"url"`
	OriginalName string    `gorm:"size:255" json:"original_name"`
	OwnerType    string    `gorm:"size:16;index:idx_upload_owner" json:"owner_type"`
	OwnerID      uint      `gorm:"index:idx_upload_owner;default:0" json:"owner_id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
