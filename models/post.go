package models

import (
	"encoding/json"
	"time"
)

// Post is a status update, optionally with a cover image and a photo gallery.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ImageName string    `gorm:"size:128" json:"-"`
	ImageURL  string    `gorm:"size:1024" json:"image_url"`
	Photos    string    `gorm:"type:text" json:"photos"` // JSON array of Photo
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}

// Photo is one gallery entry of a post.
type Photo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PhotoList decodes Photos. Malformed data yields an empty list.
func (p *Post) PhotoList() []Photo {
	if p.Photos == "" {
		return nil
	}
	var photos []Photo
	if err := json.Unmarshal([]byte(p.Photos), &photos); err != nil {
		return nil
	}
	return photos
}

// SetPhotoList encodes photos into Photos.
func (p *Post) SetPhotoList(photos []Photo) {
	if len(photos) == 0 {
		p.Photos = ""
		return
	}
	b, _ := json.Marshal(photos)
	p.Photos = string(b)
}

// FileNames lists every stored upload the post references.
func (p *Post) FileNames() []string {
	var names []string
	if p.ImageName != "" {
		names = append(names, p.ImageName)
	}
	for _, ph := range p.PhotoList() {
		names = append(names, ph.Name)
	}
	return names
}
