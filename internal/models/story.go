package models

import (
	"time"

	"gorm.io/gorm"
)

// Story is a finished story kept in the archive.
type Story struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID   string         `gorm:"index;size:64" json:"session_id"`
	Title       string         `gorm:"size:255" json:"title"`
	Genre       string         `gorm:"size:255" json:"genre"`
	Language    string         `gorm:"size:64" json:"language"`
	NumChapters int            `json:"num_chapters"`
	Outline     string         `gorm:"type:longtext" json:"outline,omitempty"`
	Content     string         `gorm:"type:longtext" json:"content,omitempty"`
	Document    []byte         `gorm:"type:longblob" json:"-"`
	Chapters    []StoryChapter `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE" json:"chapters,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// StoryChapter is one chapter of an archived story
type StoryChapter struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	StoryID   string    `gorm:"index;size:36" json:"-"`
	Number    int       `json:"number"`
	Title     string    `gorm:"size:255" json:"title"`
	Content   string    `gorm:"type:longtext" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
