package models

import "time"

// File is attachment metadata. ArticleID is the only link to the owner;
// the bytes live in a blob store under StoragePath.
type File struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ArticleID   uint      `gorm:"index;not null" json:"article_id"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	StoragePath string    `gorm:"size:1024;not null" json:"storage_path"`
	Size        int64     `gorm:"not null" json:"size"`
	MimeType    string    `gorm:"size:255;not null" json:"mime_type"`
	UploadedAt  time.Time `gorm:"not null" json:"uploaded_at"`
	UploadedBy  string    `gorm:"size:64" json:"uploaded_by"`
}

// TableName keeps attachments in their own namespaced table.
func (File) TableName() string {
	return "article_files"
}
