package models

import "time"

// Article is a time-bounded announcement. It is listed only while
// StartDate < now < EndDate and exclusively owns its Files.
type Article struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Title          string     `gorm:"size:30;not null" json:"title"`
	Content        string     `gorm:"type:text" json:"content"`
	StartDate      *time.Time `gorm:"index" json:"start_date"`
	EndDate        *time.Time `gorm:"index" json:"end_date"`
	RegDate        time.Time  `gorm:"autoCreateTime" json:"reg_date"`
	LastUpdateDate time.Time  `gorm:"autoUpdateTime" json:"last_update_date"`
	ReadCount      int64      `gorm:"not null;default:0" json:"read_count"`
	UserID         *uint      `gorm:"index" json:"user_id"`
	User           *User      `json:"author,omitempty"`
	Files          []File     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"files"`
}

// AddFile appends f to the article and binds its back-reference in the same step.
// The returned pointer addresses the copy held by the article.
func (a *Article) AddFile(f File) *File {
	f.ArticleID = a.ID
	a.Files = append(a.Files, f)
	return &a.Files[len(a.Files)-1]
}

// RemoveFile detaches the file with the given id and clears its back-reference.
// Once the article is saved the detached row is deleted.
func (a *Article) RemoveFile(fileID uint) (File, bool) {
	for i, f := range a.Files {
		if f.ID != fileID {
			continue
		}
		a.Files = append(a.Files[:i], a.Files[i+1:]...)
		f.ArticleID = 0
		return f, true
	}
	return File{}, false
}

// FileByID returns the attached file with the given id.
func (a *Article) FileByID(fileID uint) (*File, bool) {
	for i := range a.Files {
		if a.Files[i].ID == fileID {
			return &a.Files[i], true
		}
	}
	return nil, false
}

// Live reports whether the article is inside its publication window at now.
func (a *Article) Live(now time.Time) bool {
	if a.StartDate == nil || a.EndDate == nil {
		return false
	}
	return a.StartDate.Before(now) && a.EndDate.After(now)
}
