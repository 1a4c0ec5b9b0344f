package models

// Role is a named capability tag shared by many users.
type Role struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	Name string `gorm:"size:64;uniqueIndex;not null" json:"name"`
}
