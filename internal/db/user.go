package db

import (
	"time"
)

// User represents a moderator that can call the admin API and resolve
// pending uploads. The bootstrap admin user (from env) will be created
// as a row in this table on startup.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	// IsAdmin marks users that can manage upload keys and global
	// limits. The bootstrap admin will have IsAdmin=true.
	IsAdmin bool `gorm:"default:false"`
}
