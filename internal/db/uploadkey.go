package db

import (
	"time"
)

// UploadKey represents a bearer credential for the posting client
// (the web front end or a mobile app build). Each key belongs to an
// admin user and names the client it was issued to.
type UploadKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID links this key to the admin user who issued it.
	UserID uint `gorm:"index;not null"`

	// Name is a user-friendly identifier for this key (e.g. "web-client").
	Name string `gorm:"size:128;not null"`

	// Key is the actual bearer token value (stored as-is, should be unique).
	Key string `gorm:"uniqueIndex;size:255;not null"`

	// Active indicates whether this key is currently enabled.
	Active bool `gorm:"default:true"`

	// User is the issuer of this upload key.
	User User `gorm:"foreignKey:UserID"`
}
