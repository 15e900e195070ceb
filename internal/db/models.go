package db

import (
	"time"

	"gorm.io/datatypes"
)

// Track is a published audio track as stored in Postgres. Rows are
// created when a pending upload is approved (or when the gate lets an
// upload through without review).
type Track struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// TrackID is the public identifier, carried over from the upload id
	// assigned at submission time.
	TrackID string `gorm:"uniqueIndex;size:64;not null"`

	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"size:2048"`

	Filename     string `gorm:"size:255;not null"`
	OriginalName string `gorm:"size:255"`
	Size         int64
	MimeType     string `gorm:"size:64"`

	// DurationSeconds is the audio length as measured at upload time.
	DurationSeconds float64

	// URL points at the stored content (remote object URL).
	URL string `gorm:"size:512"`

	UserID   string `gorm:"size:64;index"`
	Username string `gorm:"size:128"`
	DeviceID string `gorm:"size:64;index"`

	// Tags holds the submitted tag list plus the gender pseudo-tag, so
	// feed filters can evolve without schema changes.
	Tags datatypes.JSONMap `gorm:"type:json"`

	PlayCount int64 `gorm:"not null;default:0"`
	LikeCount int64 `gorm:"not null;default:0"`
}

// KVEntry backs the key-value persistence interface used by the usage
// ledger and the pending queue. Records are JSON-serialized by their
// owning packages; this table only stores opaque strings.
type KVEntry struct {
	Key   string `gorm:"primaryKey;size:255"`
	Value string `gorm:"type:text;not null"`

	UpdatedAt time.Time
}

// ModerationAction is the audit trail for resolved pending uploads.
// One row per approve/reject decision; swept by the retention worker
// after the configured window.
type ModerationAction struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	UploadID string `gorm:"size:64;index;not null"`
	DeviceID string `gorm:"size:64;index"`

	// Action is "approved" or "rejected".
	Action string `gorm:"size:16;not null"`

	// Reason is the review reason from the gate verdict, plus the
	// moderator's rejection reason when the action is a reject.
	Reason string `gorm:"size:512"`

	// Reviewer is the admin username that resolved the upload.
	Reviewer string `gorm:"size:64"`

	Attributes datatypes.JSONMap `gorm:"type:json"`
}
