package gate

import (
	"sync"
	"time"
)

// Manager holds the process-wide limits and the force-review override.
// Limits are mutable at runtime by an administrative caller; readers
// always get a consistent snapshot.
type Manager struct {
	mu          sync.RWMutex
	limits      Limits
	forceReview bool
}

// NewManager returns a Manager seeded with the given limits.
// Force-review starts off.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Limits returns a snapshot of the current limits.
func (m *Manager) Limits() Limits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limits
}

// LimitsUpdate is a partial override: nil fields leave the current
// value untouched. Durations are expressed in seconds on the wire.
type LimitsUpdate struct {
	MaxUploadsPer30Min    *int `json:"max_uploads_per_30min,omitempty"`
	MaxUploadsPerDay      *int `json:"max_uploads_per_day,omitempty"`
	MaxAudioMinutesPerDay *int `json:"max_audio_minutes_per_day,omitempty"`
	MaxDuplicateCount     *int `json:"max_duplicate_count,omitempty"`
	MinAudioSeconds       *int `json:"min_audio_seconds,omitempty"`
	MaxAudioSeconds       *int `json:"max_audio_seconds,omitempty"`
}

// Update applies a partial override and returns the resulting limits.
func (m *Manager) Update(u LimitsUpdate) Limits {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.MaxUploadsPer30Min != nil {
		m.limits.MaxUploadsPer30Min = *u.MaxUploadsPer30Min
	}
	if u.MaxUploadsPerDay != nil {
		m.limits.MaxUploadsPerDay = *u.MaxUploadsPerDay
	}
	if u.MaxAudioMinutesPerDay != nil {
		m.limits.MaxAudioMinutesPerDay = *u.MaxAudioMinutesPerDay
	}
	if u.MaxDuplicateCount != nil {
		m.limits.MaxDuplicateCount = *u.MaxDuplicateCount
	}
	if u.MinAudioSeconds != nil {
		m.limits.MinAudioDuration = time.Duration(*u.MinAudioSeconds) * time.Second
	}
	if u.MaxAudioSeconds != nil {
		m.limits.MaxAudioDuration = time.Duration(*u.MaxAudioSeconds) * time.Second
	}
	return m.limits
}

// SetForceReview flips the override that routes every upload to review
// regardless of the computed verdict. It is consulted by the caller
// acting on a verdict, never by Evaluate itself.
func (m *Manager) SetForceReview(active bool) {
	m.mu.Lock()
	m.forceReview = active
	m.mu.Unlock()
}

// ForceReview reports whether the force-review override is active.
func (m *Manager) ForceReview() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forceReview
}
