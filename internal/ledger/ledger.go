// Package ledger tracks per-device upload counters and content-hash
// occurrences, persisted through the key-value store. Counters roll
// over lazily at access time, so a ledger untouched for weeks still
// resets correctly on its next access.
package ledger

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"audiogate/internal/store"
)

const keyPrefix = "ledger:"

// Window sizes for the two rate-limit counters.
const (
	Window30Min = 30 * time.Minute
	WindowDaily = 24 * time.Hour
)

// DeviceStats is the per-device record. FileHashes maps a content hash
// to the number of times this device has submitted it; entries only
// ever grow and are removed wholesale by the retention sweep.
type DeviceStats struct {
	DeviceID string `json:"device_id"`

	Uploads30Min      int `json:"uploads_30_min"`
	UploadsToday      int `json:"uploads_today"`
	AudioMinutesToday int `json:"audio_minutes_today"`

	// Window anchors. Nil means "no anchor, counter is effectively zero".
	LastUpload30Min *time.Time `json:"last_upload_30_min"`
	LastUploadToday *time.Time `json:"last_upload_today"`

	FileHashes map[string]int `json:"file_hashes"`

	// LastReset marks ledger creation; the retention sweeper measures
	// record age from it.
	LastReset time.Time `json:"last_reset"`
}

// DuplicateCount returns how many times the device has submitted this
// content before (0 if never seen).
func (s *DeviceStats) DuplicateCount(hash string) int {
	return s.FileHashes[hash]
}

// Store persists DeviceStats records through a KV backend. All
// mutations go through the store so counter updates for one device are
// applied in attempt order.
type Store struct {
	mu sync.Mutex
	kv store.KV

	// now is swappable in tests.
	now func() time.Time
}

// NewStore returns a ledger store over the given KV backend.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SetClock overrides the store's time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// IsWithinWindow reports whether last is set and less than window old
// at the reference time now.
func IsWithinWindow(last *time.Time, window time.Duration, now time.Time) bool {
	if last == nil {
		return false
	}
	return now.Sub(*last) < window
}

// GetOrCreate loads the device's stats, applying the lazy window
// rollover before returning. A never-seen device (or a malformed
// persisted record) gets a fresh zeroed ledger rather than an error;
// backend write failures are logged and swallowed, since losing
// abuse-tracking state must not fail the upload flow.
func (s *Store) GetOrCreate(deviceID string) *DeviceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.load(deviceID)
	if s.rollover(stats, s.now()) {
		s.save(stats)
	}
	return stats
}

// RecordUpload is the single post-acceptance mutation: it increments
// both rate counters, accumulates the upload's duration in whole
// minutes, sets the window anchors, and bumps the content-hash
// occurrence count. It must be called exactly once per upload attempt
// regardless of the gate verdict, so repeated rejected attempts cannot
// evade the rate limits.
func (s *Store) RecordUpload(deviceID string, duration time.Duration, hash string) *DeviceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := s.load(deviceID)
	s.rollover(stats, now)

	stats.Uploads30Min++
	stats.UploadsToday++
	stats.AudioMinutesToday += WholeMinutes(duration)
	t := now
	stats.LastUpload30Min = &t
	stats.LastUploadToday = &t
	if hash != "" {
		stats.FileHashes[hash]++
	}

	s.save(stats)
	return stats
}

// Sweep deletes ledger records whose age from LastReset exceeds
// maxAge. It returns the number of deleted records and is idempotent.
func (s *Store) Sweep(now time.Time, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.kv.Keys(keyPrefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		raw, ok, err := s.kv.Get(key)
		if err != nil || !ok {
			continue
		}
		var stats DeviceStats
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			// Unreadable record: old enough to be unparseable is old
			// enough to go.
			if err := s.kv.Delete(key); err == nil {
				deleted++
			}
			continue
		}
		if now.Sub(stats.LastReset) > maxAge {
			if err := s.kv.Delete(key); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// WholeMinutes converts a duration to the whole-minute count charged
// against the daily audio budget. Any fraction counts as a full
// minute, so a 3-second clip costs 1 minute.
func WholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	mins := int(d / time.Minute)
	if d%time.Minute != 0 {
		mins++
	}
	return mins
}

// load reads and decodes the device record, substituting a fresh
// zeroed ledger when the record is absent or the backend misbehaves.
// Losing abuse-tracking state is an acceptable degradation; failing
// the upload flow is not.
func (s *Store) load(deviceID string) *DeviceStats {
	raw, ok, err := s.kv.Get(keyPrefix + deviceID)
	if err != nil {
		log.Printf("ledger: read failed for device %s: %v (starting fresh)", deviceID, err)
	}
	if err == nil && ok {
		var stats DeviceStats
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			log.Printf("ledger: malformed record for device %s: %v (starting fresh)", deviceID, err)
		} else {
			if stats.FileHashes == nil {
				stats.FileHashes = make(map[string]int)
			}
			stats.DeviceID = deviceID
			return &stats
		}
	}
	return &DeviceStats{
		DeviceID:   deviceID,
		FileHashes: make(map[string]int),
		LastReset:  s.now(),
	}
}

func (s *Store) save(stats *DeviceStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		log.Printf("ledger: encode failed for device %s: %v", stats.DeviceID, err)
		return
	}
	if err := s.kv.Set(keyPrefix+stats.DeviceID, string(raw)); err != nil {
		log.Printf("ledger: write failed for device %s: %v", stats.DeviceID, err)
	}
}

// rollover applies the lazy window resets: the 30-minute counter and
// the daily counters reset independently, each exactly once per
// elapsed window. Returns true if anything changed.
func (s *Store) rollover(stats *DeviceStats, now time.Time) bool {
	changed := false
	if stats.LastUpload30Min != nil && !IsWithinWindow(stats.LastUpload30Min, Window30Min, now) {
		stats.Uploads30Min = 0
		stats.LastUpload30Min = nil
		changed = true
	}
	if stats.LastUploadToday != nil && !IsWithinWindow(stats.LastUploadToday, WindowDaily, now) {
		stats.UploadsToday = 0
		stats.AudioMinutesToday = 0
		stats.LastUploadToday = nil
		changed = true
	}
	return changed
}
