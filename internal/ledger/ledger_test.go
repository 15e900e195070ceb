package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiogate/internal/store"
)

func newTestStore(t *testing.T) (*Store, *store.Memory, *time.Time) {
	t.Helper()
	kv := store.NewMemory()
	s := NewStore(kv)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	return s, kv, &now
}

func TestGetOrCreateFreshDevice(t *testing.T) {
	s, _, _ := newTestStore(t)

	stats := s.GetOrCreate("dev_a")
	require.NotNil(t, stats)
	assert.Equal(t, "dev_a", stats.DeviceID)
	assert.Equal(t, 0, stats.Uploads30Min)
	assert.Equal(t, 0, stats.UploadsToday)
	assert.Equal(t, 0, stats.AudioMinutesToday)
	assert.Nil(t, stats.LastUpload30Min)
	assert.Nil(t, stats.LastUploadToday)
	assert.NotNil(t, stats.FileHashes)
}

func TestRecordUploadIncrementsCounters(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.RecordUpload("dev_a", 90*time.Second, "hash1")
	stats := s.RecordUpload("dev_a", 90*time.Second, "hash1")

	assert.Equal(t, 2, stats.Uploads30Min)
	assert.Equal(t, 2, stats.UploadsToday)
	assert.Equal(t, 4, stats.AudioMinutesToday) // 90s charges 2 whole minutes
	assert.Equal(t, 2, stats.FileHashes["hash1"])
	require.NotNil(t, stats.LastUpload30Min)
	require.NotNil(t, stats.LastUploadToday)
}

func TestRolloverAfter30Minutes(t *testing.T) {
	s, _, now := newTestStore(t)

	s.RecordUpload("dev_a", time.Minute, "h")
	*now = now.Add(30 * time.Minute)

	stats := s.GetOrCreate("dev_a")
	assert.Equal(t, 0, stats.Uploads30Min, "30-minute counter resets at the window edge")
	assert.Nil(t, stats.LastUpload30Min)
	// Daily counters are untouched by the 30-minute rollover.
	assert.Equal(t, 1, stats.UploadsToday)
	assert.Equal(t, 1, stats.AudioMinutesToday)
}

func TestRolloverAfter24Hours(t *testing.T) {
	s, _, now := newTestStore(t)

	s.RecordUpload("dev_a", 5*time.Minute, "h")
	*now = now.Add(24 * time.Hour)

	stats := s.GetOrCreate("dev_a")
	assert.Equal(t, 0, stats.Uploads30Min)
	assert.Equal(t, 0, stats.UploadsToday)
	assert.Equal(t, 0, stats.AudioMinutesToday)
	assert.Nil(t, stats.LastUploadToday)
}

func TestRolloverIsLazy(t *testing.T) {
	s, _, now := newTestStore(t)

	// A ledger untouched for 40 days must roll over on a single access.
	s.RecordUpload("dev_a", time.Minute, "h")
	*now = now.Add(40 * 24 * time.Hour)

	stats := s.GetOrCreate("dev_a")
	assert.Equal(t, 0, stats.Uploads30Min)
	assert.Equal(t, 0, stats.UploadsToday)
	assert.Equal(t, 0, stats.AudioMinutesToday)
}

func TestRolloverIdempotent(t *testing.T) {
	s, _, now := newTestStore(t)

	s.RecordUpload("dev_a", time.Minute, "h")
	*now = now.Add(31 * time.Minute)

	first := s.GetOrCreate("dev_a")
	second := s.GetOrCreate("dev_a")
	assert.Equal(t, first.Uploads30Min, second.Uploads30Min)
	assert.Equal(t, first.UploadsToday, second.UploadsToday)
	assert.Equal(t, first.AudioMinutesToday, second.AudioMinutesToday)
}

func TestMalformedRecordFallsBackToFresh(t *testing.T) {
	s, kv, _ := newTestStore(t)

	require.NoError(t, kv.Set("ledger:dev_a", "{not json"))
	stats := s.GetOrCreate("dev_a")
	assert.Equal(t, 0, stats.UploadsToday)
	assert.NotNil(t, stats.FileHashes)
}

func TestDuplicateCount(t *testing.T) {
	s, _, _ := newTestStore(t)

	stats := s.GetOrCreate("dev_a")
	assert.Equal(t, 0, stats.DuplicateCount("hash1"))

	s.RecordUpload("dev_a", time.Minute, "hash1")
	s.RecordUpload("dev_a", time.Minute, "hash1")
	stats = s.GetOrCreate("dev_a")
	assert.Equal(t, 2, stats.DuplicateCount("hash1"))
	assert.Equal(t, 0, stats.DuplicateCount("hash2"))
}

func TestSweepDeletesExpiredLedgers(t *testing.T) {
	s, _, now := newTestStore(t)

	s.RecordUpload("dev_old", time.Minute, "h")
	*now = now.Add(31 * 24 * time.Hour)
	s.RecordUpload("dev_new", time.Minute, "h")

	deleted, err := s.Sweep(*now, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Idempotent: a second sweep with no new data deletes nothing.
	deleted, err = s.Sweep(*now, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	stats := s.GetOrCreate("dev_new")
	assert.Equal(t, 1, stats.UploadsToday, "surviving ledger is intact")
}

func TestWholeMinutes(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{3 * time.Second, 1},
		{time.Minute, 1},
		{90 * time.Second, 2},
		{10 * time.Minute, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WholeMinutes(tt.d), "WholeMinutes(%s)", tt.d)
	}
}

func TestFingerprintStableAcrossMetadata(t *testing.T) {
	h1, err := Fingerprint(strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	h2, err := Fingerprint(strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, err := Fingerprint(strings.NewReader("other-bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
