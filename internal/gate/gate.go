// Package gate evaluates upload attempts against rate limits, duration
// bounds, and duplicate-content thresholds. Evaluation is read-only
// and never fails: every concern degrades to a "requires review"
// verdict, never to a dropped upload.
package gate

import (
	"fmt"
	"time"

	"audiogate/internal/ledger"
)

// Verdict reason categories, surfaced to the uploading client so a
// queued upload is never an opaque failure.
const (
	CategoryFrequency = "frequency"
	CategoryDuration  = "duration"
	CategoryDuplicate = "duplicate"
)

// Limits are the tunable upload thresholds. A single Limits value is
// shared process-wide through a Manager; Evaluate takes a snapshot so
// one attempt sees one consistent set.
type Limits struct {
	MaxUploadsPer30Min    int           `json:"max_uploads_per_30min"`
	MaxUploadsPerDay      int           `json:"max_uploads_per_day"`
	MaxAudioMinutesPerDay int           `json:"max_audio_minutes_per_day"`
	MaxDuplicateCount     int           `json:"max_duplicate_count"`
	MinAudioDuration      time.Duration `json:"min_audio_duration"`
	MaxAudioDuration      time.Duration `json:"max_audio_duration"`
}

// DuplicateInfo describes the duplicate-content check outcome.
// Count includes the current attempt.
type DuplicateInfo struct {
	Count      int  `json:"count"`
	Suspicious bool `json:"suspicious"`
}

// Verdict is the structured result of evaluating one upload attempt.
type Verdict struct {
	Allowed        bool          `json:"allowed"`
	RequiresReview bool          `json:"requires_review"`
	Reason         string        `json:"reason,omitempty"`
	Category       string        `json:"category,omitempty"`
	DuplicateInfo  DuplicateInfo `json:"duplicate_info"`
}

// Evaluate runs the check sequence in order: rate limits, minimum
// duration, maximum duration, duplicate count. Rate-limit breaches
// block (allowed=false); duration concerns allow but require review;
// a duplicate at or past the threshold is suspicious and blocks.
//
// dupCount is the number of times this device has submitted this
// content including the current attempt; stats must already have had
// its window rollover applied (ledger.Store.GetOrCreate does this).
// Evaluate never mutates stats.
func Evaluate(stats *ledger.DeviceStats, duration time.Duration, dupCount int, limits Limits) Verdict {
	v := Verdict{Allowed: true, DuplicateInfo: DuplicateInfo{Count: dupCount}}

	rateLimited := false
	switch {
	case stats.Uploads30Min >= limits.MaxUploadsPer30Min:
		rateLimited = true
		v.Reason = fmt.Sprintf("too many uploads in the last 30 minutes (limit %d)", limits.MaxUploadsPer30Min)
		v.Category = CategoryFrequency
	case stats.UploadsToday >= limits.MaxUploadsPerDay:
		rateLimited = true
		v.Reason = fmt.Sprintf("daily upload limit reached (limit %d)", limits.MaxUploadsPerDay)
		v.Category = CategoryFrequency
	case stats.AudioMinutesToday+ledger.WholeMinutes(duration) > limits.MaxAudioMinutesPerDay:
		rateLimited = true
		v.Reason = fmt.Sprintf("daily audio minutes exceeded (limit %d)", limits.MaxAudioMinutesPerDay)
		v.Category = CategoryFrequency
	}
	if rateLimited {
		v.RequiresReview = true
	}

	if v.Reason == "" && duration < limits.MinAudioDuration {
		v.RequiresReview = true
		v.Reason = fmt.Sprintf("audio shorter than minimum duration (%s)", limits.MinAudioDuration)
		v.Category = CategoryDuration
	}
	if v.Reason == "" && duration > limits.MaxAudioDuration {
		v.RequiresReview = true
		v.Reason = fmt.Sprintf("audio longer than maximum duration (%s)", limits.MaxAudioDuration)
		v.Category = CategoryDuration
	}

	suspicious := limits.MaxDuplicateCount > 0 && dupCount >= limits.MaxDuplicateCount
	if suspicious {
		v.RequiresReview = true
		v.DuplicateInfo.Suspicious = true
		if v.Reason == "" {
			v.Reason = fmt.Sprintf("identical content uploaded %d times from this device", dupCount)
			v.Category = CategoryDuplicate
		}
	}

	v.Allowed = !rateLimited && !suspicious
	return v
}

// ApplyOverrides folds the operator overrides into a computed verdict.
// Auto-approve bypasses the queue entirely and wins over force-review;
// force-review routes the attempt to the queue without changing
// whether it was allowed. Reason, category, and duplicate info are
// preserved either way for logging and audit.
func ApplyOverrides(v Verdict, autoApprove, forceReview bool) Verdict {
	if autoApprove {
		v.Allowed = true
		v.RequiresReview = false
		return v
	}
	if forceReview {
		v.RequiresReview = true
	}
	return v
}
