package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "audiogate/internal/db"
	"audiogate/internal/gate"
	"audiogate/internal/queue"
	"audiogate/internal/retention"
)

// PendingList returns all uploads currently awaiting review.
func PendingList(pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}
		list, err := pending.List()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to list pending uploads")
			return
		}
		pendingDepth.Set(float64(len(list)))
		jsonResponse(ctx, map[string]any{"pending": list, "count": len(list)})
	}
}

// ApprovePending resolves a pending upload as approved and
// materializes it as a published track.
func ApprovePending(db *gorm.DB, pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		uploadID, _ := ctx.UserValue("id").(string)

		u, err := pending.Approve(uploadID)
		if err == queue.ErrNotFound {
			errResponse(ctx, fasthttp.StatusNotFound, "pending upload not found")
			return
		}
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to approve upload")
			return
		}

		track := dbpkg.Track{
			TrackID:         u.UploadID,
			Title:           u.Title,
			Description:     u.Description,
			Filename:        u.Filename,
			OriginalName:    u.OriginalName,
			Size:            u.Size,
			MimeType:        u.MimeType,
			DurationSeconds: u.Duration,
			URL:             u.URL,
			UserID:          u.UserID,
			Username:        u.Username,
			DeviceID:        u.DeviceID,
			Tags: datatypes.JSONMap{
				"tags":   u.Tags,
				"gender": u.Gender,
			},
		}
		if err := db.Create(&track).Error; err != nil {
			log.Printf("admin: failed to materialize approved track %s: %v", u.UploadID, err)
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to publish approved upload")
			return
		}

		recordModeration(db, u, "approved", u.Reason, user.Username)
		updatePendingDepth(pending)
		jsonResponse(ctx, map[string]any{"status": "approved", "track_id": track.TrackID})
	}
}

// RejectPending resolves a pending upload as rejected, retaining the
// moderator's reason for audit.
func RejectPending(db *gorm.DB, pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		uploadID, _ := ctx.UserValue("id").(string)

		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(ctx.PostBody(), &body)
		if body.Reason == "" {
			body.Reason = "rejected by moderator"
		}

		u, err := pending.Reject(uploadID, body.Reason)
		if err == queue.ErrNotFound {
			errResponse(ctx, fasthttp.StatusNotFound, "pending upload not found")
			return
		}
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to reject upload")
			return
		}

		recordModeration(db, u, "rejected", body.Reason, user.Username)
		updatePendingDepth(pending)
		jsonResponse(ctx, map[string]any{"status": "rejected", "upload_id": uploadID})
	}
}

// updatePendingDepth refreshes the queue-depth gauge after a mutation,
// so the metric does not go stale between moderation actions.
func updatePendingDepth(pending *queue.Queue) {
	if n, err := pending.Len(); err == nil {
		pendingDepth.Set(float64(n))
	}
}

func recordModeration(db *gorm.DB, u *queue.PendingUpload, action, reason, reviewer string) {
	row := dbpkg.ModerationAction{
		UploadID: u.UploadID,
		DeviceID: u.DeviceID,
		Action:   action,
		Reason:   reason,
		Reviewer: reviewer,
		Attributes: datatypes.JSONMap{
			"title":           u.Title,
			"duration":        u.Duration,
			"duplicate_count": u.DuplicateCount,
		},
	}
	if err := db.Create(&row).Error; err != nil {
		log.Printf("admin: failed to record moderation action for %s: %v", u.UploadID, err)
	}
}

// GetLimits returns the current upload limits and override states.
func GetLimits(limits *gate.Manager, pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}
		l := limits.Limits()
		jsonResponse(ctx, map[string]any{
			"max_uploads_per_30min":     l.MaxUploadsPer30Min,
			"max_uploads_per_day":       l.MaxUploadsPerDay,
			"max_audio_minutes_per_day": l.MaxAudioMinutesPerDay,
			"max_duplicate_count":       l.MaxDuplicateCount,
			"min_audio_seconds":         int(l.MinAudioDuration.Seconds()),
			"max_audio_seconds":         int(l.MaxAudioDuration.Seconds()),
			"auto_approve":              pending.AutoApprove(),
			"force_review":              limits.ForceReview(),
		})
	}
}

// UpdateLimits applies a partial limits override at runtime.
func UpdateLimits(limits *gate.Manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var update gate.LimitsUpdate
		if err := json.Unmarshal(ctx.PostBody(), &update); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		l := limits.Update(update)
		log.Printf("admin: limits updated by %s: %+v", user.Username, l)
		jsonResponse(ctx, map[string]any{"status": "updated"})
	}
}

// ToggleAutoApprove flips the process-wide auto-approve switch. The
// change is broadcast to queue subscribers.
func ToggleAutoApprove(pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var body struct {
			Active bool `json:"active"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		pending.SetAutoApprove(body.Active)
		log.Printf("admin: auto-approve set to %v by %s", body.Active, user.Username)
		jsonResponse(ctx, map[string]any{"auto_approve": body.Active})
	}
}

// ToggleForceReview flips the override that routes every upload to
// review regardless of the gate verdict.
func ToggleForceReview(limits *gate.Manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var body struct {
			Active bool `json:"active"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		limits.SetForceReview(body.Active)
		log.Printf("admin: force-review set to %v by %s", body.Active, user.Username)
		jsonResponse(ctx, map[string]any{"force_review": body.Active})
	}
}

// TriggerSweep runs the retention sweep on demand.
func TriggerSweep(sweeper *retention.Sweeper) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}
		deleted, err := sweeper.SweepOnce(time.Now())
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "sweep failed")
			return
		}
		jsonResponse(ctx, map[string]any{"status": "swept", "deleted_ledgers": deleted})
	}
}

// startOfDay returns midnight of t's day in t's location, so the
// "today" counters follow the moderators' clock rather than UTC.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AdminStats summarizes queue depth, published tracks, and recent
// moderation decisions.
func AdminStats(db *gorm.DB, pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}

		pendingCount, err := pending.Len()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to read queue")
			return
		}

		var trackCount int64
		if err := db.Model(&dbpkg.Track{}).Count(&trackCount).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		dayStart := startOfDay(time.Now())
		var approvedToday, rejectedToday int64
		db.Model(&dbpkg.ModerationAction{}).
			Where("action = ? AND created_at >= ?", "approved", dayStart).
			Count(&approvedToday)
		db.Model(&dbpkg.ModerationAction{}).
			Where("action = ? AND created_at >= ?", "rejected", dayStart).
			Count(&rejectedToday)

		jsonResponse(ctx, map[string]any{
			"pending_count":    pendingCount,
			"published_tracks": trackCount,
			"approved_today":   approvedToday,
			"rejected_today":   rejectedToday,
		})
	}
}
