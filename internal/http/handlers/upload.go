package handlers

import (
	"log"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "audiogate/internal/db"
	"audiogate/internal/fingerprint"
	"audiogate/internal/gate"
	httpctx "audiogate/internal/http/ctx"
	"audiogate/internal/ledger"
	"audiogate/internal/pow"
	"audiogate/internal/queue"
)

var (
	uploadsTotal         *prometheus.CounterVec
	audioDurationSeconds prometheus.Histogram
	powFailuresTotal     prometheus.Counter
	pendingDepth         prometheus.Gauge
)

func InitPrometheusMetrics() {
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audiogate",
			Name:      "uploads_total",
			Help:      "Total upload attempts by outcome and review category.",
		},
		[]string{"outcome", "category"},
	)
	audioDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "audiogate",
			Name:      "audio_duration_seconds",
			Help:      "Histogram of submitted audio durations in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
	powFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audiogate",
			Name:      "pow_failures_total",
			Help:      "Upload attempts with a missing or implausible proof-of-work token.",
		},
	)
	pendingDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "audiogate",
			Name:      "pending_queue_depth",
			Help:      "Number of uploads currently awaiting review.",
		},
	)
	prometheus.MustRegister(uploadsTotal, audioDurationSeconds, powFailuresTotal, pendingDepth)
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func formInt(form *multipart.Form, key string) int {
	n, _ := strconv.Atoi(formValue(form, key))
	return n
}

// signalsFromForm assembles the device signals submitted with the
// upload, falling back to request headers where the client sent none.
func signalsFromForm(ctx *fasthttp.RequestCtx, form *multipart.Form) fingerprint.Signals {
	sig := fingerprint.Signals{
		UserAgent:      formValue(form, "user_agent"),
		Language:       formValue(form, "language"),
		ScreenWidth:    formInt(form, "screen_width"),
		ScreenHeight:   formInt(form, "screen_height"),
		TimezoneOffset: formInt(form, "timezone_offset"),
		CanvasDigest:   formValue(form, "canvas_digest"),
	}
	if sig.UserAgent == "" {
		sig.UserAgent = string(ctx.Request.Header.UserAgent())
	}
	if sig.Language == "" {
		sig.Language = string(ctx.Request.Header.Peek("Accept-Language"))
	}
	return sig
}

func parseTags(raw, gender string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	// The gender tag rides along as a pseudo-tag for feed filtering.
	if gender != "" {
		tags = append(tags, gender)
	}
	return tags
}

func estimatedWait(pendingCount int) string {
	if pendingCount < 10 {
		return "under 2 hours"
	}
	return "up to 24 hours"
}

// UploadHandler is the submission endpoint. Every attempt is hashed,
// evaluated by the gate, and recorded against the device ledger exactly
// once; the verdict routes the upload either to a published track or
// into the pending queue, honoring the auto-approve and force-review
// overrides.
func UploadHandler(db *gorm.DB, ledgerStore *ledger.Store, limits *gate.Manager, pending *queue.Queue) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		form, err := ctx.MultipartForm()
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "expected multipart form")
			return
		}

		files := form.File["audio"]
		if len(files) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "missing audio file")
			return
		}
		fh := files[0]

		f, err := fh.Open()
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "unreadable audio file")
			return
		}
		hash, err := ledger.Fingerprint(f)
		f.Close()
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "unreadable audio file")
			return
		}

		durationSec, err := strconv.ParseFloat(formValue(form, "duration"), 64)
		if err != nil || durationSec < 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "missing or invalid duration")
			return
		}
		duration := time.Duration(durationSec * float64(time.Second))
		audioDurationSeconds.Observe(durationSec)

		deviceID := signalsFromForm(ctx, form).DeviceID()

		// Proof-of-work stamp: friction, not a security boundary. An
		// implausible token is counted and logged but does not block.
		powValid := false
		if token, err := pow.ParseToken(formValue(form, "pow_token")); err == nil {
			if err := pow.Verify(token, fh.Size); err == nil {
				powValid = true
			} else {
				log.Printf("upload: implausible pow token from device %s: %v", deviceID, err)
			}
		}
		if !powValid {
			powFailuresTotal.Inc()
		}

		stats := ledgerStore.GetOrCreate(deviceID)
		dupCount := stats.DuplicateCount(hash) + 1
		verdict := gate.Evaluate(stats, duration, dupCount, limits.Limits())

		// The ledger update happens once per attempt regardless of
		// verdict, so repeated rejected attempts cannot evade limits.
		ledgerStore.RecordUpload(deviceID, duration, hash)

		effective := gate.ApplyOverrides(verdict, pending.AutoApprove(), limits.ForceReview())

		uploadID := uuid.New().String()
		title := formValue(form, "title")
		if title == "" {
			title = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
		}
		gender := formValue(form, "gender")
		tags := parseTags(formValue(form, "tags"), gender)

		var keyOwner string
		if key, ok := httpctx.UploadKeyFromCtx(ctx); ok {
			keyOwner = key.Name
		}

		if effective.Allowed && !effective.RequiresReview {
			track := dbpkg.Track{
				TrackID:         uploadID,
				Title:           title,
				Description:     formValue(form, "description"),
				Filename:        fh.Filename,
				OriginalName:    fh.Filename,
				Size:            fh.Size,
				MimeType:        fh.Header.Get("Content-Type"),
				DurationSeconds: durationSec,
				URL:             formValue(form, "url"),
				UserID:          formValue(form, "user_id"),
				Username:        formValue(form, "username"),
				DeviceID:        deviceID,
				Tags: datatypes.JSONMap{
					"tags":      tags,
					"gender":    gender,
					"pow_valid": powValid,
					"client":    keyOwner,
				},
			}
			if err := db.Create(&track).Error; err != nil {
				log.Printf("upload: failed to publish track %s: %v", uploadID, err)
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to publish track")
				return
			}
			uploadsTotal.WithLabelValues("published", "").Inc()
			ctx.SetStatusCode(fasthttp.StatusCreated)
			jsonResponse(ctx, map[string]any{
				"status":   "published",
				"track_id": track.TrackID,
				"url":      track.URL,
			})
			return
		}

		item := queue.PendingUpload{
			UploadID:       uploadID,
			Filename:       fh.Filename,
			OriginalName:   fh.Filename,
			Size:           fh.Size,
			MimeType:       fh.Header.Get("Content-Type"),
			Duration:       durationSec,
			URL:            formValue(form, "url"),
			Title:          title,
			Description:    formValue(form, "description"),
			Gender:         gender,
			Tags:           tags,
			UserID:         formValue(form, "user_id"),
			Username:       formValue(form, "username"),
			DeviceID:       deviceID,
			DuplicateCount: verdict.DuplicateInfo.Count,
			Reason:         verdict.Reason,
			UploadedAt:     time.Now(),
		}
		if item.Reason == "" {
			item.Reason = "routed to manual review"
		}
		if err := pending.Enqueue(item); err != nil {
			log.Printf("upload: failed to enqueue %s: %v", uploadID, err)
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to queue upload for review")
			return
		}

		outcome := "pending"
		if !effective.Allowed {
			outcome = "blocked"
		}
		uploadsTotal.WithLabelValues(outcome, verdict.Category).Inc()
		waitFor := "under 2 hours"
		if n, err := pending.Len(); err == nil {
			pendingDepth.Set(float64(n))
			waitFor = estimatedWait(n)
		}
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		jsonResponse(ctx, map[string]any{
			"status":          "pending_review",
			"upload_id":       uploadID,
			"allowed":         effective.Allowed,
			"requires_review": true,
			"reason":          item.Reason,
			"category":        verdict.Category,
			"duplicate_count": verdict.DuplicateInfo.Count,
			"estimated_wait":  waitFor,
		})
	}
}
