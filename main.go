package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"audiogate/internal/config"
	"audiogate/internal/db"
	"audiogate/internal/gate"
	"audiogate/internal/http/handlers"
	appmw "audiogate/internal/http/middleware"
	"audiogate/internal/ledger"
	"audiogate/internal/queue"
	"audiogate/internal/retention"
	"audiogate/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}
	if cfg.UploadKey != "" {
		if err := db.EnsureBootstrapUploadKey(sqlDB, cfg); err != nil {
			log.Printf("warning: failed to ensure bootstrap upload key: %v", err)
		} else {
			log.Printf("bootstrap upload key configured for admin user")
		}
	}

	kv := store.NewDB(sqlDB)
	ledgerStore := ledger.NewStore(kv)
	pending := queue.New(kv)
	limits := gate.NewManager(gate.Limits{
		MaxUploadsPer30Min:    cfg.MaxUploadsPer30Min,
		MaxUploadsPerDay:      cfg.MaxUploadsPerDay,
		MaxAudioMinutesPerDay: cfg.MaxAudioMinutesPerDay,
		MaxDuplicateCount:     cfg.MaxDuplicateCount,
		MinAudioDuration:      cfg.MinAudioDuration,
		MaxAudioDuration:      cfg.MaxAudioDuration,
	})

	sweeper := retention.NewSweeper(ledgerStore, sqlDB, cfg.RetentionDays)
	sweeper.StartWorker(cfg.SweepInterval)

	// Log auto-approve changes so toggles are visible in service logs
	// without polling the admin API.
	go func() {
		for active := range pending.Subscribe() {
			log.Printf("auto-approve mode changed: active=%v", active)
		}
	}()

	handlers.InitPrometheusMetrics()

	r := router.New()

	handler := handlers.RequestLogger(r.Handler)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.GET("/metrics", handlers.MetricsHandler())

	r.POST("/v1/uploads", appmw.BearerAuth(sqlDB)(handlers.UploadHandler(sqlDB, ledgerStore, limits, pending)))

	admin := appmw.AdminAuth(sqlDB)
	r.GET("/admin/pending", admin(handlers.PendingList(pending)))
	r.POST("/admin/pending/{id}/approve", admin(handlers.ApprovePending(sqlDB, pending)))
	r.POST("/admin/pending/{id}/reject", admin(handlers.RejectPending(sqlDB, pending)))
	r.GET("/admin/limits", admin(handlers.GetLimits(limits, pending)))
	r.POST("/admin/limits", admin(handlers.UpdateLimits(limits)))
	r.POST("/admin/auto-approve", admin(handlers.ToggleAutoApprove(pending)))
	r.POST("/admin/force-review", admin(handlers.ToggleForceReview(limits)))
	r.POST("/admin/sweep", admin(handlers.TriggerSweep(sweeper)))
	r.GET("/admin/stats", admin(handlers.AdminStats(sqlDB, pending)))

	log.Printf("audiogate listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
