package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string

	ListenAddr string

	// RetentionDays is how long per-device ledgers and resolved
	// moderation records are kept before the sweeper deletes them.
	RetentionDays int

	// SweepInterval is how often the retention sweeper runs after the
	// startup pass.
	SweepInterval time.Duration

	// UploadKey is a bootstrap bearer key for the posting client. If
	// empty, no key is created and one must be added via the admin API.
	UploadKey string

	// Default upload limits, overridable at runtime via the admin API.
	MaxUploadsPer30Min    int
	MaxUploadsPerDay      int
	MaxAudioMinutesPerDay int
	MaxDuplicateCount     int
	MinAudioDuration      time.Duration
	MaxAudioDuration      time.Duration
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminUser:     getenv("APP_ADMIN_USER", "admin"),
		AdminPassword: getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:   os.Getenv("APP_DATABASE_URL"),
		ListenAddr:    getenv("APP_LISTEN_ADDR", ":8080"),
		RetentionDays: 30,
		SweepInterval: 24 * time.Hour,
		UploadKey:     getenv("APP_UPLOAD_KEY", ""),

		MaxUploadsPer30Min:    3,
		MaxUploadsPerDay:      10,
		MaxAudioMinutesPerDay: 30,
		MaxDuplicateCount:     3,
		MinAudioDuration:      5 * time.Second,
		MaxAudioDuration:      10 * time.Minute,
	}

	if v := os.Getenv("APP_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}
	if v := os.Getenv("APP_SWEEP_INTERVAL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.SweepInterval = time.Duration(hours) * time.Hour
		}
	}

	if v := os.Getenv("APP_MAX_UPLOADS_PER_30MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxUploadsPer30Min = n
		}
	}
	if v := os.Getenv("APP_MAX_UPLOADS_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxUploadsPerDay = n
		}
	}
	if v := os.Getenv("APP_MAX_AUDIO_MINUTES_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAudioMinutesPerDay = n
		}
	}
	if v := os.Getenv("APP_MAX_DUPLICATE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxDuplicateCount = n
		}
	}
	if v := os.Getenv("APP_MIN_AUDIO_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinAudioDuration = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("APP_MAX_AUDIO_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAudioDuration = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
