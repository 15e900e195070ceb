package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"audiogate/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the core tables.
	if err := db.AutoMigrate(&Track{}, &User{}, &UploadKey{}, &KVEntry{}, &ModerationAction{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapAdmin makes sure there is at least one admin user
// corresponding to the bootstrap credentials in config. If a user with
// that username already exists, it is left as-is.
func EnsureBootstrapAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("username = ?", cfg.AdminUser).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &User{
		Username:     cfg.AdminUser,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}

	return db.Create(admin).Error
}

// EnsureBootstrapUploadKey ensures the bootstrap admin user owns an
// upload key matching APP_UPLOAD_KEY from config, so the posting client
// can authenticate out of the box. If the key already exists but is
// owned by a different user, it will be reassigned to admin.
func EnsureBootstrapUploadKey(db *gorm.DB, cfg *config.Config) error {
	if cfg.UploadKey == "" {
		return nil
	}

	var admin User
	if err := db.Where("username = ?", cfg.AdminUser).First(&admin).Error; err != nil {
		return err
	}

	// Check if the key already exists (use Find so "not found" doesn't log as error).
	var existing UploadKey
	if err := db.Where("key = ?", cfg.UploadKey).Limit(1).Find(&existing).Error; err == nil && existing.ID != 0 {
		if existing.UserID != admin.ID {
			existing.UserID = admin.ID
			existing.Name = "bootstrap-client"
			existing.Active = true
			return db.Save(&existing).Error
		}
		return nil
	}

	key := &UploadKey{
		UserID: admin.ID,
		Name:   "bootstrap-client",
		Key:    cfg.UploadKey,
		Active: true,
	}

	return db.Create(key).Error
}
