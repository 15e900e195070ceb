package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "audiogate/internal/db"
)

// DB is a KV backed by the kv_entries table in Postgres. It is the
// durable implementation used by the running service.
type DB struct {
	db *gorm.DB
}

// NewDB wraps the given GORM connection as a KV.
func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

func (s *DB) Get(key string) (string, bool, error) {
	var entry dbpkg.KVEntry
	err := s.db.Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *DB) Set(key, value string) error {
	entry := dbpkg.KVEntry{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *DB) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&dbpkg.KVEntry{}).Error
}

func (s *DB) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.Model(&dbpkg.KVEntry{}).
		Where("key LIKE ?", prefix+"%").
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}
