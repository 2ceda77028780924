// Package database owns the canonical relational store: connection setup,
// row models and the JSON column codec used for nested collections.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects and tunes the database backend.
type Config struct {
	Type         string        `yaml:"type"`
	URL          string        `yaml:"url"`
	Path         string        `yaml:"path"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogQueries   bool          `yaml:"log_queries"`
}

// Connect opens the configured database and migrates the schema.
func Connect(cfg Config) (*gorm.DB, error) {
	logMode := gormlogger.Silent
	if cfg.LogQueries {
		logMode = gormlogger.Info
	}
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(logMode)}

	var db *gorm.DB
	var err error
	switch cfg.Type {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "music-assistant.db"
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.URL), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectTest opens an in-memory sqlite database for tests.
func ConnectTest() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ArtistRow{},
		&AlbumRow{},
		&TrackRow{},
		&PlaylistRow{},
		&RadioRow{},
		&AudiobookRow{},
		&PodcastRow{},
		&ProviderMappingRow{},
		&TrackLoudness{},
	)
}

// NowUnix returns the current time as unix seconds, the timestamp format
// used across all tables.
func NowUnix() int64 {
	return time.Now().Unix()
}
