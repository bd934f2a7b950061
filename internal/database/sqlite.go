package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hdnotes/hdnotes/backend/internal/notes"
	"github.com/hdnotes/hdnotes/backend/internal/otp"
	"github.com/hdnotes/hdnotes/backend/internal/users"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// The single-connection pool serializes writes, which also serializes the
// OTP verifier's read-then-delete critical section.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&users.User{}, &otp.Record{}, &notes.Note{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
