// Package grants reads the platform's screen-capture permission records.
// On macOS that is the per-user TCC database; an entry there means an app
// has been authorized to capture the screen and can do so again without a
// prompt. Access is strictly read-only.
package grants

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const screenCaptureService = "kTCCServiceScreenCapture"

// authAllowed is the auth_value TCC stores for a granted permission.
const authAllowed = 2

// accessRow maps the TCC access table. Only the columns we read are bound.
type accessRow struct {
	Service   string `gorm:"column:service"`
	Client    string `gorm:"column:client"`
	AuthValue int    `gorm:"column:auth_value"`
}

func (accessRow) TableName() string { return "access" }

// Store is a read-only handle on a capture-grant database.
type Store struct {
	db *gorm.DB
}

// DefaultPath returns the per-user TCC database location.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "com.apple.TCC", "TCC.db")
}

// Open opens the grant database at path read-only. The file may be absent
// (fresh install) or locked down by SIP; both surface as errors the caller
// treats as "capability unavailable".
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "grant database not accessible")
	}

	dsn := "file:" + path + "?mode=ro&_query_only=true"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open grant database")
	}
	return &Store{db: db}, nil
}

// ScreenCaptureClients returns the identifiers of all clients holding an
// active screen-capture grant.
func (s *Store) ScreenCaptureClients(ctx context.Context) ([]string, error) {
	var rows []accessRow
	err := s.db.WithContext(ctx).
		Where("service = ? AND auth_value = ?", screenCaptureService, authAllowed).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "grant query failed")
	}

	clients := make([]string, 0, len(rows))
	for _, r := range rows {
		clients = append(clients, r.Client)
	}
	return clients, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to resolve connection")
	}
	return sqlDB.Close()
}
