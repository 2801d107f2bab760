// Package datastore keeps the detection history in SQLite or MySQL through GORM.
package datastore

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// Interface is the detection history used by sinks and the HTTP API.
type Interface interface {
	Save(ctx context.Context, d *Detection) error
	List(ctx context.Context, opts ListOptions) ([]Detection, error)
	Summary(ctx context.Context) ([]LabelCount, error)
	Close() error
}

// Store implements Interface on a GORM connection.
type Store struct {
	db       *gorm.DB
	location string
}

// GetLogger returns the datastore logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// Open opens or creates the SQLite database at path and migrates the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("operation", "create-database-dir").
					Build()
			}
		}
	}

	s, err := open(sqlite.Open(path), "sqlite", path)
	if err != nil {
		return nil, err
	}

	// one connection keeps ":memory:" databases shared across calls
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return s, nil
}

// OpenMySQL connects to a MySQL server and migrates the schema.
func OpenMySQL(cfg conf.MySQLSettings) (*Store, error) {
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	dsnConfig := mysql.Config{
		User:   cfg.Username,
		Passwd: cfg.Password,
		Net:    "tcp",
		Addr:   net.JoinHostPort(cfg.Host, port),
		DBName: cfg.Database,
		Params: map[string]string{
			"charset":   "utf8mb4",
			"parseTime": "True",
			"loc":       "UTC",
			"timeout":   "10s",
		},
	}

	s, err := open(gormmysql.Open(dsnConfig.FormatDSN()), "mysql", dsnConfig.Addr+"/"+cfg.Database)
	if err != nil {
		return nil, err
	}

	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return s, nil
}

// OpenFromSettings opens the backend selected by cfg.Type.
func OpenFromSettings(cfg conf.StoreSettings) (*Store, error) {
	switch cfg.Type {
	case "", conf.StoreSQLite:
		return Open(cfg.Path)
	case conf.StoreMySQL:
		return OpenMySQL(cfg.MySQL)
	default:
		return nil, errors.Newf("unsupported store type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func open(dialector gorm.Dialector, backend, location string) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), 200*time.Millisecond),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", backend, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("backend", backend).
			Build()
	}

	if err := db.AutoMigrate(&Detection{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, errors.New(fmt.Errorf("auto migration failed: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Context("backend", backend).
			Build()
	}

	GetLogger().Info("detection store opened",
		logger.String("backend", backend),
		logger.String("location", location))
	return &Store{db: db, location: location}, nil
}

// Save inserts d and fills in its ID.
func (s *Store) Save(ctx context.Context, d *Detection) error {
	start := time.Now()
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save-detection").
			Context("label", d.Label).
			Timing("save", time.Since(start)).
			Build()
	}
	return nil
}

// List returns detections newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Detection, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := s.db.WithContext(ctx).Model(&Detection{})
	if opts.Label != "" {
		q = q.Where("label = ?", opts.Label)
	}
	if !opts.Since.IsZero() {
		q = q.Where("detected_at >= ?", opts.Since)
	}

	var out []Detection
	if err := q.Order("detected_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list-detections").
			Build()
	}
	return out, nil
}

// Summary returns the detection count and the latest time per label.
func (s *Store) Summary(ctx context.Context) ([]LabelCount, error) {
	type row struct {
		Label string
		Count int64
		Last  string
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&Detection{}).
		Select("label, COUNT(*) AS count, MAX(detected_at) AS last").
		Group("label").
		Order("count DESC, label").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "summary").
			Build()
	}

	out := make([]LabelCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, LabelCount{Label: r.Label, Count: r.Count, Last: parseSQLiteTime(r.Last)})
	}
	return out, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MAX() over a datetime column comes back as text from SQLite and as an
// RFC 3339 string from MySQL.
func parseSQLiteTime(v string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ Interface = (*Store)(nil)
