// Package gormdb implements repository.DetectionRepository on top of gorm.
package gormdb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"imagedetect/internal/config"
	"imagedetect/internal/logger"
	"imagedetect/internal/models"
	"imagedetect/internal/repository"
)

// slowQueryThreshold is the duration after which a statement is logged as slow.
const slowQueryThreshold = 200 * time.Millisecond

// Store is a gorm-backed detection repository.
type Store struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

var _ repository.DetectionRepository = (*Store)(nil)

// Open connects to the store selected by cfg.DBDriver. Connectivity is not
// verified here; a server that is down surfaces on the first operation.
func Open(cfg *config.Config, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}

	var (
		dialector gorm.Dialector
		err       error
	)
	switch cfg.DBDriver {
	case config.DriverMySQL:
		dialector = mysqlDialector(cfg)
	case config.DriverPostgres:
		dialector = postgresDialector(cfg)
	case config.DriverSQLite:
		dialector, err = sqliteDialector(cfg.SQLitePath)
	default:
		err = fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s store: %w", cfg.DBDriver, err)
	}

	return New(cfg.DBDriver, dialector, log)
}

// New opens a store on an explicit dialector.
func New(driver string, dialector gorm.Dialector, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	storeLog := log.With("module", "store", "driver", driver)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.NewGormLogger(storeLog, slowQueryThreshold),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	return &Store{db: db, driver: driver, log: storeLog}, nil
}

// InitializeSchema creates the detection_results table if it does not exist.
func (s *Store) InitializeSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.DetectionRecord{}); err != nil {
		return fmt.Errorf("%w: failed to auto-migrate %s database: %w", repository.ErrPersistence, s.driver, err)
	}
	s.log.Info("detection_results table ready")
	return nil
}

// Save inserts rec inside a transaction. The transaction is rolled back on
// any failure.
func (s *Store) Save(ctx context.Context, rec *models.DetectionRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("%w: failed to save detection record: %w", repository.ErrPersistence, err)
	}
	return nil
}

// QueryRecent returns up to limit records ordered by timestamp, newest first.
func (s *Store) QueryRecent(ctx context.Context, limit int) ([]models.DetectionRecord, error) {
	var records []models.DetectionRecord
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(repository.NormalizeLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query detection records: %w", repository.ErrPersistence, err)
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.driver, err)
	}
	return nil
}
