package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"VibingStorage/config"
	"VibingStorage/logger"
	"VibingStorage/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrPoolClosed is returned by Ping after Close. Statements issued through
// DB or Transaction after Close fail with the driver's closed-database error.
var ErrPoolClosed = errors.New("connection pool is closed")

// Pool is the shared connection-pool handle. Statements go straight through
// the underlying *gorm.DB, which is safe for concurrent use; the mutex only
// guards opening and closing.
type Pool struct {
	mu     sync.Mutex
	gormDB *gorm.DB
	sqlDB  *sql.DB
	closed bool
}

// Open connects using the driver named in cfg and sizes the pool.
func Open(cfg *config.Config) (*Pool, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		return open(mysql.Open(dsn), cfg.DBMaxConns)
	case config.DriverSQLite:
		return OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// OpenSQLite opens an embedded database file. SQLite allows one writer, so
// the pool is capped at a single connection and callers queue for it.
func OpenSQLite(path string) (*Pool, error) {
	return open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), 1)
}

func open(dialector gorm.Dialector, maxConns int) (*Pool, error) {
	logMode := gormlogger.Silent
	if logger.IsDebug() {
		logMode = gormlogger.Info
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logMode),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxConns < 1 {
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("database connection pool ready",
		logger.String("dialect", dialector.Name()),
		logger.Int("maxConns", maxConns))
	return &Pool{gormDB: gormDB, sqlDB: sqlDB}, nil
}

// DB returns a session bound to ctx. Cancelling ctx aborts the statement in flight.
func (p *Pool) DB(ctx context.Context) *gorm.DB {
	return p.gormDB.WithContext(ctx)
}

// Transaction runs fn in a single transaction, committing when fn returns nil.
func (p *Pool) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return p.DB(ctx).Transaction(fn)
}

// Ping verifies a connection can be acquired.
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the catalog tables.
func (p *Pool) AutoMigrate() error {
	err := p.gormDB.AutoMigrate(&model.VibeGroup{}, &model.Vibe{}, &model.Track{}, &model.TrackVibe{})
	if err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("Models migrated successfully with GORM.")
	return nil
}

// Close releases every pooled connection. Safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sqlDB.Close()
}
