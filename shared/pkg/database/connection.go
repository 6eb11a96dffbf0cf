package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const healthCheckTimeout = 2 * time.Second

type DB struct {
	*gorm.DB
}

// ConnectionConfig sizes the pool for one caller. Zero values leave the driver defaults.
type ConnectionConfig struct {
	IsDevelopment   bool
	Silent          bool
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ServiceName     string
}

// Open connects through any gorm dialector, applies the pool settings and pings.
// Timestamps written through gorm are always UTC.
func Open(dialector gorm.Dialector, config ConnectionConfig) (*DB, error) {
	logLevel := logger.Error
	switch {
	case config.Silent:
		logLevel = logger.Silent
	case config.IsDevelopment:
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	conn := &DB{db}
	if err := conn.HealthCheck(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"service":        config.ServiceName,
		"dialect":        dialector.Name(),
		"max_open_conns": config.MaxOpenConns,
	}).Info("Database connection established")

	return conn, nil
}

// NewPredictionServiceConnection opens the pool used by the pick engine. Pick generation
// prefetches everything up front, so the pool stays small.
func NewPredictionServiceConnection(databaseURL string, isDevelopment bool) (*DB, error) {
	return Open(postgres.Open(databaseURL), ConnectionConfig{
		IsDevelopment:   isDevelopment,
		MaxIdleConns:    5,
		MaxOpenConns:    20,
		ConnMaxLifetime: time.Hour,
		ServiceName:     "prediction-service",
	})
}

// NewBacktestConnection opens a short-lived read pool for the offline backtest CLI
func NewBacktestConnection(databaseURL string) (*DB, error) {
	return Open(postgres.Open(databaseURL), ConnectionConfig{
		MaxIdleConns:    2,
		MaxOpenConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ServiceName:     "backtest",
	})
}

// Wrap adapts an already-open gorm handle
func Wrap(db *gorm.DB) *DB {
	return &DB{db}
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) HealthCheck() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
