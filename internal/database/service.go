package database

import (
	"context"
	"database/sql"
	"time"

	"pms-backup/internal/errors"
	"pms-backup/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// Connector opens and closes database connections
type Connector interface {
	Connect(ctx context.Context, config DatabaseConfig) (*sql.DB, error)
	Close(db *sql.DB) error
}

// Service implements Connector against a MySQL server
type Service struct {
	logger *logging.Logger
}

// NewService creates a new database service
func NewService(logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Service{logger: logger}
}

// Connect opens a connection pool and pings the server once
func (s *Service) Connect(ctx context.Context, config DatabaseConfig) (*sql.DB, error) {
	startTime := time.Now()

	s.logger.WithFields(map[string]interface{}{
		"host":     config.Host,
		"database": config.Database,
		"port":     config.Port,
	}).Debug("Attempting database connection")

	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		s.logger.LogDatabaseConnection(config.Host, config.Database, false, time.Since(startTime), err)
		return nil, errors.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := s.TestConnection(ctx, db, config.Timeout); err != nil {
		db.Close()
		s.logger.LogDatabaseConnection(config.Host, config.Database, false, time.Since(startTime), err)
		return nil, err
	}

	s.logger.LogDatabaseConnection(config.Host, config.Database, true, time.Since(startTime), nil)
	return db, nil
}

// TestConnection verifies that the database connection is working
func (s *Service) TestConnection(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeConnection, "database connection is nil", nil)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return errors.WrapError(err, "failed to ping database")
	}

	return nil
}

// Close gracefully closes the database connection
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		return nil
	}

	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Warn("Failed to close database connection")
		return errors.WrapError(err, "failed to close database connection")
	}
	return nil
}
