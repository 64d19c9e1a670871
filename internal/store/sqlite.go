package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements FarmerRepository using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets readers proceed while the completion handler writes.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger.Named("store")}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS farmers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		farm_location TEXT NOT NULL,
		primary_crops TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		session_id TEXT,
		session_instance TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_farmers_instance ON farmers(session_instance) WHERE session_instance IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_farmers_session ON farmers(session_id);
	CREATE INDEX IF NOT EXISTS idx_farmers_phone ON farmers(phone_number);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", registration.ErrPersistenceUnavailable, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveFarmerRecord implements FarmerRepository.
func (s *SQLiteStore) SaveFarmerRecord(ctx context.Context, record registration.FarmerRecord) (string, error) {
	insert := `
	INSERT INTO farmers (id, first_name, last_name, phone_number, farm_location, primary_crops, language, session_id, session_instance, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`

	var sessionID, instance any
	if record.SessionID != "" {
		sessionID = record.SessionID
	}
	if record.SessionInstance != "" {
		instance = record.SessionInstance
	}

	id := record.ID
	err := retryBusy(ctx, busyRetries, busyBaseDelay, s.logger, func() error {
		if _, err := s.db.ExecContext(ctx, insert,
			record.ID, record.FirstName, record.LastName, record.PhoneNumber,
			record.FarmLocation, record.PrimaryCrops, record.Language, sessionID, instance,
			record.CreatedAt.UnixMilli(),
		); err != nil {
			return err
		}
		if record.SessionInstance == "" {
			return nil
		}
		// A retried completion of the same conversation keeps the first record.
		return s.db.QueryRowContext(ctx, `SELECT id FROM farmers WHERE session_instance = ?`, record.SessionInstance).Scan(&id)
	})
	if err != nil {
		return "", fmt.Errorf("%w: save farmer: %v", registration.ErrPersistenceUnavailable, err)
	}

	s.logger.Info("farmer saved", zap.String("farmer_id", id), zap.String("session_id", record.SessionID))
	return id, nil
}

// GetFarmer implements FarmerRepository.
func (s *SQLiteStore) GetFarmer(ctx context.Context, id string) (registration.FarmerRecord, error) {
	query := `
		SELECT id, first_name, last_name, phone_number, farm_location, primary_crops,
		       language, session_id, session_instance, created_at
		FROM farmers WHERE id = ?`

	var (
		record    registration.FarmerRecord
		sessionID sql.NullString
		instance  sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.FirstName, &record.LastName, &record.PhoneNumber,
		&record.FarmLocation, &record.PrimaryCrops, &record.Language, &sessionID, &instance, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return registration.FarmerRecord{}, ErrFarmerNotFound
	}
	if err != nil {
		return registration.FarmerRecord{}, fmt.Errorf("%w: scan farmer row: %v", registration.ErrPersistenceUnavailable, err)
	}

	record.SessionID = sessionID.String
	record.SessionInstance = instance.String
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	return record, nil
}

// retryBusy runs fn, retrying SQLITE_BUSY failures with exponential backoff.
func retryBusy(ctx context.Context, attempts int, baseDelay time.Duration, logger *zap.Logger, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isBusyError(err) || i == attempts-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i)
		logger.Debug("database busy, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	if err != nil && isBusyError(err) {
		return fmt.Errorf("still busy after %d attempts: %w", attempts, err)
	}
	return err
}
