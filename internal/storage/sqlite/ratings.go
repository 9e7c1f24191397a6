package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/pkg/logger"
	_ "modernc.org/sqlite"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

// RatingStorage persists the latest rating per airport so a restart can show
// the last known map state until the first fetch completes. Only the newest
// record per airport is kept; there is no history table.
type RatingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRatingStorage opens (or creates) the ratings database at the given path.
func NewRatingStorage(dbPath string, log *logger.Logger) (*RatingStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &RatingStorage{
		db:     db,
		logger: storageLogger,
	}

	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// Close closes the database connection
func (s *RatingStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDB initializes the database tables
func (s *RatingStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ratings (
			airport TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			source TEXT NOT NULL,
			diagnostics TEXT,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ratings table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_ratings_category ON ratings(category)`)
	if err != nil {
		return fmt.Errorf("failed to create category index: %w", err)
	}

	return nil
}

// StoreCycle upserts every record of a completed cycle in one transaction.
func (s *RatingStorage) StoreCycle(cycle *metar.Cycle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ratings (airport, category, source, diagnostics, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(airport) DO UPDATE SET
			category = excluded.category,
			source = excluded.source,
			diagnostics = excluded.diagnostics,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := cycle.StartedAt.UTC().Format(time.RFC3339)
	for _, record := range cycle.Records {
		var diagnostics []byte
		if len(record.Diagnostics) > 0 {
			diagnostics, err = json.Marshal(record.Diagnostics)
			if err != nil {
				return fmt.Errorf("failed to marshal diagnostics for %s: %w", record.Airport, err)
			}
		}
		if _, err := stmt.Exec(
			record.Airport,
			string(record.Category),
			string(record.Source),
			string(diagnostics),
			updatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert rating for %s: %w", record.Airport, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ratings: %w", err)
	}

	s.logger.Debug("Stored rating snapshot",
		logger.Int("airports", len(cycle.Records)))
	return nil
}

// PublishCycle satisfies the ingestion service's sink interface: persistence
// failures are logged, never surfaced into the cycle.
func (s *RatingStorage) PublishCycle(cycle *metar.Cycle) {
	if err := s.StoreCycle(cycle); err != nil {
		s.logger.Error("Failed to persist rating snapshot", Error(err))
	}
}

// GetAll returns the persisted snapshot: the latest record per airport plus
// the timestamp of the most recent update.
func (s *RatingStorage) GetAll() (map[string]metar.RatingRecord, time.Time, error) {
	rows, err := s.db.Query(`SELECT airport, category, source, diagnostics, updated_at FROM ratings`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	records := make(map[string]metar.RatingRecord)
	var newest time.Time
	for rows.Next() {
		var record metar.RatingRecord
		var category, source, updatedAt string
		var diagnostics sql.NullString

		if err := rows.Scan(&record.Airport, &category, &source, &diagnostics, &updatedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan rating: %w", err)
		}
		record.Category = metar.Category(category)
		record.Source = metar.Source(source)
		if diagnostics.Valid && diagnostics.String != "" {
			if err := json.Unmarshal([]byte(diagnostics.String), &record.Diagnostics); err != nil {
				s.logger.Error("Failed to parse stored diagnostics",
					Error(err),
					String("airport", record.Airport))
			}
		}
		if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil && ts.After(newest) {
			newest = ts
		}
		records[record.Airport] = record
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read ratings: %w", err)
	}

	return records, newest, nil
}
