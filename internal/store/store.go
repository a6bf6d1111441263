package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/dataset"
)

// Store keeps well segments in PostgreSQL so a reference table can be
// rebuilt without the original dataset file.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// insertBatchSize keeps each INSERT well below the 65535 bind parameter limit.
const insertBatchSize = 1000

var insertColumns = []string{"item", "nome", "fase", "tipo", "lda", "dn", "metragem", "nfases"}

const schema = `
CREATE TABLE IF NOT EXISTS well_segments (
	id         BIGSERIAL PRIMARY KEY,
	item       TEXT NOT NULL UNIQUE,
	nome       TEXT NOT NULL,
	fase       DOUBLE PRECISION NOT NULL,
	tipo       TEXT NOT NULL,
	lda        DOUBLE PRECISION NOT NULL,
	dn         TEXT NOT NULL,
	metragem   DOUBLE PRECISION NOT NULL,
	nfases     DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewStore connects to PostgreSQL and configures the connection pool
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	logger.Info("Segment store connected",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return &Store{db: db, logger: logger}, nil
}

// EnsureSchema creates the well_segments table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// BatchInsert stores records, skipping items that already exist
func (s *Store) BatchInsert(ctx context.Context, records []dataset.RawRecord) (*BatchInsertResult, error) {
	start := time.Now()
	result := &BatchInsertResult{}

	for from := 0; from < len(records); from += insertBatchSize {
		to := from + insertBatchSize
		if to > len(records) {
			to = len(records)
		}
		batch := records[from:to]

		query, args := buildInsertQuery(batch)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			result.Failed += int64(len(records) - from)
			result.Duration = time.Since(start)
			s.logger.Error("Batch insert failed", zap.Error(err), zap.Int("offset", from))
			return result, fmt.Errorf("batch insert failed: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			s.logger.Warn("Could not get rows affected", zap.Error(err))
			inserted = int64(len(batch))
		}
		result.Inserted += inserted
		result.Duplicates += int64(len(batch)) - inserted
	}

	result.Duration = time.Since(start)
	s.logger.Info("Batch insert completed",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates_skipped", result.Duplicates),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// LoadRecords returns every stored segment in insertion order
func (s *Store) LoadRecords(ctx context.Context) ([]dataset.RawRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM well_segments ORDER BY id", strings.Join(insertColumns, ", "))

	var records []dataset.RawRecord
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}

	s.logger.Debug("Segments loaded", zap.Int("rows", len(records)))
	return records, nil
}

// GetStats returns table statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(DISTINCT nome) AS names,
			COUNT(CASE WHEN UPPER(TRIM(tipo)) = 'VERTICAL' THEN 1 END) AS vertical,
			COUNT(CASE WHEN UPPER(TRIM(tipo)) = 'HORIZONTAL' THEN 1 END) AS horizontal
		FROM well_segments`

	if err := s.db.GetContext(ctx, stats, query); err != nil {
		return nil, fmt.Errorf("failed to get segment stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// buildInsertQuery renders a multi-row insert for records
func buildInsertQuery(records []dataset.RawRecord) (string, []interface{}) {
	n := len(insertColumns)
	valueStrings := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*n)

	for i, r := range records {
		placeholders := make([]string, n)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*n+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, r.Item, r.Nome, r.Fase, r.Tipo, r.Lda, r.Dn, r.Metragem, r.Nfases)
	}

	query := fmt.Sprintf(`INSERT INTO well_segments (%s) VALUES %s ON CONFLICT (item) DO NOTHING`,
		strings.Join(insertColumns, ", "),
		strings.Join(valueStrings, ", "))

	return query, args
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
