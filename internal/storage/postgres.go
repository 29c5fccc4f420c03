/**
 * PostgreSQL Client for the Waybill Worker
 *
 * Owns the connection pool, the schema and the extraction model registry.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adverant/nexus/waybill-worker/internal/config"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// ExtractionModel is a persisted extraction model row
type ExtractionModel struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
}

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS waybill;

CREATE TABLE IF NOT EXISTS waybill.extraction_models (
	id          BIGSERIAL PRIMARY KEY,
	name        VARCHAR(100) NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS waybill.waybill_images (
	id                  BIGSERIAL PRIMARY KEY,
	filename            TEXT NOT NULL,
	mime_type           TEXT NOT NULL DEFAULT 'application/octet-stream',
	image               BYTEA NOT NULL,
	uploaded_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed           BOOLEAN NOT NULL DEFAULT FALSE,
	extraction_model_id BIGINT REFERENCES waybill.extraction_models(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS waybill.extracted_data (
	id               BIGSERIAL PRIMARY KEY,
	waybill_image_id BIGINT NOT NULL UNIQUE REFERENCES waybill.waybill_images(id) ON DELETE CASCADE,
	extracted_data   JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// Migrate creates the waybill schema if it does not exist
func (p *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// EnsureExtractionModels inserts catalog models that are missing and
// refreshes description and active flag of existing ones
func (p *PostgresClient) EnsureExtractionModels(ctx context.Context, models []config.ExtractionModel) error {
	query := `
		INSERT INTO waybill.extraction_models (name, description, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active
	`

	for _, m := range models {
		if _, err := p.db.ExecContext(ctx, query, m.Name, m.Description, m.Active); err != nil {
			return fmt.Errorf("failed to upsert extraction model %q: %w", m.Name, err)
		}
	}
	return nil
}

// ListExtractionModels returns all models ordered by id
func (p *PostgresClient) ListExtractionModels(ctx context.Context) ([]*ExtractionModel, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM waybill.extraction_models
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction models: %w", err)
	}
	defer rows.Close()

	var models []*ExtractionModel
	for rows.Next() {
		m := &ExtractionModel{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan extraction model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// GetExtractionModelByName looks a model up case-insensitively
func (p *PostgresClient) GetExtractionModelByName(ctx context.Context, name string) (*ExtractionModel, error) {
	m := &ExtractionModel{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM waybill.extraction_models
		WHERE LOWER(name) = LOWER($1)
	`, name).Scan(&m.ID, &m.Name, &m.Description, &m.IsActive, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction model not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction model: %w", err)
	}
	return m, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
