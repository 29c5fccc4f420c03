/**
 * Storage Manager for the Waybill Worker
 *
 * Stores uploaded waybill images and their extracted documents. Writing an
 * extraction result and flagging the image as processed happen in one
 * transaction.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/errors"
)

// StorageManager coordinates waybill persistence
type StorageManager struct {
	postgres *PostgresClient
}

// WaybillImage is one uploaded waybill. Image is only loaded by
// GetWaybillImage.
type WaybillImage struct {
	ID                  int64
	Filename            string
	MimeType            string
	Image               []byte
	UploadedAt          time.Time
	Processed           bool
	ExtractionModelID   *int64
	ExtractionModelName string
}

// NewWaybillImage is the input for CreateWaybillImage
type NewWaybillImage struct {
	Filename          string
	MimeType          string
	Image             []byte
	ExtractionModelID *int64
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	return &StorageManager{postgres: postgres}, nil
}

// Postgres exposes the underlying client for schema and model operations
func (sm *StorageManager) Postgres() *PostgresClient {
	return sm.postgres
}

// CreateWaybillImage stores an uploaded image as unprocessed
func (sm *StorageManager) CreateWaybillImage(ctx context.Context, in *NewWaybillImage) (*WaybillImage, error) {
	if in == nil || len(in.Image) == 0 {
		return nil, fmt.Errorf("image data is required")
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	w := &WaybillImage{
		Filename:          in.Filename,
		MimeType:          mimeType,
		ExtractionModelID: in.ExtractionModelID,
	}

	err := sm.postgres.db.QueryRowContext(ctx, `
		INSERT INTO waybill.waybill_images (filename, mime_type, image, extraction_model_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at
	`, in.Filename, mimeType, in.Image, in.ExtractionModelID).Scan(&w.ID, &w.UploadedAt)
	if err != nil {
		return nil, errors.NewPersistenceFailedError("", "create waybill image", err)
	}

	return w, nil
}

// GetWaybillImage loads a waybill including its image bytes
func (sm *StorageManager) GetWaybillImage(ctx context.Context, id int64) (*WaybillImage, error) {
	w := &WaybillImage{}
	var modelID sql.NullInt64
	var modelName sql.NullString

	err := sm.postgres.db.QueryRowContext(ctx, `
		SELECT w.id, w.filename, w.mime_type, w.image, w.uploaded_at, w.processed,
		       w.extraction_model_id, m.name
		FROM waybill.waybill_images w
		LEFT JOIN waybill.extraction_models m ON m.id = w.extraction_model_id
		WHERE w.id = $1
	`, id).Scan(&w.ID, &w.Filename, &w.MimeType, &w.Image, &w.UploadedAt, &w.Processed, &modelID, &modelName)
	if err == sql.ErrNoRows {
		return nil, errors.NewRecordNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query waybill image: %w", err)
	}

	if modelID.Valid {
		w.ExtractionModelID = &modelID.Int64
	}
	w.ExtractionModelName = modelName.String
	return w, nil
}

// ListWaybills returns waybill metadata ordered by id. A nil ids slice
// lists every waybill; an empty non-nil slice lists none.
func (sm *StorageManager) ListWaybills(ctx context.Context, ids []int64) ([]*WaybillImage, error) {
	query := `
		SELECT w.id, w.filename, w.mime_type, w.uploaded_at, w.processed,
		       w.extraction_model_id, m.name
		FROM waybill.waybill_images w
		LEFT JOIN waybill.extraction_models m ON m.id = w.extraction_model_id
	`
	var args []interface{}
	if ids != nil {
		if len(ids) == 0 {
			return []*WaybillImage{}, nil
		}
		query += ` WHERE w.id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY w.id`

	rows, err := sm.postgres.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list waybills: %w", err)
	}
	defer rows.Close()

	waybills := []*WaybillImage{}
	for rows.Next() {
		w := &WaybillImage{}
		var modelID sql.NullInt64
		var modelName sql.NullString
		if err := rows.Scan(&w.ID, &w.Filename, &w.MimeType, &w.UploadedAt, &w.Processed, &modelID, &modelName); err != nil {
			return nil, fmt.Errorf("failed to scan waybill: %w", err)
		}
		if modelID.Valid {
			w.ExtractionModelID = &modelID.Int64
		}
		w.ExtractionModelName = modelName.String
		waybills = append(waybills, w)
	}
	return waybills, rows.Err()
}

// CompleteExtraction stores the extracted document and marks the waybill
// processed. Re-processing replaces the previous document.
func (sm *StorageManager) CompleteExtraction(ctx context.Context, waybillID int64, doc document.StructuredDocument) error {
	data, err := document.Encode(doc)
	if err != nil {
		return errors.NewPersistenceFailedError("", "encode extracted data", err)
	}

	// PostgreSQL JSONB rejects \u0000 and some control escapes
	data = sanitizeJSONForPostgres(data)

	tx, err := sm.postgres.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceFailedError("", "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO waybill.extracted_data (waybill_image_id, extracted_data)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (waybill_image_id) DO UPDATE SET
			extracted_data = EXCLUDED.extracted_data,
			updated_at = NOW()
	`, waybillID, string(data)); err != nil {
		return errors.NewPersistenceFailedError("", "save extracted data", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE waybill.waybill_images SET processed = TRUE WHERE id = $1`, waybillID)
	if err != nil {
		return errors.NewPersistenceFailedError("", "mark waybill processed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewRecordNotFoundError(waybillID)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceFailedError("", "commit extraction", err)
	}
	return nil
}

// GetExtractedData returns the stored document of a waybill, or nil when
// extraction never completed
func (sm *StorageManager) GetExtractedData(ctx context.Context, waybillID int64) (document.StructuredDocument, error) {
	var data []byte
	err := sm.postgres.db.QueryRowContext(ctx, `
		SELECT extracted_data FROM waybill.extracted_data WHERE waybill_image_id = $1
	`, waybillID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query extracted data: %w", err)
	}
	return document.Decode(data)
}

// DeleteWaybillImage removes a waybill and, by cascade, its extracted data
func (sm *StorageManager) DeleteWaybillImage(ctx context.Context, id int64) error {
	if _, err := sm.postgres.db.ExecContext(ctx, `DELETE FROM waybill.waybill_images WHERE id = $1`, id); err != nil {
		return errors.NewPersistenceFailedError("", "delete waybill image", err)
	}
	return nil
}

// GetStats returns connection pool statistics
func (sm *StorageManager) GetStats() map[string]interface{} {
	pgStats := sm.postgres.GetStats()
	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

// sanitizeJSONForPostgres removes \u0000 escapes and replaces the other
// control character escapes (\u0001-\u001f) with a space. Escaped
// backslashes are copied as a pair, so text that contains a literal
// "\u00XX" is left alone.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	out := make([]byte, 0, len(jsonBytes))
	for i := 0; i < len(jsonBytes); i++ {
		c := jsonBytes[i]
		if c != '\\' || i+1 >= len(jsonBytes) {
			out = append(out, c)
			continue
		}

		if isControlEscape(jsonBytes[i:]) {
			if jsonBytes[i+5] != '0' || jsonBytes[i+4] != '0' {
				out = append(out, ' ')
			}
			i += 5
			continue
		}

		out = append(out, c, jsonBytes[i+1])
		i++
	}
	return out
}

// isControlEscape reports whether b starts with \u0000 through \u001f
func isControlEscape(b []byte) bool {
	if len(b) < 6 || b[1] != 'u' || b[2] != '0' || b[3] != '0' {
		return false
	}
	if b[4] != '0' && b[4] != '1' {
		return false
	}
	c := b[5]
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
