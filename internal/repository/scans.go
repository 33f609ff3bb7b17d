package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dpazeto/scanform/internal/extract"
)

// Scan sources.
const (
	SourceLive  = "live"
	SourceImage = "image"
)

// Scan is one processed payload in the history log. Text is the
// sanitized form, never the raw decoder output.
type Scan struct {
	ID        uuid.UUID      `json:"id"`
	Source    string         `json:"source"`
	Text      string         `json:"text"`
	Fields    extract.Fields `json:"fields"`
	DecodedAt time.Time      `json:"decoded_at"`
}

type ScanRepository interface {
	Record(ctx context.Context, scan *Scan) error
	ListScans(ctx context.Context, limit int) ([]*Scan, error)
}

type scanRepository struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

const scansSchema = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	text TEXT NOT NULL,
	fields TEXT NOT NULL,
	decoded_at BIGINT NOT NULL
)`

// NewScanRepository ensures the schema and returns the history log.
func NewScanRepository(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) (ScanRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, scansSchema); err != nil {
		return nil, fmt.Errorf("ensure scans table: %w", err)
	}
	return &scanRepository{db: db, driver: driver, logger: logger}, nil
}

func (r *scanRepository) Record(ctx context.Context, scan *Scan) error {
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.DecodedAt.IsZero() {
		scan.DecodedAt = time.Now().UTC()
	}

	fields, err := json.Marshal(scan.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := rebind(r.driver, `INSERT INTO scans (id, source, text, fields, decoded_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		scan.ID.String(), scan.Source, scan.Text, string(fields), scan.DecodedAt.UTC().UnixMilli()); err != nil {
		r.logger.Error("failed to record scan", "scan_id", scan.ID, "error", err)
		return err
	}
	r.logger.Debug("scan recorded", "scan_id", scan.ID, "source", scan.Source)
	return nil
}

func (r *scanRepository) ListScans(ctx context.Context, limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = 100
	}

	query := rebind(r.driver, `SELECT id, source, text, fields, decoded_at FROM scans ORDER BY decoded_at DESC LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("failed to list scans", "error", err)
		return nil, err
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		var (
			s      Scan
			id     string
			fields string
			millis int64
		)
		if err := rows.Scan(&id, &s.Source, &s.Text, &fields, &millis); err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt scan id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(fields), &s.Fields); err != nil {
			return nil, fmt.Errorf("corrupt fields for scan %s: %w", id, err)
		}
		s.DecodedAt = time.UnixMilli(millis).UTC()
		scans = append(scans, &s)
	}
	return scans, rows.Err()
}
