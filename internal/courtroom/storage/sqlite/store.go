// Package sqlite provides SQLite-backed persistence for courtroom
// session records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/storage"
	"github.com/adjourn-app/courtroom/internal/courtroom/storage/sqlite/migrations"
	"github.com/adjourn-app/courtroom/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for courtroom sessions.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a courtroom SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutSession inserts or replaces one session record.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	var requestedBy sql.NullString
	if record.SettlementRequestedBy != "" {
		requestedBy = sql.NullString{String: record.SettlementRequestedBy, Valid: true}
	}
	var requestedAt sql.NullInt64
	if record.SettlementRequestedAt != nil {
		requestedAt = sql.NullInt64{Int64: toMillis(*record.SettlementRequestedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (
    id, couple_id, creator_id, partner_id, phase, outcome,
    evidence_json, analysis, resolutions_json, ready_json, verdict_json,
    settlement_requested_by, settlement_requested_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    couple_id = excluded.couple_id,
    creator_id = excluded.creator_id,
    partner_id = excluded.partner_id,
    phase = excluded.phase,
    outcome = excluded.outcome,
    evidence_json = excluded.evidence_json,
    analysis = excluded.analysis,
    resolutions_json = excluded.resolutions_json,
    ready_json = excluded.ready_json,
    verdict_json = excluded.verdict_json,
    settlement_requested_by = excluded.settlement_requested_by,
    settlement_requested_at = excluded.settlement_requested_at,
    updated_at = excluded.updated_at
`,
		record.ID, record.CoupleID, record.CreatorID, record.PartnerID,
		record.Phase, record.Outcome,
		record.EvidenceJSON, record.Analysis, record.ResolutionsJSON,
		record.ReadyJSON, record.VerdictJSON,
		requestedBy, requestedAt,
		toMillis(record.CreatedAt), toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession loads one session record by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, couple_id, creator_id, partner_id, phase, outcome,
    evidence_json, analysis, resolutions_json, ready_json, verdict_json,
    settlement_requested_by, settlement_requested_at, created_at, updated_at
FROM sessions WHERE id = ?
`, id)

	record, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// ListOpenSessions returns every session without a final outcome.
func (s *Store) ListOpenSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, couple_id, creator_id, partner_id, phase, outcome,
    evidence_json, analysis, resolutions_json, ready_json, verdict_json,
    settlement_requested_by, settlement_requested_at, created_at, updated_at
FROM sessions WHERE outcome = 'NONE' ORDER BY created_at
`)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []storage.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan open session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open sessions: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var requestedBy sql.NullString
	var requestedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&record.ID, &record.CoupleID, &record.CreatorID, &record.PartnerID,
		&record.Phase, &record.Outcome,
		&record.EvidenceJSON, &record.Analysis, &record.ResolutionsJSON,
		&record.ReadyJSON, &record.VerdictJSON,
		&requestedBy, &requestedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return storage.SessionRecord{}, err
	}

	if requestedBy.Valid {
		record.SettlementRequestedBy = requestedBy.String
	}
	if requestedAt.Valid {
		at := fromMillis(requestedAt.Int64)
		record.SettlementRequestedAt = &at
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
