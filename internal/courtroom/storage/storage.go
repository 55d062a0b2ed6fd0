// Package storage defines the persistence boundary for courtroom
// sessions. Implementations live in subpackages; the coordinator only
// sees this interface.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a session record was not found.
var ErrNotFound = errors.New("session not found")

// SessionRecord is the persisted representation of one courtroom
// session. Phase and Outcome use their stable string labels. The live
// settlement timer handle is process-local and deliberately absent; a
// recovered record with an open settlement request is treated as
// expired.
type SessionRecord struct {
	ID        string
	CoupleID  string
	CreatorID string
	PartnerID string

	Phase   string
	Outcome string

	EvidenceJSON    string
	Analysis        string
	ResolutionsJSON string
	ReadyJSON       string
	VerdictJSON     string

	SettlementRequestedBy string
	SettlementRequestedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists courtroom session records.
type Store interface {
	// PutSession inserts or replaces one session record.
	PutSession(ctx context.Context, record SessionRecord) error
	// GetSession loads one session record by id, or ErrNotFound.
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	// ListOpenSessions returns every session without a final outcome.
	ListOpenSessions(ctx context.Context) ([]SessionRecord, error)
	// Close releases the underlying storage handle.
	Close() error
}
