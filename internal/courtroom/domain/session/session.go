// Package session defines the CourtSession aggregate: the single shared
// mutable record of one two-party dispute-resolution workflow.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/domain/phase"
	apperrors "github.com/adjourn-app/courtroom/internal/platform/errors"
	"github.com/adjourn-app/courtroom/internal/platform/id"
)

var (
	// ErrEmptyCreatorID indicates a missing creator participant ID.
	ErrEmptyCreatorID = apperrors.New(apperrors.CodeSessionCreatorRequired, "creator id is required")
	// ErrEmptyPartnerID indicates a missing partner participant ID.
	ErrEmptyPartnerID = apperrors.New(apperrors.CodeSessionPartnerRequired, "partner id is required")
	// ErrEmptyCoupleID indicates a missing couple ID.
	ErrEmptyCoupleID = apperrors.New(apperrors.CodeSessionCoupleRequired, "couple id is required")
	// ErrSameParticipant indicates creator and partner are the same user.
	ErrSameParticipant = apperrors.New(apperrors.CodeSessionSameParticipant, "creator and partner must differ")
)

// Outcome describes how a session ended.
type Outcome int

const (
	// OutcomeNone indicates the session is still open.
	OutcomeNone Outcome = iota
	// OutcomeSettled indicates the session ended through a mutual settlement.
	OutcomeSettled
	// OutcomeVerdict indicates the session ran the full sequence to a verdict.
	OutcomeVerdict
)

// Session represents one courtroom session between two linked participants.
//
// SettlementTimer is a live process-local timer handle; it is never
// persisted and must be reconstructed as expired after a restart.
type Session struct {
	ID       string
	CoupleID string
	// CreatorID and PartnerID are the two participants; they are
	// guaranteed distinct at creation time.
	CreatorID string
	PartnerID string

	Phase   phase.Phase
	Outcome Outcome

	// Evidence holds each participant's submitted evidence payload,
	// keyed by participant ID. Payload contents are opaque here.
	Evidence map[string]string
	// Analysis is the automated analysis result attached during ANALYZING.
	Analysis string
	// ResolutionChoices holds each participant's pick from the joint
	// resolution menu, keyed by participant ID.
	ResolutionChoices map[string]string
	// Ready marks per-phase readiness confirmations; cleared on every
	// phase advance.
	Ready map[string]bool
	// VerdictJSON is the generated ruling payload, empty until issued.
	VerdictJSON string

	SettlementRequestedBy string
	SettlementRequestedAt *time.Time
	SettlementTimer       *time.Timer

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateSessionInput describes the metadata needed to open a session.
type CreateSessionInput struct {
	CoupleID  string
	CreatorID string
	PartnerID string
}

// CreateSession creates a new session with a generated ID and timestamps.
// The session starts in the EVIDENCE phase.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (*Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return nil, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return &Session{
		ID:                sessionID,
		CoupleID:          normalized.CoupleID,
		CreatorID:         normalized.CreatorID,
		PartnerID:         normalized.PartnerID,
		Phase:             phase.Evidence,
		Outcome:           OutcomeNone,
		Evidence:          make(map[string]string),
		ResolutionChoices: make(map[string]string),
		Ready:             make(map[string]bool),
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}

// NormalizeCreateSessionInput trims and validates session input metadata.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	input.CoupleID = strings.TrimSpace(input.CoupleID)
	if input.CoupleID == "" {
		return CreateSessionInput{}, ErrEmptyCoupleID
	}
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	if input.CreatorID == "" {
		return CreateSessionInput{}, ErrEmptyCreatorID
	}
	input.PartnerID = strings.TrimSpace(input.PartnerID)
	if input.PartnerID == "" {
		return CreateSessionInput{}, ErrEmptyPartnerID
	}
	if input.CreatorID == input.PartnerID {
		return CreateSessionInput{}, ErrSameParticipant
	}
	return input, nil
}

// IsParticipant reports whether userID is one of the two participants.
func (s *Session) IsParticipant(userID string) bool {
	return userID != "" && (userID == s.CreatorID || userID == s.PartnerID)
}

// OtherParticipant returns the participant opposite userID, or empty
// when userID is not a participant.
func (s *Session) OtherParticipant(userID string) string {
	switch userID {
	case s.CreatorID:
		return s.PartnerID
	case s.PartnerID:
		return s.CreatorID
	default:
		return ""
	}
}

// Closed reports whether the session reached a final outcome.
func (s *Session) Closed() bool {
	return s.Outcome != OutcomeNone
}

// OutcomeLabel returns the string label for an outcome.
func OutcomeLabel(outcome Outcome) string {
	switch outcome {
	case OutcomeSettled:
		return "SETTLED"
	case OutcomeVerdict:
		return "VERDICT"
	default:
		return "NONE"
	}
}

// OutcomeFromLabel converts an outcome label to an Outcome value.
func OutcomeFromLabel(label string) Outcome {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "SETTLED":
		return OutcomeSettled
	case "VERDICT":
		return OutcomeVerdict
	default:
		return OutcomeNone
	}
}
