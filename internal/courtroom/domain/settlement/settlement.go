// Package settlement implements the mutual short-circuit negotiation
// nested inside the early courtroom phases: one participant proposes a
// settlement, the other accepts or declines, and an expiry timer clears
// abandoned proposals.
//
// Every exit path from the "request open" state (accept, decline,
// expiry, re-request) stops and clears the session's timer handle, so
// at most one live timer exists per session and no timer fires after
// its request has been resolved.
package settlement

import (
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/domain/phase"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/session"
	apperrors "github.com/adjourn-app/courtroom/internal/platform/errors"
)

// DefaultTimeout is how long a settlement proposal stays open before it
// expires.
const DefaultTimeout = 5 * time.Minute

var (
	// ErrInvalidPhase indicates a settlement action outside EVIDENCE or ANALYZING.
	ErrInvalidPhase = apperrors.New(apperrors.CodeSettlementInvalidPhase, "Settlement only allowed during EVIDENCE or ANALYZING")
	// ErrNonePending indicates accept/decline with no open proposal.
	ErrNonePending = apperrors.New(apperrors.CodeSettlementNonePending, "No settlement request pending")
)

func selfActionError(action string) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeSettlementSelfAction,
		"Cannot "+action+" your own settlement",
		map[string]string{"Action": action},
	)
}

// Request describes an open settlement proposal, naming the partner to
// notify and the expiry deadline.
type Request struct {
	SessionID   string
	RequesterID string
	PartnerID   string
	RequestedAt time.Time
	ExpiresAt   time.Time
}

// Negotiator applies the settlement sub-protocol to a session. It is
// not safe for concurrent use on its own; callers serialize all
// mutations of one session (see the coordinator).
type Negotiator struct {
	timeout  time.Duration
	clock    func() time.Time
	schedule func(time.Duration, func()) *time.Timer
}

// NewNegotiator constructs a negotiator. A zero timeout falls back to
// DefaultTimeout; nil clock and schedule fall back to the real clock
// and time.AfterFunc.
func NewNegotiator(timeout time.Duration, clock func() time.Time, schedule func(time.Duration, func()) *time.Timer) *Negotiator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	if schedule == nil {
		schedule = time.AfterFunc
	}
	return &Negotiator{
		timeout:  timeout,
		clock:    clock,
		schedule: schedule,
	}
}

// Timeout returns the configured proposal lifetime.
func (n *Negotiator) Timeout() time.Duration {
	return n.timeout
}

// Request opens a settlement proposal from requesterID. Allowed only
// while the session is in EVIDENCE or ANALYZING. Any previously
// scheduled timer is stopped before the new one is scheduled, so a
// re-request never leaves two live timers. onTimeout fires once the
// proposal expires unresolved.
func (n *Negotiator) Request(sess *session.Session, requesterID string, onTimeout func()) (Request, error) {
	if sess == nil {
		return Request{}, ErrNonePending
	}
	if !phase.IsActionAllowed(phase.ActionRequestSettlement, sess.Phase) {
		return Request{}, ErrInvalidPhase
	}

	stopTimer(sess)

	requestedAt := n.clock().UTC()
	sess.SettlementRequestedBy = requesterID
	sess.SettlementRequestedAt = &requestedAt
	sess.SettlementTimer = n.schedule(n.timeout, onTimeout)

	return Request{
		SessionID:   sess.ID,
		RequesterID: requesterID,
		PartnerID:   sess.OtherParticipant(requesterID),
		RequestedAt: requestedAt,
		ExpiresAt:   requestedAt.Add(n.timeout),
	}, nil
}

// Accept resolves the open proposal in favor of settling. Only the
// participant opposite the requester may accept. The timer is stopped
// and cleared; deciding what settling means for the session (closing
// it, recording the outcome) is the coordinator's job.
func (n *Negotiator) Accept(sess *session.Session, accepterID string) (string, error) {
	if sess == nil || sess.SettlementRequestedBy == "" {
		return "", ErrNonePending
	}
	if accepterID == sess.SettlementRequestedBy {
		return "", selfActionError("accept")
	}

	stopTimer(sess)
	return sess.SettlementRequestedBy, nil
}

// Decline rejects the open proposal and clears all settlement state.
// Returns the original requester's id so the caller can notify them.
func (n *Negotiator) Decline(sess *session.Session, declinerID string) (string, error) {
	if sess == nil || sess.SettlementRequestedBy == "" {
		return "", ErrNonePending
	}
	if declinerID == sess.SettlementRequestedBy {
		return "", selfActionError("decline")
	}

	requesterID := sess.SettlementRequestedBy
	clearRequest(sess)
	return requesterID, nil
}

// HandleTimeout is invoked by the scheduled expiry callback. It clears
// the settlement state and returns true only if the session still has
// an open proposal from expectedRequesterID; a stale timer firing after
// the proposal was accepted, declined, or re-requested finds a
// different requester (or none) and leaves state untouched. A nil
// session returns false.
func (n *Negotiator) HandleTimeout(sess *session.Session, expectedRequesterID string) bool {
	if sess == nil {
		return false
	}
	if sess.SettlementRequestedBy == "" || sess.SettlementRequestedBy != expectedRequesterID {
		return false
	}

	clearRequest(sess)
	return true
}

// ClearRequest clears any open proposal and its timer without resolving
// it, e.g. when a session recovered from storage carries a stale open
// request whose timer handle died with the previous process.
func ClearRequest(sess *session.Session) {
	if sess == nil {
		return
	}
	clearRequest(sess)
}

func clearRequest(sess *session.Session) {
	stopTimer(sess)
	sess.SettlementRequestedBy = ""
	sess.SettlementRequestedAt = nil
}

// stopTimer stops the live timer, if any, and nulls the handle. A
// timer that already fired returns false from Stop; that is fine, the
// stale fire is guarded by HandleTimeout's requester check.
func stopTimer(sess *session.Session) {
	if sess.SettlementTimer == nil {
		return
	}
	sess.SettlementTimer.Stop()
	sess.SettlementTimer = nil
}
