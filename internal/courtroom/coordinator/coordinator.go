// Package coordinator serializes all mutations of a courtroom session
// and drives the phase sequence. Each session has exactly one entry in
// the registry, and every operation (participant calls, the settlement
// expiry callback, the verdict applier) goes through that entry's
// mutex, so no two mutations of the same session ever interleave.
//
// Persistence and notifications happen inside the lock but are
// best-effort after creation: a store or publisher failure is logged
// and never rolls back a state change that already applied. The
// in-memory session is the authority; the store exists so open
// sessions survive a restart.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/domain/phase"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/session"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/settlement"
	"github.com/adjourn-app/courtroom/internal/courtroom/notify"
	"github.com/adjourn-app/courtroom/internal/courtroom/storage"
	"github.com/adjourn-app/courtroom/internal/courtroom/verdict"
	apperrors "github.com/adjourn-app/courtroom/internal/platform/errors"
	"github.com/adjourn-app/courtroom/internal/platform/id"
	"github.com/adjourn-app/courtroom/internal/platform/timeouts"
)

// Snapshot is a read-only copy of a session handed to callers. Maps are
// cloned so the caller can never race with the coordinator, and the
// phase and outcome are rendered as their stable labels.
type Snapshot struct {
	ID                    string
	CoupleID              string
	CreatorID             string
	PartnerID             string
	Phase                 string
	Outcome               string
	Evidence              map[string]string
	Analysis              string
	ResolutionChoices     map[string]string
	Ready                 map[string]bool
	VerdictJSON           string
	SettlementRequestedBy string
	SettlementRequestedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type entry struct {
	mu              sync.Mutex
	sess            *session.Session
	verdictInFlight bool
}

// Config wires the coordinator's collaborators. Store, Negotiator and
// Publisher are required; Generator may be nil, in which case sessions
// reaching the final phase wait for a manual verdict retry once a
// generator is configured.
type Config struct {
	Store      storage.Store
	Negotiator *settlement.Negotiator
	Publisher  notify.Publisher
	Generator  verdict.Generator
	Now        func() time.Time
	NewID      func() (string, error)
}

// Coordinator owns every open session in this process.
type Coordinator struct {
	store      storage.Store
	negotiator *settlement.Negotiator
	publisher  notify.Publisher
	generator  verdict.Generator
	now        func() time.Time
	newID      func() (string, error)

	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs a coordinator from cfg, filling in the real clock and
// id generator when unset.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errors.New("coordinator requires a store")
	}
	if cfg.Negotiator == nil {
		return nil, errors.New("coordinator requires a settlement negotiator")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("coordinator requires a publisher")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Coordinator{
		store:      cfg.Store,
		negotiator: cfg.Negotiator,
		publisher:  cfg.Publisher,
		generator:  cfg.Generator,
		now:        cfg.Now,
		newID:      cfg.NewID,
		entries:    make(map[string]*entry),
	}, nil
}

// Restore loads every open session from the store into the registry.
// A recovered session with a pending settlement request has lost its
// timer, so the request is treated as expired immediately.
func (c *Coordinator) Restore(ctx context.Context) error {
	records, err := c.store.ListOpenSessions(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "list open sessions", err)
	}

	restored := 0
	for _, record := range records {
		sess, err := fromRecord(record)
		if err != nil {
			log.Printf("event=session_restore_skipped session_id=%s error=%q", record.ID, err)
			continue
		}
		if sess.SettlementRequestedBy != "" {
			settlement.ClearRequest(sess)
			sess.UpdatedAt = c.now().UTC()
			c.persist(ctx, sess)
			log.Printf("event=settlement_expired_on_restore session_id=%s", sess.ID)
		}

		c.mu.Lock()
		c.entries[sess.ID] = &entry{sess: sess}
		c.mu.Unlock()
		restored++
	}
	log.Printf("event=sessions_restored count=%d", restored)
	return nil
}

// CreateSession opens a new session in the EVIDENCE phase. Unlike later
// mutations, a store failure here fails the call: nothing exists yet to
// diverge from.
func (c *Coordinator) CreateSession(ctx context.Context, input session.CreateSessionInput) (Snapshot, error) {
	sess, err := session.CreateSession(input, c.now, c.newID)
	if err != nil {
		return Snapshot{}, err
	}

	record, err := toRecord(sess)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.store.PutSession(ctx, record); err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeUnknown, "persist new session", err)
	}

	c.mu.Lock()
	c.entries[sess.ID] = &entry{sess: sess}
	c.mu.Unlock()

	log.Printf("event=session_created session_id=%s couple_id=%s", sess.ID, sess.CoupleID)
	return snapshotOf(sess), nil
}

// GetSession returns a read-only copy of a session for a participant.
func (c *Coordinator) GetSession(ctx context.Context, sessionID, participantID string) (Snapshot, error) {
	var snap Snapshot
	err := c.withSession(sessionID, func(e *entry) error {
		if err := requireParticipant(e.sess, participantID); err != nil {
			return err
		}
		snap = snapshotOf(e.sess)
		return nil
	})
	return snap, err
}

// SubmitEvidence records one participant's evidence. Re-submitting
// replaces the earlier payload. When both participants have submitted,
// the session advances to ANALYZING.
func (c *Coordinator) SubmitEvidence(ctx context.Context, sessionID, participantID, payload string) (Snapshot, error) {
	if payload == "" {
		return Snapshot{}, apperrors.New(apperrors.CodeEvidencePayloadRequired, "Evidence payload is required")
	}
	return c.mutate(ctx, sessionID, func(e *entry) error {
		if err := requireOpenParticipantAction(e.sess, participantID, phase.ActionSubmitEvidence); err != nil {
			return err
		}
		e.sess.Evidence[participantID] = payload
		return nil
	})
}

// RecordAnalysis stores the analysis produced for the session. The
// caller is the system, not a participant, so no participant check
// applies. A non-empty analysis advances ANALYZING to PRIMING.
func (c *Coordinator) RecordAnalysis(ctx context.Context, sessionID, analysis string) (Snapshot, error) {
	if analysis == "" {
		return Snapshot{}, apperrors.New(apperrors.CodeAnalysisPayloadRequired, "Analysis payload is required")
	}
	return c.mutate(ctx, sessionID, func(e *entry) error {
		if e.sess.Closed() {
			return sessionClosedError(e.sess)
		}
		if !phase.IsActionAllowed(phase.ActionRecordAnalysis, e.sess.Phase) {
			return actionDisallowedError(e.sess, "record analysis")
		}
		e.sess.Analysis = analysis
		return nil
	})
}

// ConfirmReady marks a participant ready in the current phase. Both
// confirmations advance PRIMING to JOINT_MENU or RESOLUTION to VERDICT.
func (c *Coordinator) ConfirmReady(ctx context.Context, sessionID, participantID string) (Snapshot, error) {
	return c.mutate(ctx, sessionID, func(e *entry) error {
		if err := requireOpenParticipantAction(e.sess, participantID, phase.ActionConfirmReady); err != nil {
			return err
		}
		e.sess.Ready[participantID] = true
		return nil
	})
}

// ChooseResolution records one participant's pick from the joint menu.
// Both picks advance JOINT_MENU to RESOLUTION.
func (c *Coordinator) ChooseResolution(ctx context.Context, sessionID, participantID, option string) (Snapshot, error) {
	if option == "" {
		return Snapshot{}, apperrors.New(apperrors.CodeResolutionOptionRequired, "Resolution option is required")
	}
	return c.mutate(ctx, sessionID, func(e *entry) error {
		if err := requireOpenParticipantAction(e.sess, participantID, phase.ActionChooseResolution); err != nil {
			return err
		}
		e.sess.ResolutionChoices[participantID] = option
		return nil
	})
}

// RequestSettlement opens a settlement proposal and arms its expiry
// timer. The partner is notified; the expiry callback re-enters the
// coordinator through the session lock.
func (c *Coordinator) RequestSettlement(ctx context.Context, sessionID, requesterID string) (settlement.Request, error) {
	var request settlement.Request
	err := c.withSession(sessionID, func(e *entry) error {
		if err := requireParticipant(e.sess, requesterID); err != nil {
			return err
		}
		if e.sess.Closed() {
			return sessionClosedError(e.sess)
		}

		onTimeout := func() { c.expireSettlement(sessionID, requesterID) }
		opened, err := c.negotiator.Request(e.sess, requesterID, onTimeout)
		if err != nil {
			return err
		}
		request = opened
		e.sess.UpdatedAt = c.now().UTC()
		c.persist(ctx, e.sess)
		c.publish(ctx, notify.Event{
			SessionID:  sessionID,
			Type:       notify.EventSettlementRequested,
			Recipients: []string{opened.PartnerID},
			Payload: map[string]any{
				"requester_id": opened.RequesterID,
				"expires_at":   opened.ExpiresAt,
			},
		})
		return nil
	})
	return request, err
}

// AcceptSettlement accepts the other participant's open proposal and
// closes the session with a SETTLED outcome.
func (c *Coordinator) AcceptSettlement(ctx context.Context, sessionID, accepterID string) (Snapshot, error) {
	var snap Snapshot
	err := c.withSession(sessionID, func(e *entry) error {
		if err := requireParticipant(e.sess, accepterID); err != nil {
			return err
		}
		if e.sess.Closed() {
			return sessionClosedError(e.sess)
		}

		requesterID, err := c.negotiator.Accept(e.sess, accepterID)
		if err != nil {
			return err
		}
		settlement.ClearRequest(e.sess)
		e.sess.Outcome = session.OutcomeSettled
		e.sess.UpdatedAt = c.now().UTC()
		c.persist(ctx, e.sess)

		recipients := []string{e.sess.CreatorID, e.sess.PartnerID}
		c.publish(ctx, notify.Event{
			SessionID:  sessionID,
			Type:       notify.EventSettlementAccepted,
			Recipients: recipients,
			Payload: map[string]any{
				"requester_id": requesterID,
				"accepter_id":  accepterID,
			},
		})
		c.publish(ctx, notify.Event{
			SessionID:  sessionID,
			Type:       notify.EventSessionSettled,
			Recipients: recipients,
			Payload:    map[string]any{"outcome": session.OutcomeLabel(session.OutcomeSettled)},
		})
		log.Printf("event=session_settled session_id=%s requester_id=%s accepter_id=%s", sessionID, requesterID, accepterID)

		snap = snapshotOf(e.sess)
		return nil
	})
	return snap, err
}

// DeclineSettlement rejects the open proposal; the session continues
// in its current phase and the requester is notified.
func (c *Coordinator) DeclineSettlement(ctx context.Context, sessionID, declinerID string) (Snapshot, error) {
	var snap Snapshot
	err := c.withSession(sessionID, func(e *entry) error {
		if err := requireParticipant(e.sess, declinerID); err != nil {
			return err
		}
		if e.sess.Closed() {
			return sessionClosedError(e.sess)
		}

		requesterID, err := c.negotiator.Decline(e.sess, declinerID)
		if err != nil {
			return err
		}
		e.sess.UpdatedAt = c.now().UTC()
		c.persist(ctx, e.sess)
		c.publish(ctx, notify.Event{
			SessionID:  sessionID,
			Type:       notify.EventSettlementDeclined,
			Recipients: []string{requesterID},
			Payload:    map[string]any{"decliner_id": declinerID},
		})

		snap = snapshotOf(e.sess)
		return nil
	})
	return snap, err
}

// RequestVerdict re-dispatches verdict generation after an earlier
// attempt failed. The session must already be in the VERDICT phase
// with no ruling issued and no generation in flight.
func (c *Coordinator) RequestVerdict(ctx context.Context, sessionID, participantID string) error {
	return c.withSession(sessionID, func(e *entry) error {
		if err := requireParticipant(e.sess, participantID); err != nil {
			return err
		}
		if e.sess.Phase != phase.Verdict {
			return apperrors.WithMetadata(
				apperrors.CodeVerdictNotReady,
				"Session has not reached the VERDICT phase",
				map[string]string{"Phase": phase.Label(e.sess.Phase)},
			)
		}
		if e.sess.VerdictJSON != "" {
			return apperrors.New(apperrors.CodeVerdictAlreadyIssued, "Verdict already issued")
		}
		if e.verdictInFlight {
			return apperrors.New(apperrors.CodeVerdictInFlight, "Verdict generation already in progress")
		}
		c.dispatchVerdictLocked(e)
		return nil
	})
}

// expireSettlement is the timer callback. It re-enters the session
// lock, so if an accept or decline won the race the pending request is
// already gone (or replaced) and the expiry is a no-op.
func (c *Coordinator) expireSettlement(sessionID, expectedRequesterID string) {
	err := c.withSession(sessionID, func(e *entry) error {
		if !c.negotiator.HandleTimeout(e.sess, expectedRequesterID) {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.StoreWrite)
		defer cancel()

		e.sess.UpdatedAt = c.now().UTC()
		c.persist(ctx, e.sess)
		c.publish(ctx, notify.Event{
			SessionID:  sessionID,
			Type:       notify.EventSettlementExpired,
			Recipients: []string{e.sess.CreatorID, e.sess.PartnerID},
			Payload:    map[string]any{"requester_id": expectedRequesterID},
		})
		log.Printf("event=settlement_expired session_id=%s requester_id=%s", sessionID, expectedRequesterID)
		return nil
	})
	if err != nil {
		log.Printf("event=settlement_expiry_failed session_id=%s error=%q", sessionID, err)
	}
}

// mutate runs fn under the session lock, then advances the phase as
// far as the progression predicates allow, persists, and publishes one
// phase.changed event per step taken.
func (c *Coordinator) mutate(ctx context.Context, sessionID string, fn func(*entry) error) (Snapshot, error) {
	var snap Snapshot
	err := c.withSession(sessionID, func(e *entry) error {
		if err := fn(e); err != nil {
			return err
		}
		e.sess.UpdatedAt = c.now().UTC()
		steps := c.advanceLocked(ctx, e)
		c.persist(ctx, e.sess)
		for _, step := range steps {
			c.publish(ctx, step)
		}
		snap = snapshotOf(e.sess)
		return nil
	})
	return snap, err
}

// advanceLocked walks the phase sequence while the current phase's
// completion predicate holds. Readiness confirmations are cleared on
// every step so the RESOLUTION phase starts from a clean slate, and a
// settlement proposal still open when the session leaves ANALYZING is
// expired on the spot. Entering VERDICT dispatches generation.
func (c *Coordinator) advanceLocked(ctx context.Context, e *entry) []notify.Event {
	var events []notify.Event
	for {
		next := phase.Next(e.sess.Phase)
		if next == phase.Unspecified || !phase.IsTransitionAllowed(e.sess.Phase, next) {
			break
		}
		if !c.phaseComplete(e.sess) {
			break
		}

		from := e.sess.Phase
		e.sess.Phase = next
		for k := range e.sess.Ready {
			delete(e.sess.Ready, k)
		}

		if e.sess.SettlementRequestedBy != "" && !phase.IsActionAllowed(phase.ActionRequestSettlement, e.sess.Phase) {
			requesterID := e.sess.SettlementRequestedBy
			settlement.ClearRequest(e.sess)
			events = append(events, notify.Event{
				SessionID:  e.sess.ID,
				Type:       notify.EventSettlementExpired,
				Recipients: []string{e.sess.CreatorID, e.sess.PartnerID},
				Payload:    map[string]any{"requester_id": requesterID},
			})
		}

		events = append(events, notify.Event{
			SessionID:  e.sess.ID,
			Type:       notify.EventPhaseChanged,
			Recipients: []string{e.sess.CreatorID, e.sess.PartnerID},
			Payload: map[string]any{
				"from": phase.Label(from),
				"to":   phase.Label(e.sess.Phase),
			},
		})
		log.Printf("event=phase_changed session_id=%s from=%s to=%s", e.sess.ID, phase.Label(from), phase.Label(e.sess.Phase))

		if e.sess.Phase == phase.Verdict {
			c.dispatchVerdictLocked(e)
		}
	}
	return events
}

// phaseComplete reports whether the current phase's completion
// predicate holds for sess.
func (c *Coordinator) phaseComplete(sess *session.Session) bool {
	both := func(m map[string]bool) bool {
		return m[sess.CreatorID] && m[sess.PartnerID]
	}
	switch sess.Phase {
	case phase.Evidence:
		_, creatorDone := sess.Evidence[sess.CreatorID]
		_, partnerDone := sess.Evidence[sess.PartnerID]
		return creatorDone && partnerDone
	case phase.Analyzing:
		return sess.Analysis != ""
	case phase.Priming:
		return both(sess.Ready)
	case phase.JointMenu:
		_, creatorChose := sess.ResolutionChoices[sess.CreatorID]
		_, partnerChose := sess.ResolutionChoices[sess.PartnerID]
		return creatorChose && partnerChose
	case phase.Resolution:
		return both(sess.Ready)
	default:
		return false
	}
}

// dispatchVerdictLocked starts verdict generation on its own goroutine.
// The entry lock is held by the caller; the goroutine re-acquires it to
// apply the result, so the lock is never held across the generator
// call. The in-flight flag keeps concurrent retries from stacking.
func (c *Coordinator) dispatchVerdictLocked(e *entry) {
	if c.generator == nil {
		log.Printf("event=verdict_skipped session_id=%s reason=no_generator", e.sess.ID)
		return
	}
	if e.verdictInFlight || e.sess.VerdictJSON != "" {
		return
	}
	e.verdictInFlight = true

	input := verdict.Input{
		SessionID:         e.sess.ID,
		CoupleID:          e.sess.CoupleID,
		Evidence:          cloneStrings(e.sess.Evidence),
		Analysis:          e.sess.Analysis,
		ResolutionChoices: cloneStrings(e.sess.ResolutionChoices),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.VerdictRequest)
		defer cancel()
		ruling, err := c.generator.Generate(ctx, input)
		c.applyVerdict(input.SessionID, ruling, err)
	}()
}

// applyVerdict records the generation result under a fresh lock
// acquisition. On failure the session stays in VERDICT with no ruling;
// a participant retries through RequestVerdict.
func (c *Coordinator) applyVerdict(sessionID string, ruling verdict.Ruling, genErr error) {
	err := c.withSession(sessionID, func(e *entry) error {
		e.verdictInFlight = false
		if genErr != nil {
			log.Printf("event=verdict_generation_failed session_id=%s error=%q", sessionID, genErr)
			return nil
		}
		if e.sess.VerdictJSON != "" {
			return nil
		}

		payload, err := json.Marshal(ruling)
		if err != nil {
			log.Printf("event=verdict_encode_failed session_id=%s error=%q", sessionID, err)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeouts.StoreWrite)
		defer cancel()

		e.sess.VerdictJSON = string(payload)
		e.sess.Outcome = session.OutcomeVerdict
		e.sess.UpdatedAt = c.now().UTC()
		c.persist(ctx, e.sess)
		c.publish(ctx, notify.Event{
			SessionID:  sessionID,
			Type:       notify.EventVerdictReady,
			Recipients: []string{e.sess.CreatorID, e.sess.PartnerID},
			Payload: map[string]any{
				"summary":  ruling.Summary,
				"decision": ruling.Decision,
			},
		})
		log.Printf("event=verdict_issued session_id=%s model=%s", sessionID, ruling.Model)
		return nil
	})
	if err != nil {
		log.Printf("event=verdict_apply_failed session_id=%s error=%q", sessionID, err)
	}
}

// withSession locks the session's entry for the duration of fn.
func (c *Coordinator) withSession(sessionID string, fn func(*entry) error) error {
	c.mu.Lock()
	e, ok := c.entries[sessionID]
	c.mu.Unlock()
	if !ok {
		return apperrors.WithMetadata(
			apperrors.CodeSessionNotFound,
			"Session not found",
			map[string]string{"SessionID": sessionID},
		)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e)
}

func (c *Coordinator) persist(ctx context.Context, sess *session.Session) {
	record, err := toRecord(sess)
	if err != nil {
		log.Printf("event=session_persist_failed session_id=%s error=%q", sess.ID, err)
		return
	}
	if err := c.store.PutSession(ctx, record); err != nil {
		log.Printf("event=session_persist_failed session_id=%s error=%q", sess.ID, err)
	}
}

func (c *Coordinator) publish(ctx context.Context, event notify.Event) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		log.Printf("event=notify_failed session_id=%s type=%s error=%q", event.SessionID, event.Type, err)
	}
}

func requireParticipant(sess *session.Session, participantID string) error {
	if !sess.IsParticipant(participantID) {
		return apperrors.WithMetadata(
			apperrors.CodeSessionNotParticipant,
			"User is not a participant of this session",
			map[string]string{"UserID": participantID},
		)
	}
	return nil
}

func requireOpenParticipantAction(sess *session.Session, participantID string, action phase.Action) error {
	if err := requireParticipant(sess, participantID); err != nil {
		return err
	}
	if sess.Closed() {
		return sessionClosedError(sess)
	}
	if !phase.IsActionAllowed(action, sess.Phase) {
		return actionDisallowedError(sess, phase.ActionLabel(action))
	}
	return nil
}

func sessionClosedError(sess *session.Session) error {
	return apperrors.WithMetadata(
		apperrors.CodeSessionClosed,
		"Session is closed",
		map[string]string{"Outcome": session.OutcomeLabel(sess.Outcome)},
	)
}

func actionDisallowedError(sess *session.Session, action string) error {
	return apperrors.WithMetadata(
		apperrors.CodeSessionActionDisallowed,
		"Action not allowed in the current phase",
		map[string]string{
			"Action": action,
			"Phase":  phase.Label(sess.Phase),
		},
	)
}

func snapshotOf(sess *session.Session) Snapshot {
	return Snapshot{
		ID:                    sess.ID,
		CoupleID:              sess.CoupleID,
		CreatorID:             sess.CreatorID,
		PartnerID:             sess.PartnerID,
		Phase:                 phase.Label(sess.Phase),
		Outcome:               session.OutcomeLabel(sess.Outcome),
		Evidence:              cloneStrings(sess.Evidence),
		Analysis:              sess.Analysis,
		ResolutionChoices:     cloneStrings(sess.ResolutionChoices),
		Ready:                 cloneBools(sess.Ready),
		VerdictJSON:           sess.VerdictJSON,
		SettlementRequestedBy: sess.SettlementRequestedBy,
		SettlementRequestedAt: cloneTime(sess.SettlementRequestedAt),
		CreatedAt:             sess.CreatedAt,
		UpdatedAt:             sess.UpdatedAt,
	}
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBools(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
