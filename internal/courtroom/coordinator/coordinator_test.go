package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/domain/session"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/settlement"
	"github.com/adjourn-app/courtroom/internal/courtroom/notify"
	"github.com/adjourn-app/courtroom/internal/courtroom/storage"
	"github.com/adjourn-app/courtroom/internal/courtroom/verdict"
	apperrors "github.com/adjourn-app/courtroom/internal/platform/errors"
)

const (
	creatorID = "alice"
	partnerID = "bob"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

// memStore is an in-memory Store for coordinator tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]storage.SessionRecord
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]storage.SessionRecord)}
}

func (s *memStore) PutSession(_ context.Context, record storage.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("store unavailable")
	}
	s.records[record.ID] = record
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (storage.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *memStore) ListOpenSessions(_ context.Context) ([]storage.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []storage.SessionRecord
	for _, record := range s.records {
		if record.Outcome == "NONE" {
			open = append(open, record)
		}
	}
	return open, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) setFailPut(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = fail
}

func (s *memStore) record(t *testing.T, id string) storage.SessionRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		t.Fatalf("record %s not persisted", id)
	}
	return record
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) byType(eventType notify.EventType) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []notify.Event
	for _, event := range p.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// fakeScheduler records the expiry callback instead of waiting for
// wall time, so tests fire it deterministically.
type fakeScheduler struct {
	mu     sync.Mutex
	lastFn func()
}

func (f *fakeScheduler) schedule(d time.Duration, fn func()) *time.Timer {
	f.mu.Lock()
	f.lastFn = fn
	f.mu.Unlock()
	return time.AfterFunc(time.Hour, fn)
}

func (f *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	fn := f.lastFn
	f.mu.Unlock()
	if fn == nil {
		t.Fatal("no expiry callback scheduled")
	}
	fn()
}

type harness struct {
	coord *Coordinator
	store *memStore
	pub   *recordingPublisher
	sched *fakeScheduler
}

func newHarness(t *testing.T, generator verdict.Generator) *harness {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	sched := &fakeScheduler{}
	coord, err := New(Config{
		Store:      store,
		Negotiator: settlement.NewNegotiator(time.Minute, fixedClock, sched.schedule),
		Publisher:  pub,
		Generator:  generator,
		Now:        fixedClock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{coord: coord, store: store, pub: pub, sched: sched}
}

func (h *harness) create(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.coord.CreateSession(context.Background(), session.CreateSessionInput{
		CoupleID:  "couple-1",
		CreatorID: creatorID,
		PartnerID: partnerID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return snap
}

func (h *harness) submitBothEvidence(t *testing.T, sessionID string) Snapshot {
	t.Helper()
	ctx := context.Background()
	if _, err := h.coord.SubmitEvidence(ctx, sessionID, creatorID, "the dishes"); err != nil {
		t.Fatalf("SubmitEvidence creator: %v", err)
	}
	snap, err := h.coord.SubmitEvidence(ctx, sessionID, partnerID, "the laundry")
	if err != nil {
		t.Fatalf("SubmitEvidence partner: %v", err)
	}
	return snap
}

func (h *harness) driveToVerdict(t *testing.T, sessionID string) {
	t.Helper()
	ctx := context.Background()
	h.submitBothEvidence(t, sessionID)
	if _, err := h.coord.RecordAnalysis(ctx, sessionID, "both feel unheard"); err != nil {
		t.Fatalf("RecordAnalysis: %v", err)
	}
	for _, participant := range []string{creatorID, partnerID} {
		if _, err := h.coord.ConfirmReady(ctx, sessionID, participant); err != nil {
			t.Fatalf("ConfirmReady (priming) %s: %v", participant, err)
		}
	}
	for _, participant := range []string{creatorID, partnerID} {
		if _, err := h.coord.ChooseResolution(ctx, sessionID, participant, "weekly chore rotation"); err != nil {
			t.Fatalf("ChooseResolution %s: %v", participant, err)
		}
	}
	for _, participant := range []string{creatorID, partnerID} {
		if _, err := h.coord.ConfirmReady(ctx, sessionID, participant); err != nil {
			t.Fatalf("ConfirmReady (resolution) %s: %v", participant, err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateSessionStartsInEvidence(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)

	if snap.Phase != "EVIDENCE" {
		t.Errorf("phase = %s, want EVIDENCE", snap.Phase)
	}
	if snap.Outcome != "NONE" {
		t.Errorf("outcome = %s, want NONE", snap.Outcome)
	}
	record := h.store.record(t, snap.ID)
	if record.Phase != "EVIDENCE" {
		t.Errorf("persisted phase = %s, want EVIDENCE", record.Phase)
	}
}

func TestCreateSessionRejectsSameParticipant(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.coord.CreateSession(context.Background(), session.CreateSessionInput{
		CoupleID:  "couple-1",
		CreatorID: creatorID,
		PartnerID: creatorID,
	})
	if !apperrors.IsCode(err, apperrors.CodeSessionSameParticipant) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSessionSameParticipant)
	}
}

func TestGetSessionRequiresParticipant(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)

	if _, err := h.coord.GetSession(context.Background(), snap.ID, "mallory"); !apperrors.IsCode(err, apperrors.CodeSessionNotParticipant) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSessionNotParticipant)
	}
	if _, err := h.coord.GetSession(context.Background(), "missing", creatorID); !apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSessionNotFound)
	}
}

func TestEvidenceAdvancesWhenBothSubmitted(t *testing.T) {
	h := newHarness(t, nil)
	created := h.create(t)

	snap, err := h.coord.SubmitEvidence(context.Background(), created.ID, creatorID, "first draft")
	if err != nil {
		t.Fatalf("SubmitEvidence: %v", err)
	}
	if snap.Phase != "EVIDENCE" {
		t.Fatalf("phase after one submission = %s, want EVIDENCE", snap.Phase)
	}

	// Re-submission replaces the earlier payload without advancing.
	snap, err = h.coord.SubmitEvidence(context.Background(), created.ID, creatorID, "second draft")
	if err != nil {
		t.Fatalf("SubmitEvidence resubmit: %v", err)
	}
	if snap.Evidence[creatorID] != "second draft" {
		t.Errorf("evidence = %q, want replacement", snap.Evidence[creatorID])
	}
	if snap.Phase != "EVIDENCE" {
		t.Fatalf("phase after resubmission = %s, want EVIDENCE", snap.Phase)
	}

	snap, err = h.coord.SubmitEvidence(context.Background(), created.ID, partnerID, "partner view")
	if err != nil {
		t.Fatalf("SubmitEvidence partner: %v", err)
	}
	if snap.Phase != "ANALYZING" {
		t.Fatalf("phase = %s, want ANALYZING", snap.Phase)
	}

	changed := h.pub.byType(notify.EventPhaseChanged)
	if len(changed) != 1 {
		t.Fatalf("phase.changed events = %d, want 1", len(changed))
	}
	if changed[0].Payload["to"] != "ANALYZING" {
		t.Errorf("payload to = %v, want ANALYZING", changed[0].Payload["to"])
	}
}

func TestEvidenceRejectsOutsiderAndEmptyPayload(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)

	if _, err := h.coord.SubmitEvidence(context.Background(), snap.ID, "mallory", "sabotage"); !apperrors.IsCode(err, apperrors.CodeSessionNotParticipant) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSessionNotParticipant)
	}
	if _, err := h.coord.SubmitEvidence(context.Background(), snap.ID, creatorID, ""); !apperrors.IsCode(err, apperrors.CodeEvidencePayloadRequired) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeEvidencePayloadRequired)
	}
}

func TestActionsGatedByPhase(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	if _, err := h.coord.RecordAnalysis(ctx, snap.ID, "too early"); !apperrors.IsCode(err, apperrors.CodeSessionActionDisallowed) {
		t.Errorf("RecordAnalysis in EVIDENCE: error = %v, want %s", err, apperrors.CodeSessionActionDisallowed)
	}
	if _, err := h.coord.ChooseResolution(ctx, snap.ID, creatorID, "option"); !apperrors.IsCode(err, apperrors.CodeSessionActionDisallowed) {
		t.Errorf("ChooseResolution in EVIDENCE: error = %v, want %s", err, apperrors.CodeSessionActionDisallowed)
	}
	if _, err := h.coord.ConfirmReady(ctx, snap.ID, creatorID); !apperrors.IsCode(err, apperrors.CodeSessionActionDisallowed) {
		t.Errorf("ConfirmReady in EVIDENCE: error = %v, want %s", err, apperrors.CodeSessionActionDisallowed)
	}
}

func TestFullProgressionToVerdict(t *testing.T) {
	generator := verdict.GeneratorFunc(func(_ context.Context, input verdict.Input) (verdict.Ruling, error) {
		if input.Analysis == "" {
			t.Error("generator input missing analysis")
		}
		return verdict.Ruling{Summary: "shared fault", Decision: "rotate chores weekly", Model: "test"}, nil
	})
	h := newHarness(t, generator)
	snap := h.create(t)

	h.driveToVerdict(t, snap.ID)

	waitFor(t, "verdict outcome", func() bool {
		current, err := h.coord.GetSession(context.Background(), snap.ID, creatorID)
		return err == nil && current.Outcome == "VERDICT"
	})

	final, err := h.coord.GetSession(context.Background(), snap.ID, creatorID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if final.Phase != "VERDICT" {
		t.Errorf("phase = %s, want VERDICT", final.Phase)
	}
	if final.VerdictJSON == "" {
		t.Error("verdict payload empty")
	}
	if got := len(h.pub.byType(notify.EventPhaseChanged)); got != 5 {
		t.Errorf("phase.changed events = %d, want 5", got)
	}
	ready := h.pub.byType(notify.EventVerdictReady)
	if len(ready) != 1 {
		t.Fatalf("verdict.ready events = %d, want 1", len(ready))
	}
	if ready[0].Payload["decision"] != "rotate chores weekly" {
		t.Errorf("decision payload = %v", ready[0].Payload["decision"])
	}

	record := h.store.record(t, snap.ID)
	if record.Outcome != "VERDICT" {
		t.Errorf("persisted outcome = %s, want VERDICT", record.Outcome)
	}
}

func TestVerdictFailureLeavesSessionRetryable(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	generator := verdict.GeneratorFunc(func(_ context.Context, _ verdict.Input) (verdict.Ruling, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return verdict.Ruling{}, errors.New("model unavailable")
		}
		return verdict.Ruling{Summary: "ok", Decision: "split the chores"}, nil
	})
	h := newHarness(t, generator)
	snap := h.create(t)
	h.driveToVerdict(t, snap.ID)

	// The first attempt fails in the background; retry once it settles.
	waitFor(t, "retry accepted", func() bool {
		err := h.coord.RequestVerdict(context.Background(), snap.ID, partnerID)
		return err == nil
	})
	waitFor(t, "verdict outcome", func() bool {
		current, err := h.coord.GetSession(context.Background(), snap.ID, creatorID)
		return err == nil && current.Outcome == "VERDICT"
	})

	if err := h.coord.RequestVerdict(context.Background(), snap.ID, creatorID); !apperrors.IsCode(err, apperrors.CodeVerdictAlreadyIssued) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeVerdictAlreadyIssued)
	}
}

func TestRequestVerdictBeforeFinalPhase(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)

	err := h.coord.RequestVerdict(context.Background(), snap.ID, creatorID)
	if !apperrors.IsCode(err, apperrors.CodeVerdictNotReady) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeVerdictNotReady)
	}
}

func TestSettlementAcceptClosesSession(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	request, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID)
	if err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	if request.PartnerID != partnerID {
		t.Errorf("request partner = %s, want %s", request.PartnerID, partnerID)
	}
	requested := h.pub.byType(notify.EventSettlementRequested)
	if len(requested) != 1 || requested[0].Recipients[0] != partnerID {
		t.Fatalf("settlement.requested = %+v, want one event to partner", requested)
	}

	closed, err := h.coord.AcceptSettlement(ctx, snap.ID, partnerID)
	if err != nil {
		t.Fatalf("AcceptSettlement: %v", err)
	}
	if closed.Outcome != "SETTLED" {
		t.Errorf("outcome = %s, want SETTLED", closed.Outcome)
	}
	if closed.SettlementRequestedBy != "" {
		t.Error("settlement request not cleared")
	}
	if len(h.pub.byType(notify.EventSessionSettled)) != 1 {
		t.Error("missing session.settled event")
	}

	if _, err := h.coord.SubmitEvidence(ctx, snap.ID, creatorID, "late"); !apperrors.IsCode(err, apperrors.CodeSessionClosed) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSessionClosed)
	}

	record := h.store.record(t, snap.ID)
	if record.Outcome != "SETTLED" {
		t.Errorf("persisted outcome = %s, want SETTLED", record.Outcome)
	}
}

func TestSettlementDeclineKeepsSessionOpen(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	declined, err := h.coord.DeclineSettlement(ctx, snap.ID, partnerID)
	if err != nil {
		t.Fatalf("DeclineSettlement: %v", err)
	}
	if declined.Outcome != "NONE" || declined.Phase != "EVIDENCE" {
		t.Errorf("session = %s/%s, want open in EVIDENCE", declined.Phase, declined.Outcome)
	}

	events := h.pub.byType(notify.EventSettlementDeclined)
	if len(events) != 1 || events[0].Recipients[0] != creatorID {
		t.Fatalf("settlement.declined = %+v, want one event to requester", events)
	}

	// The requester may propose again.
	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement after decline: %v", err)
	}
}

func TestSettlementSelfAcceptRejected(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	if _, err := h.coord.AcceptSettlement(ctx, snap.ID, creatorID); !apperrors.IsCode(err, apperrors.CodeSettlementSelfAction) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSettlementSelfAction)
	}
}

func TestSettlementExpiryClearsRequest(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	h.sched.fire(t)

	expired := h.pub.byType(notify.EventSettlementExpired)
	if len(expired) != 1 {
		t.Fatalf("settlement.expired events = %d, want 1", len(expired))
	}
	if _, err := h.coord.AcceptSettlement(ctx, snap.ID, partnerID); !apperrors.IsCode(err, apperrors.CodeSettlementNonePending) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSettlementNonePending)
	}

	record := h.store.record(t, snap.ID)
	if record.SettlementRequestedBy != "" {
		t.Error("persisted settlement request not cleared")
	}
}

func TestStaleExpiryAfterResolutionIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	if _, err := h.coord.DeclineSettlement(ctx, snap.ID, partnerID); err != nil {
		t.Fatalf("DeclineSettlement: %v", err)
	}

	// The timer lost the race; its callback must do nothing.
	h.sched.fire(t)
	if got := len(h.pub.byType(notify.EventSettlementExpired)); got != 0 {
		t.Fatalf("settlement.expired events = %d, want 0", got)
	}
}

func TestOpenSettlementExpiresWhenLeavingAnalyzing(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()

	h.submitBothEvidence(t, snap.ID)
	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement in ANALYZING: %v", err)
	}

	advanced, err := h.coord.RecordAnalysis(ctx, snap.ID, "findings")
	if err != nil {
		t.Fatalf("RecordAnalysis: %v", err)
	}
	if advanced.Phase != "PRIMING" {
		t.Fatalf("phase = %s, want PRIMING", advanced.Phase)
	}
	if advanced.SettlementRequestedBy != "" {
		t.Error("settlement request survived phase advance")
	}
	if got := len(h.pub.byType(notify.EventSettlementExpired)); got != 1 {
		t.Errorf("settlement.expired events = %d, want 1", got)
	}
}

func TestPersistFailureDoesNotBlockMutation(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)

	h.store.setFailPut(true)
	current, err := h.coord.SubmitEvidence(context.Background(), snap.ID, creatorID, "still works")
	if err != nil {
		t.Fatalf("SubmitEvidence: %v", err)
	}
	if current.Evidence[creatorID] != "still works" {
		t.Error("mutation not applied")
	}
}

func TestRestoreExpiresRecoveredSettlement(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)
	ctx := context.Background()
	if _, err := h.coord.RequestSettlement(ctx, snap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}

	// Simulate a restart: a fresh coordinator over the same store.
	restarted, err := New(Config{
		Store:      h.store,
		Negotiator: settlement.NewNegotiator(time.Minute, fixedClock, h.sched.schedule),
		Publisher:  h.pub,
		Now:        fixedClock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	recovered, err := restarted.GetSession(ctx, snap.ID, creatorID)
	if err != nil {
		t.Fatalf("GetSession after restore: %v", err)
	}
	if recovered.Phase != "EVIDENCE" {
		t.Errorf("phase = %s, want EVIDENCE", recovered.Phase)
	}
	if recovered.SettlementRequestedBy != "" {
		t.Error("recovered settlement request not expired")
	}
	if _, err := restarted.AcceptSettlement(ctx, snap.ID, partnerID); !apperrors.IsCode(err, apperrors.CodeSettlementNonePending) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSettlementNonePending)
	}
}

func TestRestoreSkipsClosedSessions(t *testing.T) {
	h := newHarness(t, nil)
	open := h.create(t)
	settledSnap := h.create(t)
	ctx := context.Background()
	if _, err := h.coord.RequestSettlement(ctx, settledSnap.ID, creatorID); err != nil {
		t.Fatalf("RequestSettlement: %v", err)
	}
	if _, err := h.coord.AcceptSettlement(ctx, settledSnap.ID, partnerID); err != nil {
		t.Fatalf("AcceptSettlement: %v", err)
	}

	restarted, err := New(Config{
		Store:      h.store,
		Negotiator: settlement.NewNegotiator(time.Minute, fixedClock, h.sched.schedule),
		Publisher:  h.pub,
		Now:        fixedClock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if _, err := restarted.GetSession(ctx, open.ID, creatorID); err != nil {
		t.Errorf("open session missing after restore: %v", err)
	}
	if _, err := restarted.GetSession(ctx, settledSnap.ID, creatorID); !apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
		t.Errorf("settled session restored: err = %v", err)
	}
}

func TestConcurrentEvidenceSubmissions(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.create(t)

	var wg sync.WaitGroup
	for _, participant := range []string{creatorID, partnerID} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if _, err := h.coord.SubmitEvidence(context.Background(), snap.ID, p, "evidence from "+p); err != nil {
				t.Errorf("SubmitEvidence %s: %v", p, err)
			}
		}(participant)
	}
	wg.Wait()

	final, err := h.coord.GetSession(context.Background(), snap.ID, creatorID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if final.Phase != "ANALYZING" {
		t.Errorf("phase = %s, want ANALYZING", final.Phase)
	}
	if got := len(h.pub.byType(notify.EventPhaseChanged)); got != 1 {
		t.Errorf("phase.changed events = %d, want exactly 1", got)
	}
}
