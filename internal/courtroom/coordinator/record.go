package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/adjourn-app/courtroom/internal/courtroom/domain/phase"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/session"
	"github.com/adjourn-app/courtroom/internal/courtroom/storage"
)

// toRecord converts the in-memory aggregate to its persisted shape.
// The live timer handle never crosses this boundary.
func toRecord(sess *session.Session) (storage.SessionRecord, error) {
	evidenceJSON, err := json.Marshal(sess.Evidence)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("marshal evidence: %w", err)
	}
	resolutionsJSON, err := json.Marshal(sess.ResolutionChoices)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("marshal resolutions: %w", err)
	}
	readyJSON, err := json.Marshal(sess.Ready)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("marshal readiness: %w", err)
	}

	return storage.SessionRecord{
		ID:                    sess.ID,
		CoupleID:              sess.CoupleID,
		CreatorID:             sess.CreatorID,
		PartnerID:             sess.PartnerID,
		Phase:                 phase.Label(sess.Phase),
		Outcome:               session.OutcomeLabel(sess.Outcome),
		EvidenceJSON:          string(evidenceJSON),
		Analysis:              sess.Analysis,
		ResolutionsJSON:       string(resolutionsJSON),
		ReadyJSON:             string(readyJSON),
		VerdictJSON:           sess.VerdictJSON,
		SettlementRequestedBy: sess.SettlementRequestedBy,
		SettlementRequestedAt: sess.SettlementRequestedAt,
		CreatedAt:             sess.CreatedAt,
		UpdatedAt:             sess.UpdatedAt,
	}, nil
}

// fromRecord rebuilds the aggregate from its persisted shape. The
// settlement timer is deliberately left nil; a recovered open request
// is stale by definition and the caller expires it.
func fromRecord(record storage.SessionRecord) (*session.Session, error) {
	sess := &session.Session{
		ID:                    record.ID,
		CoupleID:              record.CoupleID,
		CreatorID:             record.CreatorID,
		PartnerID:             record.PartnerID,
		Phase:                 phase.FromLabel(record.Phase),
		Outcome:               session.OutcomeFromLabel(record.Outcome),
		Analysis:              record.Analysis,
		VerdictJSON:           record.VerdictJSON,
		SettlementRequestedBy: record.SettlementRequestedBy,
		SettlementRequestedAt: record.SettlementRequestedAt,
		CreatedAt:             record.CreatedAt,
		UpdatedAt:             record.UpdatedAt,
	}
	if sess.Phase == phase.Unspecified {
		return nil, fmt.Errorf("session %s has unknown phase %q", record.ID, record.Phase)
	}

	sess.Evidence = make(map[string]string)
	if record.EvidenceJSON != "" {
		if err := json.Unmarshal([]byte(record.EvidenceJSON), &sess.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence for %s: %w", record.ID, err)
		}
	}
	sess.ResolutionChoices = make(map[string]string)
	if record.ResolutionsJSON != "" {
		if err := json.Unmarshal([]byte(record.ResolutionsJSON), &sess.ResolutionChoices); err != nil {
			return nil, fmt.Errorf("unmarshal resolutions for %s: %w", record.ID, err)
		}
	}
	sess.Ready = make(map[string]bool)
	if record.ReadyJSON != "" {
		if err := json.Unmarshal([]byte(record.ReadyJSON), &sess.Ready); err != nil {
			return nil, fmt.Errorf("unmarshal readiness for %s: %w", record.ID, err)
		}
	}
	return sess, nil
}
