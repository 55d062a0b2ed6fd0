// Package errors provides structured error handling with stable,
// machine-readable codes and HTTP translation.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionCreatorRequired    Code = "SESSION_CREATOR_REQUIRED"
	CodeSessionPartnerRequired    Code = "SESSION_PARTNER_REQUIRED"
	CodeSessionCoupleRequired     Code = "SESSION_COUPLE_REQUIRED"
	CodeSessionSameParticipant    Code = "SESSION_SAME_PARTICIPANT"
	CodeSessionNotFound           Code = "SESSION_NOT_FOUND"
	CodeSessionNotParticipant     Code = "SESSION_NOT_PARTICIPANT"
	CodeSessionClosed             Code = "SESSION_CLOSED"
	CodeSessionInvalidTransition  Code = "SESSION_INVALID_PHASE_TRANSITION"
	CodeSessionActionDisallowed   Code = "SESSION_PHASE_DISALLOWS_ACTION"

	// Settlement errors
	CodeSettlementInvalidPhase Code = "SETTLEMENT_INVALID_PHASE"
	CodeSettlementNonePending  Code = "SETTLEMENT_NONE_PENDING"
	CodeSettlementSelfAction   Code = "SETTLEMENT_SELF_ACTION"

	// Evidence/analysis/resolution errors
	CodeEvidencePayloadRequired   Code = "EVIDENCE_PAYLOAD_REQUIRED"
	CodeAnalysisPayloadRequired   Code = "ANALYSIS_PAYLOAD_REQUIRED"
	CodeResolutionOptionRequired  Code = "RESOLUTION_OPTION_REQUIRED"

	// Verdict errors
	CodeVerdictNotReady      Code = "VERDICT_NOT_READY"
	CodeVerdictAlreadyIssued Code = "VERDICT_ALREADY_ISSUED"
	CodeVerdictInFlight      Code = "VERDICT_IN_FLIGHT"

	// Transport errors
	CodeMalformedRequest Code = "MALFORMED_REQUEST"

	// Token errors
	CodeTokenInvalid Code = "TOKEN_INVALID"
	CodeTokenExpired Code = "TOKEN_EXPIRED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeSessionCreatorRequired,
		CodeSessionPartnerRequired,
		CodeSessionCoupleRequired,
		CodeSessionSameParticipant,
		CodeEvidencePayloadRequired,
		CodeAnalysisPayloadRequired,
		CodeResolutionOptionRequired,
		CodeMalformedRequest:
		return http.StatusBadRequest

	// Unauthorized - the caller's identity could not be established
	case CodeTokenInvalid, CodeTokenExpired:
		return http.StatusUnauthorized

	// Forbidden - actor is not allowed to touch the session
	case CodeSessionNotParticipant:
		return http.StatusForbidden

	// Not found
	case CodeSessionNotFound, CodeNotFound:
		return http.StatusNotFound

	// Conflict - state does not allow the operation
	case CodeSessionClosed,
		CodeSessionInvalidTransition,
		CodeSessionActionDisallowed,
		CodeSettlementInvalidPhase,
		CodeSettlementNonePending,
		CodeSettlementSelfAction,
		CodeVerdictNotReady,
		CodeVerdictAlreadyIssued,
		CodeVerdictInFlight:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
