package catalog

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
var messages = map[string]string{
	"UNKNOWN": "An unexpected error occurred.",

	"SESSION_CREATOR_REQUIRED":         "A session creator is required.",
	"SESSION_PARTNER_REQUIRED":         "A session partner is required.",
	"SESSION_COUPLE_REQUIRED":          "A couple id is required.",
	"SESSION_SAME_PARTICIPANT":         "You cannot open a courtroom session against yourself.",
	"SESSION_NOT_FOUND":                "This courtroom session does not exist.",
	"SESSION_NOT_PARTICIPANT":          "You are not a participant in this session.",
	"SESSION_CLOSED":                   "This courtroom session has already been closed.",
	"SESSION_INVALID_PHASE_TRANSITION": "The session cannot move from {{.From}} to {{.To}}.",
	"SESSION_PHASE_DISALLOWS_ACTION":   "This action is not allowed during the {{.Phase}} phase.",

	"SETTLEMENT_INVALID_PHASE": "Settlement only allowed during EVIDENCE or ANALYZING",
	"SETTLEMENT_NONE_PENDING":  "No settlement request pending",
	"SETTLEMENT_SELF_ACTION":   "Cannot {{.Action}} your own settlement",

	"EVIDENCE_PAYLOAD_REQUIRED":  "Evidence cannot be empty.",
	"ANALYSIS_PAYLOAD_REQUIRED":  "An analysis payload is required.",
	"RESOLUTION_OPTION_REQUIRED": "A resolution option is required.",

	"VERDICT_NOT_READY":      "The session has not reached the verdict phase.",
	"VERDICT_ALREADY_ISSUED": "A verdict has already been issued for this session.",
	"VERDICT_IN_FLIGHT":      "A verdict is already being generated for this session.",

	"MALFORMED_REQUEST": "The request body could not be parsed.",

	"TOKEN_INVALID": "The access token is invalid.",
	"TOKEN_EXPIRED": "The access token has expired.",

	"NOT_FOUND": "The requested record was not found.",
}
