// Package phase defines the courtroom session phase model: the ordered
// phase sequence, stable persistence labels, and which participant
// actions each phase permits. It is the single source of truth for
// phase legality; orchestration decides when to advance, never whether
// an illegal jump is allowed.
package phase

import "strings"

// Phase represents a stage in the fixed courtroom session sequence.
type Phase int

const (
	// Unspecified represents an invalid phase value.
	Unspecified Phase = iota
	// Evidence indicates both participants are submitting evidence.
	Evidence
	// Analyzing indicates submitted evidence is under automated analysis.
	Analyzing
	// Priming indicates participants are in the emotional priming step.
	Priming
	// JointMenu indicates participants are choosing from the joint
	// resolution menu.
	JointMenu
	// Resolution indicates participants are confirming the chosen
	// resolution.
	Resolution
	// Verdict is the terminal phase where the ruling is produced.
	Verdict
)

// sequence is the canonical forward order of phases.
var sequence = []Phase{Evidence, Analyzing, Priming, JointMenu, Resolution, Verdict}

// Action is a phase-gated participant action.
type Action int

const (
	// ActionUnspecified represents an invalid action value.
	ActionUnspecified Action = iota
	// ActionSubmitEvidence submits one participant's evidence.
	ActionSubmitEvidence
	// ActionRecordAnalysis attaches the automated analysis result.
	ActionRecordAnalysis
	// ActionConfirmReady confirms a participant finished the current step.
	ActionConfirmReady
	// ActionChooseResolution picks an option from the joint menu.
	ActionChooseResolution
	// ActionRequestSettlement proposes an early mutual settlement.
	ActionRequestSettlement
	// ActionAcceptSettlement accepts a pending settlement proposal.
	ActionAcceptSettlement
	// ActionDeclineSettlement declines a pending settlement proposal.
	ActionDeclineSettlement
)

// actionPhases gates each action to the phases that permit it. New
// phase-gated actions are added here without touching call sites.
var actionPhases = map[Action]map[Phase]struct{}{
	ActionSubmitEvidence:    {Evidence: {}},
	ActionRecordAnalysis:    {Analyzing: {}},
	ActionConfirmReady:      {Priming: {}, Resolution: {}},
	ActionChooseResolution:  {JointMenu: {}},
	ActionRequestSettlement: {Evidence: {}, Analyzing: {}},
	ActionAcceptSettlement:  {Evidence: {}, Analyzing: {}},
	ActionDeclineSettlement: {Evidence: {}, Analyzing: {}},
}

// IsTransitionAllowed reports whether from may advance to to. Only
// adjacent forward steps in the canonical sequence are legal; there are
// no backward or skip transitions.
func IsTransitionAllowed(from, to Phase) bool {
	return Next(from) == to && to != Unspecified
}

// Next returns the phase that follows p in the canonical sequence, or
// Unspecified when p is terminal or invalid.
func Next(p Phase) Phase {
	for i, candidate := range sequence {
		if candidate == p && i+1 < len(sequence) {
			return sequence[i+1]
		}
	}
	return Unspecified
}

// IsTerminal reports whether p is the terminal phase.
func IsTerminal(p Phase) bool {
	return p == Verdict
}

// IsActionAllowed reports whether action may be taken while a session
// is in p.
func IsActionAllowed(action Action, p Phase) bool {
	phases, ok := actionPhases[action]
	if !ok {
		return false
	}
	_, allowed := phases[p]
	return allowed
}

// ActionLabel returns a human-readable name for an action, used in
// error metadata.
func ActionLabel(action Action) string {
	switch action {
	case ActionSubmitEvidence:
		return "submit evidence"
	case ActionRecordAnalysis:
		return "record analysis"
	case ActionConfirmReady:
		return "confirm ready"
	case ActionChooseResolution:
		return "choose resolution"
	case ActionRequestSettlement:
		return "request settlement"
	case ActionAcceptSettlement:
		return "accept settlement"
	case ActionDeclineSettlement:
		return "decline settlement"
	default:
		return "unspecified"
	}
}

// Label returns the stable string label for a phase.
func Label(p Phase) string {
	switch p {
	case Evidence:
		return "EVIDENCE"
	case Analyzing:
		return "ANALYZING"
	case Priming:
		return "PRIMING"
	case JointMenu:
		return "JOINT_MENU"
	case Resolution:
		return "RESOLUTION"
	case Verdict:
		return "VERDICT"
	default:
		return "UNSPECIFIED"
	}
}

// FromLabel converts a stable label back to its Phase value.
func FromLabel(label string) Phase {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "EVIDENCE":
		return Evidence
	case "ANALYZING":
		return Analyzing
	case "PRIMING":
		return Priming
	case "JOINT_MENU":
		return JointMenu
	case "RESOLUTION":
		return Resolution
	case "VERDICT":
		return Verdict
	default:
		return Unspecified
	}
}
