// Package verdict defines the external ruling generator boundary. The
// coordinator triggers generation once a session reaches its terminal
// phase and consumes the structured result; the generation mechanics
// stay behind the Generator interface.
package verdict

import "context"

// Input carries everything accumulated during a session that the
// generator may consider.
type Input struct {
	SessionID string
	CoupleID  string
	// Evidence maps participant id to that party's submitted evidence.
	Evidence map[string]string
	// Analysis is the automated analysis produced during ANALYZING.
	Analysis string
	// ResolutionChoices maps participant id to their joint-menu pick.
	ResolutionChoices map[string]string
}

// Ruling is the structured final verdict.
type Ruling struct {
	Summary  string `json:"summary"`
	Decision string `json:"decision"`
	Model    string `json:"model,omitempty"`
}

// Generator produces the final ruling for a completed session.
type Generator interface {
	Generate(ctx context.Context, input Input) (Ruling, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, input Input) (Ruling, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, input Input) (Ruling, error) {
	return f(ctx, input)
}
