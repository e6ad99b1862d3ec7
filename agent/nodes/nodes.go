// Package consultnode holds the lambda bodies of the orchestrator's
// per-turn graph. Each node takes the shared GraphState, does one thing,
// and hands the state forward.
package consultnode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// GraphInput is one patient turn addressed to a session.
type GraphInput struct {
	SessionID string
	Text      string
}

// GraphOutput is the applied step.
type GraphOutput struct {
	Result contractx.StepResult
}

// GraphState is threaded through the turn graph.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	// Session is a snapshot: nodes read it but apply changes through the
	// store so a failed turn leaves nothing behind.
	Session *statex.ConsultationSession

	Result contractx.StepResult
}

// ValidateTurn normalizes the request and stamps the turn time.
func ValidateTurn(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
