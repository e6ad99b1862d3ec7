package consultnode

import (
	"context"
	"fmt"

	"github.com/medconsult/medconsult/agent/agents/specialist"
	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// IntakeTurn runs one history-taking exchange. The model is consulted
// against the snapshot first; only a successful turn touches the store, and
// it lands as a single update.
func IntakeTurn(
	ctx context.Context,
	in *GraphState,
	agent contractx.IntakeAgent,
	store statex.Store,
	maxQuestions int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is missing the session", contractx.ErrValidation)
	}

	turn, err := agent.ProcessTurn(ctx, in.Session, in.Text)
	if err != nil {
		return nil, err
	}

	updated, err := store.Update(ctx, in.SessionID, func(s *statex.ConsultationSession) error {
		s.Append(statex.RolePatient, in.Text, in.Now)
		if turn.Triaged {
			if err := s.SetTriage(turn.Specialty, turn.ClinicalSummary, in.Now); err != nil {
				return err
			}
		} else if turn.IsQuestion {
			s.CountQuestion(maxQuestions)
		}
		s.Append(statex.RoleAgent, turn.Reply, in.Now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	in.Session = updated
	in.Result = contractx.StepResult{
		Kind:          contractx.StepAskedQuestion,
		SessionID:     in.SessionID,
		Stage:         updated.Stage,
		Reply:         turn.Reply,
		IsQuestion:    turn.IsQuestion,
		QuestionCount: updated.QuestionCount,
	}
	if turn.Triaged {
		in.Result.Kind = contractx.StepHandedOff
		in.Result.Specialty = turn.Specialty
		in.Result.SpecialistName = specialist.DisplayName(turn.Specialty)
		in.Result.ClinicalSummary = turn.ClinicalSummary
	}
	return in, nil
}
