package consultnode

import (
	"context"
	"fmt"

	"github.com/medconsult/medconsult/agent/agents/specialist"
	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// SummaryTurn closes the consultation with the composed final summary.
func SummaryTurn(
	ctx context.Context,
	in *GraphState,
	summarizer contractx.SummaryComposer,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is missing the session", contractx.ErrValidation)
	}

	final, err := summarizer.Compose(ctx, in.Session.ClinicalSummary, in.Session.SpecialistResponse)
	if err != nil {
		return nil, err
	}

	updated, err := store.Update(ctx, in.SessionID, func(s *statex.ConsultationSession) error {
		s.Append(statex.RolePatient, in.Text, in.Now)
		if err := s.SetFinalSummary(final, in.Now); err != nil {
			return err
		}
		s.Append(statex.RoleAgent, final, in.Now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	in.Session = updated
	in.Result = contractx.StepResult{
		Kind:            contractx.StepFinished,
		SessionID:       in.SessionID,
		Stage:           updated.Stage,
		Reply:           final,
		Specialty:       updated.Specialty,
		SpecialistName:  specialist.DisplayName(updated.Specialty),
		ClinicalSummary: updated.ClinicalSummary,
		FinalSummary:    final,
	}
	return in, nil
}
