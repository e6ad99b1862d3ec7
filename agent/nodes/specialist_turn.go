package consultnode

import (
	"context"
	"fmt"

	"github.com/medconsult/medconsult/agent/agents/specialist"
	contractx "github.com/medconsult/medconsult/agent/contract"
	"github.com/medconsult/medconsult/agent/extract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// SpecialistTurn dispatches the triaged case to its consultant and records
// the assessment.
func SpecialistTurn(
	ctx context.Context,
	in *GraphState,
	models contractx.Registry,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is missing the session", contractx.ErrValidation)
	}

	consultant, err := models.Consultant(in.Session.Specialty)
	if err != nil {
		return nil, err
	}

	assessment, err := consultant.Consult(ctx, in.Session.ClinicalSummary)
	if err != nil {
		return nil, err
	}

	updated, err := store.Update(ctx, in.SessionID, func(s *statex.ConsultationSession) error {
		s.Append(statex.RolePatient, in.Text, in.Now)
		if err := s.SetSpecialistResponse(assessment, in.Now); err != nil {
			return err
		}
		s.Append(statex.RoleAgent, assessment, in.Now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	in.Session = updated
	in.Result = contractx.StepResult{
		Kind:            contractx.StepSpecialistAnswered,
		SessionID:       in.SessionID,
		Stage:           updated.Stage,
		Reply:           assessment,
		Specialty:       updated.Specialty,
		SpecialistName:  specialist.DisplayName(updated.Specialty),
		ClinicalSummary: updated.ClinicalSummary,
		Assessment:      assessment,
		Medications:     extract.Medications(assessment),
		Recommendations: extract.Recommendations(assessment),
	}
	return in, nil
}
