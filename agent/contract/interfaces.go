package contract

import (
	"context"

	statex "github.com/medconsult/medconsult/agent/state"
)

// IntakeAgent runs one history-taking turn. It reads the session transcript
// but never writes it; mutations travel back in the TurnResult.
type IntakeAgent interface {
	ProcessTurn(ctx context.Context, sess *statex.ConsultationSession, patientText string) (TurnResult, error)
}

// Consultant is one specialist: a stateless prompt around a clinical summary
// and a single model round-trip.
type Consultant interface {
	Consult(ctx context.Context, clinicalSummary string) (string, error)
}

// SummaryComposer produces the closing consultation summary from the intake
// summary and the specialist assessment.
type SummaryComposer interface {
	Compose(ctx context.Context, clinicalSummary, specialistResponse string) (string, error)
}

// Registry hands out the agents backing a consultation.
type Registry interface {
	Intake() IntakeAgent
	Consultant(spec statex.Specialty) (Consultant, error)
	Summarizer() SummaryComposer
}

// TurnSink receives every doctor/patient turn for display or audit. Kind is
// one of the audit.Kind* constants.
type TurnSink interface {
	LogTurn(agentLabel, text, kind string)
}
