package contract

import (
	statex "github.com/medconsult/medconsult/agent/state"
)

// IntakeDoctorName is the persona of the primary care intake agent.
const IntakeDoctorName = "Dr. Sarah Chen"

// TurnResult is the outcome of one intake turn: either a follow-up question
// for the patient or a triage decision. The intake agent mutates nothing; the
// orchestrator applies the result to the session in a single store update.
type TurnResult struct {
	// Triaged is true when the model invoked a consult tool.
	Triaged bool

	// Reply is the doctor's text for this turn. On a triaged turn it is the
	// referral statement; otherwise the follow-up question (possibly replaced
	// by the question-cap override).
	Reply string

	// IsQuestion reports whether the reply was classified as a question.
	IsQuestion bool

	// Specialty and ClinicalSummary are set together iff Triaged.
	Specialty       statex.Specialty
	ClinicalSummary string
}

// StepKind tags the orchestrator result for one processed turn.
type StepKind string

const (
	StepAskedQuestion      StepKind = "asked_question"
	StepHandedOff          StepKind = "handed_off"
	StepSpecialistAnswered StepKind = "specialist_answered"
	StepFinished           StepKind = "finished"
)

// StepResult is what one orchestrator step produced. Fields beyond Kind,
// SessionID, and Stage are populated per kind.
type StepResult struct {
	Kind      StepKind
	SessionID string
	Stage     statex.Stage

	// StepAskedQuestion / StepHandedOff
	Reply         string
	IsQuestion    bool
	QuestionCount int

	// StepHandedOff and later
	Specialty       statex.Specialty
	SpecialistName  string
	ClinicalSummary string

	// StepSpecialistAnswered
	Assessment      string
	Medications     []string
	Recommendations []string

	// StepFinished
	FinalSummary string
}
