package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role tags a transcript entry author.
type Role string

const (
	RoleSystem  Role = "system"
	RolePatient Role = "patient"
	RoleAgent   Role = "agent"
)

// Entry is one transcript line. The transcript is append-only for the life
// of a session.
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Specialty identifies a referral target. The set is closed; anything else
// coming back from the model is a protocol violation, not a new specialty.
type Specialty string

const (
	SpecialtyCardiologist    Specialty = "cardiologist"
	SpecialtyNeurologist     Specialty = "neurologist"
	SpecialtyDermatologist   Specialty = "dermatologist"
	SpecialtyOrthopedist     Specialty = "orthopedist"
	SpecialtyEndocrinologist Specialty = "endocrinologist"
)

// Specialties lists every referral target in a stable order.
func Specialties() []Specialty {
	return []Specialty{
		SpecialtyCardiologist,
		SpecialtyNeurologist,
		SpecialtyDermatologist,
		SpecialtyOrthopedist,
		SpecialtyEndocrinologist,
	}
}

// Valid reports whether s belongs to the closed specialty set.
func (s Specialty) Valid() bool {
	switch s {
	case SpecialtyCardiologist, SpecialtyNeurologist, SpecialtyDermatologist,
		SpecialtyOrthopedist, SpecialtyEndocrinologist:
		return true
	}
	return false
}

// Stage is the session's position in the consultation state machine. The
// values double as the wire names used by the HTTP API.
type Stage string

const (
	StageIntake              Stage = "history_taking"
	StageAwaitingSpecialist  Stage = "specialist_handoff"
	StageSpecialistConsulted Stage = "specialist_consultation"
	StageComplete            Stage = "consultation_complete"
	StageError               Stage = "error"
)

// stageRank orders the forward-only stages. StageError sits outside the
// ordering: it is reachable from anywhere and terminal.
var stageRank = map[Stage]int{
	StageIntake:              0,
	StageAwaitingSpecialist:  1,
	StageSpecialistConsulted: 2,
	StageComplete:            3,
}

// Terminal reports whether no further content mutation is allowed.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

var (
	ErrInvalidStage     = errors.New("invalid stage transition")
	ErrSessionFrozen    = errors.New("session content is frozen")
	ErrTriageRepeated   = errors.New("triage already recorded")
	ErrTriageIncomplete = errors.New("specialty and clinical summary must be set together")
	ErrNoTriage         = errors.New("specialist response requires a prior triage")
)

// ConsultationSession is the unit of state for one patient consultation.
// It is mutated only through the Store's Update, one turn at a time.
type ConsultationSession struct {
	ID    string `json:"id"`
	Stage Stage  `json:"stage"`

	Transcript    []Entry `json:"transcript"`
	QuestionCount int     `json:"question_count"`

	Specialty          Specialty `json:"specialty,omitempty"`
	ClinicalSummary    string    `json:"clinical_summary,omitempty"`
	SpecialistResponse string    `json:"specialist_response,omitempty"`
	FinalSummary       string    `json:"final_summary,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewConsultationSession creates a session in the intake stage.
func NewConsultationSession(id string, now time.Time) *ConsultationSession {
	return &ConsultationSession{
		ID:             id,
		Stage:          StageIntake,
		CreatedAt:      now.UTC(),
		LastActivityAt: now.UTC(),
	}
}

// Touch refreshes the activity timestamp.
func (s *ConsultationSession) Touch(now time.Time) {
	s.LastActivityAt = now.UTC()
}

// Expired reports whether the session has been idle past the timeout. An
// expired session is indistinguishable from one that never existed.
func (s *ConsultationSession) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActivityAt) > timeout
}

// Append adds a transcript entry.
func (s *ConsultationSession) Append(role Role, text string, now time.Time) {
	s.Transcript = append(s.Transcript, Entry{Role: role, Text: text, At: now.UTC()})
}

// CountQuestion consumes one question slot, never past max. It reports
// whether the slot was actually consumed.
func (s *ConsultationSession) CountQuestion(max int) bool {
	if max > 0 && s.QuestionCount >= max {
		return false
	}
	s.QuestionCount++
	return true
}

// AdvanceTo moves the stage forward. Backward moves are rejected;
// StageError is accepted from any non-terminal stage.
func (s *ConsultationSession) AdvanceTo(next Stage) error {
	if s.Stage.Terminal() {
		return fmt.Errorf("%w: stage=%s", ErrSessionFrozen, s.Stage)
	}
	if next == StageError {
		s.Stage = StageError
		return nil
	}
	from, okFrom := stageRank[s.Stage]
	to, okTo := stageRank[next]
	if !okFrom || !okTo || to < from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStage, s.Stage, next)
	}
	s.Stage = next
	return nil
}

// SetTriage records the intake decision exactly once: specialty and clinical
// summary together, and the move to the specialist-handoff stage.
func (s *ConsultationSession) SetTriage(spec Specialty, summary string, now time.Time) error {
	if s.Specialty != "" || s.ClinicalSummary != "" {
		return ErrTriageRepeated
	}
	if !spec.Valid() || strings.TrimSpace(summary) == "" {
		return ErrTriageIncomplete
	}
	if err := s.AdvanceTo(StageAwaitingSpecialist); err != nil {
		return err
	}
	s.Specialty = spec
	s.ClinicalSummary = summary
	s.Touch(now)
	return nil
}

// SetSpecialistResponse records the specialist assessment, which is only
// meaningful after a triage.
func (s *ConsultationSession) SetSpecialistResponse(text string, now time.Time) error {
	if s.Specialty == "" {
		return ErrNoTriage
	}
	if err := s.AdvanceTo(StageSpecialistConsulted); err != nil {
		return err
	}
	s.SpecialistResponse = text
	s.Touch(now)
	return nil
}

// SetFinalSummary closes the consultation.
func (s *ConsultationSession) SetFinalSummary(text string, now time.Time) error {
	if err := s.AdvanceTo(StageComplete); err != nil {
		return err
	}
	s.FinalSummary = text
	s.Touch(now)
	return nil
}

// Validate checks the cross-field invariants.
func (s *ConsultationSession) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("session id is empty")
	}
	hasSpec := s.Specialty != ""
	hasSummary := strings.TrimSpace(s.ClinicalSummary) != ""
	if hasSpec != hasSummary {
		return ErrTriageIncomplete
	}
	if hasSpec && !s.Specialty.Valid() {
		return fmt.Errorf("unknown specialty %q", s.Specialty)
	}
	if s.SpecialistResponse != "" && !hasSpec {
		return ErrNoTriage
	}
	if _, ok := stageRank[s.Stage]; !ok && s.Stage != StageError {
		return fmt.Errorf("unknown stage %q", s.Stage)
	}
	return nil
}

// Clone deep-copies the session so store callers never share transcript
// backing arrays with the canonical copy.
func (s *ConsultationSession) Clone() *ConsultationSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Transcript = append([]Entry(nil), s.Transcript...)
	return &out
}
