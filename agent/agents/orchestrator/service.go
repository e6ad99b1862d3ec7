// Package orchestrator drives a consultation turn by turn: it owns the
// session store, routes each patient message by stage, and applies every
// turn as a single store update.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medconsult/medconsult/agent/agents/specialist"
	"github.com/medconsult/medconsult/agent/audit"
	contractx "github.com/medconsult/medconsult/agent/contract"
	nodex "github.com/medconsult/medconsult/agent/nodes"
	statex "github.com/medconsult/medconsult/agent/state"
)

// DefaultMaxQuestions caps intake follow-ups per consultation.
const DefaultMaxQuestions = 5

// Config tunes one orchestrator instance.
type Config struct {
	// MaxQuestions caps intake follow-up questions. Zero means the default.
	MaxQuestions int
}

// NotFoundSummary closes out an end request for a session that no longer
// exists. Ending twice is a harmless no-op, not an error.
const NotFoundSummary = "Session not found"

// ConsultationSummary is the closing report returned when a consultation
// ends.
type ConsultationSummary struct {
	SessionID      string           `json:"session_id"`
	Stage          statex.Stage     `json:"stage,omitempty"`
	TotalMessages  int              `json:"total_messages"`
	QuestionsAsked int              `json:"questions_asked"`
	Specialty      statex.Specialty `json:"specialty,omitempty"`
	SpecialistName string           `json:"specialist_name,omitempty"`
	FinalSummary   string           `json:"final_summary,omitempty"`
}

type Orchestrator struct {
	store  statex.Store
	models contractx.Registry

	sink     contractx.TurnSink
	recorder *audit.Recorder

	stepRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	maxQuestions int
	now          func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTurnSink routes every applied turn to sink, for console display.
func WithTurnSink(sink contractx.TurnSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithRecorder buffers turns per session and writes them out when the
// consultation ends.
func WithRecorder(rec *audit.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(store statex.Store, models contractx.Registry, cfg Config, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if models == nil {
		return nil, errors.New("agent registry is required")
	}

	maxQuestions := cfg.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}

	o := &Orchestrator{
		store:        store,
		models:       models,
		sink:         audit.NopSink{},
		maxQuestions: maxQuestions,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	stepRunner, err := o.compileStepGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.stepRunner = stepRunner

	return o, nil
}

// StartConsultation opens a session around the patient's first message and
// runs the first intake turn. A failed first turn removes the session again
// so the caller never holds an id for a dead consultation.
func (o *Orchestrator) StartConsultation(ctx context.Context, initialMessage string) (contractx.StepResult, error) {
	sessionID := uuid.NewString()

	if _, err := o.store.Create(ctx, sessionID); err != nil {
		return contractx.StepResult{}, err
	}

	res, err := o.Step(ctx, sessionID, initialMessage)
	if err != nil {
		if rmErr := o.store.Remove(ctx, sessionID); rmErr != nil {
			log.Warn().Err(rmErr).Str("session_id", sessionID).Msg("remove half-started session")
		}
		return contractx.StepResult{}, err
	}
	return res, nil
}

// Step routes one patient message through the turn graph.
func (o *Orchestrator) Step(ctx context.Context, sessionID, text string) (contractx.StepResult, error) {
	out, err := o.stepRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		o.freezeOnProtocolError(ctx, sessionID, err)
		return contractx.StepResult{}, err
	}
	return out.Result, nil
}

// SessionStatus returns a snapshot of the session.
func (o *Orchestrator) SessionStatus(ctx context.Context, sessionID string) (*statex.ConsultationSession, error) {
	return o.store.Get(ctx, sessionID)
}

// EndConsultation flushes the audit trail, removes the session, and returns
// the closing report. Ending an unknown or expired session is a no-op that
// reports the not-found summary, so double end calls never fail.
func (o *Orchestrator) EndConsultation(ctx context.Context, sessionID string) (ConsultationSummary, error) {
	sess, err := o.store.Get(ctx, sessionID)
	if errors.Is(err, statex.ErrSessionNotFound) {
		return ConsultationSummary{SessionID: sessionID, FinalSummary: NotFoundSummary}, nil
	}
	if err != nil {
		return ConsultationSummary{}, err
	}

	summary := ConsultationSummary{
		SessionID:      sess.ID,
		Stage:          sess.Stage,
		TotalMessages:  len(sess.Transcript),
		QuestionsAsked: sess.QuestionCount,
		FinalSummary:   sess.FinalSummary,
	}
	if sess.Specialty != "" {
		summary.Specialty = sess.Specialty
		summary.SpecialistName = specialist.DisplayName(sess.Specialty)
	}

	if o.recorder != nil {
		if err := o.recorder.Flush(sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("flush consultation log")
		}
	}

	if err := o.store.Remove(ctx, sessionID); err != nil {
		return ConsultationSummary{}, err
	}
	return summary, nil
}

// freezeOnProtocolError moves the session to the error stage when the model
// broke the tool protocol. Transient upstream failures leave the session
// alone so the patient can retry the turn.
func (o *Orchestrator) freezeOnProtocolError(ctx context.Context, sessionID string, cause error) {
	if !errors.Is(cause, contractx.ErrUpstreamProtocol) {
		return
	}
	_, err := o.store.Update(ctx, sessionID, func(s *statex.ConsultationSession) error {
		return s.AdvanceTo(statex.StageError)
	})
	if err != nil && !errors.Is(err, statex.ErrSessionNotFound) {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("mark session failed")
	}
}
