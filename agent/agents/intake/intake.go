// Package intake implements the primary care agent: it runs the
// history-taking conversation and decides, via consult tool calls, which
// specialist receives the case.
package intake

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// MaxQuestionsReply replaces the model's text once the follow-up question
// budget is spent, so the conversation moves toward a referral.
const MaxQuestionsReply = "Thank you for all the information. I have enough to determine the best course of action. Shall we proceed?"

// forceTriageSteer is appended to the prompt when the question budget is
// spent and the agent is configured to push the model toward a tool call.
const forceTriageSteer = "You have asked the maximum number of follow-up questions. Select the appropriate consult tool now with a complete clinical summary. Do not ask the patient anything else."

const maxQuestionsPlaceholder = "{max_questions}"

// Config tunes intake behavior per deployment.
type Config struct {
	// MaxQuestions caps the follow-up questions asked before triage.
	MaxQuestions int

	// ForceTriageAtLimit steers the model toward a consult tool call once
	// the question budget is spent, instead of only overriding its reply.
	ForceTriageAtLimit bool
}

// Agent is a stateless intake turn processor. It reads the session
// transcript, calls the tool-bound chat model once, and reports the outcome
// without mutating the session.
type Agent struct {
	model        model.ToolCallingChatModel
	systemPrompt string
	maxQuestions int
	forceTriage  bool
	specialties  map[string]statex.Specialty
}

var _ contractx.IntakeAgent = (*Agent)(nil)

// New binds the consult tools onto chatModel and prepares the system prompt.
func New(chatModel model.ToolCallingChatModel, systemPrompt string, cfg Config) (*Agent, error) {
	if cfg.MaxQuestions <= 0 {
		return nil, fmt.Errorf("%w: max questions must be positive", contractx.ErrValidation)
	}

	toolModel, err := chatModel.WithTools(consultTools())
	if err != nil {
		return nil, fmt.Errorf("bind consult tools: %w", err)
	}

	return &Agent{
		model:        toolModel,
		systemPrompt: strings.ReplaceAll(systemPrompt, maxQuestionsPlaceholder, strconv.Itoa(cfg.MaxQuestions)),
		maxQuestions: cfg.MaxQuestions,
		forceTriage:  cfg.ForceTriageAtLimit,
		specialties:  toolSpecialties(),
	}, nil
}

// ProcessTurn runs one intake exchange against a session snapshot.
func (a *Agent) ProcessTurn(ctx context.Context, sess *statex.ConsultationSession, patientText string) (contractx.TurnResult, error) {
	patientText = strings.TrimSpace(patientText)
	if patientText == "" {
		return contractx.TurnResult{}, fmt.Errorf("%w: empty patient message", contractx.ErrValidation)
	}

	budgetSpent := sess.QuestionCount >= a.maxQuestions
	msgs := a.buildMessages(sess, patientText, budgetSpent)

	resp, err := a.model.Generate(ctx, msgs)
	if err != nil {
		return contractx.TurnResult{}, fmt.Errorf("%w: intake completion: %v", contractx.ErrUpstreamUnavailable, err)
	}

	if len(resp.ToolCalls) > 0 {
		return a.resolveToolCall(sess.ID, resp)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return contractx.TurnResult{}, fmt.Errorf("%w: intake returned an empty reply", contractx.ErrUpstreamProtocol)
	}

	isQuestion := strings.Contains(reply, "?")
	if overrideReply(sess.QuestionCount, a.maxQuestions, isQuestion) {
		reply = MaxQuestionsReply
		isQuestion = true
	}

	return contractx.TurnResult{Reply: reply, IsQuestion: isQuestion}, nil
}

// buildMessages maps the session transcript onto chat messages, ending with
// the new patient turn.
func (a *Agent) buildMessages(sess *statex.ConsultationSession, patientText string, budgetSpent bool) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(sess.Transcript)+3)
	msgs = append(msgs, schema.SystemMessage(a.systemPrompt))

	for _, entry := range sess.Transcript {
		switch entry.Role {
		case statex.RolePatient:
			msgs = append(msgs, schema.UserMessage(entry.Text))
		case statex.RoleAgent:
			msgs = append(msgs, schema.AssistantMessage(entry.Text, nil))
		case statex.RoleSystem:
			msgs = append(msgs, schema.SystemMessage(entry.Text))
		}
	}

	if budgetSpent && a.forceTriage {
		msgs = append(msgs, schema.SystemMessage(forceTriageSteer))
	}
	msgs = append(msgs, schema.UserMessage(patientText))
	return msgs
}

// resolveToolCall honors the first consult tool call and discards the rest.
func (a *Agent) resolveToolCall(sessionID string, resp *schema.Message) (contractx.TurnResult, error) {
	call := resp.ToolCalls[0]
	if extra := len(resp.ToolCalls) - 1; extra > 0 {
		log.Warn().
			Str("session_id", sessionID).
			Int("discarded", extra).
			Msg("model returned multiple consult calls, honoring the first")
	}

	spec, ok := a.specialties[call.Function.Name]
	if !ok {
		return contractx.TurnResult{}, fmt.Errorf("%w: unknown consult tool %q", contractx.ErrUpstreamProtocol, call.Function.Name)
	}

	summary, err := parseSummaryArg(call.Function.Arguments)
	if err != nil {
		return contractx.TurnResult{}, err
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		reply = fmt.Sprintf("Based on your symptoms, I am referring you to our %s for a focused assessment.", spec)
	}

	return contractx.TurnResult{
		Triaged:         true,
		Reply:           reply,
		Specialty:       spec,
		ClinicalSummary: summary,
	}, nil
}

// overrideReply reports whether the model's text should be replaced because
// this question would land on or past the budget.
func overrideReply(asked, max int, isQuestion bool) bool {
	if asked >= max {
		return true
	}
	return isQuestion && asked+1 >= max
}
