package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

type scriptedIntake struct {
	script []func(*statex.ConsultationSession, string) (contractx.TurnResult, error)
	calls  int
}

func (f *scriptedIntake) ProcessTurn(_ context.Context, sess *statex.ConsultationSession, text string) (contractx.TurnResult, error) {
	if f.calls >= len(f.script) {
		return contractx.TurnResult{}, errors.New("no scripted intake turn left")
	}
	step := f.script[f.calls]
	f.calls++
	return step(sess, text)
}

func question(text string) func(*statex.ConsultationSession, string) (contractx.TurnResult, error) {
	return func(*statex.ConsultationSession, string) (contractx.TurnResult, error) {
		return contractx.TurnResult{Reply: text, IsQuestion: true}, nil
	}
}

func triage(spec statex.Specialty, summary string) func(*statex.ConsultationSession, string) (contractx.TurnResult, error) {
	return func(*statex.ConsultationSession, string) (contractx.TurnResult, error) {
		return contractx.TurnResult{
			Triaged:         true,
			Reply:           fmt.Sprintf("I am referring you to our %s.", spec),
			Specialty:       spec,
			ClinicalSummary: summary,
		}, nil
	}
}

func turnErr(err error) func(*statex.ConsultationSession, string) (contractx.TurnResult, error) {
	return func(*statex.ConsultationSession, string) (contractx.TurnResult, error) {
		return contractx.TurnResult{}, err
	}
}

type fakeConsultant struct {
	assessment string
	err        error
}

func (f *fakeConsultant) Consult(context.Context, string) (string, error) {
	return f.assessment, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Compose(context.Context, string, string) (string, error) {
	return f.summary, f.err
}

type fakeRegistry struct {
	intake     contractx.IntakeAgent
	consultant contractx.Consultant
	summarizer contractx.SummaryComposer
}

func (f *fakeRegistry) Intake() contractx.IntakeAgent { return f.intake }

func (f *fakeRegistry) Consultant(spec statex.Specialty) (contractx.Consultant, error) {
	if f.consultant == nil {
		return nil, fmt.Errorf("%w: no consultant for %q", contractx.ErrValidation, spec)
	}
	return f.consultant, nil
}

func (f *fakeRegistry) Summarizer() contractx.SummaryComposer { return f.summarizer }

func newTestOrchestrator(t *testing.T, models contractx.Registry) (*Orchestrator, *statex.MemoryStore) {
	t.Helper()
	store := statex.NewMemoryStore()
	orch, err := New(store, models, Config{MaxQuestions: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return orch, store
}

func TestConsultationHappyPath(t *testing.T) {
	models := &fakeRegistry{
		intake: &scriptedIntake{script: []func(*statex.ConsultationSession, string) (contractx.TurnResult, error){
			question("How long has the chest pain lasted?"),
			question("Does it radiate to your arm?"),
			triage(statex.SpecialtyCardiologist, "Chest pain on exertion, radiating to the left arm."),
		}},
		consultant: &fakeConsultant{assessment: "Likely stable angina. You should schedule a stress test. Take Aspirin 81 mg daily."},
		summarizer: &fakeSummarizer{summary: "Your cardiologist suspects stable angina. Follow up for a stress test."},
	}
	orch, _ := newTestOrchestrator(t, models)
	ctx := context.Background()

	start, err := orch.StartConsultation(ctx, "I have chest pain when I climb stairs")
	if err != nil {
		t.Fatalf("StartConsultation: %v", err)
	}
	if start.Kind != contractx.StepAskedQuestion || start.QuestionCount != 1 {
		t.Fatalf("unexpected first step: %+v", start)
	}
	sessionID := start.SessionID

	second, err := orch.Step(ctx, sessionID, "About two weeks")
	if err != nil {
		t.Fatalf("second step: %v", err)
	}
	if second.QuestionCount != 2 {
		t.Fatalf("QuestionCount = %d, want 2", second.QuestionCount)
	}

	handoff, err := orch.Step(ctx, sessionID, "Yes, into my left arm")
	if err != nil {
		t.Fatalf("handoff step: %v", err)
	}
	if handoff.Kind != contractx.StepHandedOff || handoff.Specialty != statex.SpecialtyCardiologist {
		t.Fatalf("unexpected handoff: %+v", handoff)
	}
	if handoff.SpecialistName != "Dr. Michael Rodriguez (Cardiologist)" {
		t.Fatalf("specialist name = %q", handoff.SpecialistName)
	}
	if handoff.Stage != statex.StageAwaitingSpecialist {
		t.Fatalf("stage after handoff = %s", handoff.Stage)
	}

	consult, err := orch.Step(ctx, sessionID, "Yes, please proceed")
	if err != nil {
		t.Fatalf("specialist step: %v", err)
	}
	if consult.Kind != contractx.StepSpecialistAnswered {
		t.Fatalf("unexpected consult step: %+v", consult)
	}
	if len(consult.Medications) == 0 || consult.Medications[0] != "Aspirin" {
		t.Fatalf("medications = %v", consult.Medications)
	}
	if len(consult.Recommendations) == 0 {
		t.Fatal("no recommendations extracted")
	}

	final, err := orch.Step(ctx, sessionID, "Thank you")
	if err != nil {
		t.Fatalf("summary step: %v", err)
	}
	if final.Kind != contractx.StepFinished || final.Stage != statex.StageComplete {
		t.Fatalf("unexpected final step: %+v", final)
	}

	report, err := orch.EndConsultation(ctx, sessionID)
	if err != nil {
		t.Fatalf("EndConsultation: %v", err)
	}
	if report.QuestionsAsked != 2 || report.Specialty != statex.SpecialtyCardiologist {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TotalMessages != 10 {
		t.Fatalf("TotalMessages = %d, want 10", report.TotalMessages)
	}

	again, err := orch.EndConsultation(ctx, sessionID)
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if again.SessionID != sessionID || again.FinalSummary != NotFoundSummary {
		t.Fatalf("second end summary = %+v", again)
	}
}

func TestEndConsultationMissingSessionIsNoOp(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeRegistry{intake: &scriptedIntake{}})

	report, err := orch.EndConsultation(context.Background(), "long-gone")
	if err != nil {
		t.Fatalf("EndConsultation: %v", err)
	}
	if report.SessionID != "long-gone" || report.FinalSummary != NotFoundSummary {
		t.Fatalf("report = %+v", report)
	}
	if report.Stage != "" || report.TotalMessages != 0 {
		t.Fatalf("not-found report must carry no session data: %+v", report)
	}
}

func TestCompletedSessionRejectsFurtherTurns(t *testing.T) {
	models := &fakeRegistry{
		intake:     &scriptedIntake{script: []func(*statex.ConsultationSession, string) (contractx.TurnResult, error){triage(statex.SpecialtyNeurologist, "recurring migraines")}},
		consultant: &fakeConsultant{assessment: "Migraine with aura. I recommend keeping a headache diary."},
		summarizer: &fakeSummarizer{summary: "You are being treated for migraines."},
	}
	orch, _ := newTestOrchestrator(t, models)
	ctx := context.Background()

	start, err := orch.StartConsultation(ctx, "terrible headaches")
	if err != nil {
		t.Fatalf("StartConsultation: %v", err)
	}
	if _, err := orch.Step(ctx, start.SessionID, "go ahead"); err != nil {
		t.Fatalf("specialist step: %v", err)
	}
	if _, err := orch.Step(ctx, start.SessionID, "thanks"); err != nil {
		t.Fatalf("summary step: %v", err)
	}

	_, err = orch.Step(ctx, start.SessionID, "one more thing")
	if !errors.Is(err, contractx.ErrSessionTerminal) {
		t.Fatalf("err = %v, want ErrSessionTerminal", err)
	}
}

func TestUpstreamFailureLeavesSessionUntouched(t *testing.T) {
	models := &fakeRegistry{
		intake: &scriptedIntake{script: []func(*statex.ConsultationSession, string) (contractx.TurnResult, error){
			question("Where does it hurt?"),
			turnErr(fmt.Errorf("%w: 503", contractx.ErrUpstreamUnavailable)),
			question("How bad is the pain?"),
		}},
	}
	orch, store := newTestOrchestrator(t, models)
	ctx := context.Background()

	start, err := orch.StartConsultation(ctx, "my knee hurts")
	if err != nil {
		t.Fatalf("StartConsultation: %v", err)
	}

	before, _ := store.Get(ctx, start.SessionID)

	if _, err := orch.Step(ctx, start.SessionID, "the left knee"); !errors.Is(err, contractx.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	after, _ := store.Get(ctx, start.SessionID)
	if len(after.Transcript) != len(before.Transcript) || after.Stage != before.Stage {
		t.Fatalf("failed turn mutated the session: before=%+v after=%+v", before, after)
	}

	// The same message can be retried.
	res, err := orch.Step(ctx, start.SessionID, "the left knee")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.QuestionCount != 2 {
		t.Fatalf("QuestionCount after retry = %d, want 2", res.QuestionCount)
	}
}

func TestProtocolErrorFreezesSession(t *testing.T) {
	models := &fakeRegistry{
		intake: &scriptedIntake{script: []func(*statex.ConsultationSession, string) (contractx.TurnResult, error){
			question("What did you eat?"),
			turnErr(fmt.Errorf("%w: unknown consult tool", contractx.ErrUpstreamProtocol)),
		}},
	}
	orch, store := newTestOrchestrator(t, models)
	ctx := context.Background()

	start, err := orch.StartConsultation(ctx, "stomach ache")
	if err != nil {
		t.Fatalf("StartConsultation: %v", err)
	}

	if _, err := orch.Step(ctx, start.SessionID, "just soup"); !errors.Is(err, contractx.ErrUpstreamProtocol) {
		t.Fatalf("err = %v, want ErrUpstreamProtocol", err)
	}

	sess, err := store.Get(ctx, start.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Stage != statex.StageError {
		t.Fatalf("stage = %s, want error", sess.Stage)
	}

	if _, err := orch.Step(ctx, start.SessionID, "hello?"); !errors.Is(err, contractx.ErrSessionTerminal) {
		t.Fatalf("err = %v, want ErrSessionTerminal", err)
	}
}

func TestFailedFirstTurnRemovesSession(t *testing.T) {
	models := &fakeRegistry{
		intake: &scriptedIntake{script: []func(*statex.ConsultationSession, string) (contractx.TurnResult, error){
			turnErr(fmt.Errorf("%w: timeout", contractx.ErrUpstreamUnavailable)),
		}},
	}
	orch, store := newTestOrchestrator(t, models)

	_, err := orch.StartConsultation(context.Background(), "hello")
	if !errors.Is(err, contractx.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if got := store.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount = %d, want 0", got)
	}
}

func TestStepValidation(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeRegistry{intake: &scriptedIntake{}})
	ctx := context.Background()

	if _, err := orch.Step(ctx, "", "hello"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty session err = %v, want ErrValidation", err)
	}
	if _, err := orch.Step(ctx, "some-id", "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty text err = %v, want ErrValidation", err)
	}
	if _, err := orch.Step(ctx, "missing", "hello"); !errors.Is(err, statex.ErrSessionNotFound) {
		t.Fatalf("unknown session err = %v, want ErrSessionNotFound", err)
	}
}
