package specialist

import (
	"context"
	"fmt"

	"github.com/medconsult/medconsult/agent/agents/intake"
	contractx "github.com/medconsult/medconsult/agent/contract"
	llmx "github.com/medconsult/medconsult/agent/llm"
	promptx "github.com/medconsult/medconsult/agent/prompt"
	statex "github.com/medconsult/medconsult/agent/state"
)

type registryImpl struct {
	intake      contractx.IntakeAgent
	consultants map[statex.Specialty]contractx.Consultant
	summarizer  contractx.SummaryComposer
}

var _ contractx.Registry = (*registryImpl)(nil)

func (r *registryImpl) Intake() contractx.IntakeAgent {
	return r.intake
}

func (r *registryImpl) Consultant(spec statex.Specialty) (contractx.Consultant, error) {
	c, ok := r.consultants[spec]
	if !ok {
		return nil, fmt.Errorf("%w: no consultant for specialty %q", contractx.ErrValidation, spec)
	}
	return c, nil
}

func (r *registryImpl) Summarizer() contractx.SummaryComposer {
	return r.summarizer
}

// NewRegistry builds the intake agent, the five consultants, and the
// summary composer, all from one validated config.
func NewRegistry(ctx context.Context, cfg llmx.Config, intakeCfg intake.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	intakeModelCfg := cfg.GroqFor(llmx.RoleIntake)
	intakeModel, err := intakeModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create intake model: %v", contractx.ErrUpstreamUnavailable, err)
	}
	intakeAgent, err := intake.New(intakeModel, prompts.Intake, intakeCfg)
	if err != nil {
		return nil, err
	}

	specialistModelCfg := cfg.GroqFor(llmx.RoleSpecialist)
	specialistModel, err := specialistModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create specialist model: %v", contractx.ErrUpstreamUnavailable, err)
	}

	consultants := make(map[statex.Specialty]contractx.Consultant, len(statex.Specialties()))
	for _, spec := range statex.Specialties() {
		systemPrompt, err := prompts.Specialist(spec)
		if err != nil {
			return nil, err
		}
		runner, err := compileConsultGraph(ctx, specialistModel, systemPrompt, fmt.Sprintf("specialist.%s_graph", spec))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrUpstreamUnavailable, spec, err)
		}
		consultants[spec] = &consultantImpl{specialty: spec, runner: runner}
	}

	summaryRunner, err := compileConsultGraph(ctx, specialistModel, prompts.Summary, "summary.compose_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: summary composer: %v", contractx.ErrUpstreamUnavailable, err)
	}

	return &registryImpl{
		intake:      intakeAgent,
		consultants: consultants,
		summarizer:  &summarizerImpl{runner: summaryRunner},
	}, nil
}
