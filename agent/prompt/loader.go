package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

var (
	//go:embed template/intake.txt
	intakeRaw string

	//go:embed template/cardiology.txt
	cardiologyRaw string

	//go:embed template/neurology.txt
	neurologyRaw string

	//go:embed template/dermatology.txt
	dermatologyRaw string

	//go:embed template/orthopedics.txt
	orthopedicsRaw string

	//go:embed template/endocrinology.txt
	endocrinologyRaw string

	//go:embed template/summary.txt
	summaryRaw string
)

// PromptSet holds the system prompts for every agent persona.
type PromptSet struct {
	Intake      string
	Summary     string
	specialists map[statex.Specialty]string
}

// LoadPromptSet returns the embedded prompts, trimmed. Safe for concurrent
// use; the embeds are compile-time constants.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Intake:      strings.TrimSpace(intakeRaw),
		Summary:     strings.TrimSpace(summaryRaw),
		specialists: map[statex.Specialty]string{
			statex.SpecialtyCardiologist:    strings.TrimSpace(cardiologyRaw),
			statex.SpecialtyNeurologist:     strings.TrimSpace(neurologyRaw),
			statex.SpecialtyDermatologist:   strings.TrimSpace(dermatologyRaw),
			statex.SpecialtyOrthopedist:     strings.TrimSpace(orthopedicsRaw),
			statex.SpecialtyEndocrinologist: strings.TrimSpace(endocrinologyRaw),
		},
	}
}

// Specialist returns the persona prompt for one specialty.
func (p PromptSet) Specialist(spec statex.Specialty) (string, error) {
	text, ok := p.specialists[spec]
	if !ok || text == "" {
		return "", fmt.Errorf("%w: specialist prompt for %q", contractx.ErrPromptMissing, spec)
	}
	return text, nil
}
