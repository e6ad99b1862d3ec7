// Package specialist hosts the five referral targets and the closing
// summary composer. Each consultant is a persona prompt around one model
// round trip; all conversation state stays with the orchestrator.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// displayNames maps each specialty onto its consulting doctor persona, in
// the "Name (Specialty)" form the API reports.
var displayNames = map[statex.Specialty]string{
	statex.SpecialtyCardiologist:    "Dr. Michael Rodriguez (Cardiologist)",
	statex.SpecialtyNeurologist:     "Dr. David Kim (Neurologist)",
	statex.SpecialtyDermatologist:   "Dr. Maria Garcia (Dermatologist)",
	statex.SpecialtyOrthopedist:     "Dr. James Thompson (Orthopedist)",
	statex.SpecialtyEndocrinologist: "Dr. Lisa Patel (Endocrinologist)",
}

// DisplayName returns the doctor persona for a specialty, or the intake
// doctor for anything unrecognized.
func DisplayName(spec statex.Specialty) string {
	if name, ok := displayNames[spec]; ok {
		return name
	}
	return contractx.IntakeDoctorName
}

type consultantImpl struct {
	specialty statex.Specialty
	runner    compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Consultant = (*consultantImpl)(nil)

// Consult sends the clinical summary through the persona graph and returns
// the assessment text.
func (c *consultantImpl) Consult(ctx context.Context, clinicalSummary string) (string, error) {
	clinicalSummary = strings.TrimSpace(clinicalSummary)
	if clinicalSummary == "" {
		return "", fmt.Errorf("%w: clinical summary is empty", contractx.ErrValidation)
	}

	payload := map[string]any{
		"clinical_summary": clinicalSummary,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal consult payload: %v", contractx.ErrValidation, err)
	}

	msg, err := c.runner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		return "", fmt.Errorf("%w: %s consult: %v", contractx.ErrUpstreamUnavailable, c.specialty, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: %s returned an empty assessment", contractx.ErrUpstreamProtocol, c.specialty)
	}
	return strings.TrimSpace(msg.Content), nil
}

type summarizerImpl struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.SummaryComposer = (*summarizerImpl)(nil)

// Compose writes the closing summary from the intake summary and the
// specialist assessment.
func (s *summarizerImpl) Compose(ctx context.Context, clinicalSummary, specialistResponse string) (string, error) {
	payload := map[string]any{
		"clinical_summary":      strings.TrimSpace(clinicalSummary),
		"specialist_assessment": strings.TrimSpace(specialistResponse),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal summary payload: %v", contractx.ErrValidation, err)
	}

	msg, err := s.runner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		return "", fmt.Errorf("%w: closing summary: %v", contractx.ErrUpstreamUnavailable, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: closing summary is empty", contractx.ErrUpstreamProtocol)
	}
	return strings.TrimSpace(msg.Content), nil
}
