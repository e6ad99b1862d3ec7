package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/medconsult/medconsult/agent/contract"
	groqx "github.com/medconsult/medconsult/pkg/groq"
)

// Config carries the shared model settings plus optional per-role overrides.
// The intake doctor and the specialists can run on different models or
// temperatures without separate credentials.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.groq.com/openai/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-oss-120b"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`

	IntakeModel           string  `envconfig:"INTAKE_MODEL" split_words:"true"`
	SpecialistModel       string  `envconfig:"SPECIALIST_MODEL" split_words:"true"`
	IntakeTemperature     float32 `envconfig:"INTAKE_TEMPERATURE" split_words:"true" default:"-1"`
	SpecialistTemperature float32 `envconfig:"SPECIALIST_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: groq api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// Role selects which override applies.
type Role string

const (
	RoleIntake     Role = "intake"
	RoleSpecialist Role = "specialist"
)

// GroqFor resolves the effective model settings for a role.
func (c Config) GroqFor(role Role) groqx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleIntake:
		if v := strings.TrimSpace(c.IntakeModel); v != "" {
			modelName = v
		}
		if c.IntakeTemperature >= 0 {
			temp = c.IntakeTemperature
		}
	case RoleSpecialist:
		if v := strings.TrimSpace(c.SpecialistModel); v != "" {
			modelName = v
		}
		if c.SpecialistTemperature >= 0 {
			temp = c.SpecialistTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return groqx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
	}
}
