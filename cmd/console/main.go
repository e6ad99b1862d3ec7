package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/medconsult/medconsult/agent/agents/intake"
	"github.com/medconsult/medconsult/agent/agents/orchestrator"
	"github.com/medconsult/medconsult/agent/agents/specialist"
	"github.com/medconsult/medconsult/agent/audit"
	contractx "github.com/medconsult/medconsult/agent/contract"
	llmx "github.com/medconsult/medconsult/agent/llm"
	statex "github.com/medconsult/medconsult/agent/state"
	configx "github.com/medconsult/medconsult/pkg/config"
	_ "github.com/medconsult/medconsult/pkg/logger/autoload"
)

type ConsoleConfig struct {
	MaxQuestions   int           `envconfig:"MAX_QUESTIONS" split_words:"true" default:"5"`
	SessionTimeout time.Duration `envconfig:"SESSION_TIMEOUT" split_words:"true" default:"30m"`
	ForceTriage    bool          `envconfig:"FORCE_TRIAGE" split_words:"true" default:"false"`
	AuditLogPath   string        `envconfig:"AUDIT_LOG_PATH" split_words:"true" default:"consultation_log.json"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[ConsoleConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("GROQ")

	registry, err := specialist.NewRegistry(ctx, *llmCfg, intake.Config{
		MaxQuestions:       appCfg.MaxQuestions,
		ForceTriageAtLimit: appCfg.ForceTriage,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build agent registry")
	}

	store := statex.NewMemoryStore(statex.WithTimeout(appCfg.SessionTimeout))
	recorder := audit.NewRecorder(appCfg.AuditLogPath)

	orch, err := orchestrator.New(store, registry,
		orchestrator.Config{MaxQuestions: appCfg.MaxQuestions},
		orchestrator.WithTurnSink(audit.NewConsoleSink(os.Stdout)),
		orchestrator.WithRecorder(recorder),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	banner := color.New(color.FgCyan, color.Bold)
	banner.Println("Medical Consultation")
	fmt.Printf("You are speaking with %s. Describe your symptoms, or type 'quit' to leave.\n\n", contractx.IntakeDoctorName)

	scanner := bufio.NewScanner(os.Stdin)

	first, ok := readLine(scanner)
	if !ok || isQuit(first) {
		return
	}

	res, err := orch.StartConsultation(ctx, first)
	if err != nil {
		log.Fatal().Err(err).Msg("start consultation")
	}
	sessionID := res.SessionID

	for res.Kind != contractx.StepFinished {
		text, ok := readLine(scanner)
		if !ok || isQuit(text) {
			break
		}

		res, err = orch.Step(ctx, sessionID, text)
		if err != nil {
			color.Red("Something went wrong: %v", err)
			break
		}
	}

	report, err := orch.EndConsultation(ctx, sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("end consultation")
	}

	fmt.Println()
	banner.Println("Consultation Report")
	fmt.Printf("Messages exchanged: %d\n", report.TotalMessages)
	fmt.Printf("Questions asked:    %d\n", report.QuestionsAsked)
	if report.SpecialistName != "" {
		fmt.Printf("Specialist:         %s (%s)\n", report.SpecialistName, report.Specialty)
	}
	fmt.Printf("Log written to %s\n", appCfg.AuditLogPath)
}

func readLine(scanner *bufio.Scanner) (string, bool) {
	fmt.Print("You: ")
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}

func isQuit(text string) bool {
	switch strings.ToLower(text) {
	case "quit", "exit", "bye":
		return true
	default:
		return false
	}
}
