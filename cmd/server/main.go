package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medconsult/medconsult/agent/agents/intake"
	"github.com/medconsult/medconsult/agent/agents/orchestrator"
	"github.com/medconsult/medconsult/agent/agents/specialist"
	"github.com/medconsult/medconsult/agent/audit"
	llmx "github.com/medconsult/medconsult/agent/llm"
	statex "github.com/medconsult/medconsult/agent/state"
	configx "github.com/medconsult/medconsult/pkg/config"
	groqx "github.com/medconsult/medconsult/pkg/groq"
	_ "github.com/medconsult/medconsult/pkg/logger/autoload"
	"github.com/medconsult/medconsult/server"
)

type AppConfig struct {
	MaxQuestions   int           `envconfig:"MAX_QUESTIONS" split_words:"true" default:"5"`
	SessionTimeout time.Duration `envconfig:"SESSION_TIMEOUT" split_words:"true" default:"30m"`
	ForceTriage    bool          `envconfig:"FORCE_TRIAGE" split_words:"true" default:"false"`

	// AuditLogPath enables the JSON consultation log when set.
	AuditLogPath string `envconfig:"AUDIT_LOG_PATH" split_words:"true"`

	// UseUpstash switches session persistence from process memory to the
	// Upstash Redis REST store.
	UseUpstash bool `envconfig:"USE_UPSTASH" split_words:"true" default:"false"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("GROQ")
	srvCfg := configx.MustNew[server.Config]("SERVER")

	// Fail fast on bad credentials instead of failing the first patient.
	probeCfg := llmCfg.GroqFor(llmx.RoleIntake)
	client := groqx.NewClient(probeCfg)
	if err := groqx.Ping(ctx, client, probeCfg.Model); err != nil {
		log.Fatal().Err(err).Msg("groq connection probe failed")
	}
	log.Info().Str("model", probeCfg.Model).Msg("groq connection verified")

	registry, err := specialist.NewRegistry(ctx, *llmCfg, intake.Config{
		MaxQuestions:       appCfg.MaxQuestions,
		ForceTriageAtLimit: appCfg.ForceTriage,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build agent registry")
	}

	var store statex.Store
	if appCfg.UseUpstash {
		upstashCfg := configx.MustNew[statex.UpstashConfig]("UPSTASH_REDIS")
		store, err = statex.NewUpstashStore(*upstashCfg, statex.WithUpstashTimeout(appCfg.SessionTimeout))
		if err != nil {
			log.Fatal().Err(err).Msg("connect upstash session store")
		}
		log.Info().Msg("using upstash session store")
	} else {
		store = statex.NewMemoryStore(statex.WithTimeout(appCfg.SessionTimeout))
	}

	var opts []orchestrator.Option
	if appCfg.AuditLogPath != "" {
		opts = append(opts, orchestrator.WithRecorder(audit.NewRecorder(appCfg.AuditLogPath)))
	}

	orch, err := orchestrator.New(store, registry, orchestrator.Config{MaxQuestions: appCfg.MaxQuestions}, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	srvCfg.MaxQuestions = appCfg.MaxQuestions
	srv := server.New(orch, *srvCfg)
	if err := srv.Start(*srvCfg); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}
