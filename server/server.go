// Package server exposes the consultation flow over HTTP. Routes and
// payload field names match the browser client, so handlers shape responses
// per stage instead of returning one envelope.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/medconsult/medconsult/agent/agents/orchestrator"
	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// Consultations is the orchestrator surface the handlers need.
type Consultations interface {
	StartConsultation(ctx context.Context, initialMessage string) (contractx.StepResult, error)
	Step(ctx context.Context, sessionID, text string) (contractx.StepResult, error)
	SessionStatus(ctx context.Context, sessionID string) (*statex.ConsultationSession, error)
	EndConsultation(ctx context.Context, sessionID string) (orchestrator.ConsultationSummary, error)
}

// Config is the HTTP listener configuration.
type Config struct {
	Port         string        `envconfig:"PORT" default:"5000"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"60s"`

	// MaxQuestions is echoed to clients in intake-stage payloads.
	MaxQuestions int `envconfig:"MAX_QUESTIONS" split_words:"true" default:"5"`
}

type Server struct {
	svc          Consultations
	maxQuestions int
	router       chi.Router
}

func New(svc Consultations, cfg Config) *Server {
	maxQuestions := cfg.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = orchestrator.DefaultMaxQuestions
	}

	s := &Server{
		svc:          svc,
		maxQuestions: maxQuestions,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start(cfg Config) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	log.Info().Str("port", cfg.Port).Msg("consultation server listening")
	return srv.ListenAndServe()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/start-consultation", s.handleStartConsultation)
		r.Post("/send-message", s.handleSendMessage)
		r.Post("/end-consultation", s.handleEndConsultation)
		r.Get("/session-status/{sessionID}", s.handleSessionStatus)
	})
	return r
}

// corsMiddleware opens the API to the browser frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
