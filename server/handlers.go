package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

type startRequest struct {
	Message string `json:"message"`
}

type sendRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type endRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"message":   "Medical consultation server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (s *Server) handleStartConsultation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Message is required to start consultation")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	res, err := s.svc.StartConsultation(r.Context(), req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"session_id":         res.SessionID,
		"doctor_name":        contractx.IntakeDoctorName,
		"doctor_response":    res.Reply,
		"is_question":        res.IsQuestion,
		"consultation_stage": res.Stage,
		"question_count":     res.QuestionCount,
		"max_questions":      s.maxQuestions,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Session ID and message are required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "Session ID and message are required")
		return
	}

	res, err := s.svc.Step(r.Context(), req.SessionID, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	payload := map[string]any{
		"success":            true,
		"session_id":         res.SessionID,
		"doctor_response":    res.Reply,
		"is_question":        res.IsQuestion,
		"consultation_stage": res.Stage,
	}

	switch res.Kind {
	case contractx.StepAskedQuestion:
		payload["doctor_name"] = contractx.IntakeDoctorName
		payload["question_count"] = res.QuestionCount
		payload["max_questions"] = s.maxQuestions
	case contractx.StepHandedOff:
		payload["specialist_name"] = res.SpecialistName
		payload["handoff_message"] = res.Reply
	case contractx.StepSpecialistAnswered:
		payload["specialist_name"] = res.SpecialistName
		payload["clinical_summary"] = res.ClinicalSummary
		payload["specialist_assessment"] = res.Assessment
		payload["recommendations"] = res.Recommendations
		payload["medications"] = res.Medications
	case contractx.StepFinished:
		payload["final_summary"] = res.FinalSummary
		payload["specialist_consulted"] = res.SpecialistName
		payload["clinical_summary"] = res.ClinicalSummary
	}

	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleEndConsultation(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Session ID is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	summary, err := s.svc.EndConsultation(r.Context(), req.SessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Consultation ended successfully",
		"summary":   summary,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.svc.SessionStatus(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"session_id":     sess.ID,
		"stage":          sess.Stage,
		"question_count": sess.QuestionCount,
		"created_at":     sess.CreatedAt.Format(time.RFC3339),
		"last_activity":  sess.LastActivityAt.Format(time.RFC3339),
	})
}

// respondServiceError maps domain errors onto the status codes and error
// strings the client expects.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contractx.ErrValidation), errors.Is(err, statex.ErrInvalidSession):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, statex.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "Invalid or expired session")
	case errors.Is(err, contractx.ErrSessionTerminal):
		respondError(w, http.StatusConflict, "Consultation has already ended")
	case errors.Is(err, contractx.ErrUpstreamUnavailable), errors.Is(err, contractx.ErrUpstreamProtocol):
		respondError(w, http.StatusBadGateway, "Doctor service is temporarily unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{
		"error":   msg,
		"success": false,
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
