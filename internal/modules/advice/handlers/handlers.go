// Package handlers exposes the advisory pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/advice"
	"github.com/aristath/advisor/internal/modules/profiling"
)

// Adviser runs the full advisory pipeline. *advice.Service satisfies it.
type Adviser interface {
	Advise(ctx context.Context, req advice.Request) (*advice.Result, error)
}

// ProfileEvaluator scores a questionnaire. *profiling.Profiler satisfies it.
type ProfileEvaluator interface {
	Evaluate(response profiling.KYCResponse) (*profiling.RiskProfile, error)
}

// Handler serves the advice and profile endpoints.
type Handler struct {
	adviser  Adviser
	profiler ProfileEvaluator
	log      zerolog.Logger
}

// NewHandler creates the advisory handler.
func NewHandler(adviser Adviser, profiler ProfileEvaluator, log zerolog.Logger) *Handler {
	return &Handler{
		adviser:  adviser,
		profiler: profiler,
		log:      log.With().Str("handler", "advice").Logger(),
	}
}

// RegisterRoutes mounts the advisory endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/advice", h.HandleAdvice)
	r.Post("/profile", h.HandleProfile)
}

// HandleAdvice runs the full pipeline and returns a recommendation.
// POST /api/advice
//
// A questionnaire with error-severity inconsistencies comes back as
// 422 with the profile and its violations; invalid request fields come
// back as 422 with per-field violations. Data failures are 500s.
func (h *Handler) HandleAdvice(w http.ResponseWriter, r *http.Request) {
	var req advice.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	result, err := h.adviser.Advise(r.Context(), req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeViolations(w, verr)
			return
		}
		h.log.Error().Err(err).Msg("Advisory run failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.Blocked {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleProfile evaluates a questionnaire without running the rest of
// the pipeline. Inconsistent answers still return the full profile so
// the client can show what tripped; only out-of-range scores are
// rejected.
// POST /api/profile
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	var response profiling.KYCResponse
	if err := json.NewDecoder(r.Body).Decode(&response); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	profile, err := h.profiler.Evaluate(response)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeViolations(w, verr)
			return
		}
		h.log.Error().Err(err).Msg("Profile evaluation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Ignore encode error - already committed response
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeViolations(w http.ResponseWriter, verr *domain.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":      "validation failed",
		"violations": verr.Violations,
	})
}
