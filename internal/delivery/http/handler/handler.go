package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/user/evidence-service/internal/delivery/http/request"
	"github.com/user/evidence-service/internal/delivery/http/response"
	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/usecase"
)

// BreakerAdmin is the operator view of the circuit breakers.
type BreakerAdmin interface {
	List(ctx context.Context) ([]entity.CircuitBreakerState, error)
	Reset(ctx context.Context, service string) error
}

// HealthCheck pings one backing dependency.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Handler struct {
	retriever usecase.Retriever
	breakers  BreakerAdmin
	checks    []HealthCheck
}

func NewHandler(retriever usecase.Retriever, breakers BreakerAdmin, checks ...HealthCheck) *Handler {
	return &Handler{
		retriever: retriever,
		breakers:  breakers,
		checks:    checks,
	}
}

func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req request.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			h.writeJSONError(w, "Invalid fields: "+strings.Join(fields, ", "), http.StatusBadRequest)
			return
		}
		h.writeJSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	result := h.retriever.Retrieve(r.Context(), req.ToEntity())
	if result.Retrievals == nil {
		result.Retrievals = []entity.EvidenceRecord{}
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleListBreakers(w http.ResponseWriter, r *http.Request) {
	states, err := h.breakers.List(r.Context())
	if err != nil {
		slog.Error("Failed to list circuit breakers", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewBreakerList(states))
}

func (h *Handler) HandleResetBreaker(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if service == "" {
		h.writeJSONError(w, "Service name is required", http.StatusBadRequest)
		return
	}

	if err := h.breakers.Reset(r.Context(), service); err != nil {
		slog.Error("Failed to reset circuit breaker", "service", service, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("Circuit breaker reset by operator", "service", service)
	h.writeJSON(w, http.StatusOK, response.ResetBreakerResponse{Status: "reset", Service: service})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	healthy := true
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			slog.Error("Health check failed", "dependency", c.Name, "error", err)
			status[c.Name] = "unhealthy"
			healthy = false
			continue
		}
		status[c.Name] = "healthy"
	}

	if !healthy {
		status["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
