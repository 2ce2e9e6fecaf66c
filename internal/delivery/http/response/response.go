package response

import (
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// BreakerResponse is a DTO for one breaker, mirroring entity.CircuitBreakerState.
type BreakerResponse struct {
	Service       string     `json:"service"`
	State         string     `json:"state"` // "closed", "half_open", "open"
	FailCount     int        `json:"fail_count"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// BreakerListResponse is the body of GET /api/breakers.
type BreakerListResponse struct {
	Breakers []BreakerResponse `json:"breakers"`
}

// ResetBreakerResponse is the body of POST /api/breakers/{service}/reset.
type ResetBreakerResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewBreakerList converts observed breaker states into the response DTO.
func NewBreakerList(states []entity.CircuitBreakerState) BreakerListResponse {
	out := BreakerListResponse{Breakers: make([]BreakerResponse, 0, len(states))}
	for _, s := range states {
		out.Breakers = append(out.Breakers, BreakerResponse{
			Service:       s.Service,
			State:         string(s.State),
			FailCount:     s.FailCount,
			LastFailure:   s.LastFailure,
			CooldownUntil: s.CooldownUntil,
		})
	}
	return out
}
