package request

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/user/evidence-service/internal/entity"
)

var validate = validator.New()

// RetrieveRequest is the body of POST /api/retrieve.
type RetrieveRequest struct {
	Query           string   `json:"query" validate:"required,max=2000"`
	Entities        []string `json:"entities" validate:"max=20,dive,max=200"`
	TimeoutMS       int      `json:"timeout_ms" validate:"gte=0,lte=60000"`
	ForceFresh      bool     `json:"force_fresh"`
	Audience        string   `json:"audience" validate:"omitempty,oneof=student personal market"`
	RequiredSources []string `json:"required_sources" validate:"max=6,dive,oneof=web_search trade_stats macro_indicators forecast news_events page_scrape"`
}

// Validate checks the request against its field rules.
func (r *RetrieveRequest) Validate() error {
	return validate.Struct(r)
}

// ToEntity converts the request into the orchestrator's input.
func (r *RetrieveRequest) ToEntity() entity.RetrievalRequest {
	required := make([]entity.Source, 0, len(r.RequiredSources))
	for _, s := range r.RequiredSources {
		required = append(required, entity.Source(s))
	}
	return entity.RetrievalRequest{
		Query:           r.Query,
		Entities:        r.Entities,
		Timeout:         time.Duration(r.TimeoutMS) * time.Millisecond,
		ForceFresh:      r.ForceFresh,
		Audience:        entity.Audience(r.Audience),
		RequiredSources: required,
	}
}
