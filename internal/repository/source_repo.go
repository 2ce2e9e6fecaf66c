package repository

import (
	"context"

	"github.com/user/evidence-service/internal/entity"
)

// EvidenceSource is one upstream service adapter. Fetch never returns an
// error: failures of any kind collapse to an empty slice.
type EvidenceSource interface {
	// Name is the source label carried by every record the adapter emits.
	Name() entity.Source
	// Applicable reports whether the adapter has enough context to run.
	Applicable(hints []string) bool
	// Fetch gathers evidence for query. hints are country-code-like entity tokens.
	Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord
}
