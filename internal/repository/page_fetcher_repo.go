package repository

import (
	"context"

	"github.com/user/evidence-service/internal/entity"
)

// PageFetcherRepository defines the contract for the page retrieval mechanism.
type PageFetcherRepository interface {
	// Fetch retrieves a URL and extracts its readable content.
	Fetch(ctx context.Context, url string) (*entity.Page, error)
}
