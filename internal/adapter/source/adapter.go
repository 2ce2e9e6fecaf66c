package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/resilience"
)

// Executor runs upstream work under a service's breaker with retries.
type Executor interface {
	Execute(ctx context.Context, service string, work resilience.Work) ([]entity.EvidenceRecord, bool)
}

// parseFunc maps a decoded response to records stamped with now.
type parseFunc func(raw any, now time.Time) []entity.EvidenceRecord

// base carries what every JSON adapter shares.
type base struct {
	name     entity.Source
	client   *Client
	executor Executor
	now      func() time.Time
}

func newBase(name entity.Source, client *Client, executor Executor) base {
	return base{name: name, client: client, executor: executor, now: time.Now}
}

func (b base) Name() entity.Source { return b.name }

// fetchJSON runs one GET through the Retry Executor and parses the result.
// A malformed body counts as a successful, empty call.
func (b base) fetchJSON(ctx context.Context, rawURL string, headers map[string]string, parse parseFunc) []entity.EvidenceRecord {
	records, ok := b.executor.Execute(ctx, string(b.name), func(ctx context.Context) ([]entity.EvidenceRecord, error) {
		raw, err := b.client.GetJSON(ctx, rawURL, headers)
		if errors.Is(err, ErrMalformed) {
			slog.Debug("Discarding malformed response", "service", b.name, "error", err)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return parse(raw, b.now().UTC()), nil
	})
	if !ok {
		return nil
	}
	return records
}
