package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/metrics"
)

// Search embeds the query text and runs k-NN retrieval over the vector
// index with the query's filter. Results come back ordered by similarity
// descending, at most query.Limit of them.
func (uc *UseCases) Search(ctx context.Context, query *model.SearchQuery) ([]*model.ScoredMemory, error) {
	start := time.Now()

	if query == nil {
		return nil, goerr.Wrap(model.ErrInvalidInput, "query is required")
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	embedding, err := uc.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, err
	}

	hits, err := uc.vector.Search(ctx, embedding, query.Limit, &query.Filter)
	if err != nil {
		return nil, err
	}

	model.SortScoredMemories(hits)

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return hits, nil
}
