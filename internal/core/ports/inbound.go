package ports

import (
	"context"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

// RetrievalEngine is the inbound contract for hybrid retrieval. The returned
// list holds at most cfg.TopK candidates ordered best-first. An empty list is
// a valid outcome ("answer not found"); besides rejecting blank questions
// with domain.ErrInvalidInput, the only error surfaced is
// domain.ErrRetrievalTimeout.
type RetrievalEngine interface {
	Retrieve(ctx context.Context, question string, cfg domain.FusionConfig) ([]domain.FusedCandidate, error)
}
