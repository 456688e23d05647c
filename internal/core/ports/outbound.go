package ports

import (
	"context"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

// QueryCompiler attempts to translate a natural-language question into a
// structured query. A nil result with nil error means "not compilable",
// which forces the classifier to downgrade to semantic-only routing.
type QueryCompiler interface {
	Compile(ctx context.Context, question string, filter domain.SearchFilter) (*domain.CompiledQuery, error)
}

// QueryClassifier decides which retrievers a question is routed to. It is an
// injectable strategy so the rule set can be swapped and tuned independently
// of the orchestrator. Implementations must not fail for well-formed input.
type QueryClassifier interface {
	Classify(ctx context.Context, question string, filter domain.SearchFilter) domain.RouteDecision
}

// StructuredRetriever executes a compiled query against the structured store.
// Search filters are already baked into the compiled query by the compiler,
// so none are passed here. Failures are absorbed and logged by
// implementations; an empty list is the only failure signal, because the
// orchestrator's fallback policy depends on empty-list semantics rather than
// errors.
type StructuredRetriever interface {
	SearchStructured(ctx context.Context, compiled domain.CompiledQuery, topK int) []domain.Candidate
}

// SemanticRetriever performs nearest-neighbour search over the semantic
// index. Same error-absorption contract as StructuredRetriever.
type SemanticRetriever interface {
	SearchSemantic(ctx context.Context, question string, topK int, filter domain.SearchFilter) []domain.Candidate
}

// Embedder builds the query vector for semantic search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// FilterEnricher is the optional pre-processing stage that extracts extra
// filter parameters from the question. Callers skip enrichment on error.
type FilterEnricher interface {
	Enrich(ctx context.Context, question string) (domain.SearchFilter, error)
}

// EventPublisher emits degradation events for downstream quality tracking.
type EventPublisher interface {
	PublishDegradation(ctx context.Context, event domain.DegradationEvent) error
}
