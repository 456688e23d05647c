package usecase

import (
	"context"
	"log/slog"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
	"github.com/finsightlab/hybrid-retrieval/internal/core/ports"
)

// RuleClassifier routes questions with a deterministic keyword rule table.
// Quantitative/tabular signals without open-ended language select the
// structured path, narrative language selects the semantic path, and mixed
// or ambiguous questions go hybrid: retrieving more is safer because fusion
// filters. When the structured path is selected but the query compiler
// cannot produce a compiled query, the decision degrades to semantic-only
// instead of failing the request.
type RuleClassifier struct {
	compiler ports.QueryCompiler
	rules    ClassifierRules
	logger   *slog.Logger
}

func NewRuleClassifier(compiler ports.QueryCompiler, rules ClassifierRules, logger *slog.Logger) *RuleClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleClassifier{
		compiler: compiler,
		rules:    rules,
		logger:   logger,
	}
}

func (c *RuleClassifier) Classify(ctx context.Context, question string, filter domain.SearchFilter) domain.RouteDecision {
	structuredSignals, explanatorySignals := c.rules.matchSignals(question)

	route := domain.RouteHybrid
	switch {
	case len(structuredSignals) > 0 && len(explanatorySignals) == 0:
		route = domain.RouteStructuredOnly
	case len(explanatorySignals) > 0 && len(structuredSignals) == 0:
		route = domain.RouteSemanticOnly
	}

	decision := domain.RouteDecision{
		Route:              route,
		StructuredSignals:  structuredSignals,
		ExplanatorySignals: explanatorySignals,
	}

	if route == domain.RouteSemanticOnly {
		return decision
	}

	decision.Compiled = c.compile(ctx, question, filter)
	if decision.Compiled == nil {
		c.logger.Info("route_downgraded",
			"from", string(route),
			"to", string(domain.RouteSemanticOnly),
			"reason", "query_not_compilable",
		)
		decision.Route = domain.RouteSemanticOnly
	}
	return decision
}

// compile absorbs compiler failures: classification must never fail for
// well-formed input, so an erroring compiler is equivalent to "not
// compilable".
func (c *RuleClassifier) compile(ctx context.Context, question string, filter domain.SearchFilter) *domain.CompiledQuery {
	if c.compiler == nil {
		return nil
	}
	compiled, err := c.compiler.Compile(ctx, question, filter)
	if err != nil {
		c.logger.Warn("query_compile_failed", "error", err)
		return nil
	}
	return compiled
}
