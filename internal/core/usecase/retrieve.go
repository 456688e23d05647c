package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
	"github.com/finsightlab/hybrid-retrieval/internal/core/ports"
)

// MetricsRecorder receives retrieval observations. Implemented by
// observability/metrics; a nil recorder disables recording.
type MetricsRecorder interface {
	ObserveRoute(route domain.Route)
	ObserveSource(source domain.Source, status string, elapsed time.Duration)
	ObserveDegradation(source domain.Source, reason domain.DegradationReason)
	ObserveFusedResults(route domain.Route, count int)
}

// Engine is the fusion orchestrator. Per request it classifies the question,
// fans out to the selected retrievers concurrently under per-source
// timeouts, normalizes each source's scores independently, fuses the sets by
// weighted RRF and returns the top candidates. A slow or failing source
// degrades the response; only the overall deadline fails it.
type Engine struct {
	classifier ports.QueryClassifier
	structured ports.StructuredRetriever
	semantic   ports.SemanticRetriever

	enricher ports.FilterEnricher
	events   ports.EventPublisher
	metrics  MetricsRecorder
	logger   *slog.Logger
}

type EngineOption func(*Engine)

func WithFilterEnricher(enricher ports.FilterEnricher) EngineOption {
	return func(e *Engine) { e.enricher = enricher }
}

func WithEventPublisher(events ports.EventPublisher) EngineOption {
	return func(e *Engine) { e.events = events }
}

func WithMetrics(metrics MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(
	classifier ports.QueryClassifier,
	structured ports.StructuredRetriever,
	semantic ports.SemanticRetriever,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		classifier: classifier,
		structured: structured,
		semantic:   semantic,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type sourceOutcome struct {
	candidates []domain.Candidate
	elapsed    time.Duration
	timedOut   bool
}

func (e *Engine) Retrieve(ctx context.Context, question string, cfg domain.FusionConfig) ([]domain.FusedCandidate, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("question is empty"))
	}
	cfg = cfg.Normalize()

	requestID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, cfg.OverallTimeout)
	defer cancel()

	filter := e.enrichFilter(ctx, question)
	decision := e.classifier.Classify(ctx, question, filter)
	if e.metrics != nil {
		e.metrics.ObserveRoute(decision.Route)
	}
	e.logger.Info("query_classified",
		"request_id", requestID,
		"route", string(decision.Route),
		"structured_signals", len(decision.StructuredSignals),
		"explanatory_signals", len(decision.ExplanatorySignals),
	)

	runStructured := decision.Route != domain.RouteSemanticOnly && decision.Compiled != nil
	runSemantic := decision.Route != domain.RouteStructuredOnly
	if !runStructured && !runSemantic {
		// A structured-only decision without a compiled query should not
		// happen with the rule classifier; a custom strategy that produces
		// one still gets the semantic fallback instead of an empty fan-out.
		runSemantic = true
	}

	var structuredOut, semanticOut sourceOutcome
	g := new(errgroup.Group)
	if runStructured {
		g.Go(func() error {
			structuredOut = e.runSource(ctx, cfg.PerSourceTimeout, domain.SourceStructured, func(sctx context.Context) []domain.Candidate {
				return e.structured.SearchStructured(sctx, *decision.Compiled, cfg.TopK)
			})
			return nil
		})
	}
	if runSemantic {
		g.Go(func() error {
			semanticOut = e.runSource(ctx, cfg.PerSourceTimeout, domain.SourceSemantic, func(sctx context.Context) []domain.Candidate {
				return e.semantic.SearchSemantic(sctx, question, cfg.TopK, filter)
			})
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		// The fan-out may resolve in the same instant the overall deadline
		// fires; the deadline still wins so the outcome does not depend on
		// scheduling order.
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrRetrievalTimeout, "retrieve", ctx.Err())
		}
	case <-ctx.Done():
		// All-or-nothing at the top level: partial results collected so far
		// are discarded, unlike per-source timeouts which degrade gracefully.
		return nil, domain.WrapError(domain.ErrRetrievalTimeout, "retrieve", ctx.Err())
	}

	structuredList := normalizeCandidates(structuredOut.candidates)
	semanticList := normalizeCandidates(semanticOut.candidates)

	e.reportDegradation(ctx, requestID, decision.Route,
		runStructured, structuredOut,
		runSemantic, semanticOut,
	)

	fused := trimCandidates(fuseWeightedRRF(structuredList, semanticList, cfg.Alpha, cfg.RRFK), cfg.TopK)
	if e.metrics != nil {
		e.metrics.ObserveFusedResults(decision.Route, len(fused))
	}
	e.logger.Info("retrieval_complete",
		"request_id", requestID,
		"route", string(decision.Route),
		"structured_candidates", len(structuredList),
		"semantic_candidates", len(semanticList),
		"fused_candidates", len(fused),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return fused, nil
}

// runSource executes one retriever under its own deadline. A call that does
// not finish in time is abandoned: its goroutine may keep running until the
// adapter honours the cancelled context, but its eventual result is dropped
// and the source is treated as having returned nothing.
func (e *Engine) runSource(
	ctx context.Context,
	timeout time.Duration,
	source domain.Source,
	fn func(context.Context) []domain.Candidate,
) sourceOutcome {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	results := make(chan []domain.Candidate, 1)
	go func() { results <- fn(sctx) }()

	select {
	case list := <-results:
		elapsed := time.Since(start)
		if e.metrics != nil {
			e.metrics.ObserveSource(source, "ok", elapsed)
		}
		return sourceOutcome{candidates: list, elapsed: elapsed}
	case <-sctx.Done():
		elapsed := time.Since(start)
		if e.metrics != nil {
			e.metrics.ObserveSource(source, "timeout", elapsed)
		}
		e.logger.Warn("source_timeout",
			"source", string(source),
			"timeout_ms", float64(timeout.Microseconds())/1000.0,
		)
		return sourceOutcome{timedOut: true, elapsed: elapsed}
	}
}

func (e *Engine) enrichFilter(ctx context.Context, question string) domain.SearchFilter {
	if e.enricher == nil {
		return domain.SearchFilter{}
	}
	filter, err := e.enricher.Enrich(ctx, question)
	if err != nil {
		e.logger.Debug("filter_enrichment_skipped", "error", err)
		return domain.SearchFilter{}
	}
	return filter
}

// reportDegradation logs, counts and publishes partial degradations: an
// invoked source contributed nothing while the other still produced
// candidates. Both sources empty is a total miss, a valid outcome reported
// to the caller as an empty list.
func (e *Engine) reportDegradation(
	ctx context.Context,
	requestID string,
	route domain.Route,
	ranStructured bool, structured sourceOutcome,
	ranSemantic bool, semantic sourceOutcome,
) {
	type invocation struct {
		source  domain.Source
		ran     bool
		outcome sourceOutcome
		other   int
	}
	invocations := []invocation{
		{domain.SourceStructured, ranStructured, structured, len(semantic.candidates)},
		{domain.SourceSemantic, ranSemantic, semantic, len(structured.candidates)},
	}

	for _, inv := range invocations {
		if !inv.ran || len(inv.outcome.candidates) > 0 || inv.other == 0 {
			continue
		}
		reason := domain.DegradationEmpty
		if inv.outcome.timedOut {
			reason = domain.DegradationTimeout
		}
		if e.metrics != nil {
			e.metrics.ObserveDegradation(inv.source, reason)
		}
		e.logger.Warn("partial_degradation",
			"request_id", requestID,
			"source", string(inv.source),
			"reason", string(reason),
		)
		if e.events == nil {
			continue
		}
		event := domain.DegradationEvent{
			RequestID:  requestID,
			Source:     inv.source,
			Reason:     reason,
			Route:      route,
			OccurredAt: time.Now().UTC(),
		}
		if err := e.events.PublishDegradation(ctx, event); err != nil {
			e.logger.Warn("degradation_event_publish_failed", "error", err)
		}
	}
}
