package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

// Enricher extracts optional metric/period filter hints from the question.
// Hints below the confidence threshold are dropped rather than risk
// over-filtering the semantic search.
type Enricher struct {
	client        *Client
	minConfidence float64
}

func NewEnricher(client *Client, minConfidence float64) *Enricher {
	return &Enricher{client: client, minConfidence: minConfidence}
}

type enrichExtraction struct {
	Metric     string  `json:"metric"`
	Period     string  `json:"period"`
	Confidence float64 `json:"confidence"`
}

func (e *Enricher) Enrich(ctx context.Context, question string) (domain.SearchFilter, error) {
	respText, err := e.client.generateJSON(ctx, "enrich_filter", buildEnrichPrompt(question))
	if err != nil {
		return domain.SearchFilter{}, err
	}

	var extraction enrichExtraction
	if err := decodeStrictJSON(respText, &extraction); err != nil {
		return domain.SearchFilter{}, fmt.Errorf("parse enrich json: %w", err)
	}

	if extraction.Confidence < e.minConfidence {
		return domain.SearchFilter{}, nil
	}
	return domain.SearchFilter{
		Metric: strings.TrimSpace(extraction.Metric),
		Period: strings.TrimSpace(extraction.Period),
	}, nil
}
