package domain

import (
	"fmt"
	"time"
)

// Source identifies which index produced a candidate.
type Source string

const (
	SourceStructured Source = "structured"
	SourceSemantic   Source = "semantic"
)

// Route is the classifier's decision about which retrievers to invoke.
type Route string

const (
	RouteStructuredOnly Route = "structured_only"
	RouteSemanticOnly   Route = "semantic_only"
	RouteHybrid         Route = "hybrid"
)

// CompiledQuery is the opaque structured-query payload produced by the
// query compiler. The engine never inspects it beyond passing it to the
// structured store.
type CompiledQuery struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// RouteDecision is created once per request by the classifier and never
// mutated afterwards. Compiled is nil unless the structured path is selected
// and the compiler produced a query.
type RouteDecision struct {
	Route    Route
	Compiled *CompiledQuery

	// Matched signal tokens, kept for logging and explainability.
	StructuredSignals  []string
	ExplanatorySignals []string
}

// Candidate is a single retrieved item. RawScore is in source-specific units
// and is not comparable across sources; NormalizedScore is filled in by the
// per-source normalizer before fusion.
type Candidate struct {
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Section    string  `json:"section,omitempty"`
	Text       string  `json:"text"`
	Source     Source  `json:"source"`
	RawScore   float64 `json:"raw_score"`

	NormalizedScore float64 `json:"normalized_score"`
}

// IdentityKey is the deduplication identity: document plus location. Two
// candidates on the same page but different rows/chunks stay distinct.
func (c Candidate) IdentityKey() string {
	return fmt.Sprintf("%s:%d:%d", c.DocumentID, c.Page, c.ChunkIndex)
}

// FusedCandidate is a candidate with its final combined relevance score,
// the sort key of the response.
type FusedCandidate struct {
	Candidate
	FusedScore float64 `json:"fused_score"`
}

// FusionConfig is the request-scoped, immutable tuning of a single retrieve
// call. Alpha weighs the semantic source; the structured source gets 1-alpha.
type FusionConfig struct {
	Alpha            float64
	TopK             int
	RRFK             int
	PerSourceTimeout time.Duration
	OverallTimeout   time.Duration
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Alpha:            0.75,
		TopK:             10,
		RRFK:             60,
		PerSourceTimeout: 2 * time.Second,
		OverallTimeout:   5 * time.Second,
	}
}

// Normalize fills invalid or missing fields with defaults.
func (c FusionConfig) Normalize() FusionConfig {
	out := c
	def := DefaultFusionConfig()

	if out.Alpha <= 0 || out.Alpha >= 1 {
		out.Alpha = def.Alpha
	}
	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	if out.PerSourceTimeout <= 0 {
		out.PerSourceTimeout = def.PerSourceTimeout
	}
	if out.OverallTimeout <= 0 {
		out.OverallTimeout = def.OverallTimeout
	}
	if out.OverallTimeout < out.PerSourceTimeout {
		out.OverallTimeout = out.PerSourceTimeout
	}
	return out
}

// SearchFilter narrows structured and semantic search to matching metadata.
// Filters may be injected by the optional query enrichment stage.
type SearchFilter struct {
	Metric string `json:"metric,omitempty"`
	Period string `json:"period,omitempty"`
}

func (f SearchFilter) IsZero() bool {
	return f.Metric == "" && f.Period == ""
}
