package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

// Compiler turns a natural-language question into a parameterized facts
// query. The model only extracts the lookup terms as JSON; the SQL itself is
// assembled here so nothing model-generated is ever executed. A question the
// model cannot map to a metric lookup compiles to nil, which the caller
// treats as "route semantically instead".
type Compiler struct {
	client *Client
}

func NewCompiler(client *Client) *Compiler {
	return &Compiler{client: client}
}

type compileExtraction struct {
	Compilable bool   `json:"compilable"`
	Metric     string `json:"metric"`
	Period     string `json:"period"`
	Entity     string `json:"entity"`
}

func (c *Compiler) Compile(ctx context.Context, question string, filter domain.SearchFilter) (*domain.CompiledQuery, error) {
	respText, err := c.client.generateJSON(ctx, "compile_query", buildCompilePrompt(question))
	if err != nil {
		return nil, err
	}

	var extraction compileExtraction
	if err := decodeStrictJSON(respText, &extraction); err != nil {
		return nil, fmt.Errorf("parse compile json: %w", err)
	}

	metric := strings.TrimSpace(extraction.Metric)
	if metric == "" {
		metric = strings.TrimSpace(filter.Metric)
	}
	if !extraction.Compilable || metric == "" {
		return nil, nil
	}

	period := strings.TrimSpace(extraction.Period)
	if period == "" {
		period = strings.TrimSpace(filter.Period)
	}

	return buildFactsQuery(metric, period, strings.TrimSpace(extraction.Entity)), nil
}

// buildFactsQuery projects the fixed candidate columns the structured store
// scans; similarity() (pg_trgm) is the fuzzy-match score the store thresholds
// on.
func buildFactsQuery(metric, period, entity string) *domain.CompiledQuery {
	var sb strings.Builder
	args := []any{metric}

	sb.WriteString("SELECT doc_id, page, row_index, section, content, similarity(metric, $1) AS match_score\n")
	sb.WriteString("FROM facts\n")
	sb.WriteString("WHERE metric % $1")
	if period != "" {
		args = append(args, period)
		fmt.Fprintf(&sb, " AND period = $%d", len(args))
	}
	if entity != "" {
		args = append(args, "%"+entity+"%")
		fmt.Fprintf(&sb, " AND entity ILIKE $%d", len(args))
	}
	sb.WriteString("\nORDER BY match_score DESC, doc_id, page, row_index")

	return &domain.CompiledQuery{SQL: sb.String(), Args: args}
}
