package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

type compilerFake struct {
	compiled *domain.CompiledQuery
	err      error
	calls    int
	question string
}

func (f *compilerFake) Compile(_ context.Context, question string, _ domain.SearchFilter) (*domain.CompiledQuery, error) {
	f.calls++
	f.question = question
	if f.err != nil {
		return nil, f.err
	}
	return f.compiled, nil
}

func compilableQuery() *domain.CompiledQuery {
	return &domain.CompiledQuery{SQL: "SELECT doc_id FROM facts", Args: []any{"revenue"}}
}

func TestRuleClassifierStructuredOnly(t *testing.T) {
	compiler := &compilerFake{compiled: compilableQuery()}
	classifier := NewRuleClassifier(compiler, DefaultClassifierRules(), nil)

	decision := classifier.Classify(context.Background(), "What was the total revenue in 2023?", domain.SearchFilter{})
	if decision.Route != domain.RouteStructuredOnly {
		t.Fatalf("expected structured_only, got %s", decision.Route)
	}
	if decision.Compiled == nil {
		t.Fatalf("expected a compiled query on the structured route")
	}
	if len(decision.StructuredSignals) == 0 {
		t.Fatalf("expected structured signals to be recorded")
	}
}

func TestRuleClassifierSemanticOnlySkipsCompiler(t *testing.T) {
	compiler := &compilerFake{compiled: compilableQuery()}
	classifier := NewRuleClassifier(compiler, DefaultClassifierRules(), nil)

	decision := classifier.Classify(context.Background(), "Describe the company's approach to sustainability", domain.SearchFilter{})
	if decision.Route != domain.RouteSemanticOnly {
		t.Fatalf("expected semantic_only, got %s", decision.Route)
	}
	if compiler.calls != 0 {
		t.Fatalf("expected compiler to be skipped on the semantic route, called %d times", compiler.calls)
	}
}

func TestRuleClassifierHybridOnMixedSignals(t *testing.T) {
	compiler := &compilerFake{compiled: compilableQuery()}
	classifier := NewRuleClassifier(compiler, DefaultClassifierRules(), nil)

	decision := classifier.Classify(context.Background(), "What was the revenue in 2023 and why did it change?", domain.SearchFilter{})
	if decision.Route != domain.RouteHybrid {
		t.Fatalf("expected hybrid, got %s", decision.Route)
	}
	if decision.Compiled == nil {
		t.Fatalf("expected a compiled query on the hybrid route")
	}
}

func TestRuleClassifierAmbiguousDefaultsToHybrid(t *testing.T) {
	compiler := &compilerFake{compiled: compilableQuery()}
	classifier := NewRuleClassifier(compiler, DefaultClassifierRules(), nil)

	decision := classifier.Classify(context.Background(), "anything interesting in the latest filing", domain.SearchFilter{})
	if decision.Route != domain.RouteHybrid {
		t.Fatalf("expected hybrid default on ambiguous input, got %s", decision.Route)
	}
}

func TestRuleClassifierDowngradesWhenNotCompilable(t *testing.T) {
	compiler := &compilerFake{compiled: nil}
	classifier := NewRuleClassifier(compiler, DefaultClassifierRules(), nil)

	decision := classifier.Classify(context.Background(), "What was the total revenue in 2023?", domain.SearchFilter{})
	if decision.Route != domain.RouteSemanticOnly {
		t.Fatalf("expected downgrade to semantic_only, got %s", decision.Route)
	}
	if decision.Compiled != nil {
		t.Fatalf("expected no compiled query after downgrade")
	}
}

func TestRuleClassifierDowngradesOnCompilerError(t *testing.T) {
	compiler := &compilerFake{err: errors.New("compiler offline")}
	classifier := NewRuleClassifier(compiler, DefaultClassifierRules(), nil)

	decision := classifier.Classify(context.Background(), "What was the average headcount in Q3 2024?", domain.SearchFilter{})
	if decision.Route != domain.RouteSemanticOnly {
		t.Fatalf("expected downgrade to semantic_only on compiler error, got %s", decision.Route)
	}
}

func TestMatchSignalsPeriodTokens(t *testing.T) {
	rules := DefaultClassifierRules()
	structured, _ := rules.matchSignals("figures for Q2 and FY2023")
	found := map[string]bool{}
	for _, hit := range structured {
		found[hit] = true
	}
	if !found["q2"] || !found["fy2023"] {
		t.Fatalf("expected period tokens q2 and fy2023 in %v", structured)
	}
}

func TestLoadClassifierRulesMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "metric_vocabulary:\n  - churn\n  - arr\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	rules, err := LoadClassifierRules(path)
	if err != nil {
		t.Fatalf("LoadClassifierRules() error = %v", err)
	}
	if len(rules.MetricVocabulary) != 2 || rules.MetricVocabulary[0] != "churn" {
		t.Fatalf("expected overridden metric vocabulary, got %v", rules.MetricVocabulary)
	}
	if len(rules.ExplanatoryCues) == 0 {
		t.Fatalf("expected explanatory cues to fall back to defaults")
	}
}

func TestLoadClassifierRulesMissingFile(t *testing.T) {
	if _, err := LoadClassifierRules(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing rules file")
	}
}
