package config

import (
	"testing"
	"time"
)

func TestLoadIncludesFusionDefaults(t *testing.T) {
	t.Setenv("FUSION_ALPHA", "")
	t.Setenv("FUSION_TOP_K", "")
	t.Setenv("FUSION_RRF_K", "")
	t.Setenv("PER_SOURCE_TIMEOUT", "")
	t.Setenv("OVERALL_TIMEOUT", "")

	cfg := Load()
	if cfg.FusionAlpha != 0.75 {
		t.Fatalf("expected default alpha 0.75, got %f", cfg.FusionAlpha)
	}
	if cfg.FusionTopK != 10 {
		t.Fatalf("expected default top k 10, got %d", cfg.FusionTopK)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.PerSourceTimeout != 2*time.Second {
		t.Fatalf("expected default per-source timeout 2s, got %v", cfg.PerSourceTimeout)
	}
	if cfg.OverallTimeout != 5*time.Second {
		t.Fatalf("expected default overall timeout 5s, got %v", cfg.OverallTimeout)
	}
}

func TestLoadParsesFusionOverrides(t *testing.T) {
	t.Setenv("FUSION_ALPHA", "0.6")
	t.Setenv("FUSION_TOP_K", "25")
	t.Setenv("PER_SOURCE_TIMEOUT", "750ms")
	t.Setenv("FACTS_MIN_MATCH_SCORE", "0.45")
	t.Setenv("ENRICHMENT_ENABLED", "true")

	cfg := Load()
	if cfg.FusionAlpha != 0.6 {
		t.Fatalf("expected alpha override, got %f", cfg.FusionAlpha)
	}
	if cfg.FusionTopK != 25 {
		t.Fatalf("expected top k override, got %d", cfg.FusionTopK)
	}
	if cfg.PerSourceTimeout != 750*time.Millisecond {
		t.Fatalf("expected per-source timeout override, got %v", cfg.PerSourceTimeout)
	}
	if cfg.MinMatchScore != 0.45 {
		t.Fatalf("expected min match score override, got %f", cfg.MinMatchScore)
	}
	if !cfg.EnrichmentEnabled {
		t.Fatalf("expected enrichment toggle to parse")
	}
}

func TestLoadFallsBackOnUnparseableValues(t *testing.T) {
	t.Setenv("FUSION_ALPHA", "not-a-number")
	t.Setenv("OVERALL_TIMEOUT", "soon")

	cfg := Load()
	if cfg.FusionAlpha != 0.75 {
		t.Fatalf("expected fallback alpha, got %f", cfg.FusionAlpha)
	}
	if cfg.OverallTimeout != 5*time.Second {
		t.Fatalf("expected fallback overall timeout, got %v", cfg.OverallTimeout)
	}
}
