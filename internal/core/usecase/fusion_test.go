package usecase

import (
	"math"
	"testing"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

func structuredCandidate(id string, raw float64) domain.Candidate {
	return domain.Candidate{DocumentID: id, Page: 1, ChunkIndex: 0, Source: domain.SourceStructured, RawScore: raw}
}

func semanticCandidate(id string, raw float64) domain.Candidate {
	return domain.Candidate{DocumentID: id, Page: 1, ChunkIndex: 0, Source: domain.SourceSemantic, RawScore: raw}
}

func TestFuseWeightedRRFNoScoreCollapse(t *testing.T) {
	structured := normalizeCandidates([]domain.Candidate{
		structuredCandidate("s-1", 1.0),
		structuredCandidate("s-2", 0.4),
	})
	semantic := normalizeCandidates([]domain.Candidate{
		semanticCandidate("v-1", 0.03),
		semanticCandidate("v-2", 0.001),
	})

	fused := fuseWeightedRRF(structured, semantic, 0.7, 60)
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused candidates, got %d", len(fused))
	}

	allEqual := true
	for _, c := range fused[1:] {
		if c.FusedScore != fused[0].FusedScore {
			allEqual = false
			break
		}
	}
	if allEqual {
		t.Fatalf("fused scores collapsed to a constant %f", fused[0].FusedScore)
	}
}

// The historical defect: a near-constant structured "presence score"
// combined with tiny-magnitude semantic similarities made the semantic
// weight irrelevant. After per-source normalization the weight must decide
// the winner between the two sources' best candidates.
func TestFuseWeightedRRFAlphaChangesTopResult(t *testing.T) {
	structured := normalizeCandidates([]domain.Candidate{
		structuredCandidate("s-1", 1.0),
		structuredCandidate("s-2", 1.0),
		structuredCandidate("s-3", 0.9),
	})
	semantic := normalizeCandidates([]domain.Candidate{
		semanticCandidate("v-1", 0.031),
		semanticCandidate("v-2", 0.002),
	})

	lowAlpha := fuseWeightedRRF(structured, semantic, 0.2, 60)
	highAlpha := fuseWeightedRRF(structured, semantic, 0.9, 60)

	if lowAlpha[0].Source != domain.SourceStructured {
		t.Fatalf("alpha=0.2 should favour the structured source, top was %s", lowAlpha[0].DocumentID)
	}
	if highAlpha[0].Source != domain.SourceSemantic {
		t.Fatalf("alpha=0.9 should favour the semantic source, top was %s", highAlpha[0].DocumentID)
	}
	if lowAlpha[0].IdentityKey() == highAlpha[0].IdentityKey() {
		t.Fatalf("perturbing alpha did not change the top result: %s", lowAlpha[0].IdentityKey())
	}
}

func TestFuseWeightedRRFDeduplicatesSharedIdentity(t *testing.T) {
	structured := normalizeCandidates([]domain.Candidate{
		structuredCandidate("doc-1", 1.0),
		structuredCandidate("doc-2", 0.8),
	})
	semantic := normalizeCandidates([]domain.Candidate{
		semanticCandidate("doc-1", 0.9),
		semanticCandidate("doc-3", 0.4),
	})

	fused := fuseWeightedRRF(structured, semantic, 0.7, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates after dedup, got %d", len(fused))
	}

	seen := 0
	var shared domain.FusedCandidate
	for _, c := range fused {
		if c.DocumentID == "doc-1" {
			seen++
			shared = c
		}
	}
	if seen != 1 {
		t.Fatalf("expected exactly one doc-1 candidate, got %d", seen)
	}

	// doc-1 ranks first in both lists, so its contributions sum.
	want := 0.3/61.0 + 0.7/61.0
	if math.Abs(shared.FusedScore-want) > 1e-12 {
		t.Fatalf("expected summed contributions %f, got %f", want, shared.FusedScore)
	}
	if shared.Source != domain.SourceStructured {
		t.Fatalf("expected the structured instance to represent the shared identity, got %s", shared.Source)
	}
}

func TestFuseWeightedRRFExampleScenarioStable(t *testing.T) {
	structured := normalizeCandidates([]domain.Candidate{structuredCandidate("A", 1.0)})
	semantic := normalizeCandidates([]domain.Candidate{
		semanticCandidate("B", 0.87),
		semanticCandidate("C", 0.52),
	})

	// alpha=0.7, k=60: B=0.7/61, C=0.7/62, A=0.3/61.
	wantOrder := []string{"B", "C", "A"}
	for run := 0; run < 5; run++ {
		fused := fuseWeightedRRF(structured, semantic, 0.7, 60)
		if len(fused) != 3 {
			t.Fatalf("run %d: expected 3 fused candidates, got %d", run, len(fused))
		}
		for i, want := range wantOrder {
			if fused[i].DocumentID != want {
				t.Fatalf("run %d: expected order %v, got %s at position %d", run, wantOrder, fused[i].DocumentID, i)
			}
		}
	}
}

func TestFuseWeightedRRFTieBreakPrefersStructuredThenIdentity(t *testing.T) {
	structured := normalizeCandidates([]domain.Candidate{structuredCandidate("doc-b", 1.0)})
	semantic := normalizeCandidates([]domain.Candidate{semanticCandidate("doc-a", 1.0)})

	// alpha=0.5 gives both rank-1 candidates the same contribution.
	fused := fuseWeightedRRF(structured, semantic, 0.5, 60)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused candidates, got %d", len(fused))
	}
	if fused[0].FusedScore != fused[1].FusedScore {
		t.Fatalf("expected a fused-score tie, got %f vs %f", fused[0].FusedScore, fused[1].FusedScore)
	}
	if fused[0].Source != domain.SourceStructured {
		t.Fatalf("expected structured candidate first on ties, got %s", fused[0].DocumentID)
	}
}

func TestTrimCandidates(t *testing.T) {
	fused := []domain.FusedCandidate{
		{Candidate: structuredCandidate("a", 1)},
		{Candidate: structuredCandidate("b", 1)},
		{Candidate: structuredCandidate("c", 1)},
	}
	if got := trimCandidates(fused, 2); len(got) != 2 {
		t.Fatalf("expected 2 candidates after trim, got %d", len(got))
	}
	if got := trimCandidates(fused, 0); len(got) != 3 {
		t.Fatalf("expected trim to be a no-op for limit<=0, got %d", len(got))
	}
}
