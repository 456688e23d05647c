package usecase

import (
	"sort"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

type fusionEntry struct {
	candidate domain.Candidate
	score     float64
}

// fuseWeightedRRF merges the two normalized result sets by weighted
// Reciprocal Rank Fusion: each source's candidates are ranked descending by
// normalized score, and a candidate at rank r contributes weight/(k+r),
// where the semantic source carries alpha and the structured source 1-alpha.
// An identity appearing in both lists produces a single output candidate
// whose contributions from both ranks are summed.
func fuseWeightedRRF(structured, semantic []domain.Candidate, alpha float64, rrfK int) []domain.FusedCandidate {
	if rrfK <= 0 {
		rrfK = 60
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = domain.DefaultFusionConfig().Alpha
	}

	acc := make(map[string]*fusionEntry, len(structured)+len(semantic))
	addRanked := func(list []domain.Candidate, weight float64) {
		for rank, candidate := range rankByNormalizedScore(list) {
			key := candidate.IdentityKey()
			entry := acc[key]
			if entry == nil {
				entry = &fusionEntry{candidate: candidate}
				acc[key] = entry
			} else {
				entry.candidate = preferCandidate(entry.candidate, candidate)
			}
			entry.score += weight / float64(rrfK+rank+1)
		}
	}

	addRanked(structured, 1-alpha)
	addRanked(semantic, alpha)

	out := make([]domain.FusedCandidate, 0, len(acc))
	for _, entry := range acc {
		out = append(out, domain.FusedCandidate{
			Candidate:  entry.candidate,
			FusedScore: entry.score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].Source != out[j].Source {
			return out[i].Source == domain.SourceStructured
		}
		return out[i].IdentityKey() < out[j].IdentityKey()
	})

	return out
}

// rankByNormalizedScore orders one source's candidates best-first without
// mutating the input. Ties are broken by identity so ranks are reproducible
// across runs with identical inputs.
func rankByNormalizedScore(list []domain.Candidate) []domain.Candidate {
	if len(list) < 2 {
		return list
	}
	ranked := make([]domain.Candidate, len(list))
	copy(ranked, list)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].NormalizedScore != ranked[j].NormalizedScore {
			return ranked[i].NormalizedScore > ranked[j].NormalizedScore
		}
		return ranked[i].IdentityKey() < ranked[j].IdentityKey()
	})
	return ranked
}

// preferCandidate picks the representative instance when the same identity
// arrives from both sources: higher normalized score wins, score ties go to
// the structured instance since it is typically an exact match.
func preferCandidate(current, incoming domain.Candidate) domain.Candidate {
	if incoming.NormalizedScore > current.NormalizedScore {
		return incoming
	}
	if incoming.NormalizedScore == current.NormalizedScore && incoming.Source == domain.SourceStructured {
		return incoming
	}
	return current
}

func trimCandidates(candidates []domain.FusedCandidate, limit int) []domain.FusedCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
