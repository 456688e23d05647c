package usecase

import "github.com/finsightlab/hybrid-retrieval/internal/core/domain"

// normalizeCandidates maps one source's raw scores onto [0,1] relative to
// that source's own result set, using max-score normalization. Raw scores
// from different sources are never mixed here; cross-source combination
// before this step is exactly the failure mode that lets one source's score
// magnitude dominate the weighted fusion and strip alpha of any effect.
func normalizeCandidates(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	maxRaw := candidates[0].RawScore
	for _, c := range candidates[1:] {
		if c.RawScore > maxRaw {
			maxRaw = c.RawScore
		}
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	// A non-positive maximum means the source produced no usable signal;
	// everything normalizes to 0 rather than NaN or a divide-by-zero.
	if maxRaw <= 0 {
		for i := range out {
			out[i].NormalizedScore = 0
		}
		return out
	}

	for i := range out {
		raw := out[i].RawScore
		if raw < 0 {
			raw = 0
		}
		out[i].NormalizedScore = raw / maxRaw
	}
	return out
}
