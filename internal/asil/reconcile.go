package asil

import "github.com/suduli/AI-ASIL-Analyser/pkg/schema"

// Compare reconciles a reference rating against a candidate rating.
// Dimension agreement and ASIL agreement are reported independently.
func Compare(reference, candidate schema.Rating) schema.ComparisonResult {
	return Reconcile(&reference, &candidate, schema.Overrides{})
}

// CompareWithOverrides applies ov to both sides before comparing them.
func CompareWithOverrides(reference, candidate schema.Rating, ov schema.Overrides) schema.ComparisonResult {
	return Reconcile(&reference, &candidate, ov)
}

// Adopt returns the rating that replaces the reference when the operator
// accepts the candidate. Persisting it is the catalog's job.
func Adopt(candidate schema.Rating) schema.Rating {
	return candidate
}

// Reconcile compares whichever sides are present. A missing side reports
// every field as n/a rather than as a mismatch.
func Reconcile(reference, candidate *schema.Rating, ov schema.Overrides) schema.ComparisonResult {
	res := schema.ComparisonResult{
		Severity:        schema.MatchNotApplicable,
		Exposure:        schema.MatchNotApplicable,
		Controllability: schema.MatchNotApplicable,
		ASIL:            schema.MatchNotApplicable,
	}
	if !ov.IsEmpty() {
		applied := ov
		res.Overrides = &applied
	}

	if reference != nil {
		r := ov.Apply(*reference)
		res.Reference = &r
		res.ReferenceASIL = Of(r)
	}
	if candidate != nil {
		cnd := ov.Apply(*candidate)
		res.Candidate = &cnd
		res.CandidateASIL = Of(cnd)
	}
	if res.Reference == nil || res.Candidate == nil {
		return res
	}

	ref, cand := *res.Reference, *res.Candidate
	res.Severity = matchOf(ref.Severity == cand.Severity)
	res.Exposure = matchOf(ref.Exposure == cand.Exposure)
	res.Controllability = matchOf(ref.Controllability == cand.Controllability)
	res.ASIL = matchOf(res.ReferenceASIL == res.CandidateASIL)

	for _, dim := range schema.Dimensions() {
		if res.DimensionMatch(dim) == schema.MatchNo {
			res.Differences = append(res.Differences, schema.Difference{
				Dimension: dim,
				Reference: ref.Level(dim),
				Candidate: cand.Level(dim),
			})
		}
	}
	return res
}

func matchOf(equal bool) schema.Match {
	if equal {
		return schema.MatchYes
	}
	return schema.MatchNo
}
