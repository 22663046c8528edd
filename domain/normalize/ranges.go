package normalize

import (
	"fmt"
	"sort"

	"flomentum/domain/biomarker"
)

// Range scoring weights. Sex and age dominate because they are the dimensions
// labs most commonly split on.
const (
	scoreSexMatch  = 2
	scoreAgeInBand = 2
	scoreDimMatch  = 1
	scoreExcluded  = -1
)

// selectRange scores every authored range for the biomarker against the
// context and returns the winner, or a synthetic global-default range when
// nothing applies. Warnings describe degradations (e.g. no sex-specific range).
func selectRange(m *biomarker.Biomarker, ctx Context) (*biomarker.ReferenceRange, []string) {
	type candidate struct {
		r     *biomarker.ReferenceRange
		score int
	}

	var candidates []candidate
	for i := range m.ReferenceRanges {
		r := &m.ReferenceRanges[i]
		score := scoreRange(r.Context, ctx)
		if score == scoreExcluded {
			continue
		}
		candidates = append(candidates, candidate{r: r, score: score})
	}

	var warnings []string
	if len(candidates) == 0 {
		if m.DefaultRefMin == nil && m.DefaultRefMax == nil {
			warnings = append(warnings, "no reference range available")
			return nil, warnings
		}
		if len(m.ReferenceRanges) > 0 {
			warnings = append(warnings, "no context-compatible range; using global default")
		}
		return &biomarker.ReferenceRange{
			Unit: m.CanonicalUnit,
			Low:  m.DefaultRefMin,
			High: m.DefaultRefMax,
		}, warnings
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		// Narrower context wins the tie
		si, sj := candidates[i].r.Context.Specificity(), candidates[j].r.Context.Specificity()
		if si != sj {
			return si > sj
		}
		return candidates[i].r.SourcePriority < candidates[j].r.SourcePriority
	})

	best := candidates[0]
	if best.r.Context.Sex != nil && ctx.Sex == nil {
		warnings = append(warnings, fmt.Sprintf("range assumes sex=%s but user sex unknown", *best.r.Context.Sex))
	}
	if ctx.Sex != nil && best.r.Context.Sex == nil && hasSexSpecific(m) {
		warnings = append(warnings, "no sex-specific range available")
	}
	return best.r, warnings
}

// scoreRange returns scoreExcluded when the range has a constraint the
// context contradicts; otherwise the additive relevance score.
func scoreRange(rc biomarker.RangeContext, ctx Context) int {
	score := 0

	if rc.Sex != nil {
		if ctx.Sex == nil {
			// Unknown sex is compatible but earns nothing
		} else if *ctx.Sex != *rc.Sex {
			return scoreExcluded
		} else {
			score += scoreSexMatch
		}
	}

	if rc.AgeYearsMin != nil || rc.AgeYearsMax != nil {
		if ctx.AgeYears != nil {
			age := *ctx.AgeYears
			if rc.AgeYearsMin != nil && age < *rc.AgeYearsMin {
				return scoreExcluded
			}
			if rc.AgeYearsMax != nil && age > *rc.AgeYearsMax {
				return scoreExcluded
			}
			score += scoreAgeInBand
		}
	}

	if rc.Fasting != nil && ctx.Fasting != nil {
		if *rc.Fasting != *ctx.Fasting {
			return scoreExcluded
		}
		score += scoreDimMatch
	}
	if rc.Pregnancy != nil && ctx.Pregnancy != nil {
		if *rc.Pregnancy != *ctx.Pregnancy {
			return scoreExcluded
		}
		score += scoreDimMatch
	}
	if rc.Method != nil && ctx.Method != nil {
		if *rc.Method != *ctx.Method {
			return scoreExcluded
		}
		score += scoreDimMatch
	}
	if rc.LabID != nil && ctx.LabID != nil {
		if *rc.LabID != *ctx.LabID {
			return scoreExcluded
		}
		score += scoreDimMatch
	}

	return score
}

func hasSexSpecific(m *biomarker.Biomarker) bool {
	for i := range m.ReferenceRanges {
		if m.ReferenceRanges[i].Context.Sex != nil {
			return true
		}
	}
	return false
}
