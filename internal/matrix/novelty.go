package matrix

import (
	"sort"

	"github.com/sells-group/priorart-cli/internal/model"
)

// noveltyCandidates ranks features by how rarely the art discloses them.
// Ratios use the fixed evaluated document set as denominator.
func noveltyCandidates(features []model.InventionFeature, tokens [][]string, rows [][]model.MatrixCell, nDocs int, opts Options) []model.NoveltyCandidate {
	if nDocs < 1 {
		nDocs = 1
	}

	out := make([]model.NoveltyCandidate, 0, len(features))
	for fi, f := range features {
		yes, partial, no := 0, 0, 0
		for _, row := range rows {
			switch row[fi].Label {
			case model.LabelYes:
				yes++
			case model.LabelPartial:
				partial++
			default:
				no++
			}
		}
		out = append(out, model.NoveltyCandidate{
			FeatureID:    f.ID,
			Feature:      f.Text,
			NoRatio:      round3(float64(no) / float64(nDocs)),
			PartialRatio: round3(float64(partial) / float64(nDocs)),
			YesCount:     yes,
			PartialCount: partial,
			NoCount:      no,
			Tokens:       capTokens(tokens[fi], 12),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NoRatio != out[j].NoRatio {
			return out[i].NoRatio > out[j].NoRatio
		}
		return out[i].PartialRatio > out[j].PartialRatio
	})

	if len(out) > opts.MaxNoveltyCandidates {
		out = out[:opts.MaxNoveltyCandidates]
	}
	return out
}

// pairCandidates finds feature pairs that each appear across documents but
// rarely appear together: union_ratio is the fraction of documents where at
// least one of the pair is YES, co_ratio where both are YES. A high union
// with low co-occurrence is the signal a combination-based novelty argument
// needs. Both ratios share the same denominator so pairs stay comparable.
func pairCandidates(ids, texts []string, rows [][]model.MatrixCell, nDocs int, opts Options) []model.PairCandidate {
	if nDocs < 1 {
		nDocs = 1
	}
	n := len(ids)

	out := []model.PairCandidate{}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			union, co := 0, 0
			for _, row := range rows {
				yi := row[i].Label == model.LabelYes
				yj := row[j].Label == model.LabelYes
				if yi || yj {
					union++
				}
				if yi && yj {
					co++
				}
			}

			unionRatio := float64(union) / float64(nDocs)
			coRatio := float64(co) / float64(nDocs)
			if unionRatio < opts.PairMinUnionRatio || coRatio > opts.PairMaxCoRatio {
				continue
			}

			out = append(out, model.PairCandidate{
				Pair:       [2]string{ids[i], ids[j]},
				Features:   [2]string{texts[i], texts[j]},
				UnionRatio: round3(unionRatio),
				CoRatio:    round3(coRatio),
				Note:       "Both features appear across docs, but rarely appear together (candidate novelty combination).",
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UnionRatio != out[j].UnionRatio {
			return out[i].UnionRatio > out[j].UnionRatio
		}
		return out[i].CoRatio < out[j].CoRatio
	})

	if len(out) > opts.MaxPairCandidates {
		out = out[:opts.MaxPairCandidates]
	}
	return out
}
