package classindex

import (
	"cmp"
	"slices"

	"github.com/hbollon/go-edlib"
)

// MinSuggestScore is the lowest Jaro-Winkler similarity reported by Suggest.
const MinSuggestScore = 0.8

// Suggestion is a known short name close to a query.
type Suggestion struct {
	ShortName string   `json:"short_name"`
	Score     float32  `json:"score"`
	FullNames []string `json:"full_names"`
}

// Suggest returns up to limit known short names similar to name, best
// first. Exact matches score 1. Ties are ordered by name.
func (x *Index) Suggest(name string, limit int) []Suggestion {
	if name == "" || limit <= 0 {
		return nil
	}

	var out []Suggestion
	for short, names := range x.classes {
		score, err := edlib.StringsSimilarity(name, short, edlib.JaroWinkler)
		if err != nil || score < MinSuggestScore {
			continue
		}
		out = append(out, Suggestion{ShortName: short, Score: score, FullNames: names})
	}

	slices.SortFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ShortName, b.ShortName)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].FullNames = slices.Clone(out[i].FullNames)
	}
	return out
}
