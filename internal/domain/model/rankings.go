package model

// DefaultUnscoredSentinel is the score unscored ranking rows are drawn at.
const DefaultUnscoredSentinel = -10.0

// ApplyUnscoredPolicy shapes ranking rows the way the ranking fetch does.
// When hidden is false, rows without a score are kept with their score set to
// sentinel; when hidden is true they are dropped. excluded reports how many
// of the original rows were dropped. The input slice is not modified.
func ApplyUnscoredPolicy(rows []Ranking, hidden bool, sentinel float64) (kept []Ranking, excluded int) {
	kept = make([]Ranking, 0, len(rows))
	for _, r := range rows {
		if r.Score == nil {
			if hidden {
				excluded++
				continue
			}
			s := sentinel
			r.Score = &s
		}
		kept = append(kept, r)
	}
	return kept, excluded
}

// EffectiveScore returns the ranking's score, or sentinel when unscored.
func (r Ranking) EffectiveScore(sentinel float64) float64 {
	if r.Score == nil {
		return sentinel
	}
	return *r.Score
}
