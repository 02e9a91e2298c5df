package explorer

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/okian/upsetlens/internal/domain/model"
)

const (
	reviewChance   = 0.6
	unscoredChance = 0.15
	scoreSpread    = 12.0
)

// Dataset is the synthetic data of one run, keyed by publication.
type Dataset struct {
	Reviews  map[model.PublicationID][]model.Review  `json:"reviews"`
	Rankings map[model.PublicationID][]model.Ranking `json:"rankings"`
}

// Publications returns the dataset's publication ids in ascending order.
func (d Dataset) Publications() []model.PublicationID {
	out := make([]model.PublicationID, 0, len(d.Reviews))
	for p := range d.Reviews {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Generate builds a dataset that depends only on cfg. Every album has a
// hidden quality; each publication reviews a random subset of albums around
// that quality with its own bias, then ranks its best reviewed albums of each
// year, leaving some ranks unscored.
func Generate(cfg Config) Dataset {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(cfg.Publications)<<32|uint64(cfg.Albums)))

	quality := make([]float64, cfg.Albums)
	for i := range quality {
		quality[i] = 45 + rng.Float64()*40
	}

	ds := Dataset{
		Reviews:  make(map[model.PublicationID][]model.Review, cfg.Publications),
		Rankings: make(map[model.PublicationID][]model.Ranking, cfg.Publications),
	}
	reviewID := 0
	rankingID := 0
	for p := 1; p <= cfg.Publications; p++ {
		pub := model.PublicationID(p)
		bias := rng.NormFloat64() * 4
		reviews := make([]model.Review, 0)
		for i := range cfg.Albums {
			if rng.Float64() >= reviewChance {
				continue
			}
			reviewID++
			score := clamp(math.Round(quality[i] + bias + rng.NormFloat64()*scoreSpread))
			reviews = append(reviews, model.Review{
				ID:            reviewID,
				PublicationID: pub,
				AlbumID:       model.AlbumID(i + 1),
				Score:         score,
				Year:          model.Year(cfg.Years[i%len(cfg.Years)]),
			})
		}
		ds.Reviews[pub] = reviews

		rankings := make([]model.Ranking, 0)
		for _, y := range cfg.Years {
			year := model.Year(y)
			best := slices.DeleteFunc(slices.Clone(reviews), func(r model.Review) bool { return r.Year != year })
			slices.SortStableFunc(best, func(a, b model.Review) int {
				return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.AlbumID, b.AlbumID))
			})
			for rank, r := range best[:min(len(best), 2*cfg.BrushTop)] {
				rankingID++
				row := model.Ranking{
					ID:            rankingID,
					PublicationID: pub,
					AlbumID:       r.AlbumID,
					Rank:          rank + 1,
					Year:          year,
				}
				if rng.Float64() >= unscoredChance {
					s := r.Score
					row.Score = &s
				}
				rankings = append(rankings, row)
			}
		}
		ds.Rankings[pub] = rankings
	}
	return ds
}

func clamp(score float64) float64 {
	return math.Min(100, math.Max(0, score))
}
