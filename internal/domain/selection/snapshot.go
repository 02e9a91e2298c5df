package selection

import (
	"slices"

	"github.com/okian/upsetlens/internal/domain/binning"
	"github.com/okian/upsetlens/internal/domain/model"
)

// ReviewCache is the cached review rows of one (year, publication).
type ReviewCache struct {
	Year          model.Year          `json:"year"`
	PublicationID model.PublicationID `json:"publication_id"`
	Rows          []model.Review      `json:"rows"`
}

// RankingCache is the cached ranking rows of one (year, publication).
type RankingCache struct {
	Year          model.Year          `json:"year"`
	PublicationID model.PublicationID `json:"publication_id"`
	Rows          []model.Ranking     `json:"rows"`
}

// Cell addresses one (year, publication).
type Cell struct {
	Year          model.Year          `json:"year"`
	PublicationID model.PublicationID `json:"publication_id"`
}

// Snapshot is a serializable deep copy of a Store.
type Snapshot struct {
	Reviews        []ReviewCache  `json:"reviews"`
	Rankings       []RankingCache `json:"rankings"`
	Ranges         []RangeEntry   `json:"ranges"`
	Brushes        []BrushEntry   `json:"brushes"`
	UnscoredHidden []Cell         `json:"unscored_hidden"`
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Ranges:  s.Ranges(),
		Brushes: s.Brushes(),
	}
	s.reviews.each(func(y model.Year, p model.PublicationID, rows []model.Review) {
		snap.Reviews = append(snap.Reviews, ReviewCache{Year: y, PublicationID: p, Rows: slices.Clone(rows)})
	})
	s.rankings.each(func(y model.Year, p model.PublicationID, rows []model.Ranking) {
		snap.Rankings = append(snap.Rankings, RankingCache{Year: y, PublicationID: p, Rows: cloneRankings(rows)})
	})
	s.hidden.each(func(y model.Year, p model.PublicationID, _ bool) {
		snap.UnscoredHidden = append(snap.UnscoredHidden, Cell{Year: y, PublicationID: p})
	})
	return snap
}

// Restore replaces the state with snap. Bin widths are re-derived from the
// restored reviews.
func (s *Store) Restore(snap Snapshot) {
	s.reset()
	for _, c := range snap.Reviews {
		rows := slices.Clone(c.Rows)
		if rows == nil {
			rows = make([]model.Review, 0)
		}
		s.reviews.set(c.Year, c.PublicationID, rows)
		s.steps.set(c.Year, c.PublicationID, binning.StepSize(model.Scores(rows), s.minStep))
	}
	for _, c := range snap.Rankings {
		rows := cloneRankings(c.Rows)
		if rows == nil {
			rows = make([]model.Ranking, 0)
		}
		s.rankings.set(c.Year, c.PublicationID, rows)
	}
	for _, e := range snap.Ranges {
		b, ok := s.ranges.get(e.Year, e.PublicationID)
		if !ok {
			b = newBinSet()
			s.ranges.set(e.Year, e.PublicationID, b)
		}
		b.put(e.Bin, slices.Clone(e.AlbumIDs))
	}
	for _, e := range snap.Brushes {
		s.brushes.set(e.Year, e.PublicationID, slices.Clone(e.AlbumIDs))
		s.geometry.set(e.Year, e.PublicationID, e.Geometry)
	}
	for _, c := range snap.UnscoredHidden {
		s.hidden.set(c.Year, c.PublicationID, true)
	}
}

func cloneRankings(rows []model.Ranking) []model.Ranking {
	if rows == nil {
		return nil
	}
	out := make([]model.Ranking, len(rows))
	for i, r := range rows {
		if r.Score != nil {
			v := *r.Score
			r.Score = &v
		}
		out[i] = r
	}
	return out
}
