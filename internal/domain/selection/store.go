// Package selection holds the canonical selection state of one dashboard
// session: per-year, per-publication score-bin selections and ranking
// brushes, plus the review and ranking rows they are resolved against.
//
// The store is mutated only through Dispatch with an Action value, which
// keeps every mutation replayable and the state serializable. A Store is not
// safe for concurrent use; callers serialize access (see the worker package).
package selection

import (
	"slices"

	"github.com/okian/upsetlens/internal/domain/binning"
	"github.com/okian/upsetlens/internal/domain/model"
)

// binSet is the ordered set of selected bins for one (year, publication).
// order keeps first-selection order, which fixes group order downstream.
type binSet struct {
	order []string
	ids   map[string][]model.AlbumID
}

func newBinSet() *binSet {
	return &binSet{ids: make(map[string][]model.AlbumID)}
}

func (b *binSet) has(key string) bool {
	_, ok := b.ids[key]
	return ok
}

func (b *binSet) put(key string, ids []model.AlbumID) {
	if !b.has(key) {
		b.order = append(b.order, key)
	}
	b.ids[key] = ids
}

func (b *binSet) remove(key string) {
	if !b.has(key) {
		return
	}
	delete(b.ids, key)
	b.order = slices.DeleteFunc(b.order, func(k string) bool { return k == key })
}

func (b *binSet) empty() bool { return len(b.order) == 0 }

// Store is the selection state container.
type Store struct {
	minStep  float64
	sentinel float64

	reviews  cells[[]model.Review]
	rankings cells[[]model.Ranking]
	steps    cells[float64]

	ranges   cells[*binSet]
	brushes  cells[[]model.AlbumID]
	geometry cells[model.BrushGeometry]
	hidden   cells[bool]
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		minStep:  binning.DefaultMinStep,
		sentinel: model.DefaultUnscoredSentinel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.reviews = make(cells[[]model.Review])
	s.rankings = make(cells[[]model.Ranking])
	s.steps = make(cells[float64])
	s.ranges = make(cells[*binSet])
	s.brushes = make(cells[[]model.AlbumID])
	s.geometry = make(cells[model.BrushGeometry])
	s.hidden = make(cells[bool])
}

// Dispatch applies a mutation. A failed action leaves the store unchanged.
func (s *Store) Dispatch(a Action) error {
	return a.apply(s)
}

// RangeEntry is one selected score bin.
type RangeEntry struct {
	Year          model.Year          `json:"year"`
	PublicationID model.PublicationID `json:"publication_id"`
	Bin           string              `json:"bin"`
	AlbumIDs      []model.AlbumID     `json:"album_ids"`
}

// BrushEntry is the retained brush region of one (year, publication).
type BrushEntry struct {
	Year          model.Year          `json:"year"`
	PublicationID model.PublicationID `json:"publication_id"`
	AlbumIDs      []model.AlbumID     `json:"album_ids"`
	Geometry      model.BrushGeometry `json:"geometry"`
}

// Ranges lists selected bins: years ascending, publications ascending, bins
// in the order they were first selected.
func (s *Store) Ranges() []RangeEntry {
	var out []RangeEntry
	s.ranges.each(func(y model.Year, p model.PublicationID, b *binSet) {
		for _, key := range b.order {
			out = append(out, RangeEntry{
				Year:          y,
				PublicationID: p,
				Bin:           key,
				AlbumIDs:      slices.Clone(b.ids[key]),
			})
		}
	})
	return out
}

// Brushes lists brush selections, years then publications ascending.
func (s *Store) Brushes() []BrushEntry {
	var out []BrushEntry
	s.brushes.each(func(y model.Year, p model.PublicationID, ids []model.AlbumID) {
		g, _ := s.geometry.get(y, p)
		out = append(out, BrushEntry{
			Year:          y,
			PublicationID: p,
			AlbumIDs:      slices.Clone(ids),
			Geometry:      g,
		})
	})
	return out
}

// SelectedBins returns the selected bin keys of one (year, publication).
func (s *Store) SelectedBins(y model.Year, p model.PublicationID) []string {
	b, ok := s.ranges.get(y, p)
	if !ok {
		return nil
	}
	return slices.Clone(b.order)
}

// HasBinEntry reports whether any bin is selected for (year, publication).
func (s *Store) HasBinEntry(y model.Year, p model.PublicationID) bool {
	_, ok := s.ranges.get(y, p)
	return ok
}

// Step returns the bin width derived for (year, publication).
func (s *Store) Step(y model.Year, p model.PublicationID) (float64, bool) {
	return s.steps.get(y, p)
}

// Bins lists every bin of the histogram for (year, publication).
func (s *Store) Bins(y model.Year, p model.PublicationID) []binning.Key {
	step, ok := s.steps.get(y, p)
	if !ok {
		return nil
	}
	return binning.Keys(step)
}

// Geometry returns the last brush rectangle for (year, publication).
func (s *Store) Geometry(y model.Year, p model.PublicationID) (model.BrushGeometry, bool) {
	return s.geometry.get(y, p)
}

// UnscoredHidden reports whether unscored ranking rows are hidden.
func (s *Store) UnscoredHidden(y model.Year, p model.PublicationID) bool {
	h, _ := s.hidden.get(y, p)
	return h
}

// Reviews returns the cached review rows for (year, publication).
func (s *Store) Reviews(y model.Year, p model.PublicationID) ([]model.Review, bool) {
	rows, ok := s.reviews.get(y, p)
	return slices.Clone(rows), ok
}

// Rankings returns the cached ranking rows for (year, publication).
func (s *Store) Rankings(y model.Year, p model.PublicationID) ([]model.Ranking, bool) {
	rows, ok := s.rankings.get(y, p)
	return slices.Clone(rows), ok
}

// Publications lists every publication with cached rows or selections.
func (s *Store) Publications() []model.PublicationID {
	seen := make(map[model.PublicationID]struct{})
	collect := func(y model.Year, p model.PublicationID) { seen[p] = struct{}{} }
	s.reviews.each(func(y model.Year, p model.PublicationID, _ []model.Review) { collect(y, p) })
	s.rankings.each(func(y model.Year, p model.PublicationID, _ []model.Ranking) { collect(y, p) })
	s.ranges.each(func(y model.Year, p model.PublicationID, _ *binSet) { collect(y, p) })
	s.brushes.each(func(y model.Year, p model.PublicationID, _ []model.AlbumID) { collect(y, p) })
	out := make([]model.PublicationID, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// SelectionCount returns the number of bin and brush entries.
func (s *Store) SelectionCount() int {
	n := 0
	s.ranges.each(func(_ model.Year, _ model.PublicationID, b *binSet) { n += len(b.order) })
	s.brushes.each(func(model.Year, model.PublicationID, []model.AlbumID) { n++ })
	return n
}

// binAlbums resolves the album ids of rows whose score falls in key.
func binAlbums(rows []model.Review, key binning.Key) []model.AlbumID {
	ids := make([]model.AlbumID, 0)
	for _, r := range rows {
		if key.Contains(r.Score) {
			ids = append(ids, r.AlbumID)
		}
	}
	return ids
}

// brushAlbums resolves the album ids of ranking rows inside the rank/score
// rectangle. Unscored rows sit at the sentinel unless hidden.
func brushAlbums(rows []model.Ranking, b Brush, hidden bool, sentinel float64) []model.AlbumID {
	xlo, xhi := min(b.X1, b.X2), max(b.X1, b.X2)
	ylo, yhi := min(b.Y1, b.Y2), max(b.Y1, b.Y2)
	ids := make([]model.AlbumID, 0)
	for _, r := range rows {
		if r.Score == nil && hidden {
			continue
		}
		rank := float64(r.Rank)
		score := r.EffectiveScore(sentinel)
		if rank >= xlo && rank <= xhi && score >= ylo && score <= yhi {
			ids = append(ids, r.AlbumID)
		}
	}
	return ids
}
