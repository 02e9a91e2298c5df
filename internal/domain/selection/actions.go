package selection

import (
	"fmt"
	"slices"

	"github.com/okian/upsetlens/internal/domain/binning"
	"github.com/okian/upsetlens/internal/domain/model"
)

// Action is a single mutation of the Store. The set of actions is closed.
type Action interface {
	// Name identifies the action in logs and metrics.
	Name() string
	apply(s *Store) error
}

// AddReviews caches review rows, partitioned by each row's own year. All rows
// must belong to one publication. Years limits which partitions are written;
// when empty, every year present in Rows is written. The bin width of each
// written (year, publication) is re-derived.
type AddReviews struct {
	Rows  []model.Review `json:"rows" validate:"dive"`
	Years []model.Year   `json:"years"`
}

// AddRankings caches ranking rows the same way AddReviews caches reviews.
type AddRankings struct {
	Rows  []model.Ranking `json:"rows" validate:"dive"`
	Years []model.Year    `json:"years"`
}

// ClickBin toggles the bin [Low, High) of a publication across Years. When
// every year already selects the bin it is removed everywhere; otherwise it
// is (re)computed and written for every year.
type ClickBin struct {
	Low           float64             `json:"low" validate:"gte=0,lt=100"`
	High          float64             `json:"high" validate:"gtfield=Low,lte=100"`
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
	Years         []model.Year        `json:"years" validate:"required,min=1"`
}

// ClearSelection removes every bin of a publication for Years.
type ClearSelection struct {
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
	Years         []model.Year        `json:"years" validate:"required,min=1"`
}

// SelectAll selects every bin of the publication's histogram for Years.
type SelectAll struct {
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
	Years         []model.Year        `json:"years" validate:"required,min=1"`
}

// Brush replaces the brush region of a publication for Years with the albums
// whose rank is in [min(X1,X2), max(X1,X2)] and score in [min(Y1,Y2), max(Y1,Y2)].
type Brush struct {
	X1            float64             `json:"x1"`
	X2            float64             `json:"x2"`
	Y1            float64             `json:"y1"`
	Y2            float64             `json:"y2"`
	Geometry      model.BrushGeometry `json:"geometry"`
	Years         []model.Year        `json:"years" validate:"required,min=1"`
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
}

// ClearBrush drops the brush region and geometry of a publication for Years.
type ClearBrush struct {
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
	Years         []model.Year        `json:"years" validate:"required,min=1"`
}

// RemovePublication deletes every cache and selection of a publication
// across all years.
type RemovePublication struct {
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
}

// ToggleUnscored flips whether unscored ranking rows are hidden from brushes.
type ToggleUnscored struct {
	PublicationID model.PublicationID `json:"publication_id" validate:"required"`
	Years         []model.Year        `json:"years" validate:"required,min=1"`
}

func (AddReviews) Name() string        { return "add_reviews" }
func (AddRankings) Name() string       { return "add_rankings" }
func (ClickBin) Name() string          { return "click_bin" }
func (ClearSelection) Name() string    { return "clear_selection" }
func (SelectAll) Name() string         { return "select_all" }
func (Brush) Name() string             { return "brush" }
func (ClearBrush) Name() string        { return "clear_brush" }
func (RemovePublication) Name() string { return "remove_publication" }
func (ToggleUnscored) Name() string    { return "toggle_unscored" }

// partition groups rows by year for the requested years. Requested years
// without rows get an empty partition. A nil map means there was nothing to do.
func partition[R any](rows []R, years []model.Year, key func(R) (model.Year, model.PublicationID)) (model.PublicationID, map[model.Year][]R, error) {
	if len(rows) == 0 {
		return 0, nil, nil
	}
	_, pub := key(rows[0])
	if len(years) == 0 {
		for _, r := range rows {
			y, _ := key(r)
			years = append(years, y)
		}
		slices.Sort(years)
		years = slices.Compact(years)
	}
	parts := make(map[model.Year][]R, len(years))
	for _, y := range years {
		parts[y] = make([]R, 0)
	}
	for _, r := range rows {
		y, p := key(r)
		if p != pub {
			return 0, nil, fmt.Errorf("%w: %d and %d", ErrMixedPublications, pub, p)
		}
		if part, ok := parts[y]; ok {
			parts[y] = append(part, r)
		}
	}
	return pub, parts, nil
}

func (a AddReviews) apply(s *Store) error {
	pub, parts, err := partition(a.Rows, a.Years, func(r model.Review) (model.Year, model.PublicationID) {
		return r.Year, r.PublicationID
	})
	if err != nil || parts == nil {
		return err
	}
	for y, rows := range parts {
		s.reviews.set(y, pub, rows)
		s.steps.set(y, pub, binning.StepSize(model.Scores(rows), s.minStep))
	}
	return nil
}

func (a AddRankings) apply(s *Store) error {
	pub, parts, err := partition(a.Rows, a.Years, func(r model.Ranking) (model.Year, model.PublicationID) {
		return r.Year, r.PublicationID
	})
	if err != nil || parts == nil {
		return err
	}
	for y, rows := range parts {
		s.rankings.set(y, pub, rows)
	}
	return nil
}

func (a ClickBin) apply(s *Store) error {
	if a.High <= a.Low {
		return fmt.Errorf("%w: [%v,%v)", ErrInvalidBin, a.Low, a.High)
	}
	key := binning.Key{Low: a.Low, High: a.High}
	label := key.String()

	allSelected := true
	for _, y := range a.Years {
		b, ok := s.ranges.get(y, a.PublicationID)
		if !ok || !b.has(label) {
			allSelected = false
			break
		}
	}
	if allSelected {
		for _, y := range a.Years {
			b, _ := s.ranges.get(y, a.PublicationID)
			b.remove(label)
			if b.empty() {
				s.ranges.del(y, a.PublicationID)
			}
		}
		return nil
	}

	if err := s.requireReviews(a.PublicationID, a.Years); err != nil {
		return err
	}
	for _, y := range a.Years {
		rows, _ := s.reviews.get(y, a.PublicationID)
		b, ok := s.ranges.get(y, a.PublicationID)
		if !ok {
			b = newBinSet()
			s.ranges.set(y, a.PublicationID, b)
		}
		b.put(label, binAlbums(rows, key))
	}
	return nil
}

func (a ClearSelection) apply(s *Store) error {
	for _, y := range a.Years {
		s.ranges.del(y, a.PublicationID)
	}
	return nil
}

func (a SelectAll) apply(s *Store) error {
	if err := s.requireReviews(a.PublicationID, a.Years); err != nil {
		return err
	}
	for _, y := range a.Years {
		rows, _ := s.reviews.get(y, a.PublicationID)
		step, _ := s.steps.get(y, a.PublicationID)
		b := newBinSet()
		for _, key := range binning.Keys(step) {
			b.put(key.String(), binAlbums(rows, key))
		}
		s.ranges.set(y, a.PublicationID, b)
	}
	return nil
}

func (a Brush) apply(s *Store) error {
	for _, y := range a.Years {
		if _, ok := s.rankings.get(y, a.PublicationID); !ok {
			return fmt.Errorf("%w: rankings for year %d publication %d", ErrCacheMiss, y, a.PublicationID)
		}
	}
	for _, y := range a.Years {
		rows, _ := s.rankings.get(y, a.PublicationID)
		hidden, _ := s.hidden.get(y, a.PublicationID)
		s.brushes.set(y, a.PublicationID, brushAlbums(rows, a, hidden, s.sentinel))
		s.geometry.set(y, a.PublicationID, a.Geometry)
	}
	return nil
}

func (a ClearBrush) apply(s *Store) error {
	for _, y := range a.Years {
		s.brushes.del(y, a.PublicationID)
		s.geometry.del(y, a.PublicationID)
	}
	return nil
}

func (a RemovePublication) apply(s *Store) error {
	s.reviews.dropPublication(a.PublicationID)
	s.rankings.dropPublication(a.PublicationID)
	s.steps.dropPublication(a.PublicationID)
	s.ranges.dropPublication(a.PublicationID)
	s.brushes.dropPublication(a.PublicationID)
	s.geometry.dropPublication(a.PublicationID)
	s.hidden.dropPublication(a.PublicationID)
	return nil
}

func (a ToggleUnscored) apply(s *Store) error {
	for _, y := range a.Years {
		if s.UnscoredHidden(y, a.PublicationID) {
			s.hidden.del(y, a.PublicationID)
		} else {
			s.hidden.set(y, a.PublicationID, true)
		}
	}
	return nil
}

func (s *Store) requireReviews(p model.PublicationID, years []model.Year) error {
	for _, y := range years {
		if _, ok := s.reviews.get(y, p); !ok {
			return fmt.Errorf("%w: reviews for year %d publication %d", ErrCacheMiss, y, p)
		}
	}
	return nil
}
