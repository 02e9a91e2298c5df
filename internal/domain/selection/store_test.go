package selection_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
	. "github.com/smartystreets/goconvey/convey"
)

const pub = model.PublicationID(5)

func reviews(year model.Year, p model.PublicationID, scores map[model.AlbumID]float64) []model.Review {
	out := make([]model.Review, 0, len(scores))
	for id := model.AlbumID(1); len(out) < len(scores); id++ {
		if s, ok := scores[id]; ok {
			out = append(out, model.Review{ID: int(id), PublicationID: p, AlbumID: id, Score: s, Year: year})
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func seeded() *selection.Store {
	s := selection.New()
	rows := append(
		reviews(2023, pub, map[model.AlbumID]float64{1: 55, 2: 62, 3: 68, 4: 90}),
		reviews(2024, pub, map[model.AlbumID]float64{1: 80, 2: 61, 5: 65, 6: 100})...,
	)
	So(s.Dispatch(selection.AddReviews{Rows: rows, Years: []model.Year{2023, 2024}}), ShouldBeNil)
	return s
}


// binAlbums keys each range entry's sorted album ids by year, publication
// and bin.
func binAlbums(entries []selection.RangeEntry) map[string][]model.AlbumID {
	out := make(map[string][]model.AlbumID, len(entries))
	for _, e := range entries {
		key := fmt.Sprintf("%d/%d/%s", e.Year, e.PublicationID, e.Bin)
		ids := slices.Clone(e.AlbumIDs)
		slices.Sort(ids)
		out[key] = ids
	}
	return out
}

func TestAddReviews(t *testing.T) {
	Convey("Given review rows for one publication across two years", t, func() {
		s := seeded()

		Convey("Then rows are partitioned by their own year", func() {
			r23, ok := s.Reviews(2023, pub)
			So(ok, ShouldBeTrue)
			So(len(r23), ShouldEqual, 4)
			r24, _ := s.Reviews(2024, pub)
			So(len(r24), ShouldEqual, 4)
		})

		Convey("And a step size is derived per year", func() {
			step, ok := s.Step(2023, pub)
			So(ok, ShouldBeTrue)
			So(step, ShouldEqual, 6)
			step, _ = s.Step(2024, pub)
			So(step, ShouldEqual, 5)
			So(len(s.Bins(2024, pub)), ShouldEqual, 20)
		})

		Convey("When a requested year has no rows", func() {
			So(s.Dispatch(selection.AddReviews{Rows: reviews(2024, 9, map[model.AlbumID]float64{1: 70}), Years: []model.Year{2022, 2024}}), ShouldBeNil)

			Convey("Then the year is cached empty rather than missing", func() {
				rows, ok := s.Reviews(2022, 9)
				So(ok, ShouldBeTrue)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When rows span two publications", func() {
			rows := append(reviews(2024, 7, map[model.AlbumID]float64{1: 70}), reviews(2024, 8, map[model.AlbumID]float64{2: 71})...)
			err := s.Dispatch(selection.AddReviews{Rows: rows})

			Convey("Then the batch is rejected without caching anything", func() {
				So(errors.Is(err, selection.ErrMixedPublications), ShouldBeTrue)
				_, ok := s.Reviews(2024, 7)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the batch is empty", func() {
			Convey("Then nothing happens", func() {
				So(s.Dispatch(selection.AddReviews{}), ShouldBeNil)
				So(s.Publications(), ShouldResemble, []model.PublicationID{pub})
			})
		})
	})
}

func TestClickBin(t *testing.T) {
	Convey("Given cached reviews", t, func() {
		s := seeded()
		years := []model.Year{2023, 2024}

		Convey("When a bin is clicked", func() {
			So(s.Dispatch(selection.ClickBin{Low: 60, High: 70, PublicationID: pub, Years: years}), ShouldBeNil)

			Convey("Then each year resolves the albums scored in [60,70)", func() {
				ranges := s.Ranges()
				So(len(ranges), ShouldEqual, 2)
				So(ranges[0].Year, ShouldEqual, 2023)
				So(ranges[0].Bin, ShouldEqual, "60,70")
				So(ranges[0].AlbumIDs, ShouldResemble, []model.AlbumID{2, 3})
				So(ranges[1].AlbumIDs, ShouldResemble, []model.AlbumID{2, 5})
			})

			Convey("And clicking it again unselects it everywhere", func() {
				So(s.Dispatch(selection.ClickBin{Low: 60, High: 70, PublicationID: pub, Years: years}), ShouldBeNil)
				So(s.Ranges(), ShouldBeEmpty)
				So(s.HasBinEntry(2023, pub), ShouldBeFalse)
			})
		})

		Convey("When the bin is selected in only one of the years", func() {
			So(s.Dispatch(selection.ClickBin{Low: 60, High: 70, PublicationID: pub, Years: []model.Year{2023}}), ShouldBeNil)
			So(s.Dispatch(selection.ClickBin{Low: 60, High: 70, PublicationID: pub, Years: years}), ShouldBeNil)

			Convey("Then it is written for every year instead of toggled off", func() {
				So(s.SelectedBins(2023, pub), ShouldResemble, []string{"60,70"})
				So(s.SelectedBins(2024, pub), ShouldResemble, []string{"60,70"})
			})
		})

		Convey("When the last bin is clicked", func() {
			So(s.Dispatch(selection.ClickBin{Low: 90, High: 100, PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)

			Convey("Then a score of 100 is included", func() {
				So(s.Ranges()[0].AlbumIDs, ShouldResemble, []model.AlbumID{6})
			})
		})

		Convey("When several bins are selected", func() {
			for _, b := range [][2]float64{{80, 90}, {50, 60}, {60, 70}} {
				So(s.Dispatch(selection.ClickBin{Low: b[0], High: b[1], PublicationID: pub, Years: []model.Year{2023}}), ShouldBeNil)
			}

			Convey("Then bins keep selection order", func() {
				So(s.SelectedBins(2023, pub), ShouldResemble, []string{"80,90", "50,60", "60,70"})
			})

			Convey("And no album appears in two bins", func() {
				seen := map[model.AlbumID]int{}
				for _, e := range s.Ranges() {
					for _, id := range e.AlbumIDs {
						seen[id]++
					}
				}
				for _, n := range seen {
					So(n, ShouldEqual, 1)
				}
			})

			Convey("And toggling the middle one twice restores every bin's albums", func() {
				before := binAlbums(s.Ranges())
				So(s.Dispatch(selection.ClickBin{Low: 50, High: 60, PublicationID: pub, Years: []model.Year{2023}}), ShouldBeNil)
				So(binAlbums(s.Ranges()), ShouldNotContainKey, fmt.Sprintf("2023/%d/50,60", pub))
				So(s.Dispatch(selection.ClickBin{Low: 50, High: 60, PublicationID: pub, Years: []model.Year{2023}}), ShouldBeNil)
				So(binAlbums(s.Ranges()), ShouldResemble, before)
				So(s.SelectedBins(2023, pub), ShouldResemble, []string{"80,90", "60,70", "50,60"})
			})
		})

		Convey("When reviews for a year were never added", func() {
			err := s.Dispatch(selection.ClickBin{Low: 60, High: 70, PublicationID: pub, Years: []model.Year{2024, 2025}})

			Convey("Then the click fails with a cache miss and changes nothing", func() {
				So(errors.Is(err, selection.ErrCacheMiss), ShouldBeTrue)
				So(s.Ranges(), ShouldBeEmpty)
			})
		})

		Convey("When the bounds are inverted", func() {
			err := s.Dispatch(selection.ClickBin{Low: 70, High: 60, PublicationID: pub, Years: years})

			Convey("Then the click is rejected", func() {
				So(errors.Is(err, selection.ErrInvalidBin), ShouldBeTrue)
			})
		})
	})
}

func TestSelectAllAndClear(t *testing.T) {
	Convey("Given cached reviews", t, func() {
		s := seeded()

		Convey("When every bin is selected", func() {
			So(s.Dispatch(selection.SelectAll{PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)

			Convey("Then one entry exists per histogram bin and every album is covered once", func() {
				bins := s.SelectedBins(2024, pub)
				So(len(bins), ShouldEqual, 20)
				So(bins[0], ShouldEqual, "0,5")
				total := 0
				for _, e := range s.Ranges() {
					total += len(e.AlbumIDs)
				}
				So(total, ShouldEqual, 4)
			})

			Convey("And clearing removes them all", func() {
				So(s.Dispatch(selection.ClearSelection{PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
				So(s.Ranges(), ShouldBeEmpty)
			})
		})

		Convey("When select-all targets an uncached year", func() {
			err := s.Dispatch(selection.SelectAll{PublicationID: pub, Years: []model.Year{2019}})

			Convey("Then it reports a cache miss", func() {
				So(errors.Is(err, selection.ErrCacheMiss), ShouldBeTrue)
			})
		})
	})
}

func TestBrush(t *testing.T) {
	Convey("Given cached rankings with an unscored row", t, func() {
		s := selection.New()
		rows := []model.Ranking{
			{AlbumID: 10, Rank: 1, Year: 2024, PublicationID: pub, Score: ptr(95)},
			{AlbumID: 11, Rank: 2, Year: 2024, PublicationID: pub, Score: ptr(88)},
			{AlbumID: 12, Rank: 3, Year: 2024, PublicationID: pub},
			{AlbumID: 13, Rank: 9, Year: 2024, PublicationID: pub, Score: ptr(90)},
		}
		So(s.Dispatch(selection.AddRankings{Rows: rows, Years: []model.Year{2024}}), ShouldBeNil)
		geom := model.BrushGeometry{X: 1, Y: 2, Width: 30, Height: 40}

		Convey("When a region is brushed with reversed corners", func() {
			So(s.Dispatch(selection.Brush{X1: 5, X2: 1, Y1: 100, Y2: -20, Geometry: geom, Years: []model.Year{2024}, PublicationID: pub}), ShouldBeNil)

			Convey("Then albums inside the rank and score rectangle are kept", func() {
				b := s.Brushes()
				So(len(b), ShouldEqual, 1)
				So(b[0].AlbumIDs, ShouldResemble, []model.AlbumID{10, 11, 12})
				g, ok := s.Geometry(2024, pub)
				So(ok, ShouldBeTrue)
				So(g, ShouldResemble, geom)
			})

			Convey("And re-brushing replaces the region", func() {
				So(s.Dispatch(selection.Brush{X1: 8, X2: 10, Y1: 80, Y2: 100, Years: []model.Year{2024}, PublicationID: pub}), ShouldBeNil)
				So(s.Brushes()[0].AlbumIDs, ShouldResemble, []model.AlbumID{13})
			})

			Convey("And clearing the brush drops region and geometry", func() {
				So(s.Dispatch(selection.ClearBrush{PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
				So(s.Brushes(), ShouldBeEmpty)
				_, ok := s.Geometry(2024, pub)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When unscored rows are hidden before brushing", func() {
			So(s.Dispatch(selection.ToggleUnscored{PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
			So(s.UnscoredHidden(2024, pub), ShouldBeTrue)
			So(s.Dispatch(selection.Brush{X1: 1, X2: 5, Y1: -20, Y2: 100, Years: []model.Year{2024}, PublicationID: pub}), ShouldBeNil)

			Convey("Then the unscored album is left out", func() {
				So(s.Brushes()[0].AlbumIDs, ShouldResemble, []model.AlbumID{10, 11})
			})

			Convey("And toggling again shows them", func() {
				So(s.Dispatch(selection.ToggleUnscored{PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
				So(s.UnscoredHidden(2024, pub), ShouldBeFalse)
			})
		})

		Convey("When brushing a year without rankings", func() {
			err := s.Dispatch(selection.Brush{X1: 1, X2: 5, Y1: 0, Y2: 100, Years: []model.Year{2024, 2020}, PublicationID: pub})

			Convey("Then it reports a cache miss and keeps no brush", func() {
				So(errors.Is(err, selection.ErrCacheMiss), ShouldBeTrue)
				So(s.Brushes(), ShouldBeEmpty)
			})
		})
	})
}

func TestRemovePublication(t *testing.T) {
	Convey("Given a publication with two bins in 2024", t, func() {
		s := selection.New()
		So(s.Dispatch(selection.AddReviews{Rows: reviews(2024, pub, map[model.AlbumID]float64{1: 2, 2: 8, 3: 15})}), ShouldBeNil)
		So(s.Dispatch(selection.ClickBin{Low: 0, High: 10, PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
		So(s.Dispatch(selection.ClickBin{Low: 10, High: 20, PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
		So(s.Ranges()[0].AlbumIDs, ShouldResemble, []model.AlbumID{1, 2})
		So(s.Ranges()[1].AlbumIDs, ShouldResemble, []model.AlbumID{3})

		Convey("When the publication is removed", func() {
			So(s.Dispatch(selection.RemovePublication{PublicationID: pub}), ShouldBeNil)

			Convey("Then its entries and caches are absent, not empty", func() {
				So(s.Ranges(), ShouldBeEmpty)
				So(s.HasBinEntry(2024, pub), ShouldBeFalse)
				_, ok := s.Reviews(2024, pub)
				So(ok, ShouldBeFalse)
				_, ok = s.Step(2024, pub)
				So(ok, ShouldBeFalse)
				So(s.Publications(), ShouldBeEmpty)
				So(s.Snapshot().Reviews, ShouldBeEmpty)
			})
		})
	})
}

func TestSnapshotRestore(t *testing.T) {
	Convey("Given a store with bins, a brush and a hidden toggle", t, func() {
		s := seeded()
		So(s.Dispatch(selection.ClickBin{Low: 60, High: 70, PublicationID: pub, Years: []model.Year{2023, 2024}}), ShouldBeNil)
		So(s.Dispatch(selection.AddRankings{Rows: []model.Ranking{{AlbumID: 1, Rank: 1, Year: 2024, PublicationID: pub, Score: ptr(80)}}}), ShouldBeNil)
		So(s.Dispatch(selection.ToggleUnscored{PublicationID: pub, Years: []model.Year{2024}}), ShouldBeNil)
		So(s.Dispatch(selection.Brush{X1: 1, X2: 1, Y1: 0, Y2: 100, Years: []model.Year{2024}, PublicationID: pub}), ShouldBeNil)

		Convey("When restored into a fresh store", func() {
			restored := selection.New()
			restored.Restore(s.Snapshot())

			Convey("Then the observable state matches", func() {
				So(restored.Ranges(), ShouldResemble, s.Ranges())
				So(restored.Brushes(), ShouldResemble, s.Brushes())
				So(restored.UnscoredHidden(2024, pub), ShouldBeTrue)
				step, _ := restored.Step(2023, pub)
				So(step, ShouldEqual, 6)
				So(restored.SelectionCount(), ShouldEqual, 3)
			})
		})
	})
}
