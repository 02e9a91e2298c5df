package model_test

import (
	"testing"

	"github.com/okian/upsetlens/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func score(v float64) *float64 { return &v }

func TestApplyUnscoredPolicy(t *testing.T) {
	Convey("Given ranking rows with and without scores", t, func() {
		rows := []model.Ranking{
			{AlbumID: 1, Rank: 1, Year: 2024, PublicationID: 5, Score: score(91)},
			{AlbumID: 2, Rank: 2, Year: 2024, PublicationID: 5},
			{AlbumID: 3, Rank: 3, Year: 2024, PublicationID: 5, Score: score(74)},
		}

		Convey("When unscored rows are visible", func() {
			kept, excluded := model.ApplyUnscoredPolicy(rows, false, model.DefaultUnscoredSentinel)

			Convey("Then they are remapped to the sentinel", func() {
				So(excluded, ShouldEqual, 0)
				So(len(kept), ShouldEqual, 3)
				So(*kept[1].Score, ShouldEqual, -10)
			})

			Convey("And the input is untouched", func() {
				So(rows[1].Score, ShouldBeNil)
			})
		})

		Convey("When unscored rows are hidden", func() {
			kept, excluded := model.ApplyUnscoredPolicy(rows, true, model.DefaultUnscoredSentinel)

			Convey("Then they are dropped and counted", func() {
				So(excluded, ShouldEqual, 1)
				So(len(kept), ShouldEqual, 2)
				So(kept[0].AlbumID, ShouldEqual, 1)
				So(kept[1].AlbumID, ShouldEqual, 3)
			})
		})
	})
}

func TestEffectiveScore(t *testing.T) {
	Convey("Given rankings", t, func() {
		Convey("Then unscored rows fall back to the sentinel", func() {
			So(model.Ranking{}.EffectiveScore(-10), ShouldEqual, -10)
			So(model.Ranking{Score: score(55)}.EffectiveScore(-10), ShouldEqual, 55)
		})
	})
}

func TestScores(t *testing.T) {
	Convey("Given reviews", t, func() {
		rows := []model.Review{{Score: 80}, {Score: 72.5}}

		Convey("Then scores are listed in row order", func() {
			So(model.Scores(rows), ShouldResemble, []float64{80, 72.5})
			So(model.Year(2024).String(), ShouldEqual, "2024")
			So(model.PublicationID(7).String(), ShouldEqual, "7")
		})
	})
}
