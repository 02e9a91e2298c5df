package upset

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/okian/upsetlens/internal/domain/groups"
	"github.com/okian/upsetlens/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func ids(v ...int) []model.AlbumID {
	out := make([]model.AlbumID, len(v))
	for i, x := range v {
		out[i] = model.AlbumID(x)
	}
	return out
}

func byLabel(records []Record) map[string][]model.AlbumID {
	out := make(map[string][]model.AlbumID, len(records))
	for _, r := range records {
		out[r.SetLabel] = r.AlbumIDs
	}
	return out
}

func TestComputeTwoGroups(t *testing.T) {
	Convey("Given groups A={1,2,3} and B={2,3,4}", t, func() {
		gs := groups.Groups{
			{Label: "A", AlbumIDs: ids(1, 2, 3)},
			{Label: "B", AlbumIDs: ids(2, 3, 4)},
		}

		Convey("When computed in exclusive mode", func() {
			records, err := Compute(gs, Exclusive)
			So(err, ShouldBeNil)

			Convey("Then A#B, A and B are emitted in walk order", func() {
				So(len(records), ShouldEqual, 3)
				So(records[0], ShouldResemble, Record{SetLabel: "A#B", Sets: []int{1, 1}, IntersectionSize: 2, AlbumIDs: ids(2, 3), X1: 0, X2: 1})
				So(records[1], ShouldResemble, Record{SetLabel: "A", Sets: []int{1, 0}, IntersectionSize: 1, AlbumIDs: ids(1), X1: 0, X2: 0})
				So(records[2], ShouldResemble, Record{SetLabel: "B", Sets: []int{0, 1}, IntersectionSize: 1, AlbumIDs: ids(4), X1: 1, X2: 1})
			})
		})

		Convey("When computed in inclusive mode", func() {
			records, err := Compute(gs, Inclusive)
			So(err, ShouldBeNil)

			Convey("Then single sets keep their shared ids", func() {
				got := byLabel(records)
				So(got["A#B"], ShouldResemble, ids(2, 3))
				So(got["A"], ShouldResemble, ids(1, 2, 3))
				So(got["B"], ShouldResemble, ids(2, 3, 4))
			})
		})
	})
}

func TestComputeProperties(t *testing.T) {
	Convey("Given four overlapping groups", t, func() {
		gs := groups.Groups{
			{Label: "2024-1-60,70", AlbumIDs: ids(1, 2, 3, 4, 5)},
			{Label: "2024-2-60,70", AlbumIDs: ids(2, 4, 6, 8)},
			{Label: "2024-3-brush", AlbumIDs: ids(3, 4, 8, 9)},
			{Label: "2023-1-0,10", AlbumIDs: ids(10)},
		}
		exclusive, err := Compute(gs, Exclusive)
		So(err, ShouldBeNil)
		inclusive, err := Compute(gs, Inclusive)
		So(err, ShouldBeNil)

		Convey("Then exclusive records partition the union of the groups", func() {
			seen := map[model.AlbumID]int{}
			for _, r := range exclusive {
				for _, id := range r.AlbumIDs {
					seen[id]++
				}
			}
			for _, g := range gs {
				for _, id := range g.AlbumIDs {
					So(seen[id], ShouldEqual, 1)
				}
			}
			So(len(seen), ShouldEqual, 9)
		})

		Convey("And every exclusive record is a subset of its inclusive record", func() {
			inc := byLabel(inclusive)
			for _, r := range exclusive {
				other, ok := inc[r.SetLabel]
				So(ok, ShouldBeTrue)
				for _, id := range r.AlbumIDs {
					So(slices.Contains(other, id), ShouldBeTrue)
				}
				So(r.IntersectionSize, ShouldBeLessThanOrEqualTo, len(other))
			}
		})

		Convey("And the emitted count is bounded by the candidate count", func() {
			So(Candidates(len(gs)), ShouldEqual, 15)
			So(len(inclusive), ShouldBeLessThanOrEqualTo, 15)
			So(len(exclusive), ShouldBeLessThanOrEqualTo, len(inclusive))
		})

		Convey("And the all-group subset claims first", func() {
			So(exclusive[0].SetLabel, ShouldEqual, "2024-1-60,70#2024-2-60,70#2024-3-brush")
			So(exclusive[0].AlbumIDs, ShouldResemble, ids(4))
			So(exclusive[0].X1, ShouldEqual, 0)
			So(exclusive[0].X2, ShouldEqual, 2)
		})

		Convey("And repeated runs are identical", func() {
			again, _ := Compute(gs, Exclusive)
			So(again, ShouldResemble, exclusive)
		})
	})
}

func TestComputeEdges(t *testing.T) {
	Convey("Given degenerate input", t, func() {
		Convey("When there are no groups", func() {
			records, err := Compute(nil, Exclusive)

			Convey("Then the result is empty", func() {
				So(err, ShouldBeNil)
				So(records, ShouldNotBeNil)
				So(records, ShouldBeEmpty)
				So(Candidates(0), ShouldEqual, 0)
			})
		})

		Convey("When a group is empty", func() {
			records, err := Compute(groups.Groups{{Label: "A", AlbumIDs: ids(1)}, {Label: "B"}}, Inclusive)

			Convey("Then no subset containing it is emitted", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 1)
				So(records[0].SetLabel, ShouldEqual, "A")
			})
		})

		Convey("When a group lists an id twice", func() {
			records, _ := Compute(groups.Groups{{Label: "A", AlbumIDs: ids(1, 1, 2)}}, Exclusive)

			Convey("Then membership follows the list", func() {
				So(records[0].IntersectionSize, ShouldEqual, 3)
			})
		})

		Convey("When more groups than the cap are given", func() {
			gs := make(groups.Groups, 4)
			for i := range gs {
				gs[i] = groups.Group{Label: fmt.Sprint(i), AlbumIDs: ids(i)}
			}
			_, err := Compute(gs, Exclusive, WithMaxGroups(3))

			Convey("Then the walk is refused", func() {
				So(errors.Is(err, ErrTooManyGroups), ShouldBeTrue)
			})

			Convey("And an ignored cap keeps the default", func() {
				records, err := Compute(gs, Exclusive, WithMaxGroups(0))
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 4)
			})
		})
	})
}

func TestModeAndSort(t *testing.T) {
	Convey("Given mode strings", t, func() {
		m, err := ParseMode("Inclusive")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, Inclusive)
		m, err = ParseMode("")
		So(err, ShouldBeNil)
		So(m.String(), ShouldEqual, "exclusive")
		_, err = ParseMode("both")
		So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
	})

	Convey("Given records of mixed size", t, func() {
		records := []Record{
			{SetLabel: "a", IntersectionSize: 1},
			{SetLabel: "b", IntersectionSize: 3},
			{SetLabel: "c", IntersectionSize: 1},
			{SetLabel: "d", IntersectionSize: 2},
		}
		SortBySize(records)

		Convey("Then they are ordered by size and stable among ties", func() {
			labels := []string{}
			for _, r := range records {
				labels = append(labels, r.SetLabel)
			}
			So(labels, ShouldResemble, []string{"b", "d", "a", "c"})
		})
	})
}
