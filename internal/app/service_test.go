package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/okian/upsetlens/internal/adapters/repository"
	service "github.com/okian/upsetlens/internal/app"
	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/genre"
	"github.com/okian/upsetlens/internal/domain/groups"
	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/internal/domain/upset"
	"github.com/okian/upsetlens/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.Options{Output: io.Discard}); err != nil {
		panic(err)
	}
}

func ptr(v float64) *float64 { return &v }

// twoBins selects [1,2,3] and [2,3,4] as two publications' bins in 2024.
func twoBins(ctx context.Context, svc *service.Service, id string) {
	So(svc.Apply(ctx, id, "", selection.AddReviews{Rows: []model.Review{
		{AlbumID: 1, PublicationID: 1, Score: 71, Year: 2024},
		{AlbumID: 2, PublicationID: 1, Score: 73, Year: 2024},
		{AlbumID: 3, PublicationID: 1, Score: 78, Year: 2024},
		{AlbumID: 9, PublicationID: 1, Score: 20, Year: 2024},
	}}), ShouldBeNil)
	So(svc.Apply(ctx, id, "", selection.AddReviews{Rows: []model.Review{
		{AlbumID: 2, PublicationID: 2, Score: 81, Year: 2024},
		{AlbumID: 3, PublicationID: 2, Score: 84, Year: 2024},
		{AlbumID: 4, PublicationID: 2, Score: 88, Year: 2024},
	}}), ShouldBeNil)
	So(svc.Apply(ctx, id, "", selection.ClickBin{Low: 70, High: 80, PublicationID: 1, Years: []model.Year{2024}}), ShouldBeNil)
	So(svc.Apply(ctx, id, "", selection.ClickBin{Low: 80, High: 90, PublicationID: 2, Years: []model.Year{2024}}), ShouldBeNil)
}

// consistent reports whether every record's bit vector indexes g and every
// album of the record belongs to each group its bits name.
func consistent(g groups.Groups, records []upset.Record) bool {
	for _, rec := range records {
		if len(rec.Sets) != g.Len() {
			return false
		}
		var names []string
		for k, bit := range rec.Sets {
			if bit == 0 {
				continue
			}
			names = append(names, g[k].Label)
			for _, id := range rec.AlbumIDs {
				if !slices.Contains(g[k].AlbumIDs, id) {
					return false
				}
			}
		}
		if strings.Join(names, "#") != rec.SetLabel {
			return false
		}
	}
	return true
}

func TestService_IntersectionsUnderConcurrentClicks(t *testing.T) {
	Convey("Given two selected bins and a client toggling one of them", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		info, _ := svc.CreateSession(ctx)
		twoBins(ctx, svc, info.ID)

		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			toggle := selection.ClickBin{Low: 80, High: 90, PublicationID: 2, Years: []model.Year{2024}}
			for {
				select {
				case <-stop:
					return
				default:
					_ = svc.Apply(ctx, info.ID, "", toggle)
				}
			}
		}()

		Convey("Then every read decodes against its own labels", func() {
			torn := 0
			for i := 0; i < 500; i++ {
				g, records, err := svc.Intersections(ctx, info.ID, upset.Inclusive, false)
				if err != nil || !consistent(g, records) {
					torn++
				}
			}
			close(stop)
			<-done
			So(torn, ShouldEqual, 0)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithShardCount(2), service.WithQueueSize(16))
		ctx := context.Background()

		Convey("When the context it was started with ends", func() {
			startCtx, cancel := context.WithCancel(ctx)
			So(svc.Start(startCtx), ShouldBeNil)
			defer svc.Stop()
			cancel()
			info, err := svc.CreateSession(ctx)
			So(err, ShouldBeNil)

			Convey("Then commands are still applied until Stop", func() {
				done := make(chan error, 1)
				go func() {
					done <- svc.Apply(ctx, info.ID, "", selection.AddReviews{Rows: []model.Review{
						{AlbumID: 1, PublicationID: 1, Score: 50, Year: 2024},
					}})
				}()
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					So("apply timed out", ShouldBeEmpty)
				}
			})
		})

		Convey("When used before Start", func() {
			_, err := svc.CreateSession(ctx)

			Convey("Then it refuses", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then stats report it", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["sessions"], ShouldEqual, 0)
				So(stats["shardCount"], ShouldEqual, 2)
			})

			Convey("And sessions can be created and deleted", func() {
				info, err := svc.CreateSession(ctx)
				So(err, ShouldBeNil)
				So(info.ID, ShouldNotBeEmpty)
				So(svc.DeleteSession(ctx, info.ID), ShouldBeNil)
				_, err = svc.Selection(ctx, info.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Intersections(t *testing.T) {
	Convey("Given a session with two overlapping bins", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithShardCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		info, _ := svc.CreateSession(ctx)
		twoBins(ctx, svc, info.ID)

		Convey("When groups are derived", func() {
			g, err := svc.Groups(ctx, info.ID, false)

			Convey("Then each bin is a group", func() {
				So(err, ShouldBeNil)
				So(g.Labels(), ShouldResemble, []string{"2024-1-70,80", "2024-2-80,90"})
			})
		})

		Convey("When exclusive intersections are computed", func() {
			g, records, err := svc.Intersections(ctx, info.ID, upset.Exclusive, false)

			Convey("Then shared albums land in the pair", func() {
				So(err, ShouldBeNil)
				So(g.Labels(), ShouldResemble, []string{"2024-1-70,80", "2024-2-80,90"})
				So(len(records), ShouldEqual, 3)
				So(records[0].SetLabel, ShouldEqual, "2024-1-70,80#2024-2-80,90")
				So(records[0].AlbumIDs, ShouldResemble, []model.AlbumID{2, 3})
				So(records[1].AlbumIDs, ShouldResemble, []model.AlbumID{1})
				So(records[2].AlbumIDs, ShouldResemble, []model.AlbumID{4})
			})
		})

		Convey("When an intersection filter and a genre filter are added", func() {
			f, err := svc.AddIntersectionFilter(ctx, info.ID, "", "2024-1-70,80", upset.Inclusive, false)
			So(err, ShouldBeNil)
			So(f.AlbumIDs, ShouldResemble, []model.AlbumID{1, 2, 3})

			_, err = svc.AddGenreFilter(ctx, info.ID, "", "genre-rock", []genre.Row{
				{ID: 2, Genres: []string{"Rock"}},
				{ID: 3, Genres: []string{"rock"}},
				{ID: 4, Genres: []string{"Rock"}},
			}, []string{"rock"}, false)
			So(err, ShouldBeNil)

			Convey("Then the resolved albums are their intersection", func() {
				ids, err := svc.Albums(ctx, info.ID)
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []model.AlbumID{2, 3})
			})

			Convey("And removing the genre filter widens the result", func() {
				So(svc.RemoveFilter(ctx, info.ID, "", "genre-rock"), ShouldBeNil)
				ids, _ := svc.Albums(ctx, info.ID)
				So(ids, ShouldResemble, []model.AlbumID{1, 2, 3})
			})
		})

		Convey("When a set filter is added for a whole group", func() {
			f, err := svc.AddSetFilter(ctx, info.ID, "", "2024-2-80,90", false)

			Convey("Then it carries every album of the group", func() {
				So(err, ShouldBeNil)
				So(f.Kind, ShouldEqual, filter.UpsetSet)
				So(f.AlbumIDs, ShouldResemble, []model.AlbumID{2, 3, 4})
			})
		})

		Convey("When an unknown set label is used", func() {
			_, err := svc.AddIntersectionFilter(ctx, info.ID, "", "nope", upset.Exclusive, false)

			Convey("Then ErrUnknownSet is returned", func() {
				So(errors.Is(err, service.ErrUnknownSet), ShouldBeTrue)
			})
		})

		Convey("When the same filter id is added twice", func() {
			f := filter.Filter{ID: "dup", AlbumIDs: []model.AlbumID{7}, Kind: filter.UpsetSet}
			So(svc.AddFilter(ctx, info.ID, "", f), ShouldBeNil)
			So(svc.AddFilter(ctx, info.ID, "", f), ShouldBeNil)

			Convey("Then both are kept", func() {
				filters, _ := svc.Filters(ctx, info.ID)
				So(len(filters), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a service with a cap of one group", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithMaxGroups(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		info, _ := svc.CreateSession(ctx)
		twoBins(ctx, svc, info.ID)

		Convey("Then two groups are refused", func() {
			_, _, err := svc.Intersections(ctx, info.ID, upset.Exclusive, false)
			So(errors.Is(err, upset.ErrTooManyGroups), ShouldBeTrue)
		})

		Convey("Then consolidating per publication still yields two groups", func() {
			_, _, err := svc.Intersections(ctx, info.ID, upset.Inclusive, true)
			So(errors.Is(err, upset.ErrTooManyGroups), ShouldBeTrue)
		})
	})
}

func TestService_RequestIDs(t *testing.T) {
	Convey("Given a session with cached reviews", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		info, _ := svc.CreateSession(ctx)
		So(svc.Apply(ctx, info.ID, "", selection.AddReviews{Rows: []model.Review{
			{AlbumID: 1, PublicationID: 6, Score: 55, Year: 2020},
		}}), ShouldBeNil)
		click := selection.ClickBin{Low: 50, High: 60, PublicationID: 6, Years: []model.Year{2020}}

		Convey("When a click is retried with the same request id", func() {
			So(svc.Apply(ctx, info.ID, "req-1", click), ShouldBeNil)
			So(svc.Apply(ctx, info.ID, "req-1", click), ShouldBeNil)

			Convey("Then it is applied once", func() {
				view, _ := svc.Selection(ctx, info.ID)
				So(view.SelectionCount, ShouldEqual, 1)
			})
		})

		Convey("When a call is cancelled before queueing and then retried", func() {
			for i := 0; i < 25; i++ {
				key := fmt.Sprintf("cancelled-%d", i)
				cancelled, cancel := context.WithCancel(ctx)
				cancel()
				_ = svc.Apply(cancelled, info.ID, key, click)
				So(svc.Apply(ctx, info.ID, key, click), ShouldBeNil)
				So(svc.Apply(ctx, info.ID, key, click), ShouldBeNil)

				view, _ := svc.Selection(ctx, info.ID)
				So(view.SelectionCount, ShouldEqual, (i+1)%2)
			}
		})

		Convey("When a failed request is retried", func() {
			bad := selection.ClickBin{Low: 50, High: 60, PublicationID: 6, Years: []model.Year{2021}}
			So(errors.Is(svc.Apply(ctx, info.ID, "req-2", bad), selection.ErrCacheMiss), ShouldBeTrue)

			Convey("Then the request id is free again", func() {
				So(svc.Apply(ctx, info.ID, "req-2", click), ShouldBeNil)
				view, _ := svc.Selection(ctx, info.ID)
				So(view.SelectionCount, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Rankings(t *testing.T) {
	Convey("Given ranking rows with an unscored album", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		info, _ := svc.CreateSession(ctx)
		rows := []model.Ranking{
			{AlbumID: 1, PublicationID: 3, Rank: 1, Year: 2024, Score: ptr(9)},
			{AlbumID: 2, PublicationID: 3, Rank: 2, Year: 2024},
		}

		Convey("When loaded with unscored rows hidden", func() {
			res, err := svc.AddRankings(ctx, info.ID, "", selection.AddRankings{Rows: rows}, true)
			So(err, ShouldBeNil)

			Convey("Then the unscored row is counted as excluded", func() {
				So(res, ShouldResemble, service.RankingsResult{Kept: 1, Excluded: 1})
			})

			Convey("And a brush over everything skips it", func() {
				So(svc.Apply(ctx, info.ID, "", selection.Brush{X1: 1, X2: 2, Y1: -20, Y2: 100, PublicationID: 3, Years: []model.Year{2024}}), ShouldBeNil)
				view, _ := svc.Selection(ctx, info.ID)
				So(view.Brushes[0].AlbumIDs, ShouldResemble, []model.AlbumID{1})
			})

			Convey("And loading again visible brings it back", func() {
				_, err := svc.AddRankings(ctx, info.ID, "", selection.AddRankings{Rows: rows}, false)
				So(err, ShouldBeNil)
				So(svc.Apply(ctx, info.ID, "", selection.Brush{X1: 1, X2: 2, Y1: -20, Y2: 100, PublicationID: 3, Years: []model.Year{2024}}), ShouldBeNil)
				view, _ := svc.Selection(ctx, info.ID)
				So(view.Brushes[0].AlbumIDs, ShouldResemble, []model.AlbumID{1, 2})
			})
		})
	})
}

func TestService_Concurrency(t *testing.T) {
	Convey("Given many sessions driven at once", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithShardCount(4), service.WithQueueSize(512))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		ids := make([]string, 8)
		for i := range ids {
			info, err := svc.CreateSession(ctx)
			So(err, ShouldBeNil)
			ids[i] = info.ID
		}

		done := make(chan error, len(ids))
		for _, id := range ids {
			go func() {
				err := svc.Apply(ctx, id, "", selection.AddReviews{Rows: []model.Review{{AlbumID: 1, PublicationID: 1, Score: 50, Year: 2024}}})
				if err == nil {
					err = svc.Apply(ctx, id, "", selection.SelectAll{PublicationID: 1, Years: []model.Year{2024}})
				}
				done <- err
			}()
		}
		for range ids {
			So(<-done, ShouldBeNil)
		}

		Convey("Then every session holds its own selection", func() {
			for _, id := range ids {
				view, err := svc.Selection(ctx, id)
				So(err, ShouldBeNil)
				So(view.SelectionCount, ShouldEqual, 20)
			}
		})
	})
}
