// Package explorer drives a running upsetlens server with synthetic data and
// reports the resulting intersections.
package explorer

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/upsetlens/internal/domain/binning"
	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/internal/domain/upset"
	"github.com/okian/upsetlens/pkg/logger"
)

const loadConcurrency = 4

// Report is the outcome of one run.
type Report struct {
	SessionID string
	Loaded    int
	Excluded  int
	Labels    []string
	Records   []upset.Record
	Filter    *filter.Filter
	Albums    []model.AlbumID
	Duration  time.Duration
}

// Run loads a synthetic dataset into a new session, selects one bin and one
// brush per publication, then writes the intersection table and the albums of
// the largest intersection to out.
func Run(ctx context.Context, cfg Config, out io.Writer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := upset.ParseMode(cfg.Mode)
	log := logger.Get().Named("explorer")
	start := time.Now()

	log.Info(ctx, "starting exploration",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("publications", cfg.Publications),
		logger.Int("albums", cfg.Albums),
		logger.Any("years", cfg.Years),
		logger.String("mode", mode.String()),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	ds := Generate(cfg)
	id, err := client.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	report := &Report{SessionID: id}
	years := yearsOf(cfg.Years)
	pubs := ds.Publications()

	loaded, excluded, err := load(ctx, client, id, ds, years)
	if err != nil {
		return nil, err
	}
	report.Loaded, report.Excluded = loaded, excluded
	log.Info(ctx, "dataset loaded", logger.Int("rows", loaded), logger.Int("unscoredExcluded", excluded))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, p := range pubs {
		key := MedianBin(ds.Reviews[p])
		g.Go(func() error {
			return client.ClickBin(gctx, id, selection.ClickBin{
				Low: key.Low, High: key.High, PublicationID: p, Years: years,
			})
		})
		g.Go(func() error {
			return client.Brush(gctx, id, selection.Brush{
				X1: 1, X2: float64(cfg.BrushTop), Y1: 0, Y2: binning.MaxScore,
				PublicationID: p, Years: years,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	inter, err := client.Intersections(ctx, id, mode)
	if err != nil {
		return nil, fmt.Errorf("intersections: %w", err)
	}
	report.Labels, report.Records = inter.Labels, inter.Records
	fmt.Fprintln(out, RenderGroups(inter.Labels))
	fmt.Fprintln(out, RenderRecords(inter.Labels, inter.Records))

	if len(inter.Records) > 0 {
		f, err := client.AddIntersectionFilter(ctx, id, inter.Records[0].SetLabel, mode)
		if err != nil {
			return nil, fmt.Errorf("add filter: %w", err)
		}
		albums, err := client.Albums(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("albums: %w", err)
		}
		report.Filter, report.Albums = &f, albums
		fmt.Fprintf(out, "Albums in %s: %v\n", f.ID, albums)
	}

	report.Duration = time.Since(start)
	log.Info(ctx, "exploration completed",
		logger.String("session_id", id),
		logger.Int("records", len(report.Records)),
		logger.String("duration", report.Duration.String()),
	)
	return report, nil
}

// load caches every publication's reviews and rankings, hiding unscored
// ranking rows.
func load(ctx context.Context, client *Client, id string, ds Dataset, years []model.Year) (loaded, excluded int, err error) {
	pubs := ds.Publications()
	results := make([]RankingsResult, len(pubs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, p := range pubs {
		g.Go(func() error {
			if err := client.AddReviews(gctx, id, selection.AddReviews{Rows: ds.Reviews[p], Years: years}); err != nil {
				return err
			}
			res, err := client.AddRankings(gctx, id, selection.AddRankings{Rows: ds.Rankings[p], Years: years}, true)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("load: %w", err)
	}
	for _, p := range pubs {
		loaded += len(ds.Reviews[p]) + len(ds.Rankings[p])
	}
	for _, r := range results {
		excluded += r.Excluded
	}
	return loaded, excluded, nil
}

// MedianBin returns the histogram bin holding the median score of rows.
func MedianBin(rows []model.Review) binning.Key {
	scores := model.Scores(rows)
	step := binning.StepSize(scores, binning.DefaultMinStep)
	keys := binning.Keys(step)
	if len(scores) == 0 {
		return keys[0]
	}
	slices.Sort(scores)
	median := scores[len(scores)/2]
	for _, k := range keys {
		if k.Contains(median) {
			return k
		}
	}
	return keys[len(keys)-1]
}
