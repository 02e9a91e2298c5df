// Package genre turns genre rows into genre-filter album ids and the counts
// shown by the genre plot.
package genre

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/model"
)

// Row is the genre data of one album.
type Row struct {
	ID        model.AlbumID `json:"id" validate:"required"`
	Genres    []string      `json:"genres"`
	Subgenres []string      `json:"subgenres"`
}

// Count is the number of albums tagged with one genre.
type Count struct {
	Genre  string `json:"genre"`
	Albums int    `json:"albums"`
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Match returns, in row order, the ids of albums carrying any wanted genre.
// Subgenres are considered when includeSubgenres is set. Comparison ignores
// case.
func Match(rows []Row, wanted []string, includeSubgenres bool) []model.AlbumID {
	want := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		if f := fold(w); f != "" {
			want[f] = struct{}{}
		}
	}
	ids := make([]model.AlbumID, 0)
	if len(want) == 0 {
		return ids
	}
	hit := func(tags []string) bool {
		return slices.ContainsFunc(tags, func(t string) bool {
			_, ok := want[fold(t)]
			return ok
		})
	}
	for _, r := range rows {
		if hit(r.Genres) || (includeSubgenres && hit(r.Subgenres)) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Counts returns the number of albums per genre, largest first, ties by
// name. Genres differing only in case are counted together under the
// spelling seen first.
func Counts(rows []Row) []Count {
	index := make(map[string]int)
	var out []Count
	for _, r := range rows {
		seen := make(map[string]struct{}, len(r.Genres))
		for _, g := range r.Genres {
			key := fold(g)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			i, ok := index[key]
			if !ok {
				index[key] = len(out)
				out = append(out, Count{Genre: strings.TrimSpace(g)})
				i = len(out) - 1
			}
			out[i].Albums++
		}
	}
	slices.SortStableFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Albums, a.Albums); c != 0 {
			return c
		}
		return cmp.Compare(a.Genre, b.Genre)
	})
	return out
}

// NewFilter builds a genre filter for the albums matching wanted.
func NewFilter(id string, rows []Row, wanted []string, includeSubgenres bool) filter.Filter {
	return filter.Filter{
		ID:          id,
		GroupLabels: slices.Clone(wanted),
		AlbumIDs:    Match(rows, wanted, includeSubgenres),
		Kind:        filter.Genre,
	}
}
