// Package upset computes UpSet-style set intersections over derived groups.
//
// Every non-empty subset of the n groups is visited once, from the subset
// containing all groups (i = 2^n-1) down to single groups (i = 1). The cost is
// O(2^n * n * m) for average group size m, so n is capped.
package upset

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/upsetlens/internal/domain/groups"
	"github.com/okian/upsetlens/internal/domain/model"
)

// Mode selects how ids shared by several subsets are reported.
type Mode int

const (
	// Exclusive assigns each id to the first (largest) subset containing it.
	Exclusive Mode = iota
	// Inclusive reports an id in every subset whose groups all contain it.
	Inclusive
)

func (m Mode) String() string {
	switch m {
	case Exclusive:
		return "exclusive"
	case Inclusive:
		return "inclusive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "exclusive" or "inclusive". An empty string is Exclusive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclusive":
		return Exclusive, nil
	case "inclusive":
		return Inclusive, nil
	default:
		return Exclusive, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Record is one emitted intersection.
type Record struct {
	SetLabel         string          `json:"setLabel"`
	Sets             []int           `json:"sets"`
	IntersectionSize int             `json:"intersectionSize"`
	AlbumIDs         []model.AlbumID `json:"albumIds"`
	X1               int             `json:"x1"`
	X2               int             `json:"x2"`
}

// Candidates returns the number of subsets visited for n groups.
func Candidates(n int) int {
	if n <= 0 {
		return 0
	}
	return 1<<n - 1
}

// Compute walks every non-empty subset of gs and emits the non-empty
// intersections. Output order and membership depend only on gs and mode.
func Compute(gs groups.Groups, mode Mode, opts ...Option) ([]Record, error) {
	cfg := config{maxGroups: DefaultMaxGroups}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := len(gs)
	if n > cfg.maxGroups {
		return nil, fmt.Errorf("%w: %d groups, limit %d", ErrTooManyGroups, n, cfg.maxGroups)
	}
	records := make([]Record, 0)
	if n == 0 {
		return records, nil
	}

	members := make([]map[model.AlbumID]struct{}, n)
	for k, g := range gs {
		members[k] = make(map[model.AlbumID]struct{}, len(g.AlbumIDs))
		for _, id := range g.AlbumIDs {
			members[k][id] = struct{}{}
		}
	}

	claimed := make(map[model.AlbumID]struct{})
	labels := make([]string, 0, n)
	for i := Candidates(n); i >= 1; i-- {
		sets := make([]int, n)
		labels = labels[:0]
		var ids []model.AlbumID
		first, last := -1, -1
		for k := 0; k < n; k++ {
			if (i>>(n-1-k))&1 == 0 {
				continue
			}
			sets[k] = 1
			labels = append(labels, gs[k].Label)
			if first < 0 {
				first = k
				ids = slices.Clone(gs[k].AlbumIDs)
			} else if len(ids) > 0 {
				in := members[k]
				ids = slices.DeleteFunc(ids, func(id model.AlbumID) bool {
					_, ok := in[id]
					return !ok
				})
			}
			last = k
		}

		if mode == Exclusive && len(ids) > 0 {
			ids = slices.DeleteFunc(ids, func(id model.AlbumID) bool {
				_, ok := claimed[id]
				return ok
			})
			for _, id := range ids {
				claimed[id] = struct{}{}
			}
		}
		if len(ids) == 0 {
			continue
		}
		records = append(records, Record{
			SetLabel:         strings.Join(labels, "#"),
			Sets:             sets,
			IntersectionSize: len(ids),
			AlbumIDs:         ids,
			X1:               first,
			X2:               last,
		})
	}
	return records, nil
}

// SortBySize orders records by descending IntersectionSize for display,
// keeping walk order among equal sizes.
func SortBySize(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return cmp.Compare(b.IntersectionSize, a.IntersectionSize)
	})
}
