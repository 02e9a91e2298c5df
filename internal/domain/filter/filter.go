// Package filter composes active filters into the album ids shown in the
// album list.
package filter

import (
	"fmt"
	"slices"

	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/upset"
)

// Filter is one active filter.
type Filter struct {
	ID          string          `json:"id" validate:"required"`
	GroupLabels []string        `json:"group_labels"`
	AlbumIDs    []model.AlbumID `json:"album_ids"`
	Kind        Kind            `json:"type" validate:"required"`
}

// FromRecord builds an intersection filter from a record. The set label is
// used as the id so the same record never produces two distinct ids.
func FromRecord(r upset.Record) Filter {
	return Filter{
		ID:          r.SetLabel,
		GroupLabels: labelsOf(r.SetLabel),
		AlbumIDs:    slices.Clone(r.AlbumIDs),
		Kind:        UpsetIntersection,
	}
}

// FromGroup builds a whole-group filter.
func FromGroup(label string, ids []model.AlbumID) Filter {
	return Filter{
		ID:          label,
		GroupLabels: []string{label},
		AlbumIDs:    slices.Clone(ids),
		Kind:        UpsetSet,
	}
}

func labelsOf(setLabel string) []string {
	var out []string
	start := 0
	for i := 0; i < len(setLabel); i++ {
		if setLabel[i] == '#' {
			out = append(out, setLabel[start:i])
			start = i + 1
		}
	}
	return append(out, setLabel[start:])
}

// List is an ordered list of filters. Ids are not required to be unique.
type List struct {
	items []Filter
}

// Add appends f. It reports whether a filter with the same id was already
// present; the duplicate is kept either way. Filters of an undeclared kind
// are rejected with ErrUnknownKind.
func (l *List) Add(f Filter) (duplicate bool, err error) {
	if !f.Kind.Valid() {
		return false, fmt.Errorf("%w: %d", ErrUnknownKind, int(f.Kind))
	}
	duplicate = slices.ContainsFunc(l.items, func(x Filter) bool { return x.ID == f.ID })
	l.items = append(l.items, f)
	return duplicate, nil
}

// Remove drops the first filter with id.
func (l *List) Remove(id string) error {
	i := slices.IndexFunc(l.items, func(x Filter) bool { return x.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

// Filters returns a copy of the list.
func (l *List) Filters() []Filter {
	return slices.Clone(l.items)
}

// Len returns the number of filters.
func (l *List) Len() int { return len(l.items) }

// Replace sets the list contents, used when restoring a session. The list is
// left unchanged if any filter has an undeclared kind.
func (l *List) Replace(filters []Filter) error {
	for _, f := range filters {
		if !f.Kind.Valid() {
			return fmt.Errorf("%w: filter %q has kind %d", ErrUnknownKind, f.ID, int(f.Kind))
		}
	}
	l.items = slices.Clone(filters)
	return nil
}

type resolveConfig struct {
	dedupeUnion bool
}

// ResolveOption configures Resolve.
type ResolveOption func(*resolveConfig)

// WithUnionDedupe keeps each id once in the union step instead of
// concatenating contributions.
func WithUnionDedupe(on bool) ResolveOption {
	return func(c *resolveConfig) {
		c.dedupeUnion = on
	}
}

// Resolve returns the album ids selected by filters. Union-class filters are
// concatenated in list order and then narrowed by each intersection-class
// filter in list order. Without union filters the first intersection filter
// seeds the result. Filters of an undeclared kind are ignored.
func Resolve(filters []Filter, opts ...ResolveOption) []model.AlbumID {
	var cfg resolveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	result := make([]model.AlbumID, 0)
	var narrowing []Filter
	for _, f := range filters {
		if !f.Kind.Valid() {
			continue
		}
		switch f.Kind.Class() {
		case Union:
			result = append(result, f.AlbumIDs...)
		case Intersection:
			narrowing = append(narrowing, f)
		}
	}
	if cfg.dedupeUnion {
		result = unique(result)
	}

	if len(result) == 0 {
		if len(narrowing) == 0 {
			return result
		}
		result = append(result, narrowing[0].AlbumIDs...)
		narrowing = narrowing[1:]
	}
	for _, f := range narrowing {
		keep := make(map[model.AlbumID]struct{}, len(f.AlbumIDs))
		for _, id := range f.AlbumIDs {
			keep[id] = struct{}{}
		}
		result = slices.DeleteFunc(result, func(id model.AlbumID) bool {
			_, ok := keep[id]
			return !ok
		})
	}
	return result
}

func unique(ids []model.AlbumID) []model.AlbumID {
	seen := make(map[model.AlbumID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
