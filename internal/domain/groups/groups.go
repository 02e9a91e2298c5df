// Package groups derives the labelled album-id groups the intersection engine
// combines from a settled selection state.
package groups

import (
	"fmt"
	"slices"

	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
)

// Group is one labelled selection.
type Group struct {
	Label    string          `json:"label"`
	AlbumIDs []model.AlbumID `json:"album_ids"`
}

// Groups is an ordered list of groups. Order fixes the bit position of each
// group in intersection records.
type Groups []Group

// Source is the read side of a selection store.
type Source interface {
	Ranges() []selection.RangeEntry
	Brushes() []selection.BrushEntry
}

// Options controls derivation.
type Options struct {
	// Consolidate collapses every bin and the brush of one (year,
	// publication) into a single "{year}-{publication}" group.
	Consolidate bool
	// Dedupe keeps each id once when consolidated contributions are merged.
	// By default contributions are concatenated.
	Dedupe bool
}

// Derive walks range entries first and brush entries second, merging into
// groups keyed by label in first-seen order.
func Derive(src Source, opts Options) Groups {
	var out Groups
	index := make(map[string]int)
	add := func(label string, ids []model.AlbumID) {
		i, ok := index[label]
		if !ok {
			index[label] = len(out)
			out = append(out, Group{Label: label, AlbumIDs: slices.Clone(ids)})
			if out[len(out)-1].AlbumIDs == nil {
				out[len(out)-1].AlbumIDs = make([]model.AlbumID, 0)
			}
			return
		}
		out[i].AlbumIDs = append(out[i].AlbumIDs, ids...)
	}

	for _, e := range src.Ranges() {
		label := BinLabel(e.Year, e.PublicationID, e.Bin)
		if opts.Consolidate {
			label = PublicationLabel(e.Year, e.PublicationID)
		}
		add(label, e.AlbumIDs)
	}
	for _, e := range src.Brushes() {
		label := BrushLabel(e.Year, e.PublicationID)
		if opts.Consolidate {
			label = PublicationLabel(e.Year, e.PublicationID)
		}
		add(label, e.AlbumIDs)
	}
	if opts.Dedupe {
		for i := range out {
			out[i].AlbumIDs = unique(out[i].AlbumIDs)
		}
	}
	return out
}

// unique keeps the first occurrence of each id.
func unique(ids []model.AlbumID) []model.AlbumID {
	seen := make(map[model.AlbumID]struct{}, len(ids))
	out := make([]model.AlbumID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// BinLabel names the group of one selected bin.
func BinLabel(y model.Year, p model.PublicationID, bin string) string {
	return fmt.Sprintf("%d-%d-%s", y, p, bin)
}

// BrushLabel names the group of one brush region.
func BrushLabel(y model.Year, p model.PublicationID) string {
	return fmt.Sprintf("%d-%d-brush", y, p)
}

// PublicationLabel names a consolidated group.
func PublicationLabel(y model.Year, p model.PublicationID) string {
	return fmt.Sprintf("%d-%d", y, p)
}

// Len returns the number of groups.
func (g Groups) Len() int { return len(g) }

// Labels returns group labels in order.
func (g Groups) Labels() []string {
	out := make([]string, len(g))
	for i, grp := range g {
		out[i] = grp.Label
	}
	return out
}

// Counts returns the size of each group in order, for axis rendering.
func (g Groups) Counts() []int {
	out := make([]int, len(g))
	for i, grp := range g {
		out[i] = len(grp.AlbumIDs)
	}
	return out
}

// Get returns the ids of the group with label.
func (g Groups) Get(label string) ([]model.AlbumID, bool) {
	for _, grp := range g {
		if grp.Label == label {
			return grp.AlbumIDs, true
		}
	}
	return nil, false
}
