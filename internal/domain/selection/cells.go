package selection

import (
	"maps"
	"slices"

	"github.com/okian/upsetlens/internal/domain/model"
)

// cells is a year -> publication -> V mapping. Removing the last publication
// of a year removes the year, so absent and empty never coexist.
type cells[V any] map[model.Year]map[model.PublicationID]V

func (c cells[V]) get(y model.Year, p model.PublicationID) (V, bool) {
	v, ok := c[y][p]
	return v, ok
}

func (c cells[V]) set(y model.Year, p model.PublicationID, v V) {
	inner, ok := c[y]
	if !ok {
		inner = make(map[model.PublicationID]V)
		c[y] = inner
	}
	inner[p] = v
}

func (c cells[V]) del(y model.Year, p model.PublicationID) {
	inner, ok := c[y]
	if !ok {
		return
	}
	delete(inner, p)
	if len(inner) == 0 {
		delete(c, y)
	}
}

func (c cells[V]) dropPublication(p model.PublicationID) {
	for y := range c {
		c.del(y, p)
	}
}

// each visits cells with years ascending, then publication ids ascending.
func (c cells[V]) each(fn func(y model.Year, p model.PublicationID, v V)) {
	for _, y := range slices.Sorted(maps.Keys(c)) {
		inner := c[y]
		for _, p := range slices.Sorted(maps.Keys(inner)) {
			fn(y, p, inner[p])
		}
	}
}
