package filter

import "fmt"

// Kind is the closed set of filter variants.
type Kind int

const (
	// UpsetIntersection is a filter built from one intersection record.
	UpsetIntersection Kind = iota + 1
	// UpsetSet is a filter built from one whole group.
	UpsetSet
	// Genre is a filter built from a genre selection.
	Genre
)

// Class says how a kind takes part in resolution.
type Class int

const (
	// Union filters are combined with each other by concatenation.
	Union Class = iota
	// Intersection filters narrow the union.
	Intersection
)

func (k Kind) String() string {
	switch k {
	case UpsetIntersection:
		return "upset-filter"
	case UpsetSet:
		return "upset-set-filter"
	case Genre:
		return "genre-filter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Class returns the resolution class of k.
func (k Kind) Class() Class {
	switch k {
	case UpsetIntersection, UpsetSet:
		return Union
	case Genre:
		return Intersection
	default:
		panic(fmt.Sprintf("filter: unhandled kind %d", int(k)))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case UpsetIntersection, UpsetSet, Genre:
		return true
	default:
		return false
	}
}

// ParseKind parses the wire name of a kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{UpsetIntersection, UpsetSet, Genre} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
