package cursor

import (
	"fmt"

	"golang.org/x/text/cases"
)

// lazy holds a value derived once from immutable inputs. The zero value is
// unbuilt.
type lazy[T any] struct {
	value T
	built bool
}

// get returns the built value, building it on first use. A failed build is
// not recorded.
func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	if l.built {
		return l.value, nil
	}
	v, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.built = v, true
	return v, nil
}

func (l *lazy[T]) reset() {
	var zero T
	l.value, l.built = zero, false
}

// nameIndex maps display names to ordinals, exact match first and
// case-folded second.
type nameIndex struct {
	exact  map[string]int
	folded map[string]int
	folder cases.Caser
}

func buildNameIndex(fields Descriptors) *nameIndex {
	idx := &nameIndex{
		exact:  make(map[string]int, len(fields)),
		folded: make(map[string]int, len(fields)),
		folder: cases.Fold(),
	}
	for i, f := range fields {
		name := f.DisplayName()
		if _, ok := idx.exact[name]; !ok {
			idx.exact[name] = i
		}
		key := idx.folder.String(name)
		if _, ok := idx.folded[key]; !ok {
			idx.folded[key] = i
		}
	}
	return idx
}

func (idx *nameIndex) ordinal(name string) (int, error) {
	if i, ok := idx.exact[name]; ok {
		return i, nil
	}
	if i, ok := idx.folded[idx.folder.String(name)]; ok {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}
