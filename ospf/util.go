package ospf

import (
	"slices"

	"golang.org/x/exp/constraints"
)

func abs[T constraints.Signed](a T) T {
	if a < 0 {
		return -a
	} else {
		return a
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}

	return v
}

// boundedList is an ordered list that refuses to grow past a fixed
// capacity. Router links, prefixes and pending requests are all kept in
// one.
type boundedList[T comparable] struct {
	max   int
	items []T
}

func newBoundedList[T comparable](max int) boundedList[T] {
	return boundedList[T]{max: max}
}

// add appends v, returning false if the list is full.
func (l *boundedList[T]) add(v T) bool {
	if len(l.items) >= l.max {
		return false
	}

	l.items = append(l.items, v)
	return true
}

func (l *boundedList[T]) contains(v T) bool {
	return slices.Contains(l.items, v)
}

func (l *boundedList[T]) remove(v T) bool {
	i := slices.Index(l.items, v)
	if i < 0 {
		return false
	}

	l.items = slices.Delete(l.items, i, i+1)
	return true
}

func (l *boundedList[T]) len() int {
	return len(l.items)
}

func (l *boundedList[T]) full() bool {
	return len(l.items) >= l.max
}

func (l *boundedList[T]) clear() {
	l.items = nil
}

func (l *boundedList[T]) all() []T {
	return l.items
}

func (l boundedList[T]) equal(other boundedList[T]) bool {
	return slices.Equal(l.items, other.items)
}
